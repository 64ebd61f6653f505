package symbols

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/stocker/internal/common"
	"github.com/bobmcallan/stocker/internal/models"
)

// --- Mocks ---

type mockSymbolClient struct {
	mu      sync.Mutex
	symbols []string
	err     error
	calls   atomic.Int32
	gate    chan struct{} // when set, each call blocks until closed
}

func (m *mockSymbolClient) GetEquitySymbols(ctx context.Context) ([]string, error) {
	m.calls.Add(1)
	if m.gate != nil {
		<-m.gate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.symbols, m.err
}

func (m *mockSymbolClient) set(symbols []string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.symbols = symbols
	m.err = err
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestService(client *mockSymbolClient, clock *fakeClock, opts ...Option) *Service {
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return NewService(client, common.NewSilentLogger(), opts...)
}

// --- Tests ---

func TestGetSymbols_FetchesCleansAndSorts(t *testing.T) {
	client := &mockSymbolClient{symbols: []string{"TCS", " infy ", "", "RELIANCE", "TCS", "   "}}
	svc := newTestService(client, newFakeClock())

	got := svc.GetSymbols(context.Background())

	assert.Equal(t, []string{"INFY", "RELIANCE", "TCS"}, got)
	assert.Equal(t, int32(1), client.calls.Load())

	snap := svc.Snapshot()
	assert.Equal(t, 3, snap.Count)
	assert.Equal(t, models.SymbolSourceNSE, snap.Source)
}

func TestGetSymbols_CacheHitWithinTTL(t *testing.T) {
	client := &mockSymbolClient{symbols: []string{"TCS", "INFY"}}
	clock := newFakeClock()
	svc := newTestService(client, clock)

	first := svc.GetSymbols(context.Background())
	clock.Advance(23*time.Hour + 59*time.Minute)
	second := svc.GetSymbols(context.Background())

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), client.calls.Load(), "second call within TTL must not hit upstream")
}

func TestGetSymbols_RefreshesAfterTTL(t *testing.T) {
	client := &mockSymbolClient{symbols: []string{"TCS"}}
	clock := newFakeClock()
	svc := newTestService(client, clock)

	svc.GetSymbols(context.Background())

	client.set([]string{"TCS", "WIPRO"}, nil)
	clock.Advance(24 * time.Hour)

	got := svc.GetSymbols(context.Background())
	assert.Equal(t, []string{"TCS", "WIPRO"}, got)
	assert.Equal(t, int32(2), client.calls.Load())
}

func TestGetSymbols_CustomTTL(t *testing.T) {
	client := &mockSymbolClient{symbols: []string{"TCS"}}
	clock := newFakeClock()
	svc := newTestService(client, clock, WithTTL(time.Minute))

	svc.GetSymbols(context.Background())
	clock.Advance(time.Minute)
	svc.GetSymbols(context.Background())

	assert.Equal(t, int32(2), client.calls.Load())
}

func TestGetSymbols_FetchErrorUsesFallback(t *testing.T) {
	client := &mockSymbolClient{err: errors.New("connection refused")}
	svc := newTestService(client, newFakeClock())

	got := svc.GetSymbols(context.Background())

	assert.Equal(t, DefaultFallback, got)
	assert.Equal(t, models.SymbolSourceFallback, svc.Snapshot().Source)
}

func TestGetSymbols_EmptyAfterCleaningUsesFallback(t *testing.T) {
	client := &mockSymbolClient{symbols: []string{"", "  ", "\t"}}
	svc := newTestService(client, newFakeClock())

	got := svc.GetSymbols(context.Background())
	assert.Equal(t, DefaultFallback, got)
}

func TestGetSymbols_FallbackIsCachedUntilExpiry(t *testing.T) {
	client := &mockSymbolClient{err: errors.New("timeout")}
	clock := newFakeClock()
	svc := newTestService(client, clock)

	for i := 0; i < 5; i++ {
		got := svc.GetSymbols(context.Background())
		require.NotEmpty(t, got)
		clock.Advance(time.Hour)
	}
	assert.Equal(t, int32(1), client.calls.Load(), "failures are cached for the TTL window")

	// Upstream recovers; the next fetch happens only after expiry
	client.set([]string{"ZOMATO"}, nil)
	clock.Advance(20 * time.Hour)
	got := svc.GetSymbols(context.Background())
	assert.Equal(t, []string{"ZOMATO"}, got)
	assert.Equal(t, int32(2), client.calls.Load())
}

func TestGetSymbols_CustomFallback(t *testing.T) {
	client := &mockSymbolClient{err: errors.New("boom")}
	svc := newTestService(client, newFakeClock(), WithFallback([]string{"TCS", "INFY"}))

	assert.Equal(t, []string{"TCS", "INFY"}, svc.GetSymbols(context.Background()))
}

func TestGetSymbols_CustomFallbackIsNormalized(t *testing.T) {
	client := &mockSymbolClient{err: errors.New("boom")}
	svc := newTestService(client, newFakeClock(), WithFallback([]string{"tcs", " INFY", "TCS", "tcs", "  "}))

	assert.Equal(t, []string{"TCS", "INFY"}, svc.GetSymbols(context.Background()))
	assert.Equal(t, models.SymbolSourceFallback, svc.Snapshot().Source)
}

func TestGetSymbols_BlankOnlyFallbackUsesPlaceholder(t *testing.T) {
	client := &mockSymbolClient{err: errors.New("boom")}
	svc := newTestService(client, newFakeClock(), WithFallback([]string{" ", ""}))

	assert.Equal(t, []string{"NSE_FALLBACK_A", "NSE_FALLBACK_B", "NSE_FALLBACK_C"}, svc.GetSymbols(context.Background()))
	assert.Equal(t, models.SymbolSourcePlaceholder, svc.Snapshot().Source)
}

func TestGetSymbols_EmptyFallbackUsesPlaceholder(t *testing.T) {
	client := &mockSymbolClient{err: errors.New("boom")}
	svc := newTestService(client, newFakeClock(), WithFallback(nil))

	got := svc.GetSymbols(context.Background())

	assert.Equal(t, []string{"NSE_FALLBACK_A", "NSE_FALLBACK_B", "NSE_FALLBACK_C"}, got)
	assert.Equal(t, models.SymbolSourcePlaceholder, svc.Snapshot().Source)
}

func TestGetSymbols_ReturnsCopy(t *testing.T) {
	client := &mockSymbolClient{symbols: []string{"INFY", "TCS"}}
	svc := newTestService(client, newFakeClock())

	got := svc.GetSymbols(context.Background())
	got[0] = "MUTATED"

	assert.Equal(t, []string{"INFY", "TCS"}, svc.GetSymbols(context.Background()))
}

func TestGetSymbols_FallbackListNotMutatedByCaller(t *testing.T) {
	client := &mockSymbolClient{err: errors.New("boom")}
	svc := newTestService(client, newFakeClock())

	got := svc.GetSymbols(context.Background())
	got[0] = "MUTATED"

	assert.Equal(t, "RELIANCE", DefaultFallback[0])
}

func TestGetSymbols_ConcurrentCallersShareOneFetch(t *testing.T) {
	client := &mockSymbolClient{symbols: []string{"TCS", "INFY"}, gate: make(chan struct{})}
	svc := newTestService(client, newFakeClock())

	const callers = 20
	var wg sync.WaitGroup
	results := make([][]string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = svc.GetSymbols(context.Background())
		}(i)
	}

	require.Eventually(t, func() bool { return client.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(client.gate)
	wg.Wait()

	assert.Equal(t, int32(1), client.calls.Load())
	for _, r := range results {
		assert.Equal(t, []string{"INFY", "TCS"}, r)
	}
}

func TestGetSymbols_CancelledCallerStillCachesResult(t *testing.T) {
	var seenErr error
	client := &ctxCheckingClient{symbols: []string{"TCS"}, seen: &seenErr}
	svc := NewService(client, common.NewSilentLogger(), WithClock(newFakeClock().Now))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := svc.GetSymbols(ctx)
	assert.Equal(t, []string{"TCS"}, got)
	assert.NoError(t, seenErr, "fetch context is detached from caller cancellation")
}

type ctxCheckingClient struct {
	symbols []string
	seen    *error
}

func (c *ctxCheckingClient) GetEquitySymbols(ctx context.Context) ([]string, error) {
	*c.seen = ctx.Err()
	return c.symbols, nil
}

func TestSnapshot_EmptyBeforeFirstFetch(t *testing.T) {
	svc := newTestService(&mockSymbolClient{}, newFakeClock())
	assert.Equal(t, models.SymbolSnapshot{}, svc.Snapshot())
}

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"nil", nil, []string{}},
		{"sorted and deduped", []string{"TCS", "INFY", "TCS"}, []string{"INFY", "TCS"}},
		{"case folded before dedupe", []string{"tcs", "TCS", "Tcs"}, []string{"TCS"}},
		{"blanks dropped", []string{"", " ", "ITC"}, []string{"ITC"}},
		{"ampersand and hyphen kept", []string{"M&M", "BAJAJ-AUTO"}, []string{"BAJAJ-AUTO", "M&M"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}
