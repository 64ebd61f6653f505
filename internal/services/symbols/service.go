// Package symbols provides the cached exchange symbol universe with fallback
package symbols

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/bobmcallan/stocker/internal/common"
	"github.com/bobmcallan/stocker/internal/interfaces"
	"github.com/bobmcallan/stocker/internal/models"
)

// DefaultFallback is substituted when the live list cannot be fetched or is unusable.
var DefaultFallback = []string{
	"RELIANCE", "TCS", "HDFCBANK", "INFY", "ICICIBANK", "SBIN", "LT",
	"HINDUNILVR", "ITC", "BAJFINANCE", "ASIANPAINT", "MARUTI", "KOTAKBANK",
	"AXISBANK", "SUNPHARMA", "NTPC", "POWERGRID", "TITAN", "ULTRACEMCO",
	"WIPRO", "HCLTECH", "TECHM", "NESTLEIND", "ONGC", "BPCL", "IOC",
}

// placeholder is the last resort when the fallback list is itself empty
var placeholder = []string{"NSE_FALLBACK_A", "NSE_FALLBACK_B", "NSE_FALLBACK_C"}

const flightKey = "symbols"

type entry struct {
	symbols   []string
	source    string
	fetchedAt time.Time
}

// Service caches the symbol list for a TTL. Failed fetches are cached too,
// as the fallback list, so an unreachable upstream is not retried until expiry.
type Service struct {
	client   interfaces.SymbolListClient
	logger   *common.Logger
	ttl      time.Duration
	fallback []string
	now      func() time.Time

	mu     sync.RWMutex
	cached *entry
	flight singleflight.Group
}

// Option configures the service
type Option func(*Service)

// WithTTL sets how long a fetched (or fallback) list is served
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithFallback replaces the built-in fallback list. Entries are trimmed,
// upper-cased and deduplicated in their given order. An empty list leaves
// only the placeholder.
func WithFallback(fallback []string) Option {
	return func(s *Service) {
		s.fallback = normalize(fallback)
	}
}

// WithClock sets the time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a new symbol service
func NewService(client interfaces.SymbolListClient, logger *common.Logger, opts ...Option) *Service {
	s := &Service{
		client:   client,
		logger:   logger,
		ttl:      common.FreshnessSymbols,
		fallback: slices.Clone(DefaultFallback),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetSymbols returns the cached list, refreshing it first when stale.
// Never returns an empty slice. The returned slice is the caller's to keep.
func (s *Service) GetSymbols(ctx context.Context) []string {
	if e := s.fresh(); e != nil {
		s.logger.Debug().Int("count", len(e.symbols)).Msg("Serving symbols from cache")
		return slices.Clone(e.symbols)
	}

	// Callers arriving while a refresh is in flight share its result.
	// The fetch is detached from the first caller's cancellation.
	v, _, _ := s.flight.Do(flightKey, func() (interface{}, error) {
		if e := s.fresh(); e != nil {
			return e, nil
		}
		return s.refresh(context.WithoutCancel(ctx)), nil
	})

	return slices.Clone(v.(*entry).symbols)
}

// Snapshot describes the cached list without triggering a fetch
func (s *Service) Snapshot() models.SymbolSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.cached == nil {
		return models.SymbolSnapshot{}
	}
	return models.SymbolSnapshot{
		Count:     len(s.cached.symbols),
		Source:    s.cached.source,
		FetchedAt: s.cached.fetchedAt,
	}
}

// fresh returns the cached entry if it is still within the TTL
func (s *Service) fresh() *entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.cached != nil && common.IsFreshAt(s.cached.fetchedAt, s.ttl, s.now()) {
		return s.cached
	}
	return nil
}

// refresh fetches the upstream list, substituting the fallback on any failure,
// and stores the result as a single entry.
func (s *Service) refresh(ctx context.Context) *entry {
	start := s.now()
	s.logger.Info().Msg("Fetching fresh symbols from NSE")

	e := &entry{source: models.SymbolSourceNSE}

	raw, err := s.client.GetEquitySymbols(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Str("source", "nse").Msg("Symbol fetch failed, using fallback symbols")
	} else {
		e.symbols = Clean(raw)
		if len(e.symbols) == 0 {
			s.logger.Warn().Str("source", "nse").Int("rows", len(raw)).Msg("No usable symbols in NSE list, using fallback symbols")
		}
	}

	if len(e.symbols) == 0 {
		e.symbols = slices.Clone(s.fallback)
		e.source = models.SymbolSourceFallback
	}
	if len(e.symbols) == 0 {
		s.logger.Error().Msg("Fallback symbol list is empty, using placeholder symbols")
		e.symbols = slices.Clone(placeholder)
		e.source = models.SymbolSourcePlaceholder
	}

	e.fetchedAt = s.now()

	s.mu.Lock()
	s.cached = e
	s.mu.Unlock()

	s.logger.Info().
		Int("count", len(e.symbols)).
		Str("source", e.source).
		Dur("elapsed", e.fetchedAt.Sub(start)).
		Msg("Symbol cache updated")

	return e
}

// Clean upper-cases and trims symbols, drops blanks and duplicates, and sorts ascending.
func Clean(raw []string) []string {
	out := normalize(raw)
	slices.Sort(out)
	return out
}

// normalize is Clean without the sort. It always returns a new slice.
func normalize(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, sym := range raw {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" {
			continue
		}
		if _, dup := seen[sym]; dup {
			continue
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	return out
}

// Ensure Service implements SymbolService
var _ interfaces.SymbolService = (*Service)(nil)
