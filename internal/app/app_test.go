package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/stocker/internal/common"
	"github.com/bobmcallan/stocker/internal/models"
	"github.com/bobmcallan/stocker/internal/services/symbols"
)

// TestNewApp_InitializesAllServices verifies that NewApp creates an App with
// all clients and services initialized and non-nil.
func TestNewApp_InitializesAllServices(t *testing.T) {
	configPath := writeTestConfig(t, "")

	a, err := NewApp(configPath)
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.Config)
	assert.NotNil(t, a.Logger)
	assert.NotNil(t, a.NSEClient)
	assert.NotNil(t, a.YahooClient)
	assert.NotNil(t, a.SymbolService)
	assert.NotNil(t, a.StockService)
	assert.NotNil(t, a.SearchService)
	assert.False(t, a.StartupTime.IsZero())
}

func TestNewApp_AppliesConfig(t *testing.T) {
	configPath := writeTestConfig(t, `
[cache]
stock_max_entries = 7
`)

	a, err := NewApp(configPath)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, 7, a.StockService.Stats().MaxEntries)
}

// TestNewApp_CloseIsIdempotent verifies that calling Close multiple times
// does not panic.
func TestNewApp_CloseIsIdempotent(t *testing.T) {
	a, err := NewApp(writeTestConfig(t, ""))
	require.NoError(t, err)
	require.NoError(t, a.StartScheduler())

	a.Close()
	a.Close()
}

// TestNewApp_InvalidConfigReturnsError verifies that an invalid config file
// returns a meaningful error.
func TestNewApp_InvalidConfigReturnsError(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(configPath, []byte("{{{{invalid toml"), 0644))

	_, err := NewApp(configPath)
	assert.Error(t, err)
}

func TestResolveConfigPath_EnvVar(t *testing.T) {
	t.Setenv("STOCKER_CONFIG", "/etc/stocker/custom.toml")
	assert.Equal(t, "/etc/stocker/custom.toml", resolveConfigPath(""))
	assert.Equal(t, "explicit.toml", resolveConfigPath("explicit.toml"))
}

func TestApp_FallbackFromConfigUsedWhenUpstreamDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := common.NewDefaultConfig()
	cfg.Logging.Level = "error"
	cfg.Clients.NSE.BaseURL = srv.URL
	cfg.Symbols.Fallback = []string{"tcs", " INFY", "TCS"}

	a, err := NewAppWithConfig(cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, []string{"TCS", "INFY"}, a.SymbolService.GetSymbols(context.Background()))
	assert.Equal(t, models.SymbolSourceFallback, a.SymbolService.Snapshot().Source)
}

func TestApp_BlankFallbackFromConfigKeepsBuiltIn(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := common.NewDefaultConfig()
	cfg.Logging.Level = "error"
	cfg.Clients.NSE.BaseURL = srv.URL
	cfg.Symbols.Fallback = []string{" ", ""}

	a, err := NewAppWithConfig(cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, symbols.DefaultFallback, a.SymbolService.GetSymbols(context.Background()))
	assert.Equal(t, models.SymbolSourceFallback, a.SymbolService.Snapshot().Source)
}

func TestApp_WarmCacheFetchesSymbols(t *testing.T) {
	var hits atomic.Int32
	srv := newSymbolServer(t, &hits)

	cfg := common.NewDefaultConfig()
	cfg.Logging.Level = "error"
	cfg.Clients.NSE.BaseURL = srv.URL

	a, err := NewAppWithConfig(cfg)
	require.NoError(t, err)
	defer a.Close()

	a.StartWarmCache()

	require.Eventually(t, func() bool {
		return a.SymbolService.Snapshot().Count == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), hits.Load())
}

func TestApp_CloseDoesNotAbortWarmCache(t *testing.T) {
	var hits atomic.Int32
	srv := newSymbolServer(t, &hits)

	cfg := common.NewDefaultConfig()
	cfg.Logging.Level = "error"
	cfg.Clients.NSE.BaseURL = srv.URL

	a, err := NewAppWithConfig(cfg)
	require.NoError(t, err)

	a.StartWarmCache()
	a.Close()

	require.Eventually(t, func() bool {
		return a.SymbolService.Snapshot().Source == models.SymbolSourceNSE
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWarmCache_DisabledByEnv(t *testing.T) {
	t.Setenv("STOCKER_WARM_CACHE", "off")
	svc := &countingSymbolService{}

	warmCache(context.Background(), svc, true, common.NewSilentLogger())
	assert.Equal(t, int32(0), svc.calls.Load())
}

func TestWarmCache_DisabledByConfig(t *testing.T) {
	svc := &countingSymbolService{}

	warmCache(context.Background(), svc, false, common.NewSilentLogger())
	assert.Equal(t, int32(0), svc.calls.Load())
}

func TestStartScheduler_EmptyScheduleDisabled(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Logging.Level = "error"
	cfg.Symbols.RefreshSchedule = ""

	a, err := NewAppWithConfig(cfg)
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.StartScheduler())
	assert.Nil(t, a.scheduler)
}

func TestStartScheduler_InvalidSchedule(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Logging.Level = "error"
	cfg.Symbols.RefreshSchedule = "not a schedule"

	a, err := NewAppWithConfig(cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.Error(t, a.StartScheduler())
}

func TestScheduler_RunsRefresh(t *testing.T) {
	svc := &countingSymbolService{}

	c, err := newScheduler("@every 1s", svc, common.NewSilentLogger())
	require.NoError(t, err)
	c.Start()
	defer c.Stop()

	require.Eventually(t, func() bool { return svc.calls.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
}

func TestRefreshSymbols_ReadsThroughCache(t *testing.T) {
	svc := &countingSymbolService{}

	refreshSymbols(context.Background(), svc, common.NewSilentLogger())
	refreshSymbols(context.Background(), svc, common.NewSilentLogger())
	assert.Equal(t, int32(2), svc.calls.Load())
}

// --- test helpers ---

type countingSymbolService struct {
	calls atomic.Int32
}

func (s *countingSymbolService) GetSymbols(_ context.Context) []string {
	s.calls.Add(1)
	return []string{"TCS"}
}

func (s *countingSymbolService) Snapshot() models.SymbolSnapshot {
	return models.SymbolSnapshot{Count: 1, Source: models.SymbolSourceNSE}
}

func newSymbolServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte("SYMBOL,NAME OF COMPANY\nTCS,Tata Consultancy\nINFY,Infosys\n"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// writeTestConfig creates a minimal stocker.toml in a temp directory.
// Upstream URLs point at an unroutable address so no test reaches the network.
func writeTestConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()

	config := `
[clients.nse]
base_url = "http://127.0.0.1:1"
timeout = "1s"

[clients.yahoo]
base_url = "http://127.0.0.1:1"
timeout = "1s"

[logging]
level = "error"
` + extra
	configPath := filepath.Join(dir, "stocker.toml")
	if err := os.WriteFile(configPath, []byte(config), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return configPath
}
