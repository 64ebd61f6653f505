// Package stock provides cached per-symbol price history and company info
package stock

import (
	"context"
	"errors"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/bobmcallan/stocker/internal/clients/yahoo"
	"github.com/bobmcallan/stocker/internal/common"
	"github.com/bobmcallan/stocker/internal/interfaces"
	"github.com/bobmcallan/stocker/internal/models"
)

const (
	DefaultMaxEntries     = 512
	DefaultExchangeSuffix = ".NS"
	upstreamSource        = "yahoo"
)

// key is the exact (symbol, period) pair; periods are not normalised
type key struct {
	symbol string
	period string
}

func (k key) String() string {
	return k.symbol + "|" + k.period
}

// Service caches stock data per (symbol, period) for a TTL, bounded by an LRU.
type Service struct {
	client     interfaces.StockDataClient
	logger     *common.Logger
	ttl        time.Duration
	maxEntries int
	suffix     string
	now        func() time.Time

	mu      sync.Mutex // serialises Get+Add so an expired read can't race a fresh write
	entries *lru.Cache[key, *models.StockData]
	flight  singleflight.Group
}

// Option configures the service
type Option func(*Service)

// WithTTL sets how long a fetched entry is served
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithMaxEntries bounds the number of cached (symbol, period) pairs
func WithMaxEntries(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxEntries = n
		}
	}
}

// WithExchangeSuffix sets the suffix appended to symbols for upstream lookups
func WithExchangeSuffix(suffix string) Option {
	return func(s *Service) {
		s.suffix = suffix
	}
}

// WithClock sets the time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a new stock data service
func NewService(client interfaces.StockDataClient, logger *common.Logger, opts ...Option) (*Service, error) {
	s := &Service{
		client:     client,
		logger:     logger,
		ttl:        common.FreshnessStockData,
		maxEntries: DefaultMaxEntries,
		suffix:     DefaultExchangeSuffix,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	entries, err := lru.New[key, *models.StockData](s.maxEntries)
	if err != nil {
		return nil, err
	}
	s.entries = entries

	return s, nil
}

// GetStock returns history and info for symbol over period.
// Errors are ErrNotFound (no rows upstream) or *UpstreamError (anything else).
func (s *Service) GetStock(ctx context.Context, symbol, period string) (*models.StockData, error) {
	k := key{symbol: symbol, period: period}

	if data := s.fresh(k); data != nil {
		s.logger.Debug().Str("symbol", symbol).Str("period", period).Msg("Serving stock data from cache")
		return data, nil
	}

	v, err, _ := s.flight.Do(k.String(), func() (interface{}, error) {
		if data := s.fresh(k); data != nil {
			return data, nil
		}
		return s.fetch(context.WithoutCancel(ctx), k)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.StockData), nil
}

// Stats describes the cache contents
func (s *Service) Stats() models.StockCacheStats {
	return models.StockCacheStats{
		Entries:    s.entries.Len(),
		MaxEntries: s.maxEntries,
	}
}

// fresh returns the cached entry for k if it is within the TTL.
// Expired entries are removed so they stop occupying an LRU slot.
func (s *Service) fresh(k key) *models.StockData {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.entries.Get(k)
	if !ok {
		return nil
	}
	if !common.IsFreshAt(data.FetchedAt, s.ttl, s.now()) {
		s.entries.Remove(k)
		return nil
	}
	return data
}

// fetch loads history and info concurrently. Info failures degrade to an empty map.
func (s *Service) fetch(ctx context.Context, k key) (*models.StockData, error) {
	ticker := k.symbol + s.suffix
	start := time.Now()

	s.logger.Info().Str("ticker", ticker).Str("period", k.period).Msg("Fetching fresh stock data")

	var (
		history []models.HistoryBar
		info    map[string]any
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		history, err = s.client.GetHistory(gctx, ticker, k.period)
		return err
	})
	g.Go(func() error {
		var err error
		info, err = s.client.GetInfo(gctx, ticker)
		if err != nil {
			s.logger.Warn().Err(err).Str("ticker", ticker).Msg("Could not fetch info, continuing without it")
			info = nil
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		if errors.Is(err, yahoo.ErrNoData) {
			s.logger.Warn().Str("ticker", ticker).Str("period", k.period).Msg("No historical data found")
			return nil, ErrNotFound
		}
		s.logger.Error().Err(err).Str("ticker", ticker).Str("period", k.period).Msg("Stock data fetch failed")
		return nil, &UpstreamError{Source: upstreamSource, Symbol: k.symbol, Period: k.period, Err: err}
	}

	if len(history) == 0 {
		s.logger.Warn().Str("ticker", ticker).Str("period", k.period).Msg("No historical data found")
		return nil, ErrNotFound
	}
	if info == nil {
		info = map[string]any{}
	}

	data := &models.StockData{
		Symbol:    k.symbol,
		Period:    k.period,
		History:   history,
		Info:      info,
		FetchedAt: s.now(),
	}

	s.mu.Lock()
	s.entries.Add(k, data)
	s.mu.Unlock()

	s.logger.Info().
		Str("ticker", ticker).
		Str("period", k.period).
		Int("rows", len(history)).
		Int("info_fields", len(info)).
		Dur("elapsed", time.Since(start)).
		Msg("Stock data cached")

	return data, nil
}

// Ensure Service implements StockService
var _ interfaces.StockService = (*Service)(nil)
