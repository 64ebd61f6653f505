// Package search ranks cached symbols against a free-text query
package search

import (
	"context"
	"errors"
	"strings"

	"github.com/bobmcallan/stocker/internal/common"
	"github.com/bobmcallan/stocker/internal/interfaces"
)

// DefaultLimit is the maximum number of results returned
const DefaultLimit = 20

// ErrEmptyQuery is returned when the query is blank after trimming
var ErrEmptyQuery = errors.New("query parameter is required")

// Service implements SearchService over the symbol cache
type Service struct {
	symbols interfaces.SymbolService
	logger  *common.Logger
	limit   int
}

// Option configures the service
type Option func(*Service)

// WithLimit sets the maximum result count
func WithLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.limit = n
		}
	}
}

// NewService creates a new search service
func NewService(symbols interfaces.SymbolService, logger *common.Logger, opts ...Option) *Service {
	s := &Service{
		symbols: symbols,
		logger:  logger,
		limit:   DefaultLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search returns symbols matching query, ranked exact match first, then
// prefix matches, then substring matches. Each tier keeps the order of the
// symbol list and the result is truncated to the limit.
func (s *Service) Search(ctx context.Context, query string) ([]string, error) {
	q := strings.ToUpper(strings.TrimSpace(query))
	if q == "" {
		return nil, ErrEmptyQuery
	}

	results := Rank(s.symbols.GetSymbols(ctx), q, s.limit)

	s.logger.Debug().Str("query", q).Int("results", len(results)).Msg("Symbol search")
	return results, nil
}

// Rank applies the three match tiers to symbols. q must already be upper-cased.
func Rank(symbols []string, q string, limit int) []string {
	if limit <= 0 {
		return []string{}
	}
	results := make([]string, 0, min(limit, len(symbols)))
	taken := make(map[int]bool)

	tiers := []func(string) bool{
		func(sym string) bool { return sym == q },
		func(sym string) bool { return strings.HasPrefix(sym, q) },
		func(sym string) bool { return strings.Contains(sym, q) },
	}

	for _, match := range tiers {
		for i, sym := range symbols {
			if len(results) == limit {
				return results
			}
			if taken[i] || !match(strings.ToUpper(sym)) {
				continue
			}
			taken[i] = true
			results = append(results, sym)
		}
	}
	return results
}

// Ensure Service implements SearchService
var _ interfaces.SearchService = (*Service)(nil)
