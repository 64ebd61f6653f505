// Package interfaces defines service contracts for Stocker
package interfaces

import (
	"context"

	"github.com/bobmcallan/stocker/internal/models"
)

// SymbolService serves the cached symbol universe
type SymbolService interface {
	// GetSymbols returns the current symbol list, refreshing it when stale.
	// The result is never empty.
	GetSymbols(ctx context.Context) []string

	// Snapshot describes the cached list without triggering a fetch
	Snapshot() models.SymbolSnapshot
}

// StockService serves cached price history and company info
type StockService interface {
	// GetStock returns history and info for symbol over period
	GetStock(ctx context.Context, symbol, period string) (*models.StockData, error)

	// Stats describes the cache contents
	Stats() models.StockCacheStats
}

// SearchService ranks symbols against a user query
type SearchService interface {
	// Search returns at most the configured limit of matching symbols
	Search(ctx context.Context, query string) ([]string, error)
}
