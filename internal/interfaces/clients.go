// Package interfaces defines service contracts for Stocker
package interfaces

import (
	"context"

	"github.com/bobmcallan/stocker/internal/models"
)

// SymbolListClient fetches the exchange's published list of equity symbols
type SymbolListClient interface {
	// GetEquitySymbols returns the raw SYMBOL column values, in file order
	GetEquitySymbols(ctx context.Context) ([]string, error)
}

// StockDataClient fetches per-ticker price history and company metadata
type StockDataClient interface {
	// GetHistory retrieves daily bars for a period such as "1mo", "1y" or "max"
	GetHistory(ctx context.Context, ticker, period string) ([]models.HistoryBar, error)

	// GetInfo retrieves provider-defined company metadata
	GetInfo(ctx context.Context, ticker string) (map[string]any, error)
}
