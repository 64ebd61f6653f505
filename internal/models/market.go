// Package models defines data structures for Stocker
package models

import (
	"time"
)

// Symbol list sources recorded on the cached symbol universe
const (
	SymbolSourceNSE         = "nse"
	SymbolSourceFallback    = "fallback"
	SymbolSourcePlaceholder = "placeholder"
)

// HistoryBar represents a single day's price data.
// Field names follow the column names the front end charts read.
type HistoryBar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"Open"`
	High   float64   `json:"High"`
	Low    float64   `json:"Low"`
	Close  float64   `json:"Close"`
	Volume int64     `json:"Volume"`
}

// StockData is the cached history and company info for a (symbol, period) pair
type StockData struct {
	Symbol    string         `json:"symbol"`
	Period    string         `json:"period"`
	History   []HistoryBar   `json:"history"`
	Info      map[string]any `json:"info"`
	FetchedAt time.Time      `json:"fetched_at"`
}

// SymbolSnapshot describes the cached symbol universe without exposing the list itself
type SymbolSnapshot struct {
	Count     int       `json:"count"`
	Source    string    `json:"source"`
	FetchedAt time.Time `json:"fetched_at"`
}

// StockCacheStats describes the stock data cache
type StockCacheStats struct {
	Entries    int `json:"entries"`
	MaxEntries int `json:"max_entries"`
}

// Sentiment is a simulated market mood reading
type Sentiment struct {
	Bullish  int     `json:"bullish"`
	Bearish  int     `json:"bearish"`
	Forecast float64 `json:"forecast"`
}
