// Package common provides shared utilities for Stocker
package common

import "time"

// Freshness TTLs for cached upstream data
const (
	FreshnessSymbols   = 24 * time.Hour // exchange listing is republished daily
	FreshnessStockData = 1 * time.Hour
)

// IsFreshAt reports whether updated is within ttl of now. A zero timestamp is never fresh.
func IsFreshAt(updated time.Time, ttl time.Duration, now time.Time) bool {
	if updated.IsZero() {
		return false
	}
	return now.Sub(updated) < ttl
}
