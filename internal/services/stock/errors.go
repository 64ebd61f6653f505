package stock

import (
	"errors"
	"fmt"
)

// ErrNotFound means the upstream returned no history for the symbol and period.
// It is never cached and has no fallback.
var ErrNotFound = errors.New("no data found for symbol and period")

// UpstreamError wraps any other failure fetching history. Callers should
// treat it as retryable; it is never cached.
type UpstreamError struct {
	Source string
	Symbol string
	Period string
	Err    error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s fetch failed for %s (period %s): %v", e.Source, e.Symbol, e.Period, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
