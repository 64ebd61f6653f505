package app

import (
	"context"
	"os"
	"time"

	"github.com/bobmcallan/stocker/internal/common"
	"github.com/bobmcallan/stocker/internal/interfaces"
)

// warmCache fetches the symbol list on startup so the first search is fast.
func warmCache(ctx context.Context, symbolService interfaces.SymbolService, enabled bool, logger *common.Logger) {
	if os.Getenv("STOCKER_WARM_CACHE") == "off" {
		logger.Info().Msg("Warm cache: disabled via STOCKER_WARM_CACHE=off")
		return
	}
	if !enabled {
		logger.Info().Msg("Warm cache: disabled in config")
		return
	}

	start := time.Now()
	logger.Info().Msg("Warm cache: starting")

	list := symbolService.GetSymbols(ctx)
	snap := symbolService.Snapshot()

	logger.Info().
		Int("symbols", len(list)).
		Str("source", snap.Source).
		Dur("elapsed", time.Since(start)).
		Msg("Warm cache: complete")
}
