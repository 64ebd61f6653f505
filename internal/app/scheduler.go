package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bobmcallan/stocker/internal/common"
	"github.com/bobmcallan/stocker/internal/interfaces"
)

// cronLogger adapts common.Logger to cron.Logger
type cronLogger struct {
	logger *common.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}

// newScheduler builds a cron runner with the symbol refresh job registered.
// Overlapping runs are skipped and panics are recovered.
func newScheduler(spec string, symbolService interfaces.SymbolService, logger *common.Logger) (*cron.Cron, error) {
	cl := cronLogger{logger: logger}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	if _, err := c.AddFunc(spec, func() {
		refreshSymbols(context.Background(), symbolService, logger)
	}); err != nil {
		return nil, fmt.Errorf("register symbol refresh %q: %w", spec, err)
	}
	return c, nil
}

// refreshSymbols reads through the symbol cache, which only fetches when stale.
func refreshSymbols(ctx context.Context, symbolService interfaces.SymbolService, logger *common.Logger) {
	start := time.Now()
	before := symbolService.Snapshot()

	list := symbolService.GetSymbols(ctx)

	after := symbolService.Snapshot()
	if after.FetchedAt.Equal(before.FetchedAt) {
		logger.Debug().Int("symbols", len(list)).Msg("Symbol refresh: cache still fresh")
		return
	}

	logger.Info().
		Int("symbols", len(list)).
		Str("source", after.Source).
		Dur("elapsed", time.Since(start)).
		Msg("Symbol refresh: complete")
}
