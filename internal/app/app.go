// Package app wires configuration, clients, and services into a runnable core
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bobmcallan/stocker/internal/clients/nse"
	"github.com/bobmcallan/stocker/internal/clients/yahoo"
	"github.com/bobmcallan/stocker/internal/common"
	"github.com/bobmcallan/stocker/internal/interfaces"
	"github.com/bobmcallan/stocker/internal/services/search"
	"github.com/bobmcallan/stocker/internal/services/stock"
	"github.com/bobmcallan/stocker/internal/services/symbols"
)

// App holds all initialized clients and services.
// It is constructed once per process and handed to the HTTP server.
type App struct {
	Config        *common.Config
	Logger        *common.Logger
	NSEClient     interfaces.SymbolListClient
	YahooClient   interfaces.StockDataClient
	SymbolService interfaces.SymbolService
	StockService  interfaces.StockService
	SearchService interfaces.SearchService
	StartupTime   time.Time

	scheduler *cron.Cron
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// resolveConfigPath picks the config file: explicit path, STOCKER_CONFIG,
// stocker.toml beside the binary, then config/stocker.toml for development.
func resolveConfigPath(configPath string) string {
	if configPath == "" {
		configPath = os.Getenv("STOCKER_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(getBinaryDir(), "stocker.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/stocker.toml"
		}
	}
	return configPath
}

// NewApp loads configuration and initializes clients and services.
// configPath may be empty, in which case the default resolution logic is used.
func NewApp(configPath string) (*App, error) {
	common.LoadVersionFromFile()

	config, err := common.LoadConfig(resolveConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return NewAppWithConfig(config)
}

// NewAppWithConfig initializes clients and services from an already loaded config.
func NewAppWithConfig(config *common.Config) (*App, error) {
	startupStart := time.Now()

	logger := common.NewLoggerFromConfig(config.Logging)

	nseClient := nse.NewClient(
		nse.WithBaseURL(config.Clients.NSE.BaseURL),
		nse.WithLogger(logger),
		nse.WithRateLimit(config.Clients.NSE.RateLimit),
		nse.WithTimeout(config.Clients.NSE.GetTimeout()),
	)

	yahooClient := yahoo.NewClient(
		yahoo.WithBaseURL(config.Clients.Yahoo.BaseURL),
		yahoo.WithLogger(logger),
		yahoo.WithRateLimit(config.Clients.Yahoo.RateLimit),
		yahoo.WithTimeout(config.Clients.Yahoo.GetTimeout()),
	)

	symbolOpts := []symbols.Option{symbols.WithTTL(config.Cache.GetSymbolsTTL())}
	// A configured list with no usable entries keeps the built-in set
	if slices.ContainsFunc(config.Symbols.Fallback, func(sym string) bool { return strings.TrimSpace(sym) != "" }) {
		symbolOpts = append(symbolOpts, symbols.WithFallback(config.Symbols.Fallback))
	}
	symbolService := symbols.NewService(nseClient, logger, symbolOpts...)

	stockService, err := stock.NewService(yahooClient, logger,
		stock.WithTTL(config.Cache.GetStockTTL()),
		stock.WithMaxEntries(config.Cache.StockMaxEntries),
		stock.WithExchangeSuffix(config.Clients.Yahoo.ExchangeSuffix),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize stock cache: %w", err)
	}

	searchService := search.NewService(symbolService, logger, search.WithLimit(config.Search.Limit))

	a := &App{
		Config:        config,
		Logger:        logger,
		NSEClient:     nseClient,
		YahooClient:   yahooClient,
		SymbolService: symbolService,
		StockService:  stockService,
		SearchService: searchService,
		StartupTime:   startupStart,
	}

	logger.Info().Dur("startup", time.Since(startupStart)).Msg("App initialized")

	return a, nil
}

// Close stops the refresh scheduler and waits for a running refresh to finish.
// An in-flight warm-up fetch is not interrupted; the NSE client timeout bounds it.
func (a *App) Close() {
	if a.scheduler != nil {
		<-a.scheduler.Stop().Done()
		a.scheduler = nil
	}
}

// StartWarmCache launches the background symbol list warm-up.
func (a *App) StartWarmCache() {
	go warmCache(context.Background(), a.SymbolService, a.Config.Symbols.WarmOnStart, a.Logger)
}

// StartScheduler registers the symbol refresh job on the configured cron schedule.
// An empty schedule disables the job.
func (a *App) StartScheduler() error {
	spec := a.Config.Symbols.RefreshSchedule
	if spec == "" {
		a.Logger.Info().Msg("Symbol refresh scheduler: disabled")
		return nil
	}

	c, err := newScheduler(spec, a.SymbolService, a.Logger)
	if err != nil {
		return err
	}
	a.scheduler = c
	c.Start()

	a.Logger.Info().Str("schedule", spec).Msg("Symbol refresh scheduler: started")
	return nil
}
