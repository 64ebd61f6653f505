// Package common provides shared utilities for Stocker
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for Stocker
type Config struct {
	Environment string        `toml:"environment"`
	Server      ServerConfig  `toml:"server"`
	Clients     ClientsConfig `toml:"clients"`
	Cache       CacheConfig   `toml:"cache"`
	Symbols     SymbolsConfig `toml:"symbols"`
	Search      SearchConfig  `toml:"search"`
	Logging     LoggingConfig `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host      string `toml:"host"`
	Port      int    `toml:"port"`
	StaticDir string `toml:"static_dir"` // Front-end files served at "/" when the directory exists
}

// ClientsConfig holds upstream client configurations
type ClientsConfig struct {
	NSE   NSEConfig   `toml:"nse"`
	Yahoo YahooConfig `toml:"yahoo"`
}

// NSEConfig holds configuration for the NSE equity list download
type NSEConfig struct {
	BaseURL   string `toml:"base_url"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *NSEConfig) GetTimeout() time.Duration {
	return parseDuration(c.Timeout, 15*time.Second)
}

// YahooConfig holds Yahoo Finance configuration
type YahooConfig struct {
	BaseURL        string `toml:"base_url"`
	RateLimit      int    `toml:"rate_limit"`
	Timeout        string `toml:"timeout"`
	ExchangeSuffix string `toml:"exchange_suffix"` // Appended to NSE symbols, e.g. "RELIANCE" -> "RELIANCE.NS"
}

// GetTimeout parses and returns the timeout duration
func (c *YahooConfig) GetTimeout() time.Duration {
	return parseDuration(c.Timeout, 30*time.Second)
}

// CacheConfig holds TTLs and bounds for the in-memory caches.
type CacheConfig struct {
	SymbolsTTL      string `toml:"symbols_ttl"`
	StockTTL        string `toml:"stock_ttl"`
	StockMaxEntries int    `toml:"stock_max_entries"`
}

// GetSymbolsTTL parses and returns the symbol list TTL.
func (c *CacheConfig) GetSymbolsTTL() time.Duration {
	return parseDuration(c.SymbolsTTL, FreshnessSymbols)
}

// GetStockTTL parses and returns the per-symbol stock data TTL.
func (c *CacheConfig) GetStockTTL() time.Duration {
	return parseDuration(c.StockTTL, FreshnessStockData)
}

// SymbolsConfig controls the symbol universe.
type SymbolsConfig struct {
	Fallback        []string `toml:"fallback"`         // Replaces the built-in fallback list when non-empty
	WarmOnStart     bool     `toml:"warm_on_start"`    // Fetch the symbol list in the background at startup
	RefreshSchedule string   `toml:"refresh_schedule"` // cron spec for refresh-if-stale; empty disables
}

// SearchConfig holds symbol search configuration
type SearchConfig struct {
	Limit int `toml:"limit"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "console" or "json"
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host:      "0.0.0.0",
			Port:      8080,
			StaticDir: "public",
		},
		Clients: ClientsConfig{
			NSE: NSEConfig{
				BaseURL:   "https://archives.nseindia.com/content/equities",
				RateLimit: 1,
				Timeout:   "15s",
			},
			Yahoo: YahooConfig{
				BaseURL:        "https://query1.finance.yahoo.com",
				RateLimit:      5,
				Timeout:        "30s",
				ExchangeSuffix: ".NS",
			},
		},
		Cache: CacheConfig{
			SymbolsTTL:      "24h",
			StockTTL:        "1h",
			StockMaxEntries: 512,
		},
		Symbols: SymbolsConfig{
			WarmOnStart:     true,
			RefreshSchedule: "@every 1h",
		},
		Search: SearchConfig{
			Limit: 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier)
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue // Skip missing files
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if config.Search.Limit <= 0 {
		config.Search.Limit = 20
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("STOCKER_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("STOCKER_HOST"); host != "" {
		config.Server.Host = host
	}

	// PORT is what most PaaS hosts inject; STOCKER_PORT wins when both are set.
	for _, name := range []string{"PORT", "STOCKER_PORT"} {
		if port := os.Getenv(name); port != "" {
			if p, err := strconv.Atoi(port); err == nil {
				config.Server.Port = p
			}
		}
	}

	if dir := os.Getenv("STOCKER_STATIC_DIR"); dir != "" {
		config.Server.StaticDir = dir
	}

	if level := os.Getenv("STOCKER_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if v := os.Getenv("STOCKER_SYMBOLS_TTL"); v != "" {
		config.Cache.SymbolsTTL = v
	}
	if v := os.Getenv("STOCKER_STOCK_TTL"); v != "" {
		config.Cache.StockTTL = v
	}

	if v := os.Getenv("STOCKER_NSE_URL"); v != "" {
		config.Clients.NSE.BaseURL = v
	}
	if v := os.Getenv("STOCKER_YAHOO_URL"); v != "" {
		config.Clients.Yahoo.BaseURL = v
	}

	if v := os.Getenv("STOCKER_FALLBACK_SYMBOLS"); v != "" {
		parts := strings.Split(v, ",")
		fallback := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				fallback = append(fallback, p)
			}
		}
		config.Symbols.Fallback = fallback
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
