// Package nse provides a client for the NSE equity list archive
package nse

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/stocker/internal/common"
	"github.com/bobmcallan/stocker/internal/interfaces"
)

const (
	DefaultBaseURL   = "https://archives.nseindia.com/content/equities"
	DefaultTimeout   = 15 * time.Second
	DefaultRateLimit = 1 // requests per second

	equityListPath = "/EQUITY_L.csv"
	symbolColumn   = "SYMBOL"
	maxBodyBytes   = 16 << 20
)

// NSE blocks requests without a browser User-Agent
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// ErrMalformedPayload is returned when the archive responds with something
// other than a CSV carrying a SYMBOL column (empty body, HTML error page, etc).
var ErrMalformedPayload = errors.New("malformed equity list payload")

// Client implements the SymbolListClient interface
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new NSE archive client.
// No API key is required, the archive is public.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents a non-200 response from the archive
type APIError struct {
	StatusCode int
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("NSE archive error: status %d (endpoint: %s)", e.StatusCode, e.Endpoint)
}

// GetEquitySymbols downloads EQUITY_L.csv and returns the SYMBOL column as-is.
// Cleaning (trim, dedupe, sort) is left to the caller.
func (c *Client) GetEquitySymbols(ctx context.Context) ([]string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	reqURL := c.baseURL + equityListPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/csv,*/*")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		c.logger.Error().Err(err).Dur("elapsed", elapsed).Msg("NSE archive request failed")
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn().Int("status", resp.StatusCode).Dur("elapsed", elapsed).Msg("NSE archive non-OK response")
		return nil, &APIError{StatusCode: resp.StatusCode, Endpoint: equityListPath}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	symbols, err := parseSymbolColumn(body)
	if err != nil {
		return nil, err
	}

	c.logger.Info().Int("rows", len(symbols)).Dur("elapsed", elapsed).Msg("NSE archive call")
	return symbols, nil
}

// parseSymbolColumn extracts the SYMBOL column from the equity list CSV.
// Header names are matched after trimming, the archive pads them (" NAME OF COMPANY").
func parseSymbolColumn(body []byte) ([]string, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedPayload)
	}
	// The archive serves an HTML page when it throttles or blocks a client
	if bytes.Contains(bytes.ToLower(trimmed), []byte("html")) {
		return nil, fmt.Errorf("%w: response contained HTML", ErrMalformedPayload)
	}

	r := csv.NewReader(bytes.NewReader(trimmed))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", ErrMalformedPayload, err)
	}

	col := -1
	for i, name := range header {
		if strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")), symbolColumn) {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("%w: %s column not found", ErrMalformedPayload, symbolColumn)
	}

	var symbols []string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		if col < len(record) {
			symbols = append(symbols, record[col])
		}
	}

	return symbols, nil
}

// Ensure Client implements SymbolListClient
var _ interfaces.SymbolListClient = (*Client)(nil)
