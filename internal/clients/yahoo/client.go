// Package yahoo provides a client for the Yahoo Finance chart and quoteSummary APIs
package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/stocker/internal/common"
	"github.com/bobmcallan/stocker/internal/interfaces"
	"github.com/bobmcallan/stocker/internal/models"
)

const (
	DefaultBaseURL   = "https://query1.finance.yahoo.com"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 5 // requests per second
)

// Modules requested from quoteSummary; their fields are merged into one info map.
var infoModules = []string{"assetProfile", "summaryDetail", "defaultKeyStatistics", "financialData", "price"}

// ErrNoData is returned when Yahoo has no bars for the ticker and period
var ErrNoData = errors.New("no data returned")

// Client implements the StockDataClient interface
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

// NewClient creates a new Yahoo Finance client
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

// APIError represents an API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Yahoo Finance API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// apiErrorBody is the error envelope both endpoints use
type apiErrorBody struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// get performs a rate-limited GET request and returns the raw body.
// A 404 is returned as-is so callers can distinguish unknown tickers.
func (c *Client) get(ctx context.Context, path string, params url.Values) (int, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, fmt.Errorf("rate limit wait: %w", err)
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().Str("url", c.baseURL+path).Msg("Yahoo Finance API request")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		c.logger.Error().Err(err).Str("path", path).Dur("elapsed", elapsed).Msg("Yahoo Finance API request failed")
		return 0, nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		c.logger.Warn().Str("path", path).Int("status", resp.StatusCode).Dur("elapsed", elapsed).Msg("Yahoo Finance API non-OK response")
		return resp.StatusCode, nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
			Endpoint:   path,
		}
	}

	return resp.StatusCode, body, nil
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *apiErrorBody `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*int64   `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

// GetHistory retrieves daily bars for ticker over a Yahoo range such as "1mo" or "1y".
// Returns ErrNoData when Yahoo knows nothing for the ticker/period.
func (c *Client) GetHistory(ctx context.Context, ticker, period string) ([]models.HistoryBar, error) {
	path := "/v8/finance/chart/" + url.PathEscape(ticker)

	params := url.Values{}
	params.Set("range", period)
	params.Set("interval", "1d")
	params.Set("events", "div,split")

	status, body, err := c.get(ctx, path, params)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusBadRequest || apiErr.StatusCode == http.StatusUnprocessableEntity) {
			var rejected chartResponse
			if json.Unmarshal([]byte(apiErr.Message), &rejected) == nil && rejected.Chart.Error != nil {
				return nil, fmt.Errorf("%w: %s", ErrNoData, rejected.Chart.Error.Description)
			}
		}
		return nil, err
	}

	var resp chartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		if status == http.StatusNotFound {
			return nil, ErrNoData
		}
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if resp.Chart.Error != nil {
		if status == http.StatusNotFound || isNoDataCode(resp.Chart.Error.Code) {
			return nil, fmt.Errorf("%w: %s", ErrNoData, resp.Chart.Error.Description)
		}
		return nil, &APIError{StatusCode: status, Message: resp.Chart.Error.Description, Endpoint: path}
	}
	if status == http.StatusNotFound || len(resp.Chart.Result) == 0 {
		return nil, ErrNoData
	}

	bars := parseBars(resp.Chart.Result[0])
	if len(bars) == 0 {
		return nil, ErrNoData
	}

	c.logger.Info().Str("ticker", ticker).Str("period", period).Int("bars", len(bars)).Msg("Yahoo chart call")
	return bars, nil
}

// isNoDataCode reports chart error codes that mean "nothing for this ticker/period".
// Yahoo answers an unsupported range with Bad Request or Unprocessable Entity.
func isNoDataCode(code string) bool {
	return strings.EqualFold(code, "Not Found") ||
		strings.EqualFold(code, "Bad Request") ||
		strings.EqualFold(code, "Unprocessable Entity")
}

// parseBars zips the parallel indicator arrays into bars, skipping rows
// Yahoo reports with a null close (halted or partial sessions).
func parseBars(r chartResult) []models.HistoryBar {
	if len(r.Timestamp) == 0 || len(r.Indicators.Quote) == 0 {
		return nil
	}
	q := r.Indicators.Quote[0]

	bars := make([]models.HistoryBar, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		closePrice := floatAt(q.Close, i)
		if closePrice == nil {
			continue
		}
		bar := models.HistoryBar{
			Date:  time.Unix(ts, 0).UTC(),
			Close: *closePrice,
		}
		if v := floatAt(q.Open, i); v != nil {
			bar.Open = *v
		}
		if v := floatAt(q.High, i); v != nil {
			bar.High = *v
		}
		if v := floatAt(q.Low, i); v != nil {
			bar.Low = *v
		}
		if i < len(q.Volume) && q.Volume[i] != nil {
			bar.Volume = *q.Volume[i]
		}
		bars = append(bars, bar)
	}
	return bars
}

func floatAt(values []*float64, i int) *float64 {
	if i >= len(values) || values[i] == nil {
		return nil
	}
	return values[i]
}

type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []map[string]json.RawMessage `json:"result"`
		Error  *apiErrorBody                `json:"error"`
	} `json:"quoteSummary"`
}

// GetInfo retrieves company metadata from quoteSummary and flattens the
// requested modules into one map. Formatted values ({"raw": 1.2, "fmt": "1.20"})
// collapse to their raw value.
func (c *Client) GetInfo(ctx context.Context, ticker string) (map[string]any, error) {
	path := "/v10/finance/quoteSummary/" + url.PathEscape(ticker)

	params := url.Values{}
	params.Set("modules", strings.Join(infoModules, ","))

	status, body, err := c.get(ctx, path, params)
	if err != nil {
		return nil, err
	}

	var resp quoteSummaryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if resp.QuoteSummary.Error != nil {
		return nil, &APIError{StatusCode: status, Message: resp.QuoteSummary.Error.Description, Endpoint: path}
	}
	if status == http.StatusNotFound || len(resp.QuoteSummary.Result) == 0 {
		return nil, ErrNoData
	}

	info := make(map[string]any)
	for _, module := range infoModules {
		raw, ok := resp.QuoteSummary.Result[0][module]
		if !ok {
			continue
		}
		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err != nil {
			c.logger.Debug().Err(err).Str("module", module).Msg("Yahoo quoteSummary module skipped")
			continue
		}
		for k, v := range fields {
			if k == "maxAge" {
				continue
			}
			if _, exists := info[k]; exists {
				continue
			}
			info[k] = flattenValue(v)
		}
	}

	return info, nil
}

// flattenValue unwraps {"raw": x, "fmt": "..."} objects; an empty object becomes nil.
func flattenValue(v any) any {
	obj, ok := v.(map[string]any)
	if !ok {
		return v
	}
	if raw, ok := obj["raw"]; ok {
		return raw
	}
	if len(obj) == 0 {
		return nil
	}
	return obj
}

// Ensure Client implements StockDataClient
var _ interfaces.StockDataClient = (*Client)(nil)
