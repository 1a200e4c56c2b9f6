package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/shubham-shewale/stock-dashboard/pkg/models"
)

// DefaultBaseURL is the Twelve Data REST root.
const DefaultBaseURL = "https://api.twelvedata.com"

var (
	// ErrProvider is returned when the provider answers with an error payload
	// (status "error", a non-empty error field or a code >= 400).
	ErrProvider = errors.New("provider reported an error")
	// ErrTransport wraps failures that never produced a usable response:
	// dial errors, timeouts, non-2xx statuses.
	ErrTransport = errors.New("provider unreachable")
)

// HTTPClient describes an HTTP client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a client for the Twelve Data REST API.
type Client struct {
	baseURL    string
	httpClient HTTPClient
	query      url.Values
	limiter    *rate.Limiter
}

// ClientOption is a configuration option for Client.
type ClientOption func(*Client)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout replaces the HTTP client with one bounded by timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// WithRequestsPerMinute throttles outgoing requests. Zero disables limiting.
func WithRequestsPerMinute(n int) ClientOption {
	return func(c *Client) {
		if n <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), n)
	}
}

// NewClient creates a new Twelve Data client. The key is sent as the apikey
// query parameter on every request.
func NewClient(key string, options ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: http.DefaultClient,
		query:      url.Values{},
	}
	if key != "" {
		c.query.Set("apikey", key)
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// PriceResponse is the body of GET /price.
type PriceResponse struct {
	Price models.Number `json:"price"`
}

// QuoteResponse is the subset of GET /quote the dashboard reads.
type QuoteResponse struct {
	Symbol        string        `json:"symbol"`
	Name          string        `json:"name"`
	Close         models.Number `json:"close"`
	Change        models.Number `json:"change"`
	PercentChange models.Number `json:"percent_change"`
}

// TimeSeriesValue is one bar of GET /time_series.
type TimeSeriesValue struct {
	Datetime string        `json:"datetime"`
	Open     models.Number `json:"open"`
	High     models.Number `json:"high"`
	Low      models.Number `json:"low"`
	Close    models.Number `json:"close"`
	Volume   models.Number `json:"volume"`
}

// TimeSeriesResponse is the body of GET /time_series. Values are newest first.
type TimeSeriesResponse struct {
	Values []TimeSeriesValue `json:"values"`
}

// SearchResult is one match of GET /symbol_search.
type SearchResult struct {
	Symbol         string `json:"symbol"`
	InstrumentName string `json:"instrument_name"`
	Exchange       string `json:"exchange"`
	Country        string `json:"country"`
	InstrumentType string `json:"instrument_type"`
}

type searchResponse struct {
	Data []SearchResult `json:"data"`
}

// errorEnvelope catches the provider's in-band error shapes, which arrive
// with a 200 status.
type errorEnvelope struct {
	Status  string          `json:"status"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Error   json.RawMessage `json:"error"`
}

func (e errorEnvelope) failed() bool {
	if e.Status == "error" || e.Code >= 400 {
		return true
	}
	raw := string(bytes.TrimSpace(e.Error))
	switch raw {
	case "", "null", "false", `""`:
		return false
	}
	return true
}

// Price retrieves the latest price for symbol.
func (c *Client) Price(ctx context.Context, symbol string) (*PriceResponse, error) {
	var out PriceResponse
	if err := c.get(ctx, "/price", url.Values{"symbol": {symbol}}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Quote retrieves the daily change figures for symbol.
func (c *Client) Quote(ctx context.Context, symbol string) (*QuoteResponse, error) {
	var out QuoteResponse
	if err := c.get(ctx, "/quote", url.Values{"symbol": {symbol}}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TimeSeries retrieves up to size bars of the given interval for symbol.
func (c *Client) TimeSeries(ctx context.Context, symbol, interval string, size int) (*TimeSeriesResponse, error) {
	params := url.Values{
		"symbol":     {symbol},
		"interval":   {interval},
		"outputsize": {strconv.Itoa(size)},
	}
	var out TimeSeriesResponse
	if err := c.get(ctx, "/time_series", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SymbolSearch looks up instruments matching query.
func (c *Client) SymbolSearch(ctx context.Context, query string) ([]SearchResult, error) {
	var out searchResponse
	if err := c.get(ctx, "/symbol_search", url.Values{"symbol": {query}}, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrTransport, path, err)
		}
	}

	query := maps.Clone(c.query)
	for k, v := range params {
		query[k] = v
	}

	endpoint := fmt.Sprintf("%s%s?%s", c.baseURL, path, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrTransport, path, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("%w: %s: unexpected status code: %d", ErrTransport, path, res.StatusCode)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("%w: %s: reading body: %w", ErrTransport, path, err)
	}

	var envelope errorEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	if envelope.failed() {
		return fmt.Errorf("%w: %s: %s", ErrProvider, path, envelope.Message)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}
