package testutils

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/shubham-shewale/stock-dashboard/pkg/models"
)

// FakeProvider is an httptest server speaking the Twelve Data REST shapes.
// Responses are keyed by "<endpoint>/<SYMBOL>", e.g. "price/AAPL"; anything
// unset answers 404.
type FakeProvider struct {
	*httptest.Server

	Mu        sync.Mutex
	Responses map[string]string
	Requests  []string // "<endpoint>/<SYMBOL>" in arrival order
	Queries   []map[string][]string
}

func NewFakeProvider(t *testing.T) *FakeProvider {
	t.Helper()
	p := &FakeProvider{Responses: map[string]string{}}
	p.Server = httptest.NewServer(http.HandlerFunc(p.serve))
	t.Cleanup(p.Close)
	return p
}

func (p *FakeProvider) serve(w http.ResponseWriter, r *http.Request) {
	endpoint := strings.TrimPrefix(r.URL.Path, "/")
	key := endpoint + "/" + r.URL.Query().Get("symbol")

	p.Mu.Lock()
	p.Requests = append(p.Requests, key)
	p.Queries = append(p.Queries, r.URL.Query())
	body, ok := p.Responses[key]
	p.Mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(body))
}

// Set registers the body returned for endpoint and symbol.
func (p *FakeProvider) Set(endpoint, symbol, body string) {
	p.Mu.Lock()
	defer p.Mu.Unlock()
	p.Responses[endpoint+"/"+symbol] = body
}

// SetStock registers price, quote and a time series of closes (newest
// first) for symbol.
func (p *FakeProvider) SetStock(symbol, price, change, percent string, closes ...string) {
	p.Set("price", symbol, `{"price":"`+price+`"}`)
	p.Set("quote", symbol, `{"symbol":"`+symbol+`","change":"`+change+`","percent_change":"`+percent+`"}`)

	values := make([]map[string]string, len(closes))
	for i, c := range closes {
		values[i] = map[string]string{"datetime": "2024-01-01", "open": c, "high": c, "low": c, "close": c, "volume": "1000"}
	}
	b, _ := json.Marshal(map[string]any{"status": "ok", "values": values})
	p.Set("time_series", symbol, string(b))
}

// RequestCount returns how many requests have been served.
func (p *FakeProvider) RequestCount() int {
	p.Mu.Lock()
	defer p.Mu.Unlock()
	return len(p.Requests)
}

// MockRand returns a fixed value.
type MockRand struct {
	ValFloat float64
}

func (m *MockRand) Float64() float64 { return m.ValFloat }

// MockFetcher records calls and returns Result, or ResultFor when set.
type MockFetcher struct {
	Mu        sync.Mutex
	Calls     [][]string
	Result    []models.Stock
	ResultFor func(symbols []string) []models.Stock
}

func (m *MockFetcher) Fetch(ctx context.Context, symbols []string) []models.Stock {
	m.Mu.Lock()
	m.Calls = append(m.Calls, append([]string(nil), symbols...))
	fn, res := m.ResultFor, m.Result
	m.Mu.Unlock()
	if fn != nil {
		return fn(symbols)
	}
	return res
}

func (m *MockFetcher) CallCount() int {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return len(m.Calls)
}
