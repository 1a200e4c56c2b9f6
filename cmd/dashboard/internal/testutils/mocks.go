package testutils

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/shubham-shewale/stock-dashboard/cmd/dashboard/internal/dashboard"
	"github.com/shubham-shewale/stock-dashboard/cmd/dashboard/internal/protocol"
	"github.com/shubham-shewale/stock-dashboard/cmd/dashboard/internal/snapshot"
	"github.com/shubham-shewale/stock-dashboard/cmd/dashboard/internal/state"
	"github.com/shubham-shewale/stock-dashboard/pkg/models"
)

// MockClient simulates a connected websocket session
type MockClient struct {
	IDVal    string
	Messages []protocol.WSResponse // Stores JSON responses
	RawBytes []string              // Stores raw bytes
	Closed   bool
	Mu       sync.Mutex
}

func NewMockClient(id string) *MockClient {
	return &MockClient{IDVal: id, Messages: make([]protocol.WSResponse, 0)}
}

func (m *MockClient) ID() string { return m.IDVal }

func (m *MockClient) Close() {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Closed = true
}

func (m *MockClient) SendJSON(v interface{}) {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	// If it's a response, store it
	if resp, ok := v.(protocol.WSResponse); ok {
		m.Messages = append(m.Messages, resp)
	}
}

func (m *MockClient) SendBytes(b []byte) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.RawBytes = append(m.RawBytes, string(b))
}

func (m *MockClient) LastMsgType() string {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if len(m.Messages) == 0 {
		return ""
	}
	return m.Messages[len(m.Messages)-1].Type
}

func (m *MockClient) Last() protocol.WSResponse {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if len(m.Messages) == 0 {
		return protocol.WSResponse{}
	}
	return m.Messages[len(m.Messages)-1]
}

// States decodes every raw state message the session received.
func (m *MockClient) States(t *testing.T) []protocol.StatePayload {
	t.Helper()
	m.Mu.Lock()
	defer m.Mu.Unlock()

	var out []protocol.StatePayload
	for _, raw := range m.RawBytes {
		var msg struct {
			Type string                `json:"type"`
			Data protocol.StatePayload `json:"data"`
		}
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			t.Fatalf("undecodable message %q: %v", raw, err)
		}
		if msg.Type == protocol.TypeState {
			out = append(out, msg.Data)
		}
	}
	return out
}

// MockController records session commands and replays a fixed view.
type MockController struct {
	Mu       sync.Mutex
	ViewVal  dashboard.View
	Err      error
	Selected []string
	Removed  []string
	Tracked  [][]string

	listeners map[int]dashboard.Listener
	lid       int
}

func NewMockController(view dashboard.View) *MockController {
	return &MockController{ViewVal: view, listeners: map[int]dashboard.Listener{}}
}

func (m *MockController) Select(symbol string) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Selected = append(m.Selected, symbol)
	return m.Err
}

func (m *MockController) RemoveTab(symbol string) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Removed = append(m.Removed, symbol)
	return m.Err
}

func (m *MockController) Track(ctx context.Context, symbols []string) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Tracked = append(m.Tracked, symbols)
	return m.Err
}

func (m *MockController) View() dashboard.View {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.ViewVal
}

func (m *MockController) Subscribe(fn dashboard.Listener) state.CancelFunc {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	id := m.lid
	m.lid++
	m.listeners[id] = fn
	return func() {
		m.Mu.Lock()
		defer m.Mu.Unlock()
		delete(m.listeners, id)
	}
}

// Publish sets the view and hands it to every listener.
func (m *MockController) Publish(view dashboard.View) {
	m.Mu.Lock()
	m.ViewVal = view
	fns := make([]dashboard.Listener, 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.Mu.Unlock()

	for _, fn := range fns {
		fn(view)
	}
}

func (m *MockController) Listeners() int {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return len(m.listeners)
}

// MockMarket answers candles and search with canned data.
type MockMarket struct {
	CandlesVal []models.Candle
	SearchVal  []snapshot.SearchResult
}

func (m *MockMarket) Candles(ctx context.Context, symbol, interval string) []models.Candle {
	return m.CandlesVal
}

func (m *MockMarket) Search(ctx context.Context, query string) []snapshot.SearchResult {
	return m.SearchVal
}

func AssertTrue(t *testing.T, condition bool, msg string) {
	if !condition {
		t.Errorf("Assertion failed: %s", msg)
	}
}
