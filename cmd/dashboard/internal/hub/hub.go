package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-dashboard/cmd/dashboard/internal/dashboard"
	"github.com/shubham-shewale/stock-dashboard/cmd/dashboard/internal/protocol"
	"github.com/shubham-shewale/stock-dashboard/cmd/dashboard/internal/snapshot"
	"github.com/shubham-shewale/stock-dashboard/cmd/dashboard/internal/state"
	"github.com/shubham-shewale/stock-dashboard/pkg/models"
)

const commandTimeout = 15 * time.Second

type ClientInterface interface {
	ID() string
	SendJSON(v interface{})
	SendBytes(b []byte)
	Close()
}

// Controller is the dashboard surface sessions drive.
type Controller interface {
	Select(symbol string) error
	RemoveTab(symbol string) error
	Track(ctx context.Context, symbols []string) error
	View() dashboard.View
	Subscribe(fn dashboard.Listener) state.CancelFunc
}

// Market serves the detail chart and symbol lookup.
type Market interface {
	Candles(ctx context.Context, symbol, interval string) []models.Candle
	Search(ctx context.Context, query string) []snapshot.SearchResult
}

// Hub fans the dashboard view out to every session and routes session
// commands to the dashboard.
type Hub struct {
	clients map[ClientInterface]bool

	controller Controller
	market     Market
	logger     *zap.Logger
	mu         sync.RWMutex
	unwatch    state.CancelFunc
}

func NewHub(controller Controller, market Market, logger *zap.Logger) *Hub {
	h := &Hub{
		clients:    make(map[ClientInterface]bool),
		controller: controller,
		market:     market,
		logger:     logger,
	}
	h.unwatch = controller.Subscribe(h.Broadcast)
	return h
}

// Register adds a session and sends it the current view.
func (h *Hub) Register(client ClientInterface) {
	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()

	if payload, err := EncodeState(h.controller.View()); err == nil {
		client.SendBytes(payload)
	}
	h.logger.Debug("Session registered", zap.String("session", client.ID()))
}

func (h *Hub) Unregister(client ClientInterface) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		client.Close()
	}
}

// Count returns the number of registered sessions.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) HandleCommand(client ClientInterface, req protocol.WSRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	switch req.Action {
	case protocol.ActionSelect:
		h.handleSymbolCommand(client, req, "Selected", h.controller.Select)
	case protocol.ActionRemoveTab:
		h.handleSymbolCommand(client, req, "Removed tab", h.controller.RemoveTab)
	case protocol.ActionTrack:
		h.handleTrack(ctx, client, req)
	case protocol.ActionCandles:
		h.handleCandles(ctx, client, req)
	case protocol.ActionSearch:
		h.handleSearch(ctx, client, req)
	default:
		h.sendError(client, req.ID, "Unknown action: "+req.Action)
	}
}

func (h *Hub) handleSymbolCommand(client ClientInterface, req protocol.WSRequest, verb string, fn func(string) error) {
	if len(req.Payload.Symbols) != 1 {
		h.sendError(client, req.ID, "Exactly one symbol required")
		return
	}
	symbol := req.Payload.Symbols[0]
	if err := fn(symbol); err != nil {
		h.sendError(client, req.ID, describe(err, symbol))
		return
	}
	h.sendAck(client, req.ID, fmt.Sprintf("%s %s", verb, symbol))
}

func (h *Hub) handleTrack(ctx context.Context, client ClientInterface, req protocol.WSRequest) {
	if err := h.controller.Track(ctx, req.Payload.Symbols); err != nil {
		h.sendError(client, req.ID, describe(err, ""))
		return
	}
	h.sendAck(client, req.ID, fmt.Sprintf("Tracking %v", req.Payload.Symbols))
}

func (h *Hub) handleCandles(ctx context.Context, client ClientInterface, req protocol.WSRequest) {
	if len(req.Payload.Symbols) != 1 {
		h.sendError(client, req.ID, "Exactly one symbol required")
		return
	}
	symbol := req.Payload.Symbols[0]
	candles := h.market.Candles(ctx, symbol, req.Payload.Interval)
	client.SendJSON(protocol.WSResponse{
		Type:   protocol.TypeCandles,
		ID:     req.ID,
		Status: protocol.StatusSuccess,
		Data:   protocol.CandlesPayload{Symbol: symbol, Interval: req.Payload.Interval, Candles: candles},
	})
}

func (h *Hub) handleSearch(ctx context.Context, client ClientInterface, req protocol.WSRequest) {
	results := h.market.Search(ctx, req.Payload.Query)
	if results == nil {
		results = []snapshot.SearchResult{}
	}
	client.SendJSON(protocol.WSResponse{
		Type:   protocol.TypeSearch,
		ID:     req.ID,
		Status: protocol.StatusSuccess,
		Data:   results,
	})
}

// Broadcast pushes view to every session. It is encoded once.
func (h *Hub) Broadcast(view dashboard.View) {
	payload, err := EncodeState(view)
	if err != nil {
		h.logger.Error("Failed to encode state", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		client.SendBytes(payload)
	}
}

// Close detaches from the dashboard and drops every session.
func (h *Hub) Close() {
	if h.unwatch != nil {
		h.unwatch()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		client.Close()
		delete(h.clients, client)
	}
}

// EncodeState renders view as a state message.
func EncodeState(view dashboard.View) ([]byte, error) {
	st := view.State
	stocks := st.Stocks
	if stocks == nil {
		stocks = []models.Stock{}
	}
	tabs := view.Tabs
	if tabs == nil {
		tabs = []models.Stock{}
	}
	return json.Marshal(protocol.WSResponse{
		Type: protocol.TypeState,
		Data: protocol.StatePayload{
			Stocks:             stocks,
			SelectedStock:      st.Selected,
			PortfolioValue:     st.PortfolioValue,
			Currency:           st.Currency,
			PortfolioValueText: models.FormatMoney(st.PortfolioValue, st.Currency),
			Tabs:               tabs,
			Loading:            view.Loading,
			Version:            st.Version,
		},
	})
}

func describe(err error, symbol string) string {
	switch {
	case errors.Is(err, dashboard.ErrUnknownSymbol):
		return "Not tracked: " + symbol
	case errors.Is(err, dashboard.ErrNotInTabs):
		return "Not a tab: " + symbol
	case errors.Is(err, dashboard.ErrLastTab):
		return "Cannot remove the last tab"
	}
	return err.Error()
}

func (h *Hub) sendAck(c ClientInterface, id, msg string) {
	c.SendJSON(protocol.WSResponse{Type: protocol.TypeAck, ID: id, Status: protocol.StatusSuccess, Message: msg})
}

func (h *Hub) sendError(c ClientInterface, id, msg string) {
	c.SendJSON(protocol.WSResponse{Type: protocol.TypeError, ID: id, Status: protocol.StatusError, Message: msg})
}
