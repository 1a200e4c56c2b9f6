package protocol

import "github.com/shubham-shewale/stock-dashboard/pkg/models"

const (
	ActionSelect    = "select"
	ActionRemoveTab = "remove_tab"
	ActionTrack     = "track"
	ActionCandles   = "candles"
	ActionSearch    = "search"
)

const (
	TypeState   = "state"
	TypeAck     = "ack"
	TypeError   = "error"
	TypeCandles = "candles"
	TypeSearch  = "search"

	StatusSuccess = "success"
	StatusError   = "error"
)

type WSRequest struct {
	Action  string         `json:"action"`
	Payload RequestPayload `json:"payload"`
	ID      string         `json:"id,omitempty"`
}

type RequestPayload struct {
	Symbols  []string `json:"symbols,omitempty"`
	Interval string   `json:"interval,omitempty"` // candles only
	Query    string   `json:"query,omitempty"`    // search only
}

type WSResponse struct {
	Type    string      `json:"type"`             // "state", "ack", "error", "candles", "search"
	ID      string      `json:"id,omitempty"`     // Matches request ID
	Status  string      `json:"status,omitempty"` // "success", "error"
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// StatePayload is the dashboard view as pushed to every session.
type StatePayload struct {
	Stocks             []models.Stock `json:"stocks"`
	SelectedStock      *models.Stock  `json:"selectedStock"`
	PortfolioValue     float64        `json:"portfolioValue"`
	Currency           string         `json:"currency"`
	PortfolioValueText string         `json:"portfolioValueText"`
	Tabs               []models.Stock `json:"tabs"`
	Loading            bool           `json:"loading"`
	Version            uint64         `json:"version"`
}

// CandlesPayload answers a candles request.
type CandlesPayload struct {
	Symbol   string          `json:"symbol"`
	Interval string          `json:"interval"`
	Candles  []models.Candle `json:"candles"`
}
