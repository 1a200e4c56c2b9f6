package models

// ChartWindow is the number of closes kept per symbol in a snapshot.
const ChartWindow = 30

// Stock is one tracked instrument. Values are replaced, never edited in
// place, so a Stock read from a state snapshot can be shared freely.
type Stock struct {
	Symbol             string    `json:"symbol"`
	Name               string    `json:"name"`
	Price              float64   `json:"price"`
	PriceChange        float64   `json:"priceChange"`
	PriceChangePercent float64   `json:"priceChangePercent"`
	ChartData          []float64 `json:"chartData"`
	Shares             float64   `json:"shares,omitempty"`
	AveragePrice       float64   `json:"averagePrice,omitempty"`
}

// Patch is a partial update for a Stock. Nil fields are left untouched.
type Patch struct {
	Name               *string
	Price              *float64
	PriceChange        *float64
	PriceChangePercent *float64
	ChartData          []float64
	Shares             *float64
	AveragePrice       *float64
}

// Empty reports whether the patch sets nothing.
func (p Patch) Empty() bool {
	return p.Name == nil && p.Price == nil && p.PriceChange == nil &&
		p.PriceChangePercent == nil && p.ChartData == nil &&
		p.Shares == nil && p.AveragePrice == nil
}

// Merge returns a copy of s with the fields set in p applied. The result is
// sanitized, and its chart data never aliases either input.
func Merge(s Stock, p Patch) Stock {
	out := s
	if p.Name != nil {
		out.Name = *p.Name
	}
	if p.Price != nil {
		out.Price = *p.Price
	}
	if p.PriceChange != nil {
		out.PriceChange = *p.PriceChange
	}
	if p.PriceChangePercent != nil {
		out.PriceChangePercent = *p.PriceChangePercent
	}
	if p.ChartData != nil {
		out.ChartData = p.ChartData
	}
	if p.Shares != nil {
		out.Shares = *p.Shares
	}
	if p.AveragePrice != nil {
		out.AveragePrice = *p.AveragePrice
	}
	return Sanitize(out)
}

// Float returns a pointer to v, for building a Patch.
func Float(v float64) *float64 { return &v }

// StockUpdate represents a single market tick for a stock symbol as it
// travels over the Kafka tick topic.
type StockUpdate struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"` // unix micro
	SeqID     int64   `json:"seq_id"`    // monotonic counter per symbol
}

// Candle is one OHLCV bar for the detailed chart.
type Candle struct {
	Time   string  `json:"time"` // YYYY-MM-DD
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Tick is one streamed price for one symbol as received. The price is kept
// raw until the reconciliation step decides whether it is usable.
type Tick struct {
	Symbol    string `json:"symbol"`
	Price     Number `json:"price"`
	Timestamp int64  `json:"timestamp,omitempty"`
}
