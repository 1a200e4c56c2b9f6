// Package reconcile merges snapshot batches and streamed ticks into the
// dashboard store. Both sources write through the same store surface; the
// last write wins per field set.
package reconcile

import (
	"strings"

	"github.com/shubham-shewale/stock-dashboard/cmd/dashboard/internal/state"
	"github.com/shubham-shewale/stock-dashboard/pkg/models"
)

// Store is the part of state.Store the policy writes through.
type Store interface {
	State() state.State
	Lookup(symbol string) (models.Stock, bool)
	SetStocks(stocks []models.Stock)
	SetSelectedStock(stock *models.Stock)
	UpdateStock(symbol string, p models.Patch)
	UpdateStockFunc(symbol string, patch func(models.Stock) models.Patch) bool
}

var _ Store = (*state.Store)(nil)

// ApplySnapshot makes records the tracked set. An empty batch means the
// fetch failed and is ignored. When the current selection is still tracked it
// is refreshed with its snapshot record. It reports whether the store changed.
func ApplySnapshot(store Store, records []models.Stock) bool {
	if len(records) == 0 {
		return false
	}
	store.SetStocks(records)

	selected := store.State().Selected
	if selected == nil {
		return true
	}
	if fresh, ok := store.Lookup(selected.Symbol); ok {
		store.SetSelectedStock(&fresh)
	}
	return true
}

// TickPatch computes the update a tick at price makes to current: the change
// relative to the current price and a chart shifted by one point.
func TickPatch(current models.Stock, price float64) models.Patch {
	p0 := current.Price
	change := price - p0
	var percent float64
	if p0 != 0 {
		percent = change / p0 * 100
	}
	return models.Patch{
		Price:              models.Float(price),
		PriceChange:        models.Float(change),
		PriceChangePercent: models.Float(percent),
		ChartData:          models.ShiftChart(current.ChartData, price),
	}
}

// ApplyTick applies one streamed price. Ticks whose price is not a finite
// non-negative number, or whose symbol is not tracked, are dropped. It
// reports whether the store was updated.
func ApplyTick(store Store, tick models.Tick) bool {
	symbol := strings.ToUpper(strings.TrimSpace(tick.Symbol))
	if symbol == "" {
		return false
	}
	price, ok := tick.Price.Float()
	if !ok || price < 0 {
		return false
	}
	if _, ok := store.Lookup(symbol); !ok {
		return false
	}
	// the base price and chart are read inside the commit so a snapshot
	// landing in between is not overwritten with a stale window
	return store.UpdateStockFunc(symbol, func(current models.Stock) models.Patch {
		return TickPatch(current, price)
	})
}
