// Package state holds the dashboard's single source of truth: the tracked
// stocks, the selected stock and the derived portfolio value.
//
// The Store is immutable by replacement. Every mutation builds a new State
// from the current one under a lock and publishes it atomically, so a State
// returned by Store.State can be read without locking. Callers must treat
// the slices inside a State as read-only.
package state

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-dashboard/pkg/models"
)

// State is one committed snapshot of the Store.
type State struct {
	// Version increments on every committed mutation.
	Version uint64

	// Stocks is the tracked set, unique by symbol, in insertion order.
	Stocks []models.Stock

	// Selected is the stock shown in detail, nil when nothing is selected.
	Selected *models.Stock

	// PortfolioValue is models.PortfolioValue(Stocks). It is never set directly.
	PortfolioValue float64

	Currency string
}

// Lookup returns the stock with symbol from the snapshot.
func (s State) Lookup(symbol string) (models.Stock, bool) {
	for _, st := range s.Stocks {
		if st.Symbol == symbol {
			return st, true
		}
	}
	return models.Stock{}, false
}

// Symbols returns the tracked symbols in order.
func (s State) Symbols() []string {
	out := make([]string, len(s.Stocks))
	for i, st := range s.Stocks {
		out[i] = st.Symbol
	}
	return out
}

// Subscriber is called synchronously after every committed mutation with the
// new State. It runs outside the Store's write lock and may call back into
// the Store.
type Subscriber func(State)

// CancelFunc is used to cancel a subscription
type CancelFunc func()

// Store provides access to the single data store for the dashboard.
// The Store is thread-safe.
type Store struct {
	logger *zap.Logger

	// pmu serializes mutations so each read-modify-write sees the latest state.
	pmu sync.Mutex

	// state holds the current State.
	state atomic.Value

	// smu protects subscribers and sid.
	smu         sync.RWMutex
	subscribers map[int]Subscriber
	sid         int
}

// New creates an empty Store denominated in currency.
func New(currency string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{logger: logger, subscribers: make(map[int]Subscriber)}
	s.state.Store(State{Stocks: []models.Stock{}, Currency: currency})
	return s
}

// State returns the current stored state.
func (s *Store) State() State {
	return s.state.Load().(State)
}

// Lookup returns the tracked stock with symbol.
func (s *Store) Lookup(symbol string) (models.Stock, bool) {
	return s.State().Lookup(symbol)
}

// Symbols returns the tracked symbols in order.
func (s *Store) Symbols() []string {
	return s.State().Symbols()
}

// SetStocks replaces the tracked set and recomputes the portfolio value.
// Records are sanitized and duplicate symbols are dropped, first one wins.
// The selection is left alone.
func (s *Store) SetStocks(stocks []models.Stock) {
	next := make([]models.Stock, 0, len(stocks))
	seen := make(map[string]struct{}, len(stocks))
	for _, st := range stocks {
		st = models.Sanitize(st)
		if _, dup := seen[st.Symbol]; dup {
			continue
		}
		seen[st.Symbol] = struct{}{}
		next = append(next, st)
	}

	s.perform(func(cur State) (State, bool) {
		cur.Stocks = next
		cur.PortfolioValue = models.PortfolioValue(next)
		return cur, true
	})
}

// SetSelectedStock replaces the selection. Nil clears it.
func (s *Store) SetSelectedStock(stock *models.Stock) {
	var sel *models.Stock
	if stock != nil {
		c := models.Sanitize(*stock)
		sel = &c
	}
	s.perform(func(cur State) (State, bool) {
		cur.Selected = sel
		return cur, true
	})
}

// UpdateStock merges p into the stock with symbol. Unknown symbols are a
// no-op. A selection with the same symbol receives the same merge.
func (s *Store) UpdateStock(symbol string, p models.Patch) {
	s.UpdateStockFunc(symbol, func(models.Stock) models.Patch { return p })
}

// UpdateStockFunc is UpdateStock with the patch computed from the stock as
// committed, inside the same read-modify-write. It reports whether symbol
// was tracked.
func (s *Store) UpdateStockFunc(symbol string, patch func(models.Stock) models.Patch) bool {
	var found bool
	s.perform(func(cur State) (State, bool) {
		idx := -1
		for i, st := range cur.Stocks {
			if st.Symbol == symbol {
				idx = i
				break
			}
		}
		if idx < 0 {
			return cur, false
		}
		found = true
		p := patch(cur.Stocks[idx])

		next := make([]models.Stock, len(cur.Stocks))
		copy(next, cur.Stocks)
		next[idx] = models.Merge(next[idx], p)
		cur.Stocks = next

		if cur.Selected != nil && cur.Selected.Symbol == symbol {
			sel := models.Merge(*cur.Selected, p)
			cur.Selected = &sel
		}

		cur.PortfolioValue = models.PortfolioValue(next)
		return cur, true
	})
	return found
}

// Subscribe registers fn for change notifications.
func (s *Store) Subscribe(fn Subscriber) CancelFunc {
	s.smu.Lock()
	defer s.smu.Unlock()

	id := s.sid
	s.sid++
	s.subscribers[id] = fn

	return func() {
		s.smu.Lock()
		defer s.smu.Unlock()
		delete(s.subscribers, id)
	}
}

// perform commits the State returned by mod, then notifies subscribers
// after the lock is released. mod returning false means nothing changed.
func (s *Store) perform(mod func(State) (State, bool)) {
	s.pmu.Lock()
	cur := s.state.Load().(State)
	next, changed := mod(cur)
	if !changed {
		s.pmu.Unlock()
		return
	}
	next.Version = cur.Version + 1
	s.state.Store(next)
	s.pmu.Unlock()

	s.cast(next)
}

// cast updates subscribers for data changes.
func (s *Store) cast(st State) {
	s.smu.RLock()
	subs := make([]Subscriber, 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.smu.RUnlock()

	for _, fn := range subs {
		s.notify(fn, st)
	}
}

func (s *Store) notify(fn Subscriber, st State) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Subscriber panicked", zap.Any("panic", r), zap.Uint64("version", st.Version))
		}
	}()
	fn(st)
}
