// Package dashboard drives the stock dashboard: it loads the initial
// snapshot, keeps the streaming subscription in step with the tracked set,
// runs the fallback poller and owns the selection and tab strip.
package dashboard

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-dashboard/cmd/dashboard/internal/poller"
	"github.com/shubham-shewale/stock-dashboard/cmd/dashboard/internal/reconcile"
	"github.com/shubham-shewale/stock-dashboard/cmd/dashboard/internal/snapshot"
	"github.com/shubham-shewale/stock-dashboard/cmd/dashboard/internal/state"
	"github.com/shubham-shewale/stock-dashboard/pkg/models"
)

var (
	ErrUnknownSymbol = errors.New("symbol is not tracked")
	ErrNotInTabs     = errors.New("symbol is not a tab")
	ErrLastTab       = errors.New("cannot remove the last tab")
	ErrNoSymbols     = errors.New("no symbols given")
	ErrUnavailable   = errors.New("market data unavailable, try again later")
	ErrStopped       = errors.New("dashboard stopped")
)

// Store is the state container the dashboard drives.
type Store interface {
	reconcile.Store
	Subscribe(fn state.Subscriber) state.CancelFunc
}

// Streamer is the streaming client as the dashboard sees it.
type Streamer interface {
	Initialize(symbols []string)
	UpdateSymbols(symbols []string)
	// Idle reports a stream that has given up reconnecting.
	Idle() bool
	Close()
}

// Options configure the initial view.
type Options struct {
	Symbols       []string
	DefaultSymbol string
	TabSeed       []string
	MaxTabs       int
	PollInterval  time.Duration
	PollTimeout   time.Duration
}

// View is what a UI renders: the store snapshot plus the tab strip.
type View struct {
	State   state.State
	Tabs    []models.Stock
	Loading bool
}

// Listener receives every new View.
type Listener func(View)

type Dashboard struct {
	logger   *zap.Logger
	store    Store
	fetcher  snapshot.StockFetcher
	streamer Streamer
	poller   *poller.Poller
	opts     Options

	// smu serializes stream decisions with the streamer calls they make.
	smu sync.Mutex

	mu        sync.Mutex
	tabs      *Tabs
	loading   bool
	streaming []string // symbols last handed to the streamer
	stopped   bool
	cancel    context.CancelFunc
	pollDone  chan struct{}
	unwatch   state.CancelFunc

	lmu       sync.Mutex
	listeners map[int]Listener
	lid       int
}

func New(logger *zap.Logger, store Store, fetcher snapshot.StockFetcher, streamer Streamer, opts Options) *Dashboard {
	opts.Symbols = models.NormalizeSymbols(opts.Symbols)
	opts.TabSeed = models.NormalizeSymbols(opts.TabSeed)
	opts.DefaultSymbol = strings.ToUpper(strings.TrimSpace(opts.DefaultSymbol))
	d := &Dashboard{
		logger:    logger,
		store:     store,
		fetcher:   fetcher,
		streamer:  streamer,
		opts:      opts,
		tabs:      NewTabs(opts.MaxTabs),
		loading:   true,
		listeners: make(map[int]Listener),
	}
	d.poller = poller.New(logger, store, fetcher, opts.PollInterval, opts.PollTimeout, poller.WithSymbols(d.PollSymbols))
	return d
}

// PollSymbols is the poller's symbol source: the tracked set, or the
// configured symbols while nothing has loaded yet.
func (d *Dashboard) PollSymbols() []string {
	if symbols := d.store.State().Symbols(); len(symbols) > 0 {
		return symbols
	}
	return slices.Clone(d.opts.Symbols)
}

// Start loads the configured symbols and starts the poller. When the first
// fetch comes back empty the dashboard stays loading and the poller keeps
// trying; the first snapshot that lands finishes the setup.
func (d *Dashboard) Start(ctx context.Context) {
	d.mu.Lock()
	if d.stopped || d.cancel != nil {
		d.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	d.cancel = cancel
	d.pollDone = done
	d.unwatch = d.store.Subscribe(d.onState)
	d.mu.Unlock()

	stocks := d.fetcher.Fetch(runCtx, d.opts.Symbols)
	if runCtx.Err() != nil {
		close(done)
		return
	}
	if !reconcile.ApplySnapshot(d.store, stocks) {
		d.logger.Warn("Initial snapshot unavailable, waiting for the poller", zap.Strings("symbols", d.opts.Symbols))
	}

	go func() {
		defer close(done)
		d.poller.Run(runCtx)
	}()
}

// onState keeps the stream subscription in step with the tracked set and
// finishes the initial setup once data arrives. Notifications can arrive
// out of order, so the decision is made on the store's current state, not
// on the notified one.
func (d *Dashboard) onState(state.State) {
	d.smu.Lock()
	st := d.store.State()
	symbols := st.Symbols()

	d.mu.Lock()
	if d.stopped || len(symbols) == 0 {
		d.mu.Unlock()
		d.smu.Unlock()
		d.publish()
		return
	}
	first := d.loading
	changed := !slices.Equal(symbols, d.streaming)
	if changed {
		d.streaming = symbols
	}
	if first {
		d.loading = false
		d.seedTabsLocked(st)
	}
	if first || changed {
		d.tabs.Retain(func(s string) bool { _, ok := st.Lookup(s); return ok })
	}
	d.mu.Unlock()

	switch {
	case first:
		d.logger.Info("Dashboard loaded", zap.Strings("symbols", symbols))
		d.streamer.Initialize(symbols)
	case changed:
		d.streamer.UpdateSymbols(symbols)
	case d.streamer.Idle():
		d.logger.Info("Stream idle, initializing again", zap.Strings("symbols", symbols))
		d.streamer.Initialize(symbols)
	}
	d.smu.Unlock()

	if first || changed {
		d.ensureSelection(st)
	}
	d.publish()
}

func (d *Dashboard) seedTabsLocked(st state.State) {
	for i, sym := range d.opts.TabSeed {
		if _, ok := st.Lookup(sym); ok {
			d.tabs.Add(sym)
		} else if i < len(st.Stocks) {
			d.tabs.Add(st.Stocks[i].Symbol)
		}
	}
}

// ensureSelection picks the default stock when nothing tracked is selected.
func (d *Dashboard) ensureSelection(st state.State) {
	if st.Selected != nil {
		if _, ok := st.Lookup(st.Selected.Symbol); ok {
			return
		}
	}
	stock, ok := st.Lookup(d.opts.DefaultSymbol)
	if !ok {
		if len(st.Stocks) == 0 {
			return
		}
		stock = st.Stocks[0]
	}
	d.selectStock(stock)
}

func (d *Dashboard) selectStock(stock models.Stock) {
	d.mu.Lock()
	d.tabs.Add(stock.Symbol)
	d.mu.Unlock()
	d.store.SetSelectedStock(&stock)
}

// Select makes symbol the selected stock and gives it a tab.
func (d *Dashboard) Select(symbol string) error {
	if d.isStopped() {
		return ErrStopped
	}
	stock, ok := d.store.Lookup(strings.ToUpper(strings.TrimSpace(symbol)))
	if !ok {
		return ErrUnknownSymbol
	}
	d.selectStock(stock)
	return nil
}

// RemoveTab closes the tab for symbol. Closing the selected tab selects the
// newest remaining one.
func (d *Dashboard) RemoveTab(symbol string) error {
	if d.isStopped() {
		return ErrStopped
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	d.mu.Lock()
	if err := d.tabs.Remove(symbol); err != nil {
		d.mu.Unlock()
		return err
	}
	last, _ := d.tabs.Last()
	d.mu.Unlock()

	if sel := d.store.State().Selected; sel != nil && sel.Symbol == symbol {
		if stock, ok := d.store.Lookup(last); ok {
			d.store.SetSelectedStock(&stock)
			return nil
		}
	}
	d.publish()
	return nil
}

// Track replaces the tracked set with symbols. It fetches a snapshot for
// the new set first and leaves everything as is when that fails.
func (d *Dashboard) Track(ctx context.Context, symbols []string) error {
	if d.isStopped() {
		return ErrStopped
	}
	symbols = models.NormalizeSymbols(symbols)
	if len(symbols) == 0 {
		return ErrNoSymbols
	}
	stocks := d.fetcher.Fetch(ctx, symbols)
	if !reconcile.ApplySnapshot(d.store, stocks) {
		return ErrUnavailable
	}
	return nil
}

// Tabs returns the tab records, read fresh from the store.
func (d *Dashboard) Tabs() []models.Stock {
	d.mu.Lock()
	symbols := d.tabs.Symbols()
	d.mu.Unlock()

	st := d.store.State()
	out := make([]models.Stock, 0, len(symbols))
	for _, s := range symbols {
		if stock, ok := st.Lookup(s); ok {
			out = append(out, stock)
		}
	}
	return out
}

// Loading reports whether no snapshot has landed yet.
func (d *Dashboard) Loading() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loading
}

// View returns the current view.
func (d *Dashboard) View() View {
	return View{State: d.store.State(), Tabs: d.Tabs(), Loading: d.Loading()}
}

// Subscribe registers fn for every view change.
func (d *Dashboard) Subscribe(fn Listener) state.CancelFunc {
	d.lmu.Lock()
	defer d.lmu.Unlock()
	id := d.lid
	d.lid++
	d.listeners[id] = fn
	return func() {
		d.lmu.Lock()
		defer d.lmu.Unlock()
		delete(d.listeners, id)
	}
}

func (d *Dashboard) publish() {
	if d.isStopped() {
		return
	}
	d.lmu.Lock()
	fns := make([]Listener, 0, len(d.listeners))
	for _, fn := range d.listeners {
		fns = append(fns, fn)
	}
	d.lmu.Unlock()
	if len(fns) == 0 {
		return
	}
	v := d.View()
	for _, fn := range fns {
		fn(v)
	}
}

func (d *Dashboard) isStopped() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopped
}

// Stop cancels the poller, closes the stream and detaches from the store.
// Nothing fires afterwards.
func (d *Dashboard) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	cancel, unwatch, done := d.cancel, d.unwatch, d.pollDone
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if unwatch != nil {
		unwatch()
	}
	if done != nil {
		<-done
	}
	d.streamer.Close()

	d.lmu.Lock()
	clear(d.listeners)
	d.lmu.Unlock()
	d.logger.Info("Dashboard stopped")
}
