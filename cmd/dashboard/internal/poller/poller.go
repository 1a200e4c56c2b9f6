// Package poller refreshes the tracked set on a fixed interval so the
// dashboard stays current when the stream is down.
package poller

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-dashboard/cmd/dashboard/internal/reconcile"
	"github.com/shubham-shewale/stock-dashboard/cmd/dashboard/internal/snapshot"
)

const (
	DefaultInterval = 10 * time.Second
	DefaultTimeout  = 8 * time.Second
)

type Poller struct {
	logger   *zap.Logger
	store    reconcile.Store
	fetcher  snapshot.StockFetcher
	interval time.Duration
	timeout  time.Duration
	symbols  func() []string
}

// Option configures a Poller.
type Option func(*Poller)

// WithSymbols overrides where the poller reads the symbols to refresh. By
// default it polls whatever the store currently tracks.
func WithSymbols(symbols func() []string) Option {
	return func(p *Poller) {
		p.symbols = symbols
	}
}

func New(logger *zap.Logger, store reconcile.Store, fetcher snapshot.StockFetcher, interval, timeout time.Duration, opts ...Option) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if timeout <= 0 || timeout > interval {
		timeout = min(DefaultTimeout, interval)
	}
	p := &Poller{
		logger:   logger,
		store:    store,
		fetcher:  fetcher,
		interval: interval,
		timeout:  timeout,
	}
	p.symbols = func() []string { return p.store.State().Symbols() }
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run polls until ctx is cancelled. A result that arrives after
// cancellation is discarded.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("Poller Started", zap.Duration("interval", p.interval))
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Poller Stopped")
			return
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}

// Poll runs one refresh and reports whether it was applied.
func (p *Poller) Poll(ctx context.Context) bool {
	symbols := p.symbols()
	if len(symbols) == 0 {
		return false
	}

	pollCtx, cancel := context.WithTimeout(ctx, p.timeout)
	stocks := p.fetcher.Fetch(pollCtx, symbols)
	cancel()

	if ctx.Err() != nil {
		return false
	}
	if len(stocks) == 0 {
		p.logger.Debug("Poll returned nothing, keeping current data", zap.Strings("symbols", symbols))
		return false
	}
	return reconcile.ApplySnapshot(p.store, stocks)
}
