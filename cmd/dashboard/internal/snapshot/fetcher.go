package snapshot

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shubham-shewale/stock-dashboard/pkg/config"
	"github.com/shubham-shewale/stock-dashboard/pkg/models"
)

const (
	// DefaultPrice stands in for a price the provider could not give us.
	DefaultPrice = 100.0
	// CandleCount is the history depth of the detailed chart.
	CandleCount = 200

	chartInterval  = "1day"
	defaultWorkers = 4
)

// Provider is the subset of the Twelve Data client the fetcher needs.
type Provider interface {
	Price(ctx context.Context, symbol string) (*PriceResponse, error)
	Quote(ctx context.Context, symbol string) (*QuoteResponse, error)
	TimeSeries(ctx context.Context, symbol, interval string, size int) (*TimeSeriesResponse, error)
	SymbolSearch(ctx context.Context, query string) ([]SearchResult, error)
}

// StockFetcher produces a snapshot for a set of symbols. An empty result
// means nothing could be retrieved and the caller should try again later.
type StockFetcher interface {
	Fetch(ctx context.Context, symbols []string) []models.Stock
}

var _ StockFetcher = (*Fetcher)(nil)

// Fetcher turns provider responses into sanitized Stock records, filling
// every gap with a default so a partial outage still yields a full set.
type Fetcher struct {
	logger   *zap.Logger
	provider Provider
	holdings map[string]config.Holding
	workers  int
	now      func() time.Time

	rmu  sync.Mutex // guards rand
	rand Rand
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithHoldings sets the shares and average price attached to each symbol.
func WithHoldings(holdings map[string]config.Holding) FetcherOption {
	return func(f *Fetcher) {
		f.holdings = holdings
	}
}

// WithConcurrency bounds how many symbols are fetched at once.
func WithConcurrency(n int) FetcherOption {
	return func(f *Fetcher) {
		if n > 0 {
			f.workers = n
		}
	}
}

// WithRand sets the source used for synthetic series.
func WithRand(r Rand) FetcherOption {
	return func(f *Fetcher) {
		f.rand = r
	}
}

// WithNow sets the clock used to date synthetic candles.
func WithNow(now func() time.Time) FetcherOption {
	return func(f *Fetcher) {
		f.now = now
	}
}

func NewFetcher(logger *zap.Logger, provider Provider, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		logger:   logger,
		provider: provider,
		holdings: map[string]config.Holding{},
		workers:  defaultWorkers,
		now:      time.Now,
		rand:     RealRand{rand.New(rand.NewSource(time.Now().UnixNano()))},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

type result struct {
	stock     models.Stock
	transport int // retrievals that failed before a response arrived
}

// retrievals per symbol: price, quote, time series
const retrievals = 3

// Fetch retrieves a snapshot for symbols in their normalized order. It never
// returns an error: individual failures fall back to defaults, and the result
// is empty only when ctx is done or no retrieval reached the provider at all.
func (f *Fetcher) Fetch(ctx context.Context, symbols []string) []models.Stock {
	symbols = models.NormalizeSymbols(symbols)
	if len(symbols) == 0 {
		return nil
	}

	results := make([]result, len(symbols))
	var g errgroup.Group
	g.SetLimit(f.workers)
	for i, symbol := range symbols {
		g.Go(func() error {
			results[i] = f.fetchOne(ctx, symbol)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		f.logger.Warn("Snapshot abandoned", zap.Strings("symbols", symbols), zap.Error(err))
		return nil
	}

	failed := 0
	stocks := make([]models.Stock, len(results))
	for i, r := range results {
		failed += r.transport
		stocks[i] = r.stock
	}
	if failed == retrievals*len(symbols) {
		f.logger.Warn("Snapshot failed: provider unreachable", zap.Strings("symbols", symbols))
		return nil
	}
	return stocks
}

func (f *Fetcher) fetchOne(ctx context.Context, symbol string) result {
	var r result
	log := f.logger.With(zap.String("symbol", symbol))

	price := DefaultPrice
	if res, err := f.provider.Price(ctx, symbol); err != nil {
		r.transport += f.miss(log, "price", err)
	} else if v, ok := res.Price.Float(); ok {
		price = v
	}

	var change, percent float64
	if res, err := f.provider.Quote(ctx, symbol); err != nil {
		r.transport += f.miss(log, "quote", err)
	} else {
		change = res.Change.FloatOr(0)
		percent = res.PercentChange.FloatOr(0)
	}

	var chart []float64
	if res, err := f.provider.TimeSeries(ctx, symbol, chartInterval, models.ChartWindow); err != nil {
		r.transport += f.miss(log, "time_series", err)
	} else {
		chart = chartFromSeries(res.Values, price)
	}
	if len(chart) == 0 {
		chart = f.syntheticChart(price, change >= 0)
	}

	holding := f.holdings[symbol]
	r.stock = models.Sanitize(models.Stock{
		Symbol:             symbol,
		Name:               models.Name(symbol),
		Price:              price,
		PriceChange:        change,
		PriceChangePercent: percent,
		ChartData:          chart,
		Shares:             holding.Shares,
		AveragePrice:       holding.AveragePrice,
	})
	return r
}

// miss logs a failed retrieval and reports 1 when it never reached the
// provider.
func (f *Fetcher) miss(log *zap.Logger, what string, err error) int {
	log.Debug("Retrieval failed, using default", zap.String("retrieval", what), zap.Error(err))
	if errors.Is(err, ErrTransport) {
		return 1
	}
	return 0
}

// chartFromSeries keeps the newest ChartWindow closes, oldest first. A close
// that does not parse is replaced by fallback.
func chartFromSeries(values []TimeSeriesValue, fallback float64) []float64 {
	if len(values) > models.ChartWindow {
		values = values[:models.ChartWindow]
	}
	chart := make([]float64, len(values))
	for i, v := range values {
		chart[len(values)-1-i] = v.Close.FloatOr(fallback)
	}
	return chart
}

func (f *Fetcher) syntheticChart(price float64, up bool) []float64 {
	f.rmu.Lock()
	defer f.rmu.Unlock()
	return SyntheticChart(f.rand, models.ChartWindow, price, up)
}

// Candles returns up to CandleCount bars for symbol, oldest first. Any
// failure yields a synthetic history instead.
func (f *Fetcher) Candles(ctx context.Context, symbol, interval string) []models.Candle {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if interval == "" {
		interval = chartInterval
	}

	res, err := f.provider.TimeSeries(ctx, symbol, interval, CandleCount)
	if err != nil {
		f.logger.Debug("Candles unavailable, using synthetic history", zap.String("symbol", symbol), zap.Error(err))
		return f.syntheticCandles()
	}

	candles := make([]models.Candle, 0, len(res.Values))
	for i := len(res.Values) - 1; i >= 0; i-- {
		v := res.Values[i]
		open, ok1 := v.Open.Float()
		high, ok2 := v.High.Float()
		low, ok3 := v.Low.Float()
		closing, ok4 := v.Close.Float()
		if !ok1 || !ok2 || !ok3 || !ok4 {
			continue
		}
		day := v.Datetime
		if len(day) > len(time.DateOnly) {
			day = day[:len(time.DateOnly)]
		}
		candles = append(candles, models.Candle{
			Time:   day,
			Open:   models.NonNegative(open),
			High:   models.NonNegative(high),
			Low:    models.NonNegative(low),
			Close:  models.NonNegative(closing),
			Volume: models.NonNegative(v.Volume.FloatOr(0)),
		})
	}
	if len(candles) == 0 {
		return f.syntheticCandles()
	}
	return candles
}

func (f *Fetcher) syntheticCandles() []models.Candle {
	f.rmu.Lock()
	defer f.rmu.Unlock()
	return SyntheticCandles(f.rand, CandleCount, f.now())
}

// Search proxies symbol search. Failures yield an empty result.
func (f *Fetcher) Search(ctx context.Context, query string) []SearchResult {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	res, err := f.provider.SymbolSearch(ctx, query)
	if err != nil {
		f.logger.Debug("Search failed", zap.String("query", query), zap.Error(err))
		return nil
	}
	return res
}
