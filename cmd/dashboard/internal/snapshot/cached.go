package snapshot

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-dashboard/cmd/dashboard/internal/repository"
	"github.com/shubham-shewale/stock-dashboard/pkg/models"
)

// DefaultCacheTTL keeps cached snapshots well inside the poll interval.
const DefaultCacheTTL = 5 * time.Second

var _ StockFetcher = (*Cached)(nil)

// Cached is a read-through cache in front of a StockFetcher. It fetches only
// the symbols the cache misses and stores whatever came back. Cache failures
// degrade to a direct fetch.
type Cached struct {
	Next   StockFetcher
	Cache  repository.SnapshotCache
	TTL    time.Duration
	Logger *zap.Logger
}

// Fetch returns records for symbols in normalized order. The result is all or
// nothing: when the misses cannot be fetched it is empty, so a caller never
// replaces its tracked set with a partial one.
func (c *Cached) Fetch(ctx context.Context, symbols []string) []models.Stock {
	symbols = models.NormalizeSymbols(symbols)
	if len(symbols) == 0 {
		return nil
	}
	if c.Cache == nil || c.TTL <= 0 {
		return c.Next.Fetch(ctx, symbols)
	}

	hits, err := c.Cache.GetSnapshots(ctx, symbols)
	if err != nil {
		c.logger().Warn("Snapshot cache read failed", zap.Error(err))
		hits = nil
	}

	missing := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if _, ok := hits[s]; !ok {
			missing = append(missing, s)
		}
	}

	// If everything is cached, return quickly
	if len(missing) == 0 {
		return ordered(symbols, hits, nil)
	}

	fresh := c.Next.Fetch(ctx, missing)
	if len(fresh) == 0 {
		return nil
	}
	if err := c.Cache.PutSnapshots(ctx, fresh, c.TTL); err != nil {
		c.logger().Warn("Snapshot cache write failed", zap.Error(err))
	}

	out := ordered(symbols, hits, fresh)
	if len(out) != len(symbols) {
		return nil
	}
	return out
}

func ordered(symbols []string, hits map[string]models.Stock, fresh []models.Stock) []models.Stock {
	bySymbol := make(map[string]models.Stock, len(hits)+len(fresh))
	for k, v := range hits {
		bySymbol[k] = v
	}
	for _, s := range fresh {
		bySymbol[s.Symbol] = s
	}
	out := make([]models.Stock, 0, len(symbols))
	for _, s := range symbols {
		if stock, ok := bySymbol[s]; ok {
			out = append(out, stock)
		}
	}
	return out
}

func (c *Cached) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}
