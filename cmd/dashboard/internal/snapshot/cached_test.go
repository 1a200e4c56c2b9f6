package snapshot_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-dashboard/cmd/dashboard/internal/repository"
	"github.com/shubham-shewale/stock-dashboard/cmd/dashboard/internal/snapshot"
	"github.com/shubham-shewale/stock-dashboard/cmd/dashboard/internal/testutils"
	"github.com/shubham-shewale/stock-dashboard/pkg/models"
)

func stocksFor(symbols []string) []models.Stock {
	out := make([]models.Stock, len(symbols))
	for i, s := range symbols {
		out[i] = models.Stock{Symbol: s, Name: models.Name(s), Price: 100 + float64(i)}
	}
	return out
}

func newCached(t *testing.T, next snapshot.StockFetcher) (*snapshot.Cached, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return &snapshot.Cached{
		Next:   next,
		Cache:  repository.NewRedisStore(rdb),
		TTL:    snapshot.DefaultCacheTTL,
		Logger: zap.NewNop(),
	}, mr
}

func TestCached_ServesWithinTTL(t *testing.T) {
	next := &testutils.MockFetcher{ResultFor: stocksFor}
	cached, _ := newCached(t, next)
	ctx := context.Background()

	first := cached.Fetch(ctx, []string{"AAPL", "MSFT"})
	require.Len(t, first, 2)
	require.Equal(t, 1, next.CallCount())

	second := cached.Fetch(ctx, []string{"AAPL", "MSFT"})
	require.Equal(t, first, second)
	require.Equal(t, 1, next.CallCount(), "second fetch should be served from redis")
}

func TestCached_FetchesOnlyMisses(t *testing.T) {
	next := &testutils.MockFetcher{ResultFor: stocksFor}
	cached, _ := newCached(t, next)
	ctx := context.Background()

	cached.Fetch(ctx, []string{"AAPL"})
	got := cached.Fetch(ctx, []string{"AAPL", "TSLA"})

	require.Len(t, got, 2)
	require.Equal(t, "AAPL", got[0].Symbol)
	require.Equal(t, "TSLA", got[1].Symbol)
	require.Equal(t, []string{"TSLA"}, next.Calls[1])
}

func TestCached_ExpiryRefetches(t *testing.T) {
	next := &testutils.MockFetcher{ResultFor: stocksFor}
	cached, mr := newCached(t, next)
	ctx := context.Background()

	cached.Fetch(ctx, []string{"AAPL"})
	mr.FastForward(snapshot.DefaultCacheTTL + time.Second)
	cached.Fetch(ctx, []string{"AAPL"})

	require.Equal(t, 2, next.CallCount())
}

func TestCached_EmptyFetchIsNotCached(t *testing.T) {
	next := &testutils.MockFetcher{}
	cached, mr := newCached(t, next)

	require.Empty(t, cached.Fetch(context.Background(), []string{"AAPL"}))
	require.False(t, mr.Exists(repository.Key("AAPL")))
}

func TestCached_PartialHitWithFailedFetchIsEmpty(t *testing.T) {
	next := &testutils.MockFetcher{ResultFor: stocksFor}
	cached, _ := newCached(t, next)
	ctx := context.Background()

	cached.Fetch(ctx, []string{"AAPL"})
	next.ResultFor = func([]string) []models.Stock { return nil }

	require.Empty(t, cached.Fetch(ctx, []string{"AAPL", "MSFT"}))
}

func TestCached_RedisDownFallsThrough(t *testing.T) {
	next := &testutils.MockFetcher{ResultFor: stocksFor}
	cached, mr := newCached(t, next)
	mr.Close()

	got := cached.Fetch(context.Background(), []string{"AAPL", "MSFT"})
	require.Len(t, got, 2)
	require.Equal(t, 1, next.CallCount())
}
