package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shubham-shewale/stock-dashboard/pkg/models"
)

const keyPrefix = "stock:"

// Compile-time check to ensure RedisStore implements SnapshotCache
var _ SnapshotCache = (*RedisStore)(nil)

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Key is the Redis key holding the snapshot record of symbol.
func Key(symbol string) string {
	return keyPrefix + symbol
}

// GetSnapshots fetches the cached records for a list of symbols (MGET).
// Entries that fail to decode are treated as missing.
func (r *RedisStore) GetSnapshots(ctx context.Context, symbols []string) (map[string]models.Stock, error) {
	if len(symbols) == 0 {
		return nil, nil
	}

	keys := make([]string, len(symbols))
	for i, sym := range symbols {
		keys[i] = Key(sym)
	}

	results, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget snapshots: %w", err)
	}

	snapshots := make(map[string]models.Stock, len(results))
	for i, val := range results {
		payload, ok := val.(string)
		if !ok || payload == "" {
			continue
		}
		var stock models.Stock
		if err := json.Unmarshal([]byte(payload), &stock); err != nil {
			continue
		}
		snapshots[symbols[i]] = models.Sanitize(stock)
	}
	return snapshots, nil
}

// PutSnapshots writes every record with the given TTL in one pipeline.
func (r *RedisStore) PutSnapshots(ctx context.Context, stocks []models.Stock, ttl time.Duration) error {
	if len(stocks) == 0 {
		return nil
	}

	pipe := r.client.Pipeline()
	for _, s := range stocks {
		payload, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("encode %s: %w", s.Symbol, err)
		}
		pipe.Set(ctx, Key(s.Symbol), payload, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store snapshots: %w", err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
