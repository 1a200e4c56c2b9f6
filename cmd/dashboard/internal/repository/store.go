package repository

import (
	"context"
	"time"

	"github.com/shubham-shewale/stock-dashboard/pkg/models"
)

// SnapshotCache holds recent snapshot records keyed by symbol.
type SnapshotCache interface {
	// GetSnapshots returns the cached records for symbols. Missing or
	// expired symbols are simply absent from the map.
	GetSnapshots(ctx context.Context, symbols []string) (map[string]models.Stock, error)
	PutSnapshots(ctx context.Context, stocks []models.Stock, ttl time.Duration) error
	Close() error
}
