package inventory

import (
	"context"
	"time"
)

// StockCache is a read cache for branch stock listings.
// The Redis implementation lives in infrastructure/cache; NoopStockCache
// keeps the service usable without a cache backend.
type StockCache interface {
	Get(ctx context.Context, branchID string) ([]*StockItem, bool, error)
	Set(ctx context.Context, branchID string, items []*StockItem, ttl time.Duration) error
	Invalidate(ctx context.Context, branchID string) error
}

// NoopStockCache disables caching.
type NoopStockCache struct{}

func (NoopStockCache) Get(_ context.Context, _ string) ([]*StockItem, bool, error) {
	return nil, false, nil
}

func (NoopStockCache) Set(_ context.Context, _ string, _ []*StockItem, _ time.Duration) error {
	return nil
}

func (NoopStockCache) Invalidate(_ context.Context, _ string) error {
	return nil
}
