// Package cache provides Redis-backed read caches.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"apothek/internal/domain/inventory"
)

// Compile-time check.
var _ inventory.StockCache = (*RedisStockCache)(nil)

// RedisStockCache caches per-branch stock listings in Redis.
// Writers invalidate after commit, and entries carry a short TTL, so a
// read can be at most TTL-stale when an invalidation is lost.
type RedisStockCache struct {
	client *redis.Client
}

// NewRedisStockCache connects a stock cache to Redis.
func NewRedisStockCache(addr, password string, db int) *RedisStockCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisStockCache{client: client}
}

// Ping verifies connectivity.
func (c *RedisStockCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the client.
func (c *RedisStockCache) Close() error {
	return c.client.Close()
}

func stockKey(branchID string) string {
	return "stock:branch:" + branchID
}

// Get returns the cached listing for a branch.
func (c *RedisStockCache) Get(ctx context.Context, branchID string) ([]*inventory.StockItem, bool, error) {
	val, err := c.client.Get(ctx, stockKey(branchID)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}

	var items []*inventory.StockItem
	if err := json.Unmarshal([]byte(val), &items); err != nil {
		return nil, false, fmt.Errorf("cache decode: %w", err)
	}
	return items, true, nil
}

// Set stores the listing for a branch.
func (c *RedisStockCache) Set(ctx context.Context, branchID string, items []*inventory.StockItem, ttl time.Duration) error {
	payload, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	return c.client.Set(ctx, stockKey(branchID), payload, ttl).Err()
}

// Invalidate drops the listing for a branch.
func (c *RedisStockCache) Invalidate(ctx context.Context, branchID string) error {
	return c.client.Del(ctx, stockKey(branchID)).Err()
}
