package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gamidirohan/Rate-Limiter-and-Monitoring/internal/storage"
	"github.com/redis/go-redis/v9"
)

// Entry is a point-in-time snapshot of a key's limits and state, keyed by the
// key's secret value. Never authoritative - the database wins on any miss or
// invalidation, and staleness is bounded by the TTL.
type Entry struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Tier              string `json:"tier"`
	RequestsPerMinute int    `json:"requests_per_minute"`
	RequestsPerDay    int    `json:"requests_per_day"`
	IsActive          bool   `json:"is_active"`
}

type Cache struct {
	redis *storage.RedisClient
	ttl   time.Duration
}

func New(redis *storage.RedisClient, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Cache{redis: redis, ttl: ttl}
}

func cacheKey(key string) string {
	return "apikey:cache:" + key
}

// Get returns the cached snapshot, or nil on a miss. The cache never
// self-populates - the caller repairs it from the database.
func (c *Cache) Get(ctx context.Context, key string) (*Entry, error) {
	cached, err := c.redis.Get(ctx, cacheKey(key))
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache read failed: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal([]byte(cached), &entry); err != nil {
		// A corrupt entry is as good as a miss
		return nil, nil
	}

	return &entry, nil
}

func (c *Cache) Put(ctx context.Context, key string, entry *Entry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	if err := c.redis.Set(ctx, cacheKey(key), payload, c.ttl); err != nil {
		return fmt.Errorf("cache write failed: %w", err)
	}

	return nil
}

// Invalidate removes the snapshot. Safe to call repeatedly, deleting a
// missing entry is a no-op.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	if err := c.redis.Del(ctx, cacheKey(key)); err != nil {
		return fmt.Errorf("cache invalidate failed: %w", err)
	}
	return nil
}
