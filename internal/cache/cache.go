// Package cache provides a warm-cache interface for per-ticker price
// baselines, backed by Redis in production and an in-process map for
// embedders that don't run Redis. The engine constructs one, but no codec
// reads it: CoinDCX keeps its change-detection baseline in its own map.
// Grounded on the
// teacher's infrastructure/data/cache.go dual-implementation shape.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is the minimal warm-cache surface this module needs: get/set a
// last-seen price per native ticker with a TTL.
type Cache interface {
	GetPrice(ctx context.Context, venue, nativeTicker string) (float64, bool, error)
	SetPrice(ctx context.Context, venue, nativeTicker string, price float64) error
	Health(ctx context.Context) error
}

// RedisCache implements Cache over redis/go-redis/v9.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisCache constructs a RedisCache. addr is host:port; ttl bounds
// how long a last-seen price is retained.
func NewRedisCache(addr, password string, db int, ttl time.Duration) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	return &RedisCache{client: client, ttl: ttl, prefix: "venuequote:lastprice:"}
}

func (c *RedisCache) key(venue, nativeTicker string) string {
	return fmt.Sprintf("%s%s:%s", c.prefix, venue, nativeTicker)
}

func (c *RedisCache) GetPrice(ctx context.Context, venue, nativeTicker string) (float64, bool, error) {
	val, err := c.client.Get(ctx, c.key(venue, nativeTicker)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("cache: get %s/%s: %w", venue, nativeTicker, err)
	}
	var price float64
	if err := json.Unmarshal([]byte(val), &price); err != nil {
		return 0, false, fmt.Errorf("cache: decode %s/%s: %w", venue, nativeTicker, err)
	}
	return price, true, nil
}

func (c *RedisCache) SetPrice(ctx context.Context, venue, nativeTicker string, price float64) error {
	body, err := json.Marshal(price)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, c.key(venue, nativeTicker), body, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache: set %s/%s: %w", venue, nativeTicker, err)
	}
	return nil
}

func (c *RedisCache) Health(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// InMemoryCache implements Cache without any external dependency, for
// embedders that don't run Redis.
type InMemoryCache struct {
	mu   sync.RWMutex
	data map[string]float64
}

// NewInMemoryCache constructs an InMemoryCache.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{data: make(map[string]float64)}
}

func (c *InMemoryCache) key(venue, nativeTicker string) string { return venue + ":" + nativeTicker }

func (c *InMemoryCache) GetPrice(ctx context.Context, venue, nativeTicker string) (float64, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.data[c.key(venue, nativeTicker)]
	return p, ok, nil
}

func (c *InMemoryCache) SetPrice(ctx context.Context, venue, nativeTicker string, price float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[c.key(venue, nativeTicker)] = price
	return nil
}

func (c *InMemoryCache) Health(ctx context.Context) error { return nil }
