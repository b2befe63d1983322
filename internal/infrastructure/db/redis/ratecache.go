package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Siva2k2k/ES-TM-sub002/internal/api/metrics"
	"github.com/Siva2k2k/ES-TM-sub002/internal/core/ports"
)

const rateCacheTTL = 5 * time.Minute

// RateCache caches resolved rate calculations. The TTL bounds staleness
// after a rate change; rate records themselves are append-only versioned, so
// a stale entry is at worst a few minutes behind.
type RateCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRateCache wraps a Redis client. ttl <= 0 falls back to the default.
func NewRateCache(client *redis.Client, ttl time.Duration) *RateCache {
	if ttl <= 0 {
		ttl = rateCacheTTL
	}
	return &RateCache{client: client, ttl: ttl}
}

// Get returns the cached calculation for a key, or (nil, nil) on a miss.
func (c *RateCache) Get(ctx context.Context, key string) (*ports.RateCalculation, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.RateCacheTotal.WithLabelValues("miss").Inc()
			return nil, nil
		}
		return nil, fmt.Errorf("rate cache get: %w", err)
	}

	var calc ports.RateCalculation
	if err := json.Unmarshal(raw, &calc); err != nil {
		return nil, fmt.Errorf("rate cache decode: %w", err)
	}
	metrics.RateCacheTotal.WithLabelValues("hit").Inc()
	return &calc, nil
}

// Put stores a calculation under the key for the configured TTL.
func (c *RateCache) Put(ctx context.Context, key string, calc *ports.RateCalculation) error {
	raw, err := json.Marshal(calc)
	if err != nil {
		return fmt.Errorf("rate cache encode: %w", err)
	}
	return c.client.Set(ctx, key, raw, c.ttl).Err()
}
