// Package hotcache is an optional Redis-backed cache of recent MatchResults,
// keyed by input_id. It sits in front of the checkpoint store for
// operators running an interactive lookup surface alongside batch
// resolution; the batch cascade itself never depends on it.
package hotcache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/supplier-resolver/resolver/internal/domain"
)

// Cache wraps a Redis client with the key prefix and TTL this cache uses.
type Cache struct {
	client *redis.Client
	logger *zap.Logger
	prefix string
	ttl    time.Duration

	hits   int64
	misses int64
}

// New connects to Redis and verifies the connection.
func New(redisURL string, logger *zap.Logger) (*Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &Cache{client: client, logger: logger, prefix: "resolver:result:", ttl: 24 * time.Hour}, nil
}

// Get returns a cached MatchResult for input_id, if present and unexpired.
func (c *Cache) Get(ctx context.Context, inputID string) (*domain.MatchResult, bool, error) {
	val, err := c.client.Get(ctx, c.prefix+inputID).Result()
	if err == redis.Nil {
		c.misses++
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var result domain.MatchResult
	if err := json.Unmarshal([]byte(val), &result); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached result for %q: %w", inputID, err)
	}
	c.hits++
	return &result, true, nil
}

// Set stores result under its own input_id.
func (c *Cache) Set(ctx context.Context, result domain.MatchResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result for %q: %w", result.InputID, err)
	}
	return c.client.Set(ctx, c.prefix+result.InputID, data, c.ttl).Err()
}

// Stats reports hit-rate for operator dashboards.
type Stats struct {
	Hits    int64
	Misses  int64
	HitRate float64
}

func (c *Cache) Stats() Stats {
	total := c.hits + c.misses
	rate := 0.0
	if total > 0 {
		rate = float64(c.hits) / float64(total)
	}
	return Stats{Hits: c.hits, Misses: c.misses, HitRate: rate}
}

func (c *Cache) Close() error { return c.client.Close() }
