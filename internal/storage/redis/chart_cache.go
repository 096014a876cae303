// Package redis keeps rendered chart images in Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"treasury-charts/internal/storage"
)

// DefaultKeyPrefix namespaces the cache keys.
const DefaultKeyPrefix = "charts:"

// ChartCache implements storage.ChartCache using Redis.
type ChartCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// Options contains configuration for creating a ChartCache.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string        // Default: "charts:"
	TTL      time.Duration // 0 keeps entries until cleared
}

// NewChartCache connects to Redis and verifies the connection.
func NewChartCache(ctx context.Context, opts Options) (*ChartCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &ChartCache{client: client, prefix: prefix, ttl: opts.TTL}, nil
}

var _ storage.ChartCache = (*ChartCache)(nil)

// Put stores payload under key.
func (c *ChartCache) Put(ctx context.Context, key string, payload []byte) error {
	if key == "" {
		return storage.ErrInvalidInput
	}
	if err := c.client.Set(ctx, c.prefix+key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Get returns the payload under key. Returns ErrNotFound if absent.
func (c *ChartCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, nil
}

// Clear deletes every key under the prefix.
func (c *ChartCache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 100).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Close closes the client.
func (c *ChartCache) Close() error {
	return c.client.Close()
}
