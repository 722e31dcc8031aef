// Package cache is a small JSON cache on top of Redis. A nil *Cache is valid and
// behaves as an always-missing cache, so callers never branch on whether Redis is up.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options are the Redis connection settings.
type Options struct {
	Addr     string
	Password string
	DB       int
}

type Cache struct {
	client *redis.Client
	logger *slog.Logger
}

// New wraps an existing client.
func New(client *redis.Client, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{client: client, logger: logger}
}

// Connect dials Redis and pings it. When Redis is unreachable it logs a warning and
// returns nil, which disables caching.
func Connect(ctx context.Context, opts Options, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Addr == "" {
		logger.Info("redis address not set, caching disabled")
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis connection failed, caching disabled", "addr", opts.Addr, "error", err)
		_ = rdb.Close()
		return nil
	}

	logger.Info("redis cache connected", "addr", opts.Addr)
	return New(rdb, logger)
}

// Get decodes the cached value for key into dst and reports whether it was a hit.
func (c *Cache) Get(ctx context.Context, key string, dst interface{}) bool {
	if c == nil {
		return false
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache read failed", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.logger.Warn("cache entry undecodable, dropping", "key", key, "error", err)
		c.client.Del(ctx, key)
		return false
	}
	c.logger.Debug("cache hit", "key", key)
	return true
}

// Set stores v under key for ttl. Failures are logged, never returned.
func (c *Cache) Set(ctx context.Context, key string, v interface{}, ttl time.Duration) {
	if c == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("cache encode failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", "key", key, "error", err)
	}
}

// Delete removes keys.
func (c *Cache) Delete(ctx context.Context, keys ...string) {
	if c == nil || len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("cache delete failed", "keys", keys, "error", err)
	}
}

// Ping checks the connection; a nil cache is always healthy.
func (c *Cache) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
