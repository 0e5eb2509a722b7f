// Package redis holds the Redis-backed pieces shared by every instance:
// the distributed per-key Locker and a read-through cache of the level
// catalog.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alem-hub/levelup/pkg/retry"
	"github.com/redis/go-redis/v9"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config holds Redis connection configuration.
type Config struct {
	// URL is a redis:// or rediss:// connection string.
	URL string

	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// OnRetry is called before each ping retry at startup.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig(url string) Config {
	return Config{
		URL:          url,
		PoolSize:     10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// KEYS
// ══════════════════════════════════════════════════════════════════════════════

const (
	// PrefixLock namespaces distributed lock keys.
	PrefixLock = "levelup:lock:"

	// KeyLevelCatalog holds the JSON-encoded level list.
	KeyLevelCatalog = "levelup:levels"
)

// Default TTLs.
const (
	TTLLevelCatalog    = 10 * time.Minute
	TTLDistributedLock = 30 * time.Second
)

// ErrCacheMiss is returned when the requested key is not found in cache.
var ErrCacheMiss = errors.New("cache: key not found")

// LockKey namespaces a lock resource.
func LockKey(resource string) string {
	return PrefixLock + resource
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// NewClient parses cfg.URL, applies pool settings and pings the server.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}

	client := redis.NewClient(opts)

	err = retry.StartupRetrier(retry.WithOnRetry(cfg.OnRetry)).Do(ctx, func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
		defer cancel()
		return client.Ping(pingCtx).Err()
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return client, nil
}
