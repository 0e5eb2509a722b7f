package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/alem-hub/levelup/internal/domain/level"
	"github.com/alem-hub/levelup/pkg/circuitbreaker"
	"github.com/alem-hub/levelup/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// CacheClient is the subset of *redis.Client the catalog cache uses.
type CacheClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// LevelCache is a read-through cache in front of a level.Repository. The
// whole catalog is cached under one key and dropped on every Add. Redis
// errors are logged and the inner repository answers instead; after a few
// in a row the breaker opens and Redis is skipped for a while.
type LevelCache struct {
	inner   level.Repository
	client  CacheClient
	ttl     time.Duration
	breaker *circuitbreaker.CircuitBreaker
	logger  *logger.Logger
}

// NewLevelCache wraps inner. A zero ttl uses TTLLevelCatalog.
func NewLevelCache(inner level.Repository, client CacheClient, ttl time.Duration, log *logger.Logger) *LevelCache {
	if ttl <= 0 {
		ttl = TTLLevelCatalog
	}
	if log == nil {
		log = logger.Nop()
	}
	log = log.With(logger.Component("level_cache"))
	breaker := circuitbreaker.CacheBreaker("level-cache", func(name string, from, to circuitbreaker.State) {
		log.Warn("circuit breaker state changed",
			logger.String("breaker", name),
			logger.String("from", from.String()),
			logger.String("to", to.String()),
		)
	})
	return &LevelCache{inner: inner, client: client, ttl: ttl, breaker: breaker, logger: log}
}

// Breaker exposes the breaker guarding Redis reads and writes.
func (c *LevelCache) Breaker() *circuitbreaker.CircuitBreaker {
	return c.breaker
}

// Add writes through and invalidates the cached list.
func (c *LevelCache) Add(ctx context.Context, lvl level.Level) error {
	if err := c.inner.Add(ctx, lvl); err != nil {
		return err
	}
	if err := c.client.Del(ctx, KeyLevelCatalog).Err(); err != nil {
		c.logger.Warn("level cache invalidation failed", logger.Err(err))
	}
	return nil
}

// Get is always answered by the inner repository.
func (c *LevelCache) Get(ctx context.Context, number int) (level.Level, error) {
	return c.inner.Get(ctx, number)
}

// List serves the cached catalog when present.
func (c *LevelCache) List(ctx context.Context) ([]level.Level, error) {
	var levels []level.Level
	readErr := c.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		levels, err = c.cached(ctx)
		if errors.Is(err, ErrCacheMiss) {
			return nil
		}
		return err
	})
	if readErr == nil && levels != nil {
		return levels, nil
	}
	if readErr != nil && !errors.Is(readErr, circuitbreaker.ErrCircuitOpen) && !errors.Is(readErr, circuitbreaker.ErrTooManyRequests) {
		c.logger.Warn("level cache read failed", logger.Err(readErr))
	}

	levels, err := c.inner.List(ctx)
	if err != nil {
		return nil, err
	}

	if readErr != nil {
		// Redis is unhealthy, don't bother writing back
		return levels, nil
	}
	data, err := json.Marshal(levels)
	if err == nil {
		err = c.breaker.Execute(ctx, func(ctx context.Context) error {
			return c.client.Set(ctx, KeyLevelCatalog, data, c.ttl).Err()
		})
	}
	if err != nil {
		c.logger.Warn("level cache write failed", logger.Err(err))
	}
	return levels, nil
}

func (c *LevelCache) cached(ctx context.Context) ([]level.Level, error) {
	data, err := c.client.Get(ctx, KeyLevelCatalog).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	var levels []level.Level
	if err := json.Unmarshal(data, &levels); err != nil {
		return nil, err
	}
	return levels, nil
}
