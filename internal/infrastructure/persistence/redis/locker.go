package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alem-hub/levelup/pkg/logger"
	"github.com/alem-hub/levelup/pkg/retry"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned when the lock stayed taken for the whole wait.
var ErrLockHeld = errors.New("redis: lock held by another owner")

// releaseScript deletes the key only while it still holds our token, so an
// expired lock re-acquired by someone else is left alone.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// LockClient is the subset of *redis.Client the locker uses.
type LockClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// LockerConfig tunes the locker.
type LockerConfig struct {
	// TTL bounds how long a crashed holder can keep a key locked.
	TTL time.Duration

	// MaxWait is how long Lock polls a contended key before giving up.
	MaxWait time.Duration

	Logger *logger.Logger
}

// Locker is a keylock.Locker backed by SET NX PX.
type Locker struct {
	client  LockClient
	ttl     time.Duration
	retrier *retry.Retrier
	logger  *logger.Logger
}

// NewLocker creates a Locker.
func NewLocker(client LockClient, cfg LockerConfig) *Locker {
	if cfg.TTL <= 0 {
		cfg.TTL = TTLDistributedLock
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	return &Locker{
		client: client,
		ttl:    cfg.TTL,
		retrier: retry.LockRetrier(cfg.MaxWait, func(err error) bool {
			return errors.Is(err, ErrLockHeld)
		}),
		logger: cfg.Logger.With(logger.Component("redis_locker")),
	}
}

// Lock blocks until key is acquired, ctx is done or the wait runs out.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := LockKey(key)
	token := uuid.NewString()

	err := l.retrier.Do(ctx, func(ctx context.Context) error {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return retry.Permanent(err)
		}
		if !ok {
			return ErrLockHeld
		}
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("lock %s: %w", key, ctxErr)
		}
		return nil, fmt.Errorf("lock %s: %w", key, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(redisKey, token) })
	}, nil
}

// release runs on its own context: the caller's may already be done.
func (l *Locker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := l.client.Eval(ctx, releaseScript, []string{key}, token).Err(); err != nil {
		l.logger.Warn("lock release failed", logger.String("key", key), logger.Err(err))
	}
}
