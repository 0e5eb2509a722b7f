package redis

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/alem-hub/levelup/internal/domain/level"
	"github.com/alem-hub/levelup/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/levelup/pkg/circuitbreaker"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis keeps string keys in a map and answers with go-redis result
// constructors.
type fakeRedis struct {
	mu      sync.Mutex
	data    map[string]string
	failGet error
	gets    int
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string]string)}
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value interface{}, _ time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = value.(string)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Eval(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.data[keys[0]] == args[0].(string) {
		delete(f.data, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.failGet != nil {
		return redis.NewStringResult("", f.failGet)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeRedis) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data[key]
	return ok
}

func TestLocker_AcquireRelease(t *testing.T) {
	client := newFakeRedis()
	locker := NewLocker(client, LockerConfig{MaxWait: 30 * time.Millisecond})
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "streak:u1:login")
	require.NoError(t, err)
	assert.True(t, client.has(LockKey("streak:u1:login")))

	_, err = locker.Lock(ctx, "streak:u1:login")
	assert.ErrorIs(t, err, ErrLockHeld)

	other, err := locker.Lock(ctx, "streak:u2:login")
	require.NoError(t, err)
	other()

	unlock()
	unlock()
	assert.False(t, client.has(LockKey("streak:u1:login")))

	again, err := locker.Lock(ctx, "streak:u1:login")
	require.NoError(t, err)
	again()
}

func TestLocker_ReleaseKeepsForeignToken(t *testing.T) {
	client := newFakeRedis()
	locker := NewLocker(client, LockerConfig{})

	unlock, err := locker.Lock(context.Background(), "experience:u1")
	require.NoError(t, err)

	// the lock expired and another owner took it
	client.data[LockKey("experience:u1")] = "someone-else"
	unlock()

	assert.True(t, client.has(LockKey("experience:u1")))
}

func TestLocker_ContextDeadline(t *testing.T) {
	client := newFakeRedis()
	locker := NewLocker(client, LockerConfig{MaxWait: time.Minute})

	unlock, err := locker.Lock(context.Background(), "k")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err = locker.Lock(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type brokenLockClient struct{}

func (brokenLockClient) SetNX(context.Context, string, interface{}, time.Duration) *redis.BoolCmd {
	return redis.NewBoolResult(false, errors.New("connection refused"))
}

func (brokenLockClient) Eval(context.Context, string, []string, ...interface{}) *redis.Cmd {
	return redis.NewCmdResult(nil, nil)
}

func TestLocker_TransportErrorIsNotRetried(t *testing.T) {
	locker := NewLocker(brokenLockClient{}, LockerConfig{MaxWait: time.Minute})

	start := time.Now()
	_, err := locker.Lock(context.Background(), "k")
	assert.EqualError(t, err, "lock k: connection refused")
	assert.Less(t, time.Since(start), time.Second)
}

func TestLevelCache(t *testing.T) {
	ctx := context.Background()
	inner := memory.NewLevelRepository()
	require.NoError(t, inner.Add(ctx, level.Level{Number: 1}))

	client := newFakeRedis()
	cache := NewLevelCache(inner, client, 0, nil)

	levels, err := cache.List(ctx)
	require.NoError(t, err)
	require.Len(t, levels, 1)
	assert.True(t, client.has(KeyLevelCatalog))

	// served from cache: the inner repo changes behind its back
	require.NoError(t, inner.Add(ctx, level.Level{Number: 5, PointsToNextLevel: 10}))
	levels, err = cache.List(ctx)
	require.NoError(t, err)
	assert.Len(t, levels, 1)

	require.NoError(t, cache.Add(ctx, level.Level{Number: 2, PointsToNextLevel: 100}))
	assert.False(t, client.has(KeyLevelCatalog))

	levels, err = cache.List(ctx)
	require.NoError(t, err)
	require.Len(t, levels, 3)
	assert.Equal(t, []int{1, 2, 5}, []int{levels[0].Number, levels[1].Number, levels[2].Number})

	err = cache.Add(ctx, level.Level{Number: 2})
	var conflict *level.AlreadyExistsError
	assert.ErrorAs(t, err, &conflict)
}

func TestLevelCache_FallsBackOnRedisError(t *testing.T) {
	ctx := context.Background()
	inner := memory.NewLevelRepository()
	require.NoError(t, inner.Add(ctx, level.Level{Number: 1}))

	client := newFakeRedis()
	client.failGet = errors.New("i/o timeout")

	levels, err := NewLevelCache(inner, client, time.Minute, nil).List(ctx)
	require.NoError(t, err)
	assert.Len(t, levels, 1)
}

func TestLevelCache_BreakerSkipsRedis(t *testing.T) {
	ctx := context.Background()
	inner := memory.NewLevelRepository()
	require.NoError(t, inner.Add(ctx, level.Level{Number: 1}))

	client := newFakeRedis()
	client.failGet = errors.New("connection refused")
	cache := NewLevelCache(inner, client, time.Minute, nil)

	for i := 0; i < 5; i++ {
		levels, err := cache.List(ctx)
		require.NoError(t, err)
		assert.Len(t, levels, 1)
	}
	assert.Equal(t, circuitbreaker.StateOpen, cache.Breaker().State())
	assert.Equal(t, 3, client.gets)
	assert.False(t, client.has(KeyLevelCatalog))
}

func TestLocker_Integration(t *testing.T) {
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}
	ctx := context.Background()

	client, err := NewClient(ctx, DefaultConfig(url))
	require.NoError(t, err)
	defer client.Close()

	locker := NewLocker(client, LockerConfig{MaxWait: 50 * time.Millisecond})
	unlock, err := locker.Lock(ctx, "integration")
	require.NoError(t, err)

	_, err = locker.Lock(ctx, "integration")
	assert.ErrorIs(t, err, ErrLockHeld)

	unlock()
	unlock2, err := locker.Lock(ctx, "integration")
	require.NoError(t, err)
	unlock2()
}
