package command

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alem-hub/levelup/internal/domain/shared"
	"github.com/alem-hub/levelup/internal/domain/streak"
	"github.com/alem-hub/levelup/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/levelup/pkg/keylock"
	"github.com/alem-hub/levelup/pkg/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	events []shared.Event
	err    error
}

func (s *recordingSink) Emit(_ context.Context, e shared.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return s.err
}

func (s *recordingSink) types() []shared.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]shared.EventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType())
	}
	return out
}

func (s *recordingSink) reset() {
	s.mu.Lock()
	s.events = nil
	s.mu.Unlock()
}

type streakFixture struct {
	clock  *timeutil.FixedClock
	sink   *recordingSink
	repo   *memory.StreakRepository
	record *RecordActivityHandler
	freeze *FreezeStreakHandler
	reset  *ResetStreakHandler
}

func newStreakFixture(t *testing.T) *streakFixture {
	t.Helper()
	f := &streakFixture{
		clock: timeutil.NewFixedClock(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)),
		sink:  &recordingSink{},
		repo:  memory.NewStreakRepository(),
	}
	deps := Deps{Locker: keylock.New(), Clock: f.clock, Events: f.sink}
	f.record = NewRecordActivityHandler(f.repo, deps, DefaultRecordActivityHandlerConfig())
	f.freeze = NewFreezeStreakHandler(f.repo, deps, 1)
	f.reset = NewResetStreakHandler(f.repo, deps)
	return f
}

func (f *streakFixture) recordLogin(t *testing.T) *RecordActivityResult {
	t.Helper()
	res, err := f.record.Handle(context.Background(), RecordActivityCommand{UserID: "u1", ActivityID: "login"})
	require.NoError(t, err)
	return res
}

func TestRecordActivity_DailySequence(t *testing.T) {
	f := newStreakFixture(t)

	res := f.recordLogin(t)
	assert.Equal(t, streak.TransitionStarted, res.Transition)
	assert.Equal(t, 1, res.Streak.Count)

	f.clock.Advance(5 * time.Hour)
	res = f.recordLogin(t)
	assert.Equal(t, streak.TransitionUnchanged, res.Transition)
	assert.Empty(t, res.Events)

	f.clock.AdvanceDays(1)
	res = f.recordLogin(t)
	assert.Equal(t, streak.TransitionIncreased, res.Transition)
	assert.Equal(t, 2, res.Streak.Count)

	f.clock.AdvanceDays(2)
	res = f.recordLogin(t)
	assert.Equal(t, streak.TransitionBroken, res.Transition)
	assert.Equal(t, 1, res.Streak.Count)
	assert.Equal(t, 2, res.PreviousCount)
	require.NotNil(t, res.Archived)
	assert.Equal(t, 2, res.Archived.Count)

	assert.Equal(t, []shared.EventType{
		shared.EventStreakStarted,
		shared.EventStreakIncreased,
		shared.EventStreakBroken,
	}, f.sink.types())

	history, err := f.repo.History(context.Background(), streak.Key{UserID: "u1", ActivityID: "login"})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), history[0].StartedAt)
	assert.Equal(t, time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), history[0].EndedAt)
}

func TestRecordActivity_ArchiveDisabled(t *testing.T) {
	f := newStreakFixture(t)
	f.record = NewRecordActivityHandler(f.repo, Deps{Clock: f.clock, Events: f.sink}, RecordActivityHandlerConfig{ArchiveHistory: false})

	f.recordLogin(t)
	f.clock.AdvanceDays(3)
	res := f.recordLogin(t)

	assert.Equal(t, streak.TransitionBroken, res.Transition)
	assert.Nil(t, res.Archived)

	history, err := f.repo.History(context.Background(), streak.Key{UserID: "u1", ActivityID: "login"})
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestRecordActivity_FreezeAbsorbsMissedDays(t *testing.T) {
	f := newStreakFixture(t)
	ctx := context.Background()

	f.recordLogin(t)

	frozen, err := f.freeze.Handle(ctx, FreezeStreakCommand{UserID: "u1", ActivityID: "login", Days: 3})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 4, 0, 0, 0, 0, time.UTC), frozen.FrozenUntil)

	f.clock.AdvanceDays(3)
	res := f.recordLogin(t)

	assert.Equal(t, streak.TransitionIncreased, res.Transition)
	assert.True(t, res.FreezeUsed)
	assert.Equal(t, 2, res.Streak.Count)
}

func TestRecordActivity_BackwardsClock(t *testing.T) {
	f := newStreakFixture(t)

	f.recordLogin(t)
	f.clock.AdvanceDays(-1)

	_, err := f.record.Handle(context.Background(), RecordActivityCommand{UserID: "u1", ActivityID: "login"})
	assert.ErrorIs(t, err, shared.ErrInvalidState)

	s, err := f.repo.Get(context.Background(), streak.Key{UserID: "u1", ActivityID: "login"})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), s.LastActivityAt)
}

func TestRecordActivity_Validation(t *testing.T) {
	f := newStreakFixture(t)

	_, err := f.record.Handle(context.Background(), RecordActivityCommand{UserID: "", ActivityID: "login"})
	assert.ErrorIs(t, err, shared.ErrInvalidID)
	assert.True(t, shared.IsValidation(err))
}

func TestRecordActivity_SinkFailureKeepsState(t *testing.T) {
	f := newStreakFixture(t)
	f.sink.err = errors.New("broker down")

	res := f.recordLogin(t)
	assert.Equal(t, streak.TransitionStarted, res.Transition)

	s, err := f.repo.Get(context.Background(), streak.Key{UserID: "u1", ActivityID: "login"})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Count)
}

func TestRecordActivity_ConcurrentSameDayCreatesOnce(t *testing.T) {
	f := newStreakFixture(t)

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.record.Handle(context.Background(), RecordActivityCommand{UserID: "u1", ActivityID: "login"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, []shared.EventType{shared.EventStreakStarted}, f.sink.types())

	s, err := f.repo.Get(context.Background(), streak.Key{UserID: "u1", ActivityID: "login"})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Count)
}

func TestFreezeStreak(t *testing.T) {
	f := newStreakFixture(t)
	ctx := context.Background()

	_, err := f.freeze.HandleDefault(ctx, "u1", "login")
	assert.ErrorIs(t, err, shared.ErrStreakNotFound)

	_, err = f.freeze.Handle(ctx, FreezeStreakCommand{UserID: "u1", ActivityID: "login", Days: 0})
	assert.ErrorIs(t, err, shared.ErrInvalidFreezeDuration)

	f.recordLogin(t)
	f.sink.reset()

	res, err := f.freeze.HandleDefault(ctx, "u1", "login")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Days)
	assert.Equal(t, time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), res.FrozenUntil)

	res, err = f.freeze.Handle(ctx, FreezeStreakCommand{UserID: "u1", ActivityID: "login", Days: 5})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC), *res.Streak.FrozenUntil)

	s, err := f.freeze.Unfreeze(ctx, UnfreezeStreakCommand{UserID: "u1", ActivityID: "login"})
	require.NoError(t, err)
	assert.Nil(t, s.FrozenUntil)

	assert.Equal(t, []shared.EventType{
		shared.EventStreakFrozen,
		shared.EventStreakFrozen,
		shared.EventStreakUnfroze,
	}, f.sink.types())

	_, err = f.freeze.Unfreeze(ctx, UnfreezeStreakCommand{UserID: "u2", ActivityID: "login"})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestResetStreak(t *testing.T) {
	f := newStreakFixture(t)
	ctx := context.Background()

	_, err := f.reset.Handle(ctx, ResetStreakCommand{UserID: "u1", ActivityID: "login"})
	assert.ErrorIs(t, err, shared.ErrStreakNotFound)

	f.recordLogin(t)
	f.clock.AdvanceDays(1)
	f.recordLogin(t)
	_, err = f.freeze.HandleDefault(ctx, "u1", "login")
	require.NoError(t, err)
	f.sink.reset()

	f.clock.AdvanceDays(1)
	s, err := f.reset.Handle(ctx, ResetStreakCommand{UserID: "u1", ActivityID: "login"})
	require.NoError(t, err)

	assert.Equal(t, 1, s.Count)
	assert.Equal(t, time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC), s.StartedAt)
	assert.Nil(t, s.FrozenUntil)
	assert.Empty(t, f.sink.types())

	history, err := f.repo.History(ctx, streak.Key{UserID: "u1", ActivityID: "login"})
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestLockTimeoutIsReported(t *testing.T) {
	f := newStreakFixture(t)
	locker := keylock.New()
	f.record = NewRecordActivityHandler(f.repo, Deps{Locker: locker, Clock: f.clock}, DefaultRecordActivityHandlerConfig())

	unlock, err := locker.Lock(context.Background(), streakLockKey("u1", "login"))
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = f.record.Handle(ctx, RecordActivityCommand{UserID: "u1", ActivityID: "login"})
	assert.ErrorIs(t, err, shared.ErrTimeout)
}
