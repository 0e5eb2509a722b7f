package streak

import (
	"testing"
	"time"

	"github.com/alem-hub/levelup/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(n int) time.Time {
	return time.Date(2026, 1, n, 0, 0, 0, 0, time.UTC)
}

func newStreak(t *testing.T, start time.Time) *Streak {
	t.Helper()
	key, err := NewKey("user-1", "login")
	require.NoError(t, err)
	return New(key, start, start)
}

func TestNewKey(t *testing.T) {
	_, err := NewKey("", "login")
	assert.ErrorIs(t, err, shared.ErrInvalidID)

	_, err = NewKey("user", "  ")
	assert.ErrorIs(t, err, shared.ErrInvalidID)

	key, err := NewKey("user", "login")
	require.NoError(t, err)
	assert.Equal(t, "user:login", key.String())
}

func TestNew(t *testing.T) {
	s := newStreak(t, time.Date(2026, 1, 1, 15, 30, 0, 0, time.UTC))

	assert.Equal(t, 1, s.Count)
	assert.Equal(t, day(1), s.StartedAt)
	assert.Equal(t, day(1), s.LastActivityAt)
	assert.Nil(t, s.FrozenUntil)
	assert.NotEmpty(t, s.ID)
	assert.NoError(t, s.Validate())
}

func TestRecord(t *testing.T) {
	tests := []struct {
		name       string
		prepare    func(s *Streak)
		today      time.Time
		transition Transition
		count      int
		started    time.Time
		freezeUsed bool
		archived   bool
	}{
		{
			name:       "same day is a no-op",
			today:      day(5).Add(20 * time.Hour),
			transition: TransitionUnchanged,
			count:      3,
			started:    day(3),
		},
		{
			name:       "next day increments",
			today:      day(6),
			transition: TransitionIncreased,
			count:      4,
			started:    day(3),
		},
		{
			name:       "gap breaks and archives",
			today:      day(8),
			transition: TransitionBroken,
			count:      1,
			started:    day(8),
			archived:   true,
		},
		{
			name: "freeze absorbs the gap",
			prepare: func(s *Streak) {
				until := day(8)
				s.FrozenUntil = &until
			},
			today:      day(8),
			transition: TransitionIncreased,
			count:      4,
			started:    day(3),
			freezeUsed: true,
		},
		{
			name: "expired freeze does not absorb",
			prepare: func(s *Streak) {
				until := day(6)
				s.FrozenUntil = &until
			},
			today:      day(8),
			transition: TransitionBroken,
			count:      1,
			started:    day(8),
			archived:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStreak(t, day(3))
			s.Count = 3
			s.LastActivityAt = day(5)
			if tt.prepare != nil {
				tt.prepare(s)
			}

			out, err := s.Record(tt.today, tt.today)
			require.NoError(t, err)

			assert.Equal(t, tt.transition, out.Transition)
			assert.Equal(t, tt.count, s.Count)
			assert.Equal(t, tt.started, s.StartedAt)
			assert.Equal(t, tt.freezeUsed, out.FreezeUsed)
			assert.NoError(t, s.Validate())

			if tt.archived {
				require.NotNil(t, out.Archived)
				assert.Equal(t, 3, out.Archived.Count)
				assert.Equal(t, day(3), out.Archived.StartedAt)
				assert.Equal(t, day(5), out.Archived.EndedAt)
				assert.Equal(t, 3, out.PreviousCount)
				assert.Nil(t, s.FrozenUntil)
			} else {
				assert.Nil(t, out.Archived)
			}
		})
	}
}

func TestRecord_BackwardsClockRejected(t *testing.T) {
	s := newStreak(t, day(5))
	before := *s

	_, err := s.Record(day(4), day(4))

	assert.ErrorIs(t, err, shared.ErrInvalidState)
	assert.Equal(t, before, *s)
}

func TestRecord_ClearsExpiredFreezeOnNextDay(t *testing.T) {
	s := newStreak(t, day(1))
	until := day(1)
	s.FrozenUntil = &until

	out, err := s.Record(day(2), day(2))
	require.NoError(t, err)

	assert.Equal(t, TransitionIncreased, out.Transition)
	assert.False(t, out.FreezeUsed)
	assert.Nil(t, s.FrozenUntil)
}

func TestFreeze(t *testing.T) {
	s := newStreak(t, day(1))

	_, err := s.Freeze(day(1), 0, day(1))
	assert.ErrorIs(t, err, shared.ErrInvalidFreezeDuration)
	assert.Nil(t, s.FrozenUntil)

	until, err := s.Freeze(day(1).Add(13*time.Hour), 3, day(1))
	require.NoError(t, err)
	assert.Equal(t, day(4), until)
	assert.True(t, s.IsFrozenOn(day(4)))
	assert.False(t, s.IsFrozenOn(day(5)))

	until, err = s.Freeze(day(1), 1, day(1))
	require.NoError(t, err)
	assert.Equal(t, day(2), until)
	assert.Equal(t, day(2), *s.FrozenUntil)

	s.Unfreeze(day(1))
	assert.Nil(t, s.FrozenUntil)
}

func TestReset(t *testing.T) {
	s := newStreak(t, day(1))
	s.Count = 9
	s.LastActivityAt = day(9)
	until := day(12)
	s.FrozenUntil = &until

	s.Reset(day(10), day(10))

	assert.Equal(t, 1, s.Count)
	assert.Equal(t, day(10), s.StartedAt)
	assert.Equal(t, day(10), s.LastActivityAt)
	assert.Nil(t, s.FrozenUntil)
}

func TestClone_IsDeep(t *testing.T) {
	s := newStreak(t, day(1))
	until := day(3)
	s.FrozenUntil = &until

	c := s.Clone()
	*c.FrozenUntil = day(9)
	c.Count = 7

	assert.Equal(t, day(3), *s.FrozenUntil)
	assert.Equal(t, 1, s.Count)
}
