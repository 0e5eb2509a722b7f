package level

import (
	"errors"
	"testing"
	"time"

	"github.com/alem-hub/levelup/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	now := time.Now()

	_, err := New(0, 10, now)
	assert.ErrorIs(t, err, shared.ErrValueOutOfRange)

	_, err = New(2, -1, now)
	assert.ErrorIs(t, err, shared.ErrNegativeValue)

	lvl, err := New(2, 100, now)
	require.NoError(t, err)
	assert.Equal(t, 2, lvl.Number)
	assert.Equal(t, 100, lvl.PointsToNextLevel)
}

func TestLadder(t *testing.T) {
	ladder := NewLadder([]Level{
		{Number: 5, PointsToNextLevel: 500},
		{Number: 1, PointsToNextLevel: 0},
		{Number: 2, PointsToNextLevel: 100},
	})

	next, ok := ladder.Next(1)
	require.True(t, ok)
	assert.Equal(t, 2, next.Number)

	next, ok = ladder.Next(2)
	require.True(t, ok)
	assert.Equal(t, 5, next.Number, "gaps in numbering are skipped")

	_, ok = ladder.Next(5)
	assert.False(t, ok)

	next, ok = ladder.Next(0)
	require.True(t, ok)
	assert.Equal(t, 1, next.Number)

	got, ok := ladder.Get(5)
	require.True(t, ok)
	assert.Equal(t, 500, got.PointsToNextLevel)

	_, ok = ladder.Get(3)
	assert.False(t, ok)

	assert.Equal(t, 3, ladder.Len())
	assert.Equal(t, []int{1, 2, 5}, numbers(ladder.Levels()))
}

func TestAlreadyExistsError(t *testing.T) {
	cause := errors.New("duplicate key value violates unique constraint")
	err := error(&AlreadyExistsError{Level: 3, Err: cause})

	assert.EqualError(t, err, "level 3 already exists")
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)
	assert.ErrorIs(t, err, cause)
	assert.True(t, shared.IsAlreadyExists(err))

	var conflict *AlreadyExistsError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, 3, conflict.Level)
}

func numbers(levels []Level) []int {
	out := make([]int, 0, len(levels))
	for _, l := range levels {
		out = append(out, l.Number)
	}
	return out
}
