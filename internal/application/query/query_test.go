package query

import (
	"context"
	"testing"
	"time"

	"github.com/alem-hub/levelup/internal/domain/experience"
	"github.com/alem-hub/levelup/internal/domain/level"
	"github.com/alem-hub/levelup/internal/domain/shared"
	"github.com/alem-hub/levelup/internal/domain/streak"
	"github.com/alem-hub/levelup/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/levelup/pkg/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedStreak(t *testing.T, repo *memory.StreakRepository, s *streak.Streak, history ...streak.HistoryEntry) {
	t.Helper()
	err := repo.Atomic(context.Background(), s.Key(), func(ctx context.Context, tx streak.Tx) error {
		if _, _, err := tx.LoadOrCreate(ctx, s); err != nil {
			return err
		}
		for _, h := range history {
			if err := tx.AppendHistory(ctx, h); err != nil {
				return err
			}
		}
		return tx.Save(ctx, s)
	})
	require.NoError(t, err)
}

func TestStreakQueries_Absent(t *testing.T) {
	h := NewStreakQueryHandler(memory.NewStreakRepository(), nil)
	ctx := context.Background()

	count, err := h.CurrentStreakCount(ctx, "u1", "login")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	today, err := h.HasStreakToday(ctx, "u1", "login")
	require.NoError(t, err)
	assert.False(t, today)

	frozen, err := h.IsStreakFrozen(ctx, "u1", "login")
	require.NoError(t, err)
	assert.False(t, frozen)

	_, err = h.GetStreak(ctx, "u1", "login")
	assert.ErrorIs(t, err, shared.ErrStreakNotFound)

	_, err = h.CurrentStreakCount(ctx, "", "login")
	assert.ErrorIs(t, err, shared.ErrInvalidID)
}

func TestStreakQueries_Existing(t *testing.T) {
	repo := memory.NewStreakRepository()
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	clock := timeutil.NewFixedClock(now)
	h := NewStreakQueryHandler(repo, clock)
	ctx := context.Background()

	key := streak.Key{UserID: "u1", ActivityID: "login"}
	s := streak.New(key, now.AddDate(0, 0, -3), now)
	s.Count = 3
	s.LastActivityAt = timeutil.AddDays(now, -1)
	until := timeutil.AddDays(now, 1)
	s.FrozenUntil = &until

	old := streak.HistoryEntry{Count: 7, StartedAt: timeutil.AddDays(now, -20), EndedAt: timeutil.AddDays(now, -14)}
	seedStreak(t, repo, s, old)

	count, err := h.CurrentStreakCount(ctx, "u1", "login")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	active, err := h.HasStreakToday(ctx, "u1", "login")
	require.NoError(t, err)
	assert.False(t, active)

	frozen, err := h.IsStreakFrozen(ctx, "u1", "login")
	require.NoError(t, err)
	assert.True(t, frozen)

	dto, err := h.GetStreak(ctx, "u1", "login")
	require.NoError(t, err)
	assert.Equal(t, 3, dto.Count)
	assert.True(t, dto.Frozen)

	clock.AdvanceDays(2)
	frozen, err = h.IsStreakFrozen(ctx, "u1", "login")
	require.NoError(t, err)
	assert.False(t, frozen)

	history, err := h.History(ctx, "u1", "login")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 7, history[0].Count)
}

func TestExperienceQueries(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewExperienceRepository()
	levels := memory.NewLevelRepository()
	require.NoError(t, levels.Add(ctx, level.Level{Number: 1}))
	require.NoError(t, levels.Add(ctx, level.Level{Number: 2, PointsToNextLevel: 100}))

	h := NewExperienceQueryHandler(repo, levels)

	_, err := h.GetPoints(ctx, "u1")
	assert.ErrorIs(t, err, shared.ErrExperienceNotFound)

	now := time.Now()
	err = repo.Atomic(ctx, "u1", func(ctx context.Context, tx experience.Tx) error {
		e, _, err := tx.LoadOrCreate(ctx, experience.New("u1", 1, now))
		if err != nil {
			return err
		}
		e.Points = 42
		if err := tx.Save(ctx, e); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, experience.NewAudit("u1", experience.AuditAdd, 42, "quiz", now))
	})
	require.NoError(t, err)

	points, err := h.GetPoints(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 42, points)

	lvl, err := h.GetLevel(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, lvl)

	dto, err := h.GetExperience(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, dto.NextLevel)
	assert.Equal(t, 100, dto.PointsToNextLevel)

	audits, err := h.AuditTrail(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, audits, 1)
	assert.Equal(t, "add", audits[0].Type)
	assert.Equal(t, "quiz", audits[0].Reason)
}

func TestLevelQueries(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewLevelRepository()
	require.NoError(t, repo.Add(ctx, level.Level{Number: 1}))
	require.NoError(t, repo.Add(ctx, level.Level{Number: 3, PointsToNextLevel: 300}))

	h := NewLevelQueryHandler(repo)

	next, ok, err := h.Next(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, next.Number)

	_, ok, err = h.Next(ctx, 3)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = h.Get(ctx, 2)
	assert.ErrorIs(t, err, shared.ErrLevelNotFound)

	all, err := h.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
