package app

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alem-hub/levelup/config"
	"github.com/alem-hub/levelup/internal/application/command"
	"github.com/alem-hub/levelup/internal/domain/shared"
	"github.com/alem-hub/levelup/pkg/logger"
	"github.com/alem-hub/levelup/pkg/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T, environ map[string]string, out *bytes.Buffer) (*App, *timeutil.FixedClock) {
	t.Helper()
	cfg, err := config.LoadFrom(environ)
	require.NoError(t, err)

	log := logger.Nop()
	if out != nil {
		log = logger.New(logger.Options{Output: out, Level: logger.LevelInfo})
	}
	clock := timeutil.NewFixedClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))

	a, err := New(context.Background(), cfg, log, Options{Clock: clock})
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.Close()) })
	return a, clock
}

func TestApp_MemoryStoreEndToEnd(t *testing.T) {
	ctx := context.Background()
	var out bytes.Buffer
	a, clock := newTestApp(t, map[string]string{
		"STREAK_MILESTONE_BONUSES": "3:30",
	}, &out)

	_, err := a.AddLevel.HandleBatch(ctx, []command.AddLevelCommand{
		{Level: 1, PointsToNextLevel: 0},
		{Level: 2, PointsToNextLevel: 25},
	})
	require.NoError(t, err)

	for day := 0; day < 3; day++ {
		_, err := a.RecordActivity.Handle(ctx, command.RecordActivityCommand{UserID: "u1", ActivityID: "login"})
		require.NoError(t, err)
		clock.AdvanceDays(1)
	}

	count, err := a.Streaks.CurrentStreakCount(ctx, "u1", "login")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// the milestone bonus went through the ledger and climbed a level
	points, err := a.Experience.GetPoints(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 30, points)
	lvl, err := a.Experience.GetLevel(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, lvl)

	assert.Contains(t, out.String(), `"event_type":"streak.increased"`)
	assert.Contains(t, out.String(), "milestone bonus awarded")

	snap := a.Bus.Metrics().Snapshot()
	assert.Equal(t, int64(3), snap.Published[shared.EventStreakIncreased]+snap.Published[shared.EventStreakStarted])
}

func TestApp_SQLiteStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "levelup.db")
	env := map[string]string{"STORE_DRIVER": "sqlite", "SQLITE_PATH": path}

	a, _ := newTestApp(t, env, nil)
	_, err := a.AddPoints.Handle(ctx, command.AddPointsCommand{UserID: "u1", Amount: 40, Reason: "seed"})
	require.NoError(t, err)

	n, err := a.Store.Migrate(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, a.Close())

	// reopened from disk
	b, _ := newTestApp(t, env, nil)
	points, err := b.Experience.GetPoints(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 40, points)
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	cfg, err := config.LoadFrom(map[string]string{})
	require.NoError(t, err)
	cfg.Store.Driver = "mongo"

	_, err = OpenStore(context.Background(), cfg, logger.Nop())
	assert.Error(t, err)
}
