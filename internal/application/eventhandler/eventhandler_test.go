package eventhandler

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/alem-hub/levelup/internal/application/command"
	"github.com/alem-hub/levelup/internal/domain/shared"
	"github.com/alem-hub/levelup/internal/infrastructure/messaging"
	"github.com/alem-hub/levelup/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/levelup/pkg/keylock"
	"github.com/alem-hub/levelup/pkg/logger"
	"github.com/alem-hub/levelup/pkg/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreakMilestoneHandler_AwardsBonusOnce(t *testing.T) {
	ctx := context.Background()
	clock := timeutil.NewFixedClock(time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC))
	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{Logger: logger.Nop()})
	defer bus.Close()

	deps := command.Deps{Locker: keylock.New(), Clock: clock, Events: bus}
	experienceRepo := memory.NewExperienceRepository()
	levels := memory.NewLevelRepository()
	addPoints := command.NewAddPointsHandler(experienceRepo, levels, nil, deps, command.DefaultPointsConfig())
	record := command.NewRecordActivityHandler(memory.NewStreakRepository(), deps, command.DefaultRecordActivityHandlerConfig())

	milestones := NewStreakMilestoneHandler(addPoints, map[int]int{2: 20, 3: 50, 4: 0}, logger.Nop())
	require.True(t, milestones.Enabled())
	require.NoError(t, bus.Subscribe(shared.EventStreakIncreased, milestones.Handle))

	for day := 0; day < 4; day++ {
		_, err := record.Handle(ctx, command.RecordActivityCommand{UserID: "u1", ActivityID: "login"})
		require.NoError(t, err)
		clock.AdvanceDays(1)
	}

	e, err := experienceRepo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 70, e.Points)
}

func TestStreakMilestoneHandler_PaysAgainAfterBreak(t *testing.T) {
	ctx := context.Background()
	clock := timeutil.NewFixedClock(time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC))
	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{Logger: logger.Nop()})
	defer bus.Close()

	deps := command.Deps{Locker: keylock.New(), Clock: clock, Events: bus}
	experienceRepo := memory.NewExperienceRepository()
	addPoints := command.NewAddPointsHandler(experienceRepo, memory.NewLevelRepository(), nil, deps, command.DefaultPointsConfig())
	record := command.NewRecordActivityHandler(memory.NewStreakRepository(), deps, command.DefaultRecordActivityHandlerConfig())

	milestones := NewStreakMilestoneHandler(addPoints, map[int]int{1: 5}, logger.Nop())
	for _, et := range []shared.EventType{shared.EventStreakStarted, shared.EventStreakIncreased, shared.EventStreakBroken} {
		require.NoError(t, bus.Subscribe(et, milestones.Handle))
	}

	_, err := record.Handle(ctx, command.RecordActivityCommand{UserID: "u1", ActivityID: "login"})
	require.NoError(t, err)
	clock.AdvanceDays(3)
	res, err := record.Handle(ctx, command.RecordActivityCommand{UserID: "u1", ActivityID: "login"})
	require.NoError(t, err)
	require.Equal(t, 1, res.Streak.Count)

	e, err := experienceRepo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 10, e.Points, "the restarted run pays its first milestone again")
}

func TestStreakMilestoneHandler_IgnoresOtherEvents(t *testing.T) {
	h := NewStreakMilestoneHandler(nil, map[int]int{1: 10}, logger.Nop())
	event := shared.NewPointsIncreasedEvent("u1", 5, 5, "", time.Now())
	assert.NoError(t, h.Handle(event))

	assert.False(t, NewStreakMilestoneHandler(nil, nil, logger.Nop()).Enabled())
}

func TestEventLogHandler(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Options{Output: &buf, Level: logger.LevelInfo})

	h := NewEventLogHandler(log)
	require.NoError(t, h.Handle(shared.NewUserLevelledUpEvent("u1", 1, 2, 120, time.Now())))

	out := buf.String()
	assert.Contains(t, out, `"event_type":"experience.level_up"`)
	assert.Contains(t, out, `"level":2`)
	assert.Contains(t, out, `"from_level":1`)
}
