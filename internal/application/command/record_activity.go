package command

import (
	"context"
	"fmt"
	"time"

	"github.com/alem-hub/levelup/internal/domain/shared"
	"github.com/alem-hub/levelup/internal/domain/streak"
	"github.com/alem-hub/levelup/pkg/logger"
	"github.com/alem-hub/levelup/pkg/timeutil"
	"go.opentelemetry.io/otel/attribute"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD ACTIVITY COMMAND
// Records that a user did an activity today and advances the streak.
// ══════════════════════════════════════════════════════════════════════════════

// RecordActivityCommand contains the data to record an activity.
type RecordActivityCommand struct {
	UserID     string
	ActivityID string
}

// Validate validates the command.
func (c RecordActivityCommand) Validate() error {
	_, err := streak.NewKey(c.UserID, c.ActivityID)
	return err
}

// RecordActivityResult contains the result of recording an activity.
type RecordActivityResult struct {
	Streak     *streak.Streak
	Transition streak.Transition

	// PreviousCount is the count before this activity.
	PreviousCount int

	FreezeUsed bool

	// Archived is the run closed by a break, when history is enabled.
	Archived *streak.HistoryEntry

	Events     []shared.Event
	RecordedAt time.Time
}

// RecordActivityHandlerConfig contains configuration for the handler.
type RecordActivityHandlerConfig struct {
	ArchiveHistory bool
}

// DefaultRecordActivityHandlerConfig returns default configuration.
func DefaultRecordActivityHandlerConfig() RecordActivityHandlerConfig {
	return RecordActivityHandlerConfig{ArchiveHistory: true}
}

// RecordActivityHandler handles the RecordActivityCommand.
type RecordActivityHandler struct {
	repo   streak.Repository
	deps   Deps
	config RecordActivityHandlerConfig
}

// NewRecordActivityHandler creates a new RecordActivityHandler.
func NewRecordActivityHandler(repo streak.Repository, deps Deps, config RecordActivityHandlerConfig) *RecordActivityHandler {
	return &RecordActivityHandler{
		repo:   repo,
		deps:   deps.withDefaults(),
		config: config,
	}
}

// Handle executes the record activity command.
func (h *RecordActivityHandler) Handle(ctx context.Context, cmd RecordActivityCommand) (_ *RecordActivityResult, err error) {
	key, err := streak.NewKey(cmd.UserID, cmd.ActivityID)
	if err != nil {
		return nil, fmt.Errorf("record_activity: validation failed: %w", err)
	}

	ctx, span := startSpan(ctx, "streak.RecordActivity",
		attribute.String("user_id", string(key.UserID)),
		attribute.String("activity_id", string(key.ActivityID)),
	)
	defer func() { finishSpan(span, err) }()

	now := h.deps.Clock.Now()
	today := timeutil.StartOfDay(now)

	unlock, err := h.deps.lock(ctx, streakLockKey(key.UserID, key.ActivityID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	result := &RecordActivityResult{RecordedAt: now}

	err = h.repo.Atomic(ctx, key, func(ctx context.Context, tx streak.Tx) error {
		s, loaded, err := tx.LoadOrCreate(ctx, streak.New(key, today, now))
		if err != nil {
			return err
		}

		if loaded == shared.LoadCreated {
			result.Streak = s
			result.Transition = streak.TransitionStarted
			result.Events = append(result.Events, shared.NewStreakStartedEvent(s.Snapshot(), now))
			return nil
		}

		outcome, err := s.Record(today, now)
		if err != nil {
			return err
		}

		result.Streak = s
		result.Transition = outcome.Transition
		result.PreviousCount = outcome.PreviousCount
		result.FreezeUsed = outcome.FreezeUsed

		switch outcome.Transition {
		case streak.TransitionUnchanged:
			return nil

		case streak.TransitionIncreased:
			result.Events = append(result.Events,
				shared.NewStreakIncreasedEvent(s.Snapshot(), outcome.FreezeUsed, now))

		case streak.TransitionBroken:
			if h.config.ArchiveHistory && outcome.Archived != nil {
				if err := tx.AppendHistory(ctx, *outcome.Archived); err != nil {
					return err
				}
				result.Archived = outcome.Archived
			}
			result.Events = append(result.Events,
				shared.NewStreakBrokenEvent(s.Snapshot(), outcome.PreviousCount, outcome.Gap-1, now))
		}

		return tx.Save(ctx, s)
	})
	if err != nil {
		return nil, err
	}

	h.deps.Logger.WithSpan(ctx).Debug("activity recorded",
		logger.UserID(string(key.UserID)),
		logger.ActivityID(string(key.ActivityID)),
		logger.String("transition", result.Transition.String()),
		logger.StreakCount(result.Streak.Count),
	)

	h.deps.emit(ctx, result.Events)
	return result, nil
}
