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
// FREEZE / UNFREEZE STREAK
// ══════════════════════════════════════════════════════════════════════════════

// FreezeStreakCommand protects a streak for Days days from today.
type FreezeStreakCommand struct {
	UserID     string
	ActivityID string
	Days       int
}

// Validate validates the command.
func (c FreezeStreakCommand) Validate() error {
	if _, err := streak.NewKey(c.UserID, c.ActivityID); err != nil {
		return err
	}
	if c.Days <= 0 {
		return shared.ErrInvalidFreezeDuration
	}
	return nil
}

// FreezeStreakResult contains the frozen streak.
type FreezeStreakResult struct {
	Streak      *streak.Streak
	Days        int
	FrozenUntil time.Time
	Events      []shared.Event
}

// FreezeStreakHandler handles freeze and unfreeze commands.
type FreezeStreakHandler struct {
	repo        streak.Repository
	deps        Deps
	defaultDays int
}

// NewFreezeStreakHandler creates a handler. defaultDays backs HandleDefault.
func NewFreezeStreakHandler(repo streak.Repository, deps Deps, defaultDays int) *FreezeStreakHandler {
	if defaultDays <= 0 {
		defaultDays = 1
	}
	return &FreezeStreakHandler{repo: repo, deps: deps.withDefaults(), defaultDays: defaultDays}
}

// DefaultDays is the configured freeze duration.
func (h *FreezeStreakHandler) DefaultDays() int {
	return h.defaultDays
}

// HandleDefault freezes for the configured duration.
func (h *FreezeStreakHandler) HandleDefault(ctx context.Context, userID, activityID string) (*FreezeStreakResult, error) {
	return h.Handle(ctx, FreezeStreakCommand{UserID: userID, ActivityID: activityID, Days: h.defaultDays})
}

// Handle freezes an existing streak. The latest freeze wins.
func (h *FreezeStreakHandler) Handle(ctx context.Context, cmd FreezeStreakCommand) (_ *FreezeStreakResult, err error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("freeze_streak: validation failed: %w", err)
	}
	key, _ := streak.NewKey(cmd.UserID, cmd.ActivityID)

	ctx, span := startSpan(ctx, "streak.Freeze",
		attribute.String("user_id", string(key.UserID)),
		attribute.String("activity_id", string(key.ActivityID)),
		attribute.Int("days", cmd.Days),
	)
	defer func() { finishSpan(span, err) }()

	now := h.deps.Clock.Now()
	today := timeutil.StartOfDay(now)

	unlock, err := h.deps.lock(ctx, streakLockKey(key.UserID, key.ActivityID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	result := &FreezeStreakResult{Days: cmd.Days}
	err = h.repo.Atomic(ctx, key, func(ctx context.Context, tx streak.Tx) error {
		s, err := tx.Load(ctx)
		if err != nil {
			return err
		}
		until, err := s.Freeze(today, cmd.Days, now)
		if err != nil {
			return err
		}
		if err := tx.Save(ctx, s); err != nil {
			return err
		}
		result.Streak = s
		result.FrozenUntil = until
		result.Events = []shared.Event{shared.NewStreakFrozenEvent(s.Snapshot(), cmd.Days, until, now)}
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.deps.Logger.WithSpan(ctx).Info("streak frozen",
		logger.UserID(string(key.UserID)),
		logger.ActivityID(string(key.ActivityID)),
		logger.Date("frozen_until", result.FrozenUntil),
	)

	h.deps.emit(ctx, result.Events)
	return result, nil
}

// UnfreezeStreakCommand lifts a freeze.
type UnfreezeStreakCommand struct {
	UserID     string
	ActivityID string
}

// Unfreeze clears the freeze of an existing streak.
func (h *FreezeStreakHandler) Unfreeze(ctx context.Context, cmd UnfreezeStreakCommand) (_ *streak.Streak, err error) {
	key, err := streak.NewKey(cmd.UserID, cmd.ActivityID)
	if err != nil {
		return nil, fmt.Errorf("unfreeze_streak: validation failed: %w", err)
	}

	ctx, span := startSpan(ctx, "streak.Unfreeze",
		attribute.String("user_id", string(key.UserID)),
		attribute.String("activity_id", string(key.ActivityID)),
	)
	defer func() { finishSpan(span, err) }()

	now := h.deps.Clock.Now()

	unlock, err := h.deps.lock(ctx, streakLockKey(key.UserID, key.ActivityID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var (
		out    *streak.Streak
		events []shared.Event
	)
	err = h.repo.Atomic(ctx, key, func(ctx context.Context, tx streak.Tx) error {
		s, err := tx.Load(ctx)
		if err != nil {
			return err
		}
		s.Unfreeze(now)
		if err := tx.Save(ctx, s); err != nil {
			return err
		}
		out = s
		events = []shared.Event{shared.NewStreakUnfrozeEvent(s.Snapshot(), now)}
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.deps.emit(ctx, events)
	return out, nil
}
