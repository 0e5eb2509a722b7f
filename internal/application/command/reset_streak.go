package command

import (
	"context"
	"fmt"

	"github.com/alem-hub/levelup/internal/domain/streak"
	"github.com/alem-hub/levelup/pkg/logger"
	"github.com/alem-hub/levelup/pkg/timeutil"
	"go.opentelemetry.io/otel/attribute"
)

// ResetStreakCommand restarts a streak at one on today.
type ResetStreakCommand struct {
	UserID     string
	ActivityID string
}

// ResetStreakHandler handles ResetStreakCommand. A reset is administrative:
// nothing is archived and no event is emitted.
type ResetStreakHandler struct {
	repo streak.Repository
	deps Deps
}

// NewResetStreakHandler creates a new ResetStreakHandler.
func NewResetStreakHandler(repo streak.Repository, deps Deps) *ResetStreakHandler {
	return &ResetStreakHandler{repo: repo, deps: deps.withDefaults()}
}

// Handle resets an existing streak.
func (h *ResetStreakHandler) Handle(ctx context.Context, cmd ResetStreakCommand) (_ *streak.Streak, err error) {
	key, err := streak.NewKey(cmd.UserID, cmd.ActivityID)
	if err != nil {
		return nil, fmt.Errorf("reset_streak: validation failed: %w", err)
	}

	ctx, span := startSpan(ctx, "streak.Reset",
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

	var out *streak.Streak
	err = h.repo.Atomic(ctx, key, func(ctx context.Context, tx streak.Tx) error {
		s, err := tx.Load(ctx)
		if err != nil {
			return err
		}
		s.Reset(timeutil.StartOfDay(now), now)
		out = s
		return tx.Save(ctx, s)
	})
	if err != nil {
		return nil, err
	}

	h.deps.Logger.WithSpan(ctx).Info("streak reset",
		logger.UserID(string(key.UserID)),
		logger.ActivityID(string(key.ActivityID)),
	)
	return out, nil
}
