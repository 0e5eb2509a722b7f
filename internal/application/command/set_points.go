package command

import (
	"context"
	"fmt"

	"github.com/alem-hub/levelup/internal/domain/experience"
	"github.com/alem-hub/levelup/internal/domain/shared"
	"github.com/alem-hub/levelup/pkg/logger"
	"go.opentelemetry.io/otel/attribute"
)

// SetPointsCommand overwrites a user's points.
type SetPointsCommand struct {
	UserID string
	Points int
	Reason string
}

// Validate validates the command.
func (c SetPointsCommand) Validate() error {
	if _, err := shared.NewUserID(c.UserID); err != nil {
		return err
	}
	if c.Points < 0 {
		return shared.ErrNegativePoints
	}
	return nil
}

// SetPointsHandler handles SetPointsCommand. It emits no event and does
// not evaluate level-ups.
type SetPointsHandler struct {
	repo   experience.Repository
	deps   Deps
	config PointsConfig
}

// NewSetPointsHandler creates a new SetPointsHandler.
func NewSetPointsHandler(repo experience.Repository, deps Deps, config PointsConfig) *SetPointsHandler {
	return &SetPointsHandler{repo: repo, deps: deps.withDefaults(), config: config}
}

// Handle overwrites the points of an existing record.
func (h *SetPointsHandler) Handle(ctx context.Context, cmd SetPointsCommand) (_ *experience.Experience, err error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("set_points: validation failed: %w", err)
	}
	userID := shared.UserID(cmd.UserID)

	ctx, span := startSpan(ctx, "experience.SetPoints",
		attribute.String("user_id", cmd.UserID),
		attribute.Int("points", cmd.Points),
	)
	defer func() { finishSpan(span, err) }()

	now := h.deps.Clock.Now()

	unlock, err := h.deps.lock(ctx, experienceLockKey(userID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var out *experience.Experience
	err = h.repo.Atomic(ctx, userID, func(ctx context.Context, tx experience.Tx) error {
		rec, err := tx.Load(ctx)
		if err != nil {
			return err
		}
		rec.Points = cmd.Points
		rec.UpdatedAt = now
		if err := tx.Save(ctx, rec); err != nil {
			return err
		}
		out = rec

		if h.config.AuditEnabled {
			return tx.AppendAudit(ctx, experience.NewAudit(userID, experience.AuditReset, cmd.Points, cmd.Reason, now))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.deps.Logger.WithSpan(ctx).Info("points overwritten",
		logger.UserID(cmd.UserID),
		logger.Points(cmd.Points),
	)
	return out, nil
}
