package command

import (
	"context"
	"fmt"

	"github.com/alem-hub/levelup/internal/domain/experience"
	"github.com/alem-hub/levelup/internal/domain/shared"
	"github.com/alem-hub/levelup/pkg/logger"
	"go.opentelemetry.io/otel/attribute"
)

// DeductPointsCommand removes points from an existing record.
type DeductPointsCommand struct {
	UserID string
	Amount int
	Reason string
}

// Validate validates the command.
func (c DeductPointsCommand) Validate() error {
	if _, err := shared.NewUserID(c.UserID); err != nil {
		return err
	}
	if c.Amount <= 0 {
		return shared.ErrNonPositiveAmount
	}
	return nil
}

// DeductPointsResult contains the result of a deduction.
type DeductPointsResult struct {
	Experience *experience.Experience
	Requested  int
	Deducted   int
	Events     []shared.Event
}

// DeductPointsHandler handles DeductPointsCommand.
type DeductPointsHandler struct {
	repo   experience.Repository
	deps   Deps
	config PointsConfig
}

// NewDeductPointsHandler creates a new DeductPointsHandler.
func NewDeductPointsHandler(repo experience.Repository, deps Deps, config PointsConfig) *DeductPointsHandler {
	return &DeductPointsHandler{repo: repo, deps: deps.withDefaults(), config: config}
}

// Handle executes the deduction. Levels are never lowered.
func (h *DeductPointsHandler) Handle(ctx context.Context, cmd DeductPointsCommand) (_ *DeductPointsResult, err error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("deduct_points: validation failed: %w", err)
	}
	userID := shared.UserID(cmd.UserID)

	ctx, span := startSpan(ctx, "experience.DeductPoints",
		attribute.String("user_id", cmd.UserID),
		attribute.Int("amount", cmd.Amount),
	)
	defer func() { finishSpan(span, err) }()

	now := h.deps.Clock.Now()

	unlock, err := h.deps.lock(ctx, experienceLockKey(userID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	result := &DeductPointsResult{Requested: cmd.Amount}
	err = h.repo.Atomic(ctx, userID, func(ctx context.Context, tx experience.Tx) error {
		rec, err := tx.Load(ctx)
		if err != nil {
			return err
		}

		deducted := h.config.Rules.DeductFrom(rec, cmd.Amount)
		result.Experience = rec
		result.Deducted = deducted
		if deducted == 0 {
			return nil
		}

		rec.UpdatedAt = now
		if err := tx.Save(ctx, rec); err != nil {
			return err
		}
		result.Events = []shared.Event{
			shared.NewPointsDecreasedEvent(userID, deducted, rec.Points, cmd.Reason, now),
		}

		if h.config.AuditEnabled {
			return tx.AppendAudit(ctx, experience.NewAudit(userID, experience.AuditRemove, deducted, cmd.Reason, now))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.deps.Logger.WithSpan(ctx).Debug("points deducted",
		logger.UserID(cmd.UserID),
		logger.Points(result.Deducted),
		logger.Int("total", result.Experience.Points),
	)

	h.deps.emit(ctx, result.Events)
	return result, nil
}
