package command

import (
	"context"
	"fmt"
	"time"

	"github.com/alem-hub/levelup/internal/domain/experience"
	"github.com/alem-hub/levelup/internal/domain/level"
	"github.com/alem-hub/levelup/internal/domain/shared"
	"github.com/alem-hub/levelup/pkg/logger"
	"go.opentelemetry.io/otel/attribute"
)

// ══════════════════════════════════════════════════════════════════════════════
// ADD POINTS COMMAND
// Credits experience, applies multipliers and the level cap, then climbs
// the level ladder.
// ══════════════════════════════════════════════════════════════════════════════

// PointsConfig configures every points handler.
type PointsConfig struct {
	Rules             experience.Rules
	MultiplierEnabled bool
	AuditEnabled      bool
}

// DefaultPointsConfig returns default configuration.
func DefaultPointsConfig() PointsConfig {
	return PointsConfig{
		Rules:             experience.DefaultRules(),
		MultiplierEnabled: true,
	}
}

// AddPointsCommand contains the data to credit points.
type AddPointsCommand struct {
	UserID string
	Amount int
	Reason string
}

// Validate validates the command.
func (c AddPointsCommand) Validate() error {
	if _, err := shared.NewUserID(c.UserID); err != nil {
		return err
	}
	if c.Amount <= 0 {
		return shared.ErrNonPositiveAmount
	}
	return nil
}

// AddPointsResult contains the result of crediting points.
type AddPointsResult struct {
	Experience *experience.Experience

	// Created is set when this call created the record. The first
	// addition is stored as-is: no multiplier and no PointsIncreased.
	Created bool

	Requested int
	Credited  int
	Discarded int
	LevelUps  []experience.LevelUp
	Events    []shared.Event
}

// AddPointsHandler handles the AddPointsCommand.
type AddPointsHandler struct {
	repo       experience.Repository
	levels     level.Repository
	multiplier experience.Resolver
	deps       Deps
	config     PointsConfig
}

// NewAddPointsHandler creates a new AddPointsHandler. A nil multiplier
// credits raw amounts.
func NewAddPointsHandler(
	repo experience.Repository,
	levels level.Repository,
	multiplier experience.Resolver,
	deps Deps,
	config PointsConfig,
) *AddPointsHandler {
	return &AddPointsHandler{
		repo:       repo,
		levels:     levels,
		multiplier: multiplier,
		deps:       deps.withDefaults(),
		config:     config,
	}
}

// Handle executes the add points command.
func (h *AddPointsHandler) Handle(ctx context.Context, cmd AddPointsCommand) (_ *AddPointsResult, err error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("add_points: validation failed: %w", err)
	}
	userID := shared.UserID(cmd.UserID)

	ctx, span := startSpan(ctx, "experience.AddPoints",
		attribute.String("user_id", cmd.UserID),
		attribute.Int("amount", cmd.Amount),
	)
	defer func() { finishSpan(span, err) }()

	now := h.deps.Clock.Now()

	levels, err := h.levels.List(ctx)
	if err != nil {
		return nil, shared.StorageError("level", "List", err)
	}
	ladder := level.NewLadder(levels)
	rules := h.config.Rules

	unlock, err := h.deps.lock(ctx, experienceLockKey(userID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	result := &AddPointsResult{Requested: cmd.Amount}

	err = h.repo.Atomic(ctx, userID, func(ctx context.Context, tx experience.Tx) error {
		rec, loaded, err := tx.LoadOrCreate(ctx, experience.New(userID, rules.StartingLevel, now))
		if err != nil {
			return err
		}
		result.Created = loaded == shared.LoadCreated

		amount := cmd.Amount
		if !result.Created && h.config.MultiplierEnabled && h.multiplier != nil {
			amount, err = h.multiplier.Resolve(ctx, userID, cmd.Amount)
			if err != nil {
				return err
			}
			if amount < 0 {
				return shared.ErrMultiplierResult
			}
		}

		var outcome experience.AddOutcome
		if result.Created {
			outcome = rules.Seed(rec, amount, ladder)
		} else {
			outcome = rules.Add(rec, amount, ladder)
		}
		result.Experience = rec
		result.Credited = outcome.Credited
		result.Discarded = outcome.Discarded
		result.LevelUps = outcome.LevelUps

		if !outcome.Changed() {
			return nil
		}
		rec.UpdatedAt = now
		if err := tx.Save(ctx, rec); err != nil {
			return err
		}

		if !result.Created && outcome.Credited > 0 {
			result.Events = append(result.Events,
				shared.NewPointsIncreasedEvent(userID, outcome.Credited, outcome.Total, cmd.Reason, now))
		}
		for _, up := range outcome.LevelUps {
			result.Events = append(result.Events,
				shared.NewUserLevelledUpEvent(userID, up.From, up.To, rec.Points, now))
		}

		if h.config.AuditEnabled {
			return appendAudits(ctx, tx, auditsForAddition(userID, outcome, cmd.Reason, now))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log := h.deps.Logger.WithSpan(ctx).With(logger.UserID(cmd.UserID))
	log.Debug("points added",
		logger.Points(result.Credited),
		logger.Int("discarded", result.Discarded),
		logger.Int("total", result.Experience.Points),
	)
	for _, up := range result.LevelUps {
		log.Info("user levelled up", logger.Int("from", up.From), logger.LevelNumber(up.To))
	}

	h.deps.emit(ctx, result.Events)
	return result, nil
}

func auditsForAddition(userID shared.UserID, outcome experience.AddOutcome, reason string, now time.Time) []experience.Audit {
	var audits []experience.Audit
	if outcome.Credited > 0 {
		audits = append(audits, experience.NewAudit(userID, experience.AuditAdd, outcome.Credited, reason, now))
	}
	for _, up := range outcome.LevelUps {
		audits = append(audits, experience.NewAudit(userID, experience.AuditLevelUp, up.To, reason, now))
	}
	return audits
}

func appendAudits(ctx context.Context, tx experience.Tx, audits []experience.Audit) error {
	for _, a := range audits {
		if err := tx.AppendAudit(ctx, a); err != nil {
			return err
		}
	}
	return nil
}
