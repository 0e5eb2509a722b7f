package command

import (
	"context"
	"fmt"

	"github.com/alem-hub/levelup/internal/domain/level"
	"github.com/alem-hub/levelup/pkg/logger"
	"go.opentelemetry.io/otel/attribute"
)

// AddLevelCommand defines a catalog level.
type AddLevelCommand struct {
	Level             int
	PointsToNextLevel int
}

// AddLevelHandler adds levels to the catalog.
type AddLevelHandler struct {
	repo level.Repository
	deps Deps
}

// NewAddLevelHandler creates a new AddLevelHandler.
func NewAddLevelHandler(repo level.Repository, deps Deps) *AddLevelHandler {
	return &AddLevelHandler{repo: repo, deps: deps.withDefaults()}
}

// Handle adds one level. A taken number yields *level.AlreadyExistsError.
func (h *AddLevelHandler) Handle(ctx context.Context, cmd AddLevelCommand) (_ level.Level, err error) {
	ctx, span := startSpan(ctx, "level.Add", attribute.Int("level", cmd.Level))
	defer func() { finishSpan(span, err) }()

	lvl, err := level.New(cmd.Level, cmd.PointsToNextLevel, h.deps.Clock.Now())
	if err != nil {
		return level.Level{}, fmt.Errorf("add_level: validation failed: %w", err)
	}

	if err := h.repo.Add(ctx, lvl); err != nil {
		return level.Level{}, err
	}

	h.deps.Logger.WithSpan(ctx).Info("level added",
		logger.LevelNumber(lvl.Number),
		logger.Points(lvl.PointsToNextLevel),
	)
	return lvl, nil
}

// HandleBatch adds levels in order and stops at the first failure. Levels
// added before the failure stay.
func (h *AddLevelHandler) HandleBatch(ctx context.Context, cmds []AddLevelCommand) ([]level.Level, error) {
	added := make([]level.Level, 0, len(cmds))
	for _, cmd := range cmds {
		lvl, err := h.Handle(ctx, cmd)
		if err != nil {
			return added, err
		}
		added = append(added, lvl)
	}
	return added, nil
}
