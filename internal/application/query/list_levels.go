package query

import (
	"context"

	"github.com/alem-hub/levelup/internal/domain/level"
	"github.com/alem-hub/levelup/internal/domain/shared"
)

// LevelQueryHandler answers catalog reads.
type LevelQueryHandler struct {
	repo level.Repository
}

// NewLevelQueryHandler creates a new LevelQueryHandler.
func NewLevelQueryHandler(repo level.Repository) *LevelQueryHandler {
	return &LevelQueryHandler{repo: repo}
}

// List returns the catalog ordered by number.
func (h *LevelQueryHandler) List(ctx context.Context) ([]level.Level, error) {
	levels, err := h.repo.List(ctx)
	if err != nil {
		return nil, shared.StorageError("level", "List", err)
	}
	return levels, nil
}

// Get returns level n or shared.ErrLevelNotFound.
func (h *LevelQueryHandler) Get(ctx context.Context, n int) (level.Level, error) {
	return h.repo.Get(ctx, n)
}

// Next returns the smallest level above n. ok is false at the top.
func (h *LevelQueryHandler) Next(ctx context.Context, n int) (lvl level.Level, ok bool, err error) {
	levels, err := h.List(ctx)
	if err != nil {
		return level.Level{}, false, err
	}
	lvl, ok = level.NewLadder(levels).Next(n)
	return lvl, ok, nil
}
