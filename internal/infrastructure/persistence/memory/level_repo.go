package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/alem-hub/levelup/internal/domain/level"
	"github.com/alem-hub/levelup/internal/domain/shared"
)

// ErrDuplicateKey is the uniqueness violation wrapped by level conflicts.
var ErrDuplicateKey = errors.New("memory: duplicate key")

// LevelRepository stores the level catalog.
type LevelRepository struct {
	mu     sync.RWMutex
	levels map[int]level.Level
}

// NewLevelRepository creates an empty catalog.
func NewLevelRepository() *LevelRepository {
	return &LevelRepository{levels: make(map[int]level.Level)}
}

func (r *LevelRepository) Add(ctx context.Context, lvl level.Level) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.levels[lvl.Number]; ok {
		return &level.AlreadyExistsError{Level: lvl.Number, Err: ErrDuplicateKey}
	}
	r.levels[lvl.Number] = lvl
	return nil
}

func (r *LevelRepository) Get(ctx context.Context, number int) (level.Level, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lvl, ok := r.levels[number]
	if !ok {
		return level.Level{}, shared.ErrLevelNotFound
	}
	return lvl, nil
}

func (r *LevelRepository) List(ctx context.Context) ([]level.Level, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]level.Level, 0, len(r.levels))
	for _, lvl := range r.levels {
		out = append(out, lvl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}
