// Package memory implements the persistence ports in process memory. It
// backs the CLI's default driver and the application tests.
//
// Atomic sections run under the repository mutex and write back a staged
// copy only when the callback succeeds, so a failed section leaves no trace.
package memory

import (
	"context"
	"sync"

	"github.com/alem-hub/levelup/internal/domain/shared"
	"github.com/alem-hub/levelup/internal/domain/streak"
)

// StreakRepository stores streaks and archived runs.
type StreakRepository struct {
	mu      sync.Mutex
	streaks map[streak.Key]*streak.Streak
	history map[streak.Key][]streak.HistoryEntry
}

// NewStreakRepository creates an empty repository.
func NewStreakRepository() *StreakRepository {
	return &StreakRepository{
		streaks: make(map[streak.Key]*streak.Streak),
		history: make(map[streak.Key][]streak.HistoryEntry),
	}
}

func (r *StreakRepository) Get(ctx context.Context, key streak.Key) (*streak.Streak, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.streaks[key]
	if !ok {
		return nil, shared.ErrStreakNotFound
	}
	return s.Clone(), nil
}

func (r *StreakRepository) History(ctx context.Context, key streak.Key) ([]streak.HistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.history[key]
	out := make([]streak.HistoryEntry, len(entries))
	copy(out, entries)
	return out, nil
}

func (r *StreakRepository) Atomic(ctx context.Context, key streak.Key, fn func(ctx context.Context, tx streak.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tx := &streakTx{repo: r, key: key}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	if tx.dirty {
		r.streaks[key] = tx.current
	}
	if len(tx.history) > 0 {
		r.history[key] = append(r.history[key], tx.history...)
	}
	return nil
}

type streakTx struct {
	repo    *StreakRepository
	key     streak.Key
	current *streak.Streak
	dirty   bool
	history []streak.HistoryEntry
}

func (tx *streakTx) Load(ctx context.Context) (*streak.Streak, error) {
	if tx.current != nil {
		return tx.current.Clone(), nil
	}
	s, ok := tx.repo.streaks[tx.key]
	if !ok {
		return nil, shared.ErrStreakNotFound
	}
	return s.Clone(), nil
}

func (tx *streakTx) LoadOrCreate(ctx context.Context, seed *streak.Streak) (*streak.Streak, shared.LoadResult, error) {
	s, err := tx.Load(ctx)
	if err == nil {
		return s, shared.LoadExisting, nil
	}
	if !shared.IsNotFound(err) {
		return nil, shared.LoadExisting, err
	}
	if seed.Key() != tx.key {
		return nil, shared.LoadExisting, errKeyMismatch("streak", "LoadOrCreate")
	}
	tx.current = seed.Clone()
	tx.dirty = true
	return seed.Clone(), shared.LoadCreated, nil
}

func (tx *streakTx) Save(ctx context.Context, s *streak.Streak) error {
	if s.Key() != tx.key {
		return errKeyMismatch("streak", "Save")
	}
	if err := s.Validate(); err != nil {
		return err
	}
	tx.current = s.Clone()
	tx.dirty = true
	return nil
}

func (tx *streakTx) AppendHistory(ctx context.Context, entry streak.HistoryEntry) error {
	tx.history = append(tx.history, entry)
	return nil
}

func errKeyMismatch(domain, op string) error {
	return shared.NewDomainError(domain, op, shared.ErrInvalidInput, "entity does not belong to this transaction")
}
