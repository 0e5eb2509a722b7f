package streak

import (
	"context"

	"github.com/alem-hub/levelup/internal/domain/shared"
)

// Repository persists streaks and their archived runs.
type Repository interface {
	// Get returns shared.ErrStreakNotFound when no streak exists.
	Get(ctx context.Context, key Key) (*Streak, error)

	// History returns archived runs, oldest first.
	History(ctx context.Context, key Key) ([]HistoryEntry, error)

	// Atomic runs fn inside one transaction scoped to key. Nothing fn
	// wrote is visible if it returns an error.
	Atomic(ctx context.Context, key Key, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the transactional view of one streak.
type Tx interface {
	// Load returns shared.ErrStreakNotFound when no streak exists.
	Load(ctx context.Context) (*Streak, error)

	// LoadOrCreate inserts seed when no streak exists. The result tells
	// which happened; on LoadCreated the returned streak equals seed.
	LoadOrCreate(ctx context.Context, seed *Streak) (*Streak, shared.LoadResult, error)

	Save(ctx context.Context, s *Streak) error

	AppendHistory(ctx context.Context, entry HistoryEntry) error
}
