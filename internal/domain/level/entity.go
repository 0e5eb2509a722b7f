// Package level defines the level catalog: an ordered set of levels, each
// with the points a user must hold to reach it.
package level

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/alem-hub/levelup/internal/domain/shared"
)

// Level is one rung of the catalog. PointsToNextLevel is the threshold for
// reaching this level from the one below it.
type Level struct {
	Number            int
	PointsToNextLevel int
	CreatedAt         time.Time
}

// New validates a level definition.
func New(number, pointsToNextLevel int, now time.Time) (Level, error) {
	if number <= 0 {
		return Level{}, shared.ErrInvalidLevelNumber
	}
	if pointsToNextLevel < 0 {
		return Level{}, shared.ErrInvalidThreshold
	}
	return Level{Number: number, PointsToNextLevel: pointsToNextLevel, CreatedAt: now}, nil
}

// AlreadyExistsError reports a duplicate level number. Err carries the
// store's uniqueness violation.
type AlreadyExistsError struct {
	Level int
	Err   error
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("level %d already exists", e.Level)
}

func (e *AlreadyExistsError) Unwrap() error { return e.Err }

func (e *AlreadyExistsError) Is(target error) bool {
	return target == shared.ErrAlreadyExists
}

// Ladder is an immutable, ordered view of the catalog.
type Ladder struct {
	levels []Level
}

// NewLadder sorts a copy of levels by number.
func NewLadder(levels []Level) Ladder {
	sorted := make([]Level, len(levels))
	copy(sorted, levels)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Number < sorted[j].Number })
	return Ladder{levels: sorted}
}

// Next returns the smallest level strictly above n.
func (l Ladder) Next(n int) (Level, bool) {
	i := sort.Search(len(l.levels), func(i int) bool { return l.levels[i].Number > n })
	if i == len(l.levels) {
		return Level{}, false
	}
	return l.levels[i], true
}

// Get returns level n.
func (l Ladder) Get(n int) (Level, bool) {
	i := sort.Search(len(l.levels), func(i int) bool { return l.levels[i].Number >= n })
	if i < len(l.levels) && l.levels[i].Number == n {
		return l.levels[i], true
	}
	return Level{}, false
}

// Levels returns a copy of the ordered levels.
func (l Ladder) Levels() []Level {
	out := make([]Level, len(l.levels))
	copy(out, l.levels)
	return out
}

func (l Ladder) Len() int { return len(l.levels) }

// Repository persists the catalog.
type Repository interface {
	// Add returns *AlreadyExistsError when the number is taken.
	Add(ctx context.Context, lvl Level) error
	// Get returns shared.ErrLevelNotFound when absent.
	Get(ctx context.Context, number int) (Level, error)
	// List returns every level ordered by number.
	List(ctx context.Context) ([]Level, error)
}
