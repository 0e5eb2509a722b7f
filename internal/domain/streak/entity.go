// Package streak models daily activity streaks: one running count per
// (user, activity) that grows on consecutive days, survives missed days
// while frozen, and is archived when it breaks.
//
// The transitions here are pure. Persistence, locking and event emission
// live in the application layer.
package streak

import (
	"time"

	"github.com/alem-hub/levelup/internal/domain/shared"
	"github.com/alem-hub/levelup/pkg/timeutil"
	"github.com/google/uuid"
)

// ══════════════════════════════════════════════════════════════════════════════
// KEY
// ══════════════════════════════════════════════════════════════════════════════

// Key identifies a streak.
type Key struct {
	UserID     shared.UserID
	ActivityID shared.ActivityID
}

// NewKey validates both identifiers.
func NewKey(userID, activityID string) (Key, error) {
	u, err := shared.NewUserID(userID)
	if err != nil {
		return Key{}, err
	}
	a, err := shared.NewActivityID(activityID)
	if err != nil {
		return Key{}, err
	}
	return Key{UserID: u, ActivityID: a}, nil
}

func (k Key) String() string {
	return string(k.UserID) + ":" + string(k.ActivityID)
}

// ══════════════════════════════════════════════════════════════════════════════
// STREAK
// ══════════════════════════════════════════════════════════════════════════════

// Streak is the running count for one (user, activity).
//
// Invariants: Count >= 1 and LastActivityAt is not before StartedAt. All
// dates are calendar days.
type Streak struct {
	ID             string
	UserID         shared.UserID
	ActivityID     shared.ActivityID
	Count          int
	StartedAt      time.Time
	LastActivityAt time.Time
	FrozenUntil    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// New starts a streak of one on today.
func New(key Key, today, now time.Time) *Streak {
	day := timeutil.StartOfDay(today)
	return &Streak{
		ID:             uuid.NewString(),
		UserID:         key.UserID,
		ActivityID:     key.ActivityID,
		Count:          1,
		StartedAt:      day,
		LastActivityAt: day,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Key returns the streak's identity.
func (s *Streak) Key() Key {
	return Key{UserID: s.UserID, ActivityID: s.ActivityID}
}

// Clone returns a deep copy.
func (s *Streak) Clone() *Streak {
	c := *s
	if s.FrozenUntil != nil {
		until := *s.FrozenUntil
		c.FrozenUntil = &until
	}
	return &c
}

// Snapshot is the event view of the streak.
func (s *Streak) Snapshot() shared.StreakSnapshot {
	snap := shared.StreakSnapshot{
		UserID:         s.UserID,
		ActivityID:     s.ActivityID,
		Count:          s.Count,
		StartedAt:      s.StartedAt,
		LastActivityAt: s.LastActivityAt,
	}
	if s.FrozenUntil != nil {
		until := *s.FrozenUntil
		snap.FrozenUntil = &until
	}
	return snap
}

// Validate checks the entity invariants.
func (s *Streak) Validate() error {
	if s.Count < 1 {
		return shared.NewDomainError("streak", "Validate", shared.ErrInvalidState, "count must be at least one")
	}
	if timeutil.DaysBetween(s.StartedAt, s.LastActivityAt) < 0 {
		return shared.NewDomainError("streak", "Validate", shared.ErrInvalidState, "last activity precedes streak start")
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// TRANSITIONS
// ══════════════════════════════════════════════════════════════════════════════

// Transition is what a recorded activity did to a streak.
type Transition int

const (
	TransitionUnchanged Transition = iota
	TransitionStarted
	TransitionIncreased
	TransitionBroken
)

func (t Transition) String() string {
	switch t {
	case TransitionStarted:
		return "started"
	case TransitionIncreased:
		return "increased"
	case TransitionBroken:
		return "broken"
	default:
		return "unchanged"
	}
}

// RecordOutcome describes the effect of Record.
type RecordOutcome struct {
	Transition Transition
	// Gap is the number of calendar days since the previous activity.
	Gap           int
	PreviousCount int
	// FreezeUsed is set when a freeze absorbed missed days.
	FreezeUsed bool
	// Archived is the finished run when the streak broke.
	Archived *HistoryEntry
}

// Record applies an activity on today.
//
// Same day is a no-op. The next day, or any later day while still frozen,
// extends the streak. Any other gap archives the run and restarts at one.
// A date before the last activity is rejected without mutation.
func (s *Streak) Record(today, now time.Time) (RecordOutcome, error) {
	day := timeutil.StartOfDay(today)
	gap := timeutil.DaysBetween(s.LastActivityAt, day)

	switch {
	case gap < 0:
		return RecordOutcome{}, shared.ErrActivityBeforeLast
	case gap == 0:
		return RecordOutcome{Transition: TransitionUnchanged}, nil
	case gap == 1:
		prev := s.Count
		s.advance(day, now)
		return RecordOutcome{Transition: TransitionIncreased, Gap: gap, PreviousCount: prev}, nil
	case s.IsFrozenOn(day):
		prev := s.Count
		s.advance(day, now)
		return RecordOutcome{Transition: TransitionIncreased, Gap: gap, PreviousCount: prev, FreezeUsed: true}, nil
	default:
		entry := NewHistoryEntry(s, now)
		prev := s.Count
		s.restart(day, now)
		return RecordOutcome{Transition: TransitionBroken, Gap: gap, PreviousCount: prev, Archived: &entry}, nil
	}
}

// Freeze protects the streak until today+days. A later freeze overwrites
// an earlier one.
func (s *Streak) Freeze(today time.Time, days int, now time.Time) (time.Time, error) {
	if days <= 0 {
		return time.Time{}, shared.ErrInvalidFreezeDuration
	}
	until := timeutil.AddDays(today, days)
	s.FrozenUntil = &until
	s.UpdatedAt = now
	return until, nil
}

// Unfreeze clears any freeze.
func (s *Streak) Unfreeze(now time.Time) {
	s.FrozenUntil = nil
	s.UpdatedAt = now
}

// Reset restarts the streak at one on today without archiving.
func (s *Streak) Reset(today, now time.Time) {
	s.restart(timeutil.StartOfDay(today), now)
}

// IsFrozenOn reports whether day falls on or before FrozenUntil.
func (s *Streak) IsFrozenOn(day time.Time) bool {
	return s.FrozenUntil != nil && timeutil.DaysBetween(day, *s.FrozenUntil) >= 0
}

// HasActivityOn reports whether the last activity was on day.
func (s *Streak) HasActivityOn(day time.Time) bool {
	return timeutil.IsSameDay(s.LastActivityAt, day)
}

func (s *Streak) advance(day, now time.Time) {
	s.Count++
	s.LastActivityAt = day
	if s.FrozenUntil != nil && timeutil.DaysBetween(*s.FrozenUntil, day) > 0 {
		s.FrozenUntil = nil
	}
	s.UpdatedAt = now
}

func (s *Streak) restart(day, now time.Time) {
	s.Count = 1
	s.StartedAt = day
	s.LastActivityAt = day
	s.FrozenUntil = nil
	s.UpdatedAt = now
}

// ══════════════════════════════════════════════════════════════════════════════
// HISTORY
// ══════════════════════════════════════════════════════════════════════════════

// HistoryEntry is an archived, finished run.
type HistoryEntry struct {
	ID         string
	UserID     shared.UserID
	ActivityID shared.ActivityID
	Count      int
	StartedAt  time.Time
	EndedAt    time.Time
	ArchivedAt time.Time
}

// NewHistoryEntry captures s as a finished run ending on its last activity.
func NewHistoryEntry(s *Streak, now time.Time) HistoryEntry {
	return HistoryEntry{
		ID:         uuid.NewString(),
		UserID:     s.UserID,
		ActivityID: s.ActivityID,
		Count:      s.Count,
		StartedAt:  s.StartedAt,
		EndedAt:    s.LastActivityAt,
		ArchivedAt: now,
	}
}
