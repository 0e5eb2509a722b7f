// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"time"

	"github.com/alem-hub/levelup/internal/domain/shared"
	"github.com/alem-hub/levelup/internal/domain/streak"
	"github.com/alem-hub/levelup/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// STREAK QUERIES
// An absent streak is a legitimate state: the scalar queries answer zero
// values for it, only GetStreak reports NotFound.
// ══════════════════════════════════════════════════════════════════════════════

// StreakDTO is the read view of one streak.
type StreakDTO struct {
	UserID         string     `json:"user_id"`
	ActivityID     string     `json:"activity_id"`
	Count          int        `json:"count"`
	StartedAt      time.Time  `json:"started_at"`
	LastActivityAt time.Time  `json:"last_activity_at"`
	FrozenUntil    *time.Time `json:"frozen_until,omitempty"`
	ActiveToday    bool       `json:"active_today"`
	Frozen         bool       `json:"frozen"`
}

// HistoryEntryDTO is one archived run.
type HistoryEntryDTO struct {
	Count     int       `json:"count"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// StreakQueryHandler answers streak reads.
type StreakQueryHandler struct {
	repo  streak.Repository
	clock timeutil.Clock
}

// NewStreakQueryHandler creates a new StreakQueryHandler.
func NewStreakQueryHandler(repo streak.Repository, clock timeutil.Clock) *StreakQueryHandler {
	if clock == nil {
		clock = timeutil.NewSystemClock(nil)
	}
	return &StreakQueryHandler{repo: repo, clock: clock}
}

// GetStreak returns the streak or shared.ErrStreakNotFound.
func (h *StreakQueryHandler) GetStreak(ctx context.Context, userID, activityID string) (*StreakDTO, error) {
	s, err := h.load(ctx, userID, activityID)
	if err != nil {
		return nil, err
	}
	today := timeutil.Today(h.clock)
	return &StreakDTO{
		UserID:         string(s.UserID),
		ActivityID:     string(s.ActivityID),
		Count:          s.Count,
		StartedAt:      s.StartedAt,
		LastActivityAt: s.LastActivityAt,
		FrozenUntil:    s.FrozenUntil,
		ActiveToday:    s.HasActivityOn(today),
		Frozen:         s.IsFrozenOn(today),
	}, nil
}

// CurrentStreakCount returns the count, or 0 when absent.
func (h *StreakQueryHandler) CurrentStreakCount(ctx context.Context, userID, activityID string) (int, error) {
	s, err := h.load(ctx, userID, activityID)
	if shared.IsNotFound(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return s.Count, nil
}

// HasStreakToday reports whether the activity was recorded today.
func (h *StreakQueryHandler) HasStreakToday(ctx context.Context, userID, activityID string) (bool, error) {
	s, err := h.load(ctx, userID, activityID)
	if shared.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return s.HasActivityOn(timeutil.Today(h.clock)), nil
}

// IsStreakFrozen reports whether a freeze covers today.
func (h *StreakQueryHandler) IsStreakFrozen(ctx context.Context, userID, activityID string) (bool, error) {
	s, err := h.load(ctx, userID, activityID)
	if shared.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return s.IsFrozenOn(timeutil.Today(h.clock)), nil
}

// History returns archived runs, oldest first.
func (h *StreakQueryHandler) History(ctx context.Context, userID, activityID string) ([]HistoryEntryDTO, error) {
	key, err := streak.NewKey(userID, activityID)
	if err != nil {
		return nil, err
	}
	entries, err := h.repo.History(ctx, key)
	if err != nil {
		return nil, shared.StorageError("streak", "History", err)
	}
	out := make([]HistoryEntryDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, HistoryEntryDTO{Count: e.Count, StartedAt: e.StartedAt, EndedAt: e.EndedAt})
	}
	return out, nil
}

func (h *StreakQueryHandler) load(ctx context.Context, userID, activityID string) (*streak.Streak, error) {
	key, err := streak.NewKey(userID, activityID)
	if err != nil {
		return nil, err
	}
	return h.repo.Get(ctx, key)
}
