package query

import (
	"context"
	"time"

	"github.com/alem-hub/levelup/internal/domain/experience"
	"github.com/alem-hub/levelup/internal/domain/level"
	"github.com/alem-hub/levelup/internal/domain/shared"
)

// ExperienceDTO is the read view of a user's experience.
type ExperienceDTO struct {
	UserID string `json:"user_id"`
	Points int    `json:"points"`
	Level  int    `json:"level"`
	// NextLevel and PointsToNextLevel are zero when no higher level exists.
	NextLevel         int       `json:"next_level,omitempty"`
	PointsToNextLevel int       `json:"points_to_next_level,omitempty"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// AuditDTO is one audit row.
type AuditDTO struct {
	Type       string    `json:"type"`
	Points     int       `json:"points"`
	LevelledUp bool      `json:"levelled_up"`
	Reason     string    `json:"reason,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ExperienceQueryHandler answers experience reads.
type ExperienceQueryHandler struct {
	repo   experience.Repository
	levels level.Repository
}

// NewExperienceQueryHandler creates a new ExperienceQueryHandler.
func NewExperienceQueryHandler(repo experience.Repository, levels level.Repository) *ExperienceQueryHandler {
	return &ExperienceQueryHandler{repo: repo, levels: levels}
}

// GetPoints returns the user's points or shared.ErrExperienceNotFound.
func (h *ExperienceQueryHandler) GetPoints(ctx context.Context, userID string) (int, error) {
	e, err := h.load(ctx, userID)
	if err != nil {
		return 0, err
	}
	return e.Points, nil
}

// GetLevel returns the user's level number.
func (h *ExperienceQueryHandler) GetLevel(ctx context.Context, userID string) (int, error) {
	e, err := h.load(ctx, userID)
	if err != nil {
		return 0, err
	}
	return e.Level, nil
}

// GetExperience returns the record together with the next rung.
func (h *ExperienceQueryHandler) GetExperience(ctx context.Context, userID string) (*ExperienceDTO, error) {
	e, err := h.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	dto := &ExperienceDTO{
		UserID:    string(e.UserID),
		Points:    e.Points,
		Level:     e.Level,
		UpdatedAt: e.UpdatedAt,
	}

	levels, err := h.levels.List(ctx)
	if err != nil {
		return nil, shared.StorageError("level", "List", err)
	}
	if next, ok := level.NewLadder(levels).Next(e.Level); ok {
		dto.NextLevel = next.Number
		dto.PointsToNextLevel = next.PointsToNextLevel
	}
	return dto, nil
}

// AuditTrail returns the user's audit rows, oldest first.
func (h *ExperienceQueryHandler) AuditTrail(ctx context.Context, userID string) ([]AuditDTO, error) {
	id, err := shared.NewUserID(userID)
	if err != nil {
		return nil, err
	}
	audits, err := h.repo.Audits(ctx, id)
	if err != nil {
		return nil, shared.StorageError("experience", "Audits", err)
	}
	out := make([]AuditDTO, 0, len(audits))
	for _, a := range audits {
		out = append(out, AuditDTO{
			Type:       string(a.Type),
			Points:     a.Points,
			LevelledUp: a.LevelledUp,
			Reason:     a.Reason,
			CreatedAt:  a.CreatedAt,
		})
	}
	return out, nil
}

func (h *ExperienceQueryHandler) load(ctx context.Context, userID string) (*experience.Experience, error) {
	id, err := shared.NewUserID(userID)
	if err != nil {
		return nil, err
	}
	return h.repo.Get(ctx, id)
}
