// Package experience models a user's experience points and level.
package experience

import (
	"context"
	"time"

	"github.com/alem-hub/levelup/internal/domain/shared"
	"github.com/google/uuid"
)

// Experience is the single points record of a user. Level holds the level
// number, not a row id.
type Experience struct {
	ID        string
	UserID    shared.UserID
	Points    int
	Level     int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// New returns a record with zero points at startingLevel.
func New(userID shared.UserID, startingLevel int, now time.Time) *Experience {
	return &Experience{
		ID:        uuid.NewString(),
		UserID:    userID,
		Level:     startingLevel,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a copy.
func (e *Experience) Clone() *Experience {
	c := *e
	return &c
}

// AuditType classifies an audit row.
type AuditType string

const (
	AuditAdd     AuditType = "add"
	AuditRemove  AuditType = "remove"
	AuditReset   AuditType = "reset"
	AuditLevelUp AuditType = "level_up"
)

// Audit is an append-only record of one ledger mutation. Points is the
// delta for add and remove, the new total for reset, and the new level for
// level_up.
type Audit struct {
	ID         string
	UserID     shared.UserID
	Points     int
	LevelledUp bool
	Type       AuditType
	Reason     string
	CreatedAt  time.Time
}

// NewAudit stamps a new audit row.
func NewAudit(userID shared.UserID, typ AuditType, points int, reason string, now time.Time) Audit {
	return Audit{
		ID:         uuid.NewString(),
		UserID:     userID,
		Points:     points,
		LevelledUp: typ == AuditLevelUp,
		Type:       typ,
		Reason:     reason,
		CreatedAt:  now,
	}
}

// Repository persists experience records and their audit trail.
type Repository interface {
	// Get returns shared.ErrExperienceNotFound when no record exists.
	Get(ctx context.Context, userID shared.UserID) (*Experience, error)

	// Audits returns the user's audit rows, oldest first.
	Audits(ctx context.Context, userID shared.UserID) ([]Audit, error)

	// Atomic runs fn inside one transaction scoped to userID.
	Atomic(ctx context.Context, userID shared.UserID, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the transactional view of one user's record.
type Tx interface {
	Load(ctx context.Context) (*Experience, error)
	LoadOrCreate(ctx context.Context, seed *Experience) (*Experience, shared.LoadResult, error)
	Save(ctx context.Context, e *Experience) error
	AppendAudit(ctx context.Context, a Audit) error
}
