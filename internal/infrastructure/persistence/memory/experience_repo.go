package memory

import (
	"context"
	"sync"

	"github.com/alem-hub/levelup/internal/domain/experience"
	"github.com/alem-hub/levelup/internal/domain/shared"
)

// ExperienceRepository stores experience records and audits.
type ExperienceRepository struct {
	mu      sync.Mutex
	records map[shared.UserID]*experience.Experience
	audits  map[shared.UserID][]experience.Audit
}

// NewExperienceRepository creates an empty repository.
func NewExperienceRepository() *ExperienceRepository {
	return &ExperienceRepository{
		records: make(map[shared.UserID]*experience.Experience),
		audits:  make(map[shared.UserID][]experience.Audit),
	}
}

func (r *ExperienceRepository) Get(ctx context.Context, userID shared.UserID) (*experience.Experience, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.records[userID]
	if !ok {
		return nil, shared.ErrExperienceNotFound
	}
	return e.Clone(), nil
}

func (r *ExperienceRepository) Audits(ctx context.Context, userID shared.UserID) ([]experience.Audit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]experience.Audit, len(r.audits[userID]))
	copy(out, r.audits[userID])
	return out, nil
}

func (r *ExperienceRepository) Atomic(ctx context.Context, userID shared.UserID, fn func(ctx context.Context, tx experience.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tx := &experienceTx{repo: r, userID: userID}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	if tx.dirty {
		r.records[userID] = tx.current
	}
	if len(tx.audits) > 0 {
		r.audits[userID] = append(r.audits[userID], tx.audits...)
	}
	return nil
}

type experienceTx struct {
	repo    *ExperienceRepository
	userID  shared.UserID
	current *experience.Experience
	dirty   bool
	audits  []experience.Audit
}

func (tx *experienceTx) Load(ctx context.Context) (*experience.Experience, error) {
	if tx.current != nil {
		return tx.current.Clone(), nil
	}
	e, ok := tx.repo.records[tx.userID]
	if !ok {
		return nil, shared.ErrExperienceNotFound
	}
	return e.Clone(), nil
}

func (tx *experienceTx) LoadOrCreate(ctx context.Context, seed *experience.Experience) (*experience.Experience, shared.LoadResult, error) {
	e, err := tx.Load(ctx)
	if err == nil {
		return e, shared.LoadExisting, nil
	}
	if !shared.IsNotFound(err) {
		return nil, shared.LoadExisting, err
	}
	if seed.UserID != tx.userID {
		return nil, shared.LoadExisting, errKeyMismatch("experience", "LoadOrCreate")
	}
	tx.current = seed.Clone()
	tx.dirty = true
	return seed.Clone(), shared.LoadCreated, nil
}

func (tx *experienceTx) Save(ctx context.Context, e *experience.Experience) error {
	if e.UserID != tx.userID {
		return errKeyMismatch("experience", "Save")
	}
	tx.current = e.Clone()
	tx.dirty = true
	return nil
}

func (tx *experienceTx) AppendAudit(ctx context.Context, a experience.Audit) error {
	tx.audits = append(tx.audits, a)
	return nil
}
