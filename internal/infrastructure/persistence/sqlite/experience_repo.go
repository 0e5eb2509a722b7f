package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/alem-hub/levelup/internal/domain/experience"
	"github.com/alem-hub/levelup/internal/domain/shared"
)

const (
	selectExperienceSQL = `SELECT id, user_id, points, level, created_at, updated_at FROM experiences WHERE user_id = ?`
	insertExperienceSQL = `INSERT INTO experiences (id, user_id, points, level, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT (user_id) DO NOTHING`
	updateExperienceSQL = `UPDATE experiences SET points = ?, level = ?, updated_at = ? WHERE user_id = ?`

	selectAuditsSQL = `SELECT id, user_id, points, levelled_up, type, reason, created_at FROM experience_audits WHERE user_id = ? ORDER BY created_at, rowid`
	insertAuditSQL  = `INSERT INTO experience_audits (id, user_id, points, levelled_up, type, reason, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
)

// ExperienceRepository implements experience.Repository.
type ExperienceRepository struct {
	store *Store
}

func (r *ExperienceRepository) Get(ctx context.Context, userID shared.UserID) (*experience.Experience, error) {
	return scanExperience(r.store.db.QueryRowContext(ctx, selectExperienceSQL, string(userID)))
}

func (r *ExperienceRepository) Audits(ctx context.Context, userID shared.UserID) ([]experience.Audit, error) {
	rows, err := r.store.db.QueryContext(ctx, selectAuditsSQL, string(userID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []experience.Audit
	for rows.Next() {
		var (
			a        experience.Audit
			user, tp string
			created  int64
		)
		if err := rows.Scan(&a.ID, &user, &a.Points, &a.LevelledUp, &tp, &a.Reason, &created); err != nil {
			return nil, err
		}
		a.UserID = shared.UserID(user)
		a.Type = experience.AuditType(tp)
		a.CreatedAt = fromMillis(created)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *ExperienceRepository) Atomic(ctx context.Context, userID shared.UserID, fn func(ctx context.Context, tx experience.Tx) error) error {
	return r.store.withTx(ctx, func(tx *sql.Tx) error {
		return fn(ctx, &experienceTx{tx: tx, userID: userID})
	})
}

func scanExperience(row rowScanner) (*experience.Experience, error) {
	var (
		e                experience.Experience
		user             string
		created, updated int64
	)
	err := row.Scan(&e.ID, &user, &e.Points, &e.Level, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrExperienceNotFound
	}
	if err != nil {
		return nil, err
	}
	e.UserID = shared.UserID(user)
	e.CreatedAt = fromMillis(created)
	e.UpdatedAt = fromMillis(updated)
	return &e, nil
}

type experienceTx struct {
	tx     *sql.Tx
	userID shared.UserID
}

func (t *experienceTx) Load(ctx context.Context) (*experience.Experience, error) {
	return scanExperience(t.tx.QueryRowContext(ctx, selectExperienceSQL, string(t.userID)))
}

func (t *experienceTx) LoadOrCreate(ctx context.Context, seed *experience.Experience) (*experience.Experience, shared.LoadResult, error) {
	if seed.UserID != t.userID {
		return nil, shared.LoadExisting, errKeyMismatch("experience", "LoadOrCreate")
	}
	res, err := t.tx.ExecContext(ctx, insertExperienceSQL,
		seed.ID, string(seed.UserID), seed.Points, seed.Level, toMillis(seed.CreatedAt), toMillis(seed.UpdatedAt))
	if err != nil {
		return nil, shared.LoadExisting, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 1 {
		return seed.Clone(), shared.LoadCreated, nil
	}
	e, err := t.Load(ctx)
	if err != nil {
		return nil, shared.LoadExisting, err
	}
	return e, shared.LoadExisting, nil
}

func (t *experienceTx) Save(ctx context.Context, e *experience.Experience) error {
	if e.UserID != t.userID {
		return errKeyMismatch("experience", "Save")
	}
	res, err := t.tx.ExecContext(ctx, updateExperienceSQL, e.Points, e.Level, toMillis(e.UpdatedAt), string(e.UserID))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return shared.ErrExperienceNotFound
	}
	return nil
}

func (t *experienceTx) AppendAudit(ctx context.Context, a experience.Audit) error {
	_, err := t.tx.ExecContext(ctx, insertAuditSQL,
		a.ID, string(a.UserID), a.Points, a.LevelledUp, string(a.Type), a.Reason, toMillis(a.CreatedAt))
	return err
}
