package postgres

import (
	"context"

	"github.com/alem-hub/levelup/internal/domain/experience"
	"github.com/alem-hub/levelup/internal/domain/shared"
	"github.com/jackc/pgx/v5"
)

const experienceColumns = `id, user_id, points, level, created_at, updated_at`

// ExperienceRepository implements experience.Repository for PostgreSQL.
type ExperienceRepository struct {
	conn *Connection
}

// NewExperienceRepository creates a new ExperienceRepository.
func NewExperienceRepository(conn *Connection) *ExperienceRepository {
	return &ExperienceRepository{conn: conn}
}

func (r *ExperienceRepository) Get(ctx context.Context, userID shared.UserID) (*experience.Experience, error) {
	q, err := r.conn.querier()
	if err != nil {
		return nil, err
	}
	return scanExperience(q.QueryRow(ctx, `SELECT `+experienceColumns+` FROM experiences WHERE user_id = $1`, string(userID)))
}

func (r *ExperienceRepository) Audits(ctx context.Context, userID shared.UserID) ([]experience.Audit, error) {
	q, err := r.conn.querier()
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, `
		SELECT id, user_id, points, levelled_up, type, reason, created_at
		FROM experience_audits
		WHERE user_id = $1
		ORDER BY created_at, id`, string(userID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []experience.Audit
	for rows.Next() {
		var (
			a        experience.Audit
			user, tp string
		)
		if err := rows.Scan(&a.ID, &user, &a.Points, &a.LevelledUp, &tp, &a.Reason, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.UserID = shared.UserID(user)
		a.Type = experience.AuditType(tp)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *ExperienceRepository) Atomic(ctx context.Context, userID shared.UserID, fn func(ctx context.Context, tx experience.Tx) error) error {
	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		return fn(ctx, &experienceTx{tx: tx, userID: userID})
	})
}

func scanExperience(row pgx.Row) (*experience.Experience, error) {
	var (
		e    experience.Experience
		user string
	)
	if err := row.Scan(&e.ID, &user, &e.Points, &e.Level, &e.CreatedAt, &e.UpdatedAt); err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrExperienceNotFound
		}
		return nil, err
	}
	e.UserID = shared.UserID(user)
	return &e, nil
}

type experienceTx struct {
	tx     pgx.Tx
	userID shared.UserID
}

func (t *experienceTx) Load(ctx context.Context) (*experience.Experience, error) {
	return scanExperience(t.tx.QueryRow(ctx,
		`SELECT `+experienceColumns+` FROM experiences WHERE user_id = $1 FOR UPDATE`, string(t.userID)))
}

func (t *experienceTx) LoadOrCreate(ctx context.Context, seed *experience.Experience) (*experience.Experience, shared.LoadResult, error) {
	if seed.UserID != t.userID {
		return nil, shared.LoadExisting, errKeyMismatch("experience", "LoadOrCreate")
	}
	tag, err := t.tx.Exec(ctx, `
		INSERT INTO experiences (`+experienceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO NOTHING`,
		seed.ID, string(seed.UserID), seed.Points, seed.Level, seed.CreatedAt, seed.UpdatedAt)
	if err != nil {
		return nil, shared.LoadExisting, err
	}
	if tag.RowsAffected() == 1 {
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
	tag, err := t.tx.Exec(ctx,
		`UPDATE experiences SET points = $2, level = $3, updated_at = $4 WHERE user_id = $1`,
		string(e.UserID), e.Points, e.Level, e.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrExperienceNotFound
	}
	return nil
}

func (t *experienceTx) AppendAudit(ctx context.Context, a experience.Audit) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO experience_audits (id, user_id, points, levelled_up, type, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, string(a.UserID), a.Points, a.LevelledUp, string(a.Type), a.Reason, a.CreatedAt)
	return err
}
