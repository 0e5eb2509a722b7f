package postgres

import (
	"context"
	"time"

	"github.com/alem-hub/levelup/internal/domain/shared"
	"github.com/alem-hub/levelup/internal/domain/streak"
	"github.com/alem-hub/levelup/pkg/timeutil"
	"github.com/jackc/pgx/v5"
)

const streakColumns = `id, user_id, activity_id, count, started_at, last_activity_at, frozen_until, created_at, updated_at`

// StreakRepository implements streak.Repository for PostgreSQL.
type StreakRepository struct {
	conn *Connection
	loc  *time.Location
}

// NewStreakRepository creates a repository. Dates are read back as
// midnight in loc.
func NewStreakRepository(conn *Connection, loc *time.Location) *StreakRepository {
	if loc == nil {
		loc = time.UTC
	}
	return &StreakRepository{conn: conn, loc: loc}
}

func (r *StreakRepository) Get(ctx context.Context, key streak.Key) (*streak.Streak, error) {
	q, err := r.conn.querier()
	if err != nil {
		return nil, err
	}
	row := q.QueryRow(ctx, `SELECT `+streakColumns+` FROM streaks WHERE user_id = $1 AND activity_id = $2`,
		string(key.UserID), string(key.ActivityID))
	return r.scan(row)
}

func (r *StreakRepository) History(ctx context.Context, key streak.Key) ([]streak.HistoryEntry, error) {
	q, err := r.conn.querier()
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, `
		SELECT id, user_id, activity_id, count, started_at, ended_at, archived_at
		FROM streak_histories
		WHERE user_id = $1 AND activity_id = $2
		ORDER BY archived_at, id`,
		string(key.UserID), string(key.ActivityID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []streak.HistoryEntry
	for rows.Next() {
		var (
			h                 streak.HistoryEntry
			userID, activity  string
			started, finished time.Time
		)
		if err := rows.Scan(&h.ID, &userID, &activity, &h.Count, &started, &finished, &h.ArchivedAt); err != nil {
			return nil, err
		}
		h.UserID = shared.UserID(userID)
		h.ActivityID = shared.ActivityID(activity)
		h.StartedAt = timeutil.DateIn(started, r.loc)
		h.EndedAt = timeutil.DateIn(finished, r.loc)
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *StreakRepository) Atomic(ctx context.Context, key streak.Key, fn func(ctx context.Context, tx streak.Tx) error) error {
	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		return fn(ctx, &streakTx{repo: r, tx: tx, key: key})
	})
}

func (r *StreakRepository) scan(row pgx.Row) (*streak.Streak, error) {
	var (
		s                streak.Streak
		userID, activity string
		started, last    time.Time
		frozen           *time.Time
	)
	err := row.Scan(&s.ID, &userID, &activity, &s.Count, &started, &last, &frozen, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrStreakNotFound
		}
		return nil, err
	}
	s.UserID = shared.UserID(userID)
	s.ActivityID = shared.ActivityID(activity)
	s.StartedAt = timeutil.DateIn(started, r.loc)
	s.LastActivityAt = timeutil.DateIn(last, r.loc)
	if frozen != nil {
		until := timeutil.DateIn(*frozen, r.loc)
		s.FrozenUntil = &until
	}
	return &s, nil
}

type streakTx struct {
	repo *StreakRepository
	tx   pgx.Tx
	key  streak.Key
}

func (t *streakTx) Load(ctx context.Context) (*streak.Streak, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+streakColumns+` FROM streaks WHERE user_id = $1 AND activity_id = $2 FOR UPDATE`,
		string(t.key.UserID), string(t.key.ActivityID))
	return t.repo.scan(row)
}

func (t *streakTx) LoadOrCreate(ctx context.Context, seed *streak.Streak) (*streak.Streak, shared.LoadResult, error) {
	if seed.Key() != t.key {
		return nil, shared.LoadExisting, errKeyMismatch("streak", "LoadOrCreate")
	}
	tag, err := t.tx.Exec(ctx, `
		INSERT INTO streaks (`+streakColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, activity_id) DO NOTHING`,
		seed.ID, string(seed.UserID), string(seed.ActivityID), seed.Count,
		seed.StartedAt, seed.LastActivityAt, seed.FrozenUntil, seed.CreatedAt, seed.UpdatedAt)
	if err != nil {
		return nil, shared.LoadExisting, err
	}
	if tag.RowsAffected() == 1 {
		return seed.Clone(), shared.LoadCreated, nil
	}
	s, err := t.Load(ctx)
	if err != nil {
		return nil, shared.LoadExisting, err
	}
	return s, shared.LoadExisting, nil
}

func (t *streakTx) Save(ctx context.Context, s *streak.Streak) error {
	if s.Key() != t.key {
		return errKeyMismatch("streak", "Save")
	}
	if err := s.Validate(); err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, `
		UPDATE streaks
		SET count = $3, started_at = $4, last_activity_at = $5, frozen_until = $6, updated_at = $7
		WHERE user_id = $1 AND activity_id = $2`,
		string(s.UserID), string(s.ActivityID), s.Count, s.StartedAt, s.LastActivityAt, s.FrozenUntil, s.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrStreakNotFound
	}
	return nil
}

func (t *streakTx) AppendHistory(ctx context.Context, h streak.HistoryEntry) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO streak_histories (id, user_id, activity_id, count, started_at, ended_at, archived_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		h.ID, string(h.UserID), string(h.ActivityID), h.Count, h.StartedAt, h.EndedAt, h.ArchivedAt)
	return err
}

func errKeyMismatch(domain, op string) error {
	return shared.NewDomainError(domain, op, shared.ErrInvalidInput, "record does not belong to this transaction")
}
