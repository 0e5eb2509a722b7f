package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/alem-hub/levelup/internal/domain/shared"
	"github.com/alem-hub/levelup/internal/domain/streak"
	"github.com/alem-hub/levelup/pkg/timeutil"
)

const (
	selectStreakSQL = `SELECT id, user_id, activity_id, count, started_at, last_activity_at, frozen_until, created_at, updated_at FROM streaks WHERE user_id = ? AND activity_id = ?`
	insertStreakSQL = `INSERT INTO streaks (id, user_id, activity_id, count, started_at, last_activity_at, frozen_until, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT (user_id, activity_id) DO NOTHING`
	updateStreakSQL = `UPDATE streaks SET count = ?, started_at = ?, last_activity_at = ?, frozen_until = ?, updated_at = ? WHERE user_id = ? AND activity_id = ?`

	selectHistorySQL = `SELECT id, user_id, activity_id, count, started_at, ended_at, archived_at FROM streak_histories WHERE user_id = ? AND activity_id = ? ORDER BY archived_at, rowid`
	insertHistorySQL = `INSERT INTO streak_histories (id, user_id, activity_id, count, started_at, ended_at, archived_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
)

type rowScanner interface {
	Scan(dest ...any) error
}

// StreakRepository implements streak.Repository.
type StreakRepository struct {
	store *Store
}

func (r *StreakRepository) Get(ctx context.Context, key streak.Key) (*streak.Streak, error) {
	return r.scan(r.store.db.QueryRowContext(ctx, selectStreakSQL, string(key.UserID), string(key.ActivityID)))
}

func (r *StreakRepository) History(ctx context.Context, key streak.Key) ([]streak.HistoryEntry, error) {
	rows, err := r.store.db.QueryContext(ctx, selectHistorySQL, string(key.UserID), string(key.ActivityID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []streak.HistoryEntry
	for rows.Next() {
		var (
			h                 streak.HistoryEntry
			userID, activity  string
			started, finished string
			archived          int64
		)
		if err := rows.Scan(&h.ID, &userID, &activity, &h.Count, &started, &finished, &archived); err != nil {
			return nil, err
		}
		h.UserID = shared.UserID(userID)
		h.ActivityID = shared.ActivityID(activity)
		if h.StartedAt, err = timeutil.ParseDate(started, r.store.loc); err != nil {
			return nil, err
		}
		if h.EndedAt, err = timeutil.ParseDate(finished, r.store.loc); err != nil {
			return nil, err
		}
		h.ArchivedAt = fromMillis(archived)
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *StreakRepository) Atomic(ctx context.Context, key streak.Key, fn func(ctx context.Context, tx streak.Tx) error) error {
	return r.store.withTx(ctx, func(tx *sql.Tx) error {
		return fn(ctx, &streakTx{repo: r, tx: tx, key: key})
	})
}

func (r *StreakRepository) scan(row rowScanner) (*streak.Streak, error) {
	var (
		s                streak.Streak
		userID, activity string
		started, last    string
		frozen           sql.NullString
		created, updated int64
	)
	err := row.Scan(&s.ID, &userID, &activity, &s.Count, &started, &last, &frozen, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrStreakNotFound
	}
	if err != nil {
		return nil, err
	}

	s.UserID = shared.UserID(userID)
	s.ActivityID = shared.ActivityID(activity)
	if s.StartedAt, err = timeutil.ParseDate(started, r.store.loc); err != nil {
		return nil, err
	}
	if s.LastActivityAt, err = timeutil.ParseDate(last, r.store.loc); err != nil {
		return nil, err
	}
	if frozen.Valid {
		until, err := timeutil.ParseDate(frozen.String, r.store.loc)
		if err != nil {
			return nil, err
		}
		s.FrozenUntil = &until
	}
	s.CreatedAt = fromMillis(created)
	s.UpdatedAt = fromMillis(updated)
	return &s, nil
}

func frozenValue(s *streak.Streak) sql.NullString {
	if s.FrozenUntil == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: timeutil.FormatDate(*s.FrozenUntil), Valid: true}
}

type streakTx struct {
	repo *StreakRepository
	tx   *sql.Tx
	key  streak.Key
}

func (t *streakTx) Load(ctx context.Context) (*streak.Streak, error) {
	return t.repo.scan(t.tx.QueryRowContext(ctx, selectStreakSQL, string(t.key.UserID), string(t.key.ActivityID)))
}

func (t *streakTx) LoadOrCreate(ctx context.Context, seed *streak.Streak) (*streak.Streak, shared.LoadResult, error) {
	if seed.Key() != t.key {
		return nil, shared.LoadExisting, errKeyMismatch("streak", "LoadOrCreate")
	}
	res, err := t.tx.ExecContext(ctx, insertStreakSQL,
		seed.ID, string(seed.UserID), string(seed.ActivityID), seed.Count,
		timeutil.FormatDate(seed.StartedAt), timeutil.FormatDate(seed.LastActivityAt), frozenValue(seed),
		toMillis(seed.CreatedAt), toMillis(seed.UpdatedAt))
	if err != nil {
		return nil, shared.LoadExisting, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 1 {
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
	res, err := t.tx.ExecContext(ctx, updateStreakSQL,
		s.Count, timeutil.FormatDate(s.StartedAt), timeutil.FormatDate(s.LastActivityAt), frozenValue(s),
		toMillis(s.UpdatedAt), string(s.UserID), string(s.ActivityID))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return shared.ErrStreakNotFound
	}
	return nil
}

func (t *streakTx) AppendHistory(ctx context.Context, h streak.HistoryEntry) error {
	_, err := t.tx.ExecContext(ctx, insertHistorySQL,
		h.ID, string(h.UserID), string(h.ActivityID), h.Count,
		timeutil.FormatDate(h.StartedAt), timeutil.FormatDate(h.EndedAt), toMillis(h.ArchivedAt))
	return err
}

func errKeyMismatch(domain, op string) error {
	return shared.NewDomainError(domain, op, shared.ErrInvalidInput, "record does not belong to this transaction")
}
