package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/alem-hub/levelup/internal/domain/level"
	"github.com/alem-hub/levelup/internal/domain/shared"
)

const (
	insertLevelSQL = `INSERT INTO levels (number, points_to_next_level, created_at) VALUES (?, ?, ?)`
	selectLevelSQL = `SELECT number, points_to_next_level, created_at FROM levels WHERE number = ?`
	listLevelsSQL  = `SELECT number, points_to_next_level, created_at FROM levels ORDER BY number`
)

// LevelRepository implements level.Repository.
type LevelRepository struct {
	store *Store
}

func (r *LevelRepository) Add(ctx context.Context, lvl level.Level) error {
	_, err := r.store.db.ExecContext(ctx, insertLevelSQL, lvl.Number, lvl.PointsToNextLevel, toMillis(lvl.CreatedAt))
	if isUniqueViolation(err) {
		return &level.AlreadyExistsError{Level: lvl.Number, Err: err}
	}
	return err
}

func (r *LevelRepository) Get(ctx context.Context, number int) (level.Level, error) {
	lvl, err := scanLevel(r.store.db.QueryRowContext(ctx, selectLevelSQL, number))
	if errors.Is(err, sql.ErrNoRows) {
		return level.Level{}, shared.ErrLevelNotFound
	}
	return lvl, err
}

func (r *LevelRepository) List(ctx context.Context) ([]level.Level, error) {
	rows, err := r.store.db.QueryContext(ctx, listLevelsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []level.Level
	for rows.Next() {
		lvl, err := scanLevel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, lvl)
	}
	return out, rows.Err()
}

func scanLevel(row rowScanner) (level.Level, error) {
	var (
		lvl     level.Level
		created int64
	)
	if err := row.Scan(&lvl.Number, &lvl.PointsToNextLevel, &created); err != nil {
		return level.Level{}, err
	}
	lvl.CreatedAt = fromMillis(created)
	return lvl, nil
}
