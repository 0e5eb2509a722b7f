package postgres

import (
	"context"

	"github.com/alem-hub/levelup/internal/domain/level"
	"github.com/alem-hub/levelup/internal/domain/shared"
)

// LevelRepository implements level.Repository for PostgreSQL.
type LevelRepository struct {
	conn *Connection
}

// NewLevelRepository creates a new LevelRepository.
func NewLevelRepository(conn *Connection) *LevelRepository {
	return &LevelRepository{conn: conn}
}

// Add inserts a level. The primary key on number turns a duplicate into
// *level.AlreadyExistsError wrapping the driver error.
func (r *LevelRepository) Add(ctx context.Context, lvl level.Level) error {
	q, err := r.conn.querier()
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx,
		`INSERT INTO levels (number, points_to_next_level, created_at) VALUES ($1, $2, $3)`,
		lvl.Number, lvl.PointsToNextLevel, lvl.CreatedAt)
	if IsUniqueViolation(err) {
		return &level.AlreadyExistsError{Level: lvl.Number, Err: err}
	}
	return err
}

func (r *LevelRepository) Get(ctx context.Context, number int) (level.Level, error) {
	q, err := r.conn.querier()
	if err != nil {
		return level.Level{}, err
	}
	var lvl level.Level
	err = q.QueryRow(ctx,
		`SELECT number, points_to_next_level, created_at FROM levels WHERE number = $1`, number).
		Scan(&lvl.Number, &lvl.PointsToNextLevel, &lvl.CreatedAt)
	if IsNoRows(err) {
		return level.Level{}, shared.ErrLevelNotFound
	}
	return lvl, err
}

func (r *LevelRepository) List(ctx context.Context) ([]level.Level, error) {
	q, err := r.conn.querier()
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, `SELECT number, points_to_next_level, created_at FROM levels ORDER BY number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []level.Level
	for rows.Next() {
		var lvl level.Level
		if err := rows.Scan(&lvl.Number, &lvl.PointsToNextLevel, &lvl.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, lvl)
	}
	return out, rows.Err()
}
