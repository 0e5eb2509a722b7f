package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

type migration struct {
	version int
	name    string
	up      string
}

var migrations = []migration{
	{1, "create_levels", `
CREATE TABLE IF NOT EXISTS levels (
    number INTEGER PRIMARY KEY CHECK (number > 0),
    points_to_next_level INTEGER NOT NULL CHECK (points_to_next_level >= 0),
    created_at INTEGER NOT NULL
);`},
	{2, "create_experience", `
CREATE TABLE IF NOT EXISTS experiences (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL UNIQUE,
    points INTEGER NOT NULL,
    level INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS experience_audits (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    points INTEGER NOT NULL,
    levelled_up INTEGER NOT NULL DEFAULT 0,
    type TEXT NOT NULL,
    reason TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_experience_audits_user ON experience_audits (user_id, created_at);`},
	{3, "create_streaks", `
CREATE TABLE IF NOT EXISTS streaks (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    activity_id TEXT NOT NULL,
    count INTEGER NOT NULL CHECK (count >= 1),
    started_at TEXT NOT NULL,
    last_activity_at TEXT NOT NULL,
    frozen_until TEXT,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    UNIQUE (user_id, activity_id)
);
CREATE TABLE IF NOT EXISTS streak_histories (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    activity_id TEXT NOT NULL,
    count INTEGER NOT NULL,
    started_at TEXT NOT NULL,
    ended_at TEXT NOT NULL,
    archived_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_streak_histories_key ON streak_histories (user_id, activity_id, archived_at);`},
}

const (
	createMigrationsTableSQL = `CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY, name TEXT NOT NULL, applied_at INTEGER NOT NULL)`
	selectAppliedSQL         = `SELECT version FROM schema_migrations`
	insertAppliedSQL         = `INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, strftime('%s','now'))`
)

// Migrate applies pending migrations and returns how many ran.
func (s *Store) Migrate(ctx context.Context) (int, error) {
	if _, err := s.db.ExecContext(ctx, createMigrationsTableSQL); err != nil {
		return 0, fmt.Errorf("sqlite: create migrations table: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, selectAppliedSQL)
	if err != nil {
		return 0, fmt.Errorf("sqlite: query migrations: %w", err)
	}
	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return 0, err
		}
		applied[v] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	count := 0
	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		err := s.withTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, m.up); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, insertAppliedSQL, m.version, m.name)
			return err
		})
		if err != nil {
			return count, fmt.Errorf("sqlite: migration %d %s: %w", m.version, m.name, err)
		}
		count++
	}
	return count, nil
}
