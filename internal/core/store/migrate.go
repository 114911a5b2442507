package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS rate_limits (
		name TEXT PRIMARY KEY,
		timestamps TEXT NOT NULL DEFAULT '[]',
		backoff REAL NOT NULL DEFAULT 1,
		updated_at INTEGER NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS activity (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		timestamps TEXT NOT NULL DEFAULT '[]',
		updated_at INTEGER NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS commit_stats (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		total_commits INTEGER NOT NULL DEFAULT 0,
		automated_commits INTEGER NOT NULL DEFAULT 0,
		first_commit_at INTEGER,
		last_commit_at INTEGER
	);`,
	`CREATE TABLE IF NOT EXISTS repo_counts (
		repo TEXT PRIMARY KEY,
		commits INTEGER NOT NULL DEFAULT 0
	);`,
	`CREATE TABLE IF NOT EXISTS commit_log (
		id TEXT PRIMARY KEY,
		repo TEXT NOT NULL,
		branch TEXT NOT NULL,
		path TEXT NOT NULL,
		message TEXT NOT NULL,
		sha TEXT,
		html_url TEXT,
		automated INTEGER NOT NULL DEFAULT 0,
		committed_at INTEGER NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_commit_log_committed ON commit_log(committed_at);`,
	`CREATE INDEX IF NOT EXISTS idx_commit_log_repo ON commit_log(repo);`,
}

// Migrate ensures the required database tables exist.
func (s *Store) Migrate(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	for _, stmt := range schemaStatements {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store migration failed: %w", err)
		}
	}

	if err := s.ensureColumn(ctx, "commit_log", "html_url", "TEXT"); err != nil {
		return err
	}

	return nil
}

func (s *Store) ensureColumn(ctx context.Context, table, column, columnDef string) error {
	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return fmt.Errorf("inspect %s schema: %w", table, err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	for rows.Next() {
		var (
			cid     int
			name    string
			colType string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return fmt.Errorf("inspect %s columns: %w", table, err)
		}
		if name == column {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("inspect %s columns: %w", table, err)
	}

	if _, err := s.DB.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, columnDef)); err != nil {
		return fmt.Errorf("add %s.%s column: %w", table, column, err)
	}

	return nil
}
