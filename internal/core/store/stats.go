package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/greenstreak/greenstreak/internal/core"
)

// RecordCommit bumps the counters and appends record to the commit log in a
// single transaction.
func (s *Store) RecordCommit(ctx context.Context, record core.CommitRecord) (err error) {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(record.ID) == "" || strings.TrimSpace(record.Repo) == "" {
		return errors.New("commit record id and repo are required")
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit record: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	at := record.CommittedAt.UTC().UnixMilli()
	automated := 0
	if record.Automated {
		automated = 1
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO commit_stats (id, total_commits, automated_commits, first_commit_at, last_commit_at)
		VALUES (1, 1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			total_commits = total_commits + 1,
			automated_commits = automated_commits + excluded.automated_commits,
			first_commit_at = COALESCE(first_commit_at, excluded.first_commit_at),
			last_commit_at = excluded.last_commit_at
	`, automated, at, at); err != nil {
		return fmt.Errorf("update commit stats: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO repo_counts (repo, commits) VALUES (?, 1)
		ON CONFLICT(repo) DO UPDATE SET commits = commits + 1
	`, record.Repo); err != nil {
		return fmt.Errorf("update repo count: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO commit_log (id, repo, branch, path, message, sha, html_url, automated, committed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, record.ID, record.Repo, record.Branch, record.Path, record.Message, record.SHA, record.HTMLURL, automated, at); err != nil {
		return fmt.Errorf("append commit log: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit record: %w", err)
	}
	return nil
}

// Stats returns the aggregate counters.
func (s *Store) Stats(ctx context.Context) (core.Stats, error) {
	stats := core.Stats{RepoCounts: map[string]int{}}
	if s == nil || s.DB == nil {
		return stats, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var first, last sql.NullInt64
	row := s.DB.QueryRowContext(ctx, `
		SELECT total_commits, automated_commits, first_commit_at, last_commit_at
		FROM commit_stats
		WHERE id = 1
	`)
	if err := row.Scan(&stats.TotalCommits, &stats.AutomatedCommits, &first, &last); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return stats, fmt.Errorf("fetch commit stats: %w", err)
	}
	if first.Valid {
		value := time.UnixMilli(first.Int64).UTC()
		stats.FirstCommitAt = &value
	}
	if last.Valid {
		value := time.UnixMilli(last.Int64).UTC()
		stats.LastCommitAt = &value
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT repo, commits FROM repo_counts ORDER BY repo`)
	if err != nil {
		return stats, fmt.Errorf("list repo counts: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	for rows.Next() {
		var (
			repo    string
			commits int
		)
		if err := rows.Scan(&repo, &commits); err != nil {
			return stats, fmt.Errorf("scan repo counts: %w", err)
		}
		stats.RepoCounts[repo] = commits
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("list repo counts: %w", err)
	}
	return stats, nil
}

// ListCommits returns the most recent commits, newest first.
func (s *Store) ListCommits(ctx context.Context, limit int) ([]core.CommitRecord, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, repo, branch, path, message, sha, html_url, automated, committed_at
		FROM commit_log
		ORDER BY committed_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list commits: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	records := []core.CommitRecord{}
	for rows.Next() {
		var (
			record      core.CommitRecord
			sha         sql.NullString
			htmlURL     sql.NullString
			automated   int
			committedAt int64
		)
		if err := rows.Scan(&record.ID, &record.Repo, &record.Branch, &record.Path, &record.Message, &sha, &htmlURL, &automated, &committedAt); err != nil {
			return nil, fmt.Errorf("scan commits: %w", err)
		}
		record.SHA = sha.String
		record.HTMLURL = htmlURL.String
		record.Automated = automated == 1
		record.CommittedAt = time.UnixMilli(committedAt).UTC()
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list commits: %w", err)
	}
	return records, nil
}

// ResetStats clears counters, per-repository counts and the commit log.
func (s *Store) ResetStats(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	for _, stmt := range []string{`DELETE FROM commit_stats`, `DELETE FROM repo_counts`, `DELETE FROM commit_log`} {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("reset stats: %w", err)
		}
	}
	return nil
}
