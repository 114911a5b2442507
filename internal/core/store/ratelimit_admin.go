package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/greenstreak/greenstreak/internal/core"
)

// RateLimitEntry is one stored limiter.
type RateLimitEntry struct {
	Name  string
	State core.RateLimitState
}

// RateLimitQuery selects stored limiters for listing or reset.
type RateLimitQuery struct {
	All    bool
	Name   string
	Prefix string
}

func (q RateLimitQuery) Validate() error {
	if q.All {
		return nil
	}
	if strings.TrimSpace(q.Name) != "" {
		return nil
	}
	if strings.TrimSpace(q.Prefix) != "" {
		return nil
	}
	return errors.New("must specify --all, --name, or --prefix")
}

func (q RateLimitQuery) whereClause() (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}
	if q.All {
		return "", nil, nil
	}
	if name := strings.TrimSpace(q.Name); name != "" {
		return "WHERE name = ?", []any{name}, nil
	}
	prefix := strings.TrimSpace(q.Prefix)
	if prefix == "" {
		return "", nil, errors.New("prefix is required")
	}
	return "WHERE name LIKE ?", []any{prefix + "%"}, nil
}

func (s *Store) ListRateLimits(ctx context.Context, q RateLimitQuery) ([]RateLimitEntry, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf(`
		SELECT name, timestamps, backoff, updated_at
		FROM rate_limits
		%s
		ORDER BY name
	`, where), args...)
	if err != nil {
		return nil, fmt.Errorf("list rate limits: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	entries := []RateLimitEntry{}
	for rows.Next() {
		var (
			name      string
			raw       string
			backoff   float64
			updatedAt int64
		)
		if err := rows.Scan(&name, &raw, &backoff, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan rate limits: %w", err)
		}

		timestamps, err := decodeTimes(raw)
		if err != nil {
			return nil, fmt.Errorf("decode rate limit %s: %w", name, err)
		}

		entries = append(entries, RateLimitEntry{Name: name, State: core.RateLimitState{
			Timestamps:        timestamps,
			BackoffMultiplier: backoff,
			UpdatedAt:         time.UnixMilli(updatedAt).UTC(),
		}})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rate limits: %w", err)
	}

	return entries, nil
}
func (s *Store) CountRateLimits(ctx context.Context, q RateLimitQuery) (int, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return 0, err
	}

	row := s.DB.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT COUNT(*)
		FROM rate_limits
		%s
	`, where), args...)

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count rate limits: %w", err)
	}
	return count, nil
}

func (s *Store) ResetRateLimits(ctx context.Context, q RateLimitQuery) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return 0, err
	}

	result, err := s.DB.ExecContext(ctx, fmt.Sprintf(`
		DELETE FROM rate_limits
		%s
	`, where), args...)
	if err != nil {
		return 0, fmt.Errorf("reset rate limits: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset rate limits: %w", err)
	}
	return affected, nil
}
