package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// LoadActivity returns the persisted commit-timing history.
func (s *Store) LoadActivity(ctx context.Context) ([]time.Time, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var raw string
	row := s.DB.QueryRowContext(ctx, `SELECT timestamps FROM activity WHERE id = 1`)
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch activity: %w", err)
	}

	times, err := decodeTimes(raw)
	if err != nil {
		return nil, fmt.Errorf("decode activity: %w", err)
	}
	return times, nil
}

// SaveActivity replaces the persisted commit-timing history.
func (s *Store) SaveActivity(ctx context.Context, times []time.Time) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	raw, err := encodeTimes(times)
	if err != nil {
		return err
	}

	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO activity (id, timestamps, updated_at)
		VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			timestamps = excluded.timestamps,
			updated_at = excluded.updated_at
	`, raw, time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("store activity: %w", err)
	}
	return nil
}
