package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/greenstreak/greenstreak/internal/core"
)

// GetRateLimit returns stored state for a named limiter.
func (s *Store) GetRateLimit(ctx context.Context, name string) (*core.RateLimitState, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("limiter name is required")
	}

	var (
		raw       string
		backoff   float64
		updatedAt int64
	)

	row := s.DB.QueryRowContext(ctx, `
		SELECT timestamps, backoff, updated_at
		FROM rate_limits
		WHERE name = ?
	`, name)

	if err := row.Scan(&raw, &backoff, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch rate limit: %w", err)
	}

	timestamps, err := decodeTimes(raw)
	if err != nil {
		return nil, fmt.Errorf("decode rate limit %s: %w", name, err)
	}

	return &core.RateLimitState{
		Timestamps:        timestamps,
		BackoffMultiplier: backoff,
		UpdatedAt:         time.UnixMilli(updatedAt).UTC(),
	}, nil
}

// UpdateRateLimit persists state for a named limiter.
func (s *Store) UpdateRateLimit(ctx context.Context, name string, state *core.RateLimitState) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("limiter name is required")
	}
	if state == nil {
		return errors.New("rate limit state is required")
	}

	raw, err := encodeTimes(state.Timestamps)
	if err != nil {
		return err
	}
	updatedAt := state.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO rate_limits (name, timestamps, backoff, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			timestamps = excluded.timestamps,
			backoff = excluded.backoff,
			updated_at = excluded.updated_at
	`, name, raw, state.BackoffMultiplier, updatedAt.UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("store rate limit: %w", err)
	}

	return nil
}

// Instants are stored as a JSON array of unix milliseconds.
func encodeTimes(times []time.Time) (string, error) {
	millis := make([]int64, len(times))
	for i, ts := range times {
		millis[i] = ts.UTC().UnixMilli()
	}
	raw, err := json.Marshal(millis)
	if err != nil {
		return "", fmt.Errorf("encode timestamps: %w", err)
	}
	return string(raw), nil
}

func decodeTimes(raw string) ([]time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var millis []int64
	if err := json.Unmarshal([]byte(raw), &millis); err != nil {
		return nil, err
	}
	times := make([]time.Time, len(millis))
	for i, ms := range millis {
		times[i] = time.UnixMilli(ms).UTC()
	}
	return times, nil
}
