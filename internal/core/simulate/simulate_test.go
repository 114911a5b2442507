package simulate

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/greenstreak/greenstreak/internal/core"
	"github.com/greenstreak/greenstreak/internal/core/engine"
)

func TestDatesCalendarPatterns(t *testing.T) {
	start := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC) // Monday
	end := time.Date(2025, 3, 16, 23, 0, 0, 0, time.UTC)

	tests := []struct {
		pattern Pattern
		want    int
	}{
		{pattern: PatternYearGrid, want: 14},
		{pattern: PatternStreak30, want: 14},
		{pattern: PatternCheckerboard, want: 7},
		{pattern: PatternWeekdays, want: 10},
	}
	for _, tt := range tests {
		t.Run(string(tt.pattern), func(t *testing.T) {
			dates, err := Dates(tt.pattern, start, end, 0, nil)
			require.NoError(t, err)
			require.Len(t, dates, tt.want)
			for _, d := range dates {
				require.Equal(t, 12, d.Hour())
				if tt.pattern == PatternWeekdays {
					require.NotEqual(t, time.Saturday, d.Weekday())
					require.NotEqual(t, time.Sunday, d.Weekday())
				}
			}
		})
	}
}

func TestDatesRandomWithinRange(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 2, 0)
	r := rand.New(rand.NewPCG(4, 2))

	dates, err := Dates(PatternRandom, start, end, 40, r)
	require.NoError(t, err)
	require.Len(t, dates, 40)
	for i, d := range dates {
		require.False(t, d.Before(start))
		require.False(t, d.After(end))
		if i > 0 {
			require.False(t, d.Before(dates[i-1]))
		}
	}

	burst, err := Dates(PatternRandomBurst, start, end, 40, r)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(burst), 5)
	require.LessOrEqual(t, len(burst), 10)

	capped, err := Dates(PatternRandomBurst, start, end, 3, r)
	require.NoError(t, err)
	require.Len(t, capped, 3)
}

func TestDatesValidation(t *testing.T) {
	start := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	_, err := Dates(PatternYearGrid, start, start.Add(-time.Hour), 0, nil)
	require.ErrorIs(t, err, engine.ErrValidation)

	_, err = Dates(PatternRandom, start, start.AddDate(0, 0, 1), 0, nil)
	require.ErrorIs(t, err, engine.ErrValidation)

	_, err = ParsePattern("spiral")
	require.ErrorIs(t, err, engine.ErrValidation)

	p, err := ParsePattern(" Weekdays-Only ")
	require.NoError(t, err)
	require.Equal(t, PatternWeekdays, p)
}

type recordingCommitter struct {
	requests []engine.CommitRequest
	failOn   int
}

func (c *recordingCommitter) Commit(ctx context.Context, req engine.CommitRequest) (*core.CommitRecord, error) {
	c.requests = append(c.requests, req)
	if c.failOn > 0 && len(c.requests) == c.failOn {
		return nil, errors.New("remote rejected")
	}
	return &core.CommitRecord{Repo: req.Repo, Path: req.Path}, nil
}

type countingSleeper struct {
	calls []time.Duration
}

func (s *countingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.calls = append(s.calls, d)
	return ctx.Err()
}

func TestBackfillRun(t *testing.T) {
	committer := &recordingCommitter{failOn: 2}
	sleeper := &countingSleeper{}
	var progress []int
	backfill := &Backfill{
		Committer: committer,
		Sleeper:   sleeper,
		OnProgress: func(done, total int, date time.Time, err error) {
			progress = append(progress, done)
			require.Equal(t, 4, total)
		},
	}

	start := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	report, err := backfill.Run(context.Background(), Plan{
		Pattern: PatternYearGrid,
		Start:   start,
		End:     start.AddDate(0, 0, 3).Add(12 * time.Hour),
		Repo:    "octo/demo",
		Branch:  "main",
		Path:    "history.md",
	})
	require.NoError(t, err)
	require.Equal(t, 4, report.Planned)
	require.Len(t, report.Committed, 3)
	require.Len(t, report.Failed, 1)
	require.Equal(t, []int{1, 2, 3, 4}, progress)
	require.Equal(t, []time.Duration{DefaultPause, DefaultPause, DefaultPause}, sleeper.calls)

	require.Equal(t, "2025-03-03 12:00:00 UTC", committer.requests[0].Stamp)
	require.Empty(t, committer.requests[0].Message)
	require.False(t, committer.requests[0].Automated)
}

func TestBackfillRejectsBadPlan(t *testing.T) {
	backfill := &Backfill{Committer: &recordingCommitter{}, Sleeper: &countingSleeper{}}
	start := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

	_, err := backfill.Run(context.Background(), Plan{Pattern: PatternYearGrid, Start: start, End: start, Repo: "octo/demo", Branch: "main", Path: "../x"})
	require.ErrorIs(t, err, engine.ErrValidation)

	_, err = backfill.Run(context.Background(), Plan{Pattern: PatternYearGrid, Start: start.AddDate(0, 0, 1), End: start, Repo: "octo/demo", Branch: "main", Path: "x"})
	require.ErrorIs(t, err, engine.ErrValidation)
}
