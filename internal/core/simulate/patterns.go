// Package simulate plans and performs dated backfill commits.
package simulate

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/greenstreak/greenstreak/internal/core"
	"github.com/greenstreak/greenstreak/internal/core/engine"
)

// Pattern names a date layout.
type Pattern string

const (
	PatternRandom       Pattern = "random"
	PatternRandomBurst  Pattern = "random-burst"
	PatternStreak30     Pattern = "30-day-streak"
	PatternYearGrid     Pattern = "year-grid"
	PatternCheckerboard Pattern = "checkerboard"
	PatternWeekdays     Pattern = "weekdays-only"
)

const (
	minBurst = 5
	maxBurst = 10
	noonHour = 12
)

// Patterns lists every supported pattern.
func Patterns() []Pattern {
	return []Pattern{PatternRandom, PatternRandomBurst, PatternStreak30, PatternYearGrid, PatternCheckerboard, PatternWeekdays}
}

// ParsePattern normalizes a pattern name.
func ParsePattern(value string) (Pattern, error) {
	p := Pattern(strings.ToLower(strings.TrimSpace(value)))
	if slices.Contains(Patterns(), p) {
		return p, nil
	}
	return "", &engine.ValidationError{Field: "pattern", Reason: fmt.Sprintf("unknown pattern %q", value)}
}

// Counted reports whether the pattern takes an explicit commit count.
func (p Pattern) Counted() bool {
	return p == PatternRandom || p == PatternRandomBurst
}

// Dates lays out commit instants between start and end, inclusive. Random
// patterns draw instants uniformly; calendar patterns use noon of each
// selected day. The result is chronological.
func Dates(pattern Pattern, start, end time.Time, n int, r core.Random) ([]time.Time, error) {
	if end.Before(start) {
		return nil, &engine.ValidationError{Field: "start", Reason: "cannot be after end"}
	}
	if pattern.Counted() && n <= 0 {
		return nil, &engine.ValidationError{Field: "count", Reason: "must be positive"}
	}
	if r == nil {
		r = core.DefaultRandom()
	}

	span := end.Sub(start)
	var dates []time.Time

	switch pattern {
	case PatternRandom, PatternRandomBurst:
		count := n
		if pattern == PatternRandomBurst {
			count = min(n, minBurst+r.IntN(maxBurst-minBurst+1))
		}
		for i := 0; i < count; i++ {
			dates = append(dates, start.Add(time.Duration(r.Float64()*float64(span))))
		}
		slices.SortFunc(dates, func(a, b time.Time) int { return a.Compare(b) })
	case PatternStreak30, PatternYearGrid, PatternCheckerboard, PatternWeekdays:
		day := time.Date(start.Year(), start.Month(), start.Day(), noonHour, 0, 0, 0, start.Location())
		for i := 0; !day.After(end); i++ {
			include := true
			switch pattern {
			case PatternCheckerboard:
				include = i%2 == 0
			case PatternWeekdays:
				include = day.Weekday() != time.Saturday && day.Weekday() != time.Sunday
			}
			if include {
				dates = append(dates, day)
			}
			day = day.AddDate(0, 0, 1)
		}
	default:
		return nil, &engine.ValidationError{Field: "pattern", Reason: fmt.Sprintf("unknown pattern %q", pattern)}
	}

	return dates, nil
}
