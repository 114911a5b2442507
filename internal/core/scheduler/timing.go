package scheduler

import (
	"context"
	"time"

	"github.com/greenstreak/greenstreak/internal/core"
)

// Sleeper blocks for d or until ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// TimerSleeper sleeps on a real timer.
type TimerSleeper struct{}

// Sleep implements Sleeper.
func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Jitter returns a uniform draw from [base*(1-variation), base*(1+variation)].
func Jitter(r core.Random, base time.Duration, variation float64) time.Duration {
	if variation <= 0 || base <= 0 {
		return base
	}
	lo := float64(base) * (1 - variation)
	hi := float64(base) * (1 + variation)
	return time.Duration(lo + r.Float64()*(hi-lo))
}

// Between returns a uniform draw from [lo, hi].
func Between(r core.Random, lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(r.Float64()*float64(hi-lo))
}

// QuietHours is a half-open local hour range [Start, End) that may wrap
// past midnight. Start == End disables it.
type QuietHours struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// Contains reports whether hour falls inside the range.
func (q QuietHours) Contains(hour int) bool {
	switch {
	case q.Start == q.End:
		return false
	case q.Start < q.End:
		return hour >= q.Start && hour < q.End
	default:
		return hour >= q.Start || hour < q.End
	}
}

// Until returns the time remaining until the range ends.
func (q QuietHours) Until(now time.Time) time.Duration {
	end := time.Date(now.Year(), now.Month(), now.Day(), q.End, 0, 0, 0, now.Location())
	if !end.After(now) {
		end = end.AddDate(0, 0, 1)
	}
	return end.Sub(now)
}

func untilMidnight(now time.Time) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
	return next.Sub(now)
}

func isWeekend(t time.Time) bool {
	return t.Weekday() == time.Saturday || t.Weekday() == time.Sunday
}
