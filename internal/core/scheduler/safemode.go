package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/greenstreak/greenstreak/internal/core"
	"github.com/greenstreak/greenstreak/internal/core/engine"
	"github.com/greenstreak/greenstreak/internal/metrics"
)

const (
	ModeSafe = "safe"

	weekendSkipFactor = 1.5
	workStartHour     = 9
	workEndHour       = 17
	workHoursFactor   = 0.7
	offHoursFactor    = 1.3
)

// SafeModeConfig is fixed for the lifetime of one scheduling session.
type SafeModeConfig struct {
	MinDelay         time.Duration `json:"min_delay" yaml:"min_delay"`
	MaxDelay         time.Duration `json:"max_delay" yaml:"max_delay"`
	SkipProbability  float64       `json:"skip_probability" yaml:"skip_probability"`
	MaxCommitsPerDay int           `json:"max_commits_per_day" yaml:"max_commits_per_day"`
	QuietHours       QuietHours    `json:"quiet_hours" yaml:"quiet_hours"`
	WorkdayBias      float64       `json:"workday_bias" yaml:"workday_bias"`
	NaturalVariation float64       `json:"natural_variation" yaml:"natural_variation"`
}

// DefaultSafeModeConfig returns the stock timing policy.
func DefaultSafeModeConfig() SafeModeConfig {
	return SafeModeConfig{
		MinDelay:         45 * time.Minute,
		MaxDelay:         240 * time.Minute,
		SkipProbability:  0.2,
		MaxCommitsPerDay: 15,
		QuietHours:       QuietHours{Start: 23, End: 7},
		WorkdayBias:      0.75,
		NaturalVariation: 0.3,
	}
}

// Validate checks bounds and probabilities.
func (c SafeModeConfig) Validate() error {
	switch {
	case c.MinDelay <= 0:
		return &engine.ConfigurationError{Reason: "min delay must be positive"}
	case c.MaxDelay < c.MinDelay:
		return &engine.ConfigurationError{Reason: "max delay must not be less than min delay"}
	case c.SkipProbability < 0 || c.SkipProbability > 1:
		return &engine.ConfigurationError{Reason: "skip probability must be within [0,1]"}
	case c.WorkdayBias < 0 || c.WorkdayBias > 1:
		return &engine.ConfigurationError{Reason: "workday bias must be within [0,1]"}
	case c.NaturalVariation < 0 || c.NaturalVariation >= 1:
		return &engine.ConfigurationError{Reason: "natural variation must be within [0,1)"}
	case c.MaxCommitsPerDay <= 0:
		return &engine.ConfigurationError{Reason: "max commits per day must be positive"}
	case c.QuietHours.Start < 0 || c.QuietHours.Start > 23 || c.QuietHours.End < 0 || c.QuietHours.End > 23:
		return &engine.ConfigurationError{Reason: "quiet hours must be within 0..23"}
	}
	return nil
}

// SafeMode commits on a human-looking timetable: no activity during quiet
// hours, a daily cap, random skips, suppressed weekends, and delays shortened
// during working hours.
type SafeMode struct {
	Runtime
	Config SafeModeConfig
}

// Start launches the loop in the background.
func (s *SafeMode) Start(ctx context.Context) error {
	if err := s.Config.Validate(); err != nil {
		return err
	}
	return s.start(ctx, ModeSafe, s.loop)
}

// Run executes the loop until Stop is called or ctx is done.
func (s *SafeMode) Run(ctx context.Context) error {
	if err := s.Config.Validate(); err != nil {
		return err
	}
	return s.run(ctx, ModeSafe, s.loop)
}

// Status reports the current run state.
func (s *SafeMode) Status() Status {
	return s.status(ModeSafe)
}

func (s *SafeMode) loop(ctx, stopCtx context.Context) {
	cfg := s.Config
	r := s.random()
	s.resetDay()

	for !s.ctl.stopped(stopCtx) {
		now := s.local(s.now())

		if cfg.QuietHours.Contains(now.Hour()) {
			s.sleep(stopCtx, cfg.QuietHours.Until(now),
				s.deferral("quiet_hours", fmt.Sprintf("quiet hours, resuming at %02d:00", cfg.QuietHours.End)))
			continue
		}

		if s.todayCount(now) >= cfg.MaxCommitsPerDay {
			s.sleep(stopCtx, untilMidnight(now),
				s.deferral("daily_cap", fmt.Sprintf("daily limit of %d reached", cfg.MaxCommitsPerDay)))
			continue
		}

		weekend := isWeekend(now)
		skip := cfg.SkipProbability
		if weekend {
			skip *= weekendSkipFactor
		}
		if r.Float64() < skip {
			s.sleep(stopCtx, Between(r, cfg.MinDelay, cfg.MaxDelay), s.deferral("skip", "skipping this opportunity"))
			continue
		}

		if weekend && r.Float64() < 1-cfg.WorkdayBias {
			s.sleep(stopCtx, Jitter(r, cfg.MaxDelay, cfg.NaturalVariation), s.deferral("weekend", "weekend pause"))
			continue
		}

		wait := Jitter(r, Between(r, cfg.MinDelay, cfg.MaxDelay), cfg.NaturalVariation)
		if hour := now.Hour(); hour >= workStartHour && hour <= workEndHour {
			wait = time.Duration(float64(wait) * workHoursFactor)
		} else {
			wait = time.Duration(float64(wait) * offHoursFactor)
		}
		metrics.RecordSchedulerDecision("wait")
		current := s.now()
		waiting := core.Event{Type: core.EventWaiting, Detail: "next commit " + humanize.RelTime(current.Add(wait), current, "ago", "from now")}
		if !s.sleep(stopCtx, wait, waiting) {
			return
		}

		// A long wait may end inside quiet hours; the next pass sleeps them out.
		if cfg.QuietHours.Contains(s.local(s.now()).Hour()) {
			continue
		}

		_, _ = s.commitOnce(ctx, ModeSafe)
	}
}

func (s *SafeMode) deferral(kind, detail string) core.Event {
	metrics.RecordSchedulerDecision(kind)
	if s.Logger != nil {
		s.Logger.Debug("scheduler deferred", zap.String("reason", kind), zap.String("detail", detail))
	}
	return core.Event{Type: core.EventSkipped, Detail: detail}
}
