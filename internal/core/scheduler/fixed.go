package scheduler

import (
	"context"
	"time"

	"github.com/greenstreak/greenstreak/internal/core"
	"github.com/greenstreak/greenstreak/internal/core/engine"
	"github.com/greenstreak/greenstreak/internal/metrics"
)

const (
	ModeFixed = "fixed"

	// FixedJitter is the spread applied to the configured interval.
	FixedJitter = 0.25
)

// FixedInterval commits every Interval +/- 25%.
type FixedInterval struct {
	Runtime
	Interval      time.Duration
	CommitOnStart bool
}

// Start launches the loop in the background.
func (f *FixedInterval) Start(ctx context.Context) error {
	if err := f.validate(); err != nil {
		return err
	}
	return f.start(ctx, ModeFixed, f.loop)
}

// Run executes the loop until Stop is called or ctx is done.
func (f *FixedInterval) Run(ctx context.Context) error {
	if err := f.validate(); err != nil {
		return err
	}
	return f.run(ctx, ModeFixed, f.loop)
}

// Status reports the current run state.
func (f *FixedInterval) Status() Status {
	return f.status(ModeFixed)
}

func (f *FixedInterval) validate() error {
	if f.Interval <= 0 {
		return &engine.ConfigurationError{Reason: "interval must be positive"}
	}
	return nil
}

func (f *FixedInterval) loop(ctx, stopCtx context.Context) {
	r := f.random()
	if f.CommitOnStart {
		_, _ = f.commitOnce(ctx, ModeFixed)
	}

	for !f.ctl.stopped(stopCtx) {
		wait := Jitter(r, f.Interval, FixedJitter)
		metrics.RecordSchedulerDecision("wait")
		waiting := core.Event{Type: core.EventWaiting, Detail: "next commit in " + wait.Round(time.Second).String()}
		if !f.sleep(stopCtx, wait, waiting) {
			return
		}
		_, _ = f.commitOnce(ctx, ModeFixed)
	}
}
