package simulate

import (
	"context"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/greenstreak/greenstreak/internal/core"
	"github.com/greenstreak/greenstreak/internal/core/engine"
	"github.com/greenstreak/greenstreak/internal/core/scheduler"
)

// DefaultPause separates consecutive backfill commits.
const DefaultPause = time.Second

const stampLayout = "2006-01-02 15:04:05 MST"

// Plan describes one backfill run.
type Plan struct {
	Pattern Pattern   `json:"pattern" yaml:"pattern"`
	Start   time.Time `json:"start" yaml:"start"`
	End     time.Time `json:"end" yaml:"end"`
	Count   int       `json:"count,omitempty" yaml:"count,omitempty"`
	Repo    string    `json:"repo" yaml:"repo"`
	Branch  string    `json:"branch" yaml:"branch"`
	Path    string    `json:"path" yaml:"path"`
}

// Failure is a dated commit that did not land.
type Failure struct {
	Date  time.Time `json:"date"`
	Error string    `json:"error"`
}

// Report summarises a backfill run.
type Report struct {
	Planned   int                 `json:"planned"`
	Committed []core.CommitRecord `json:"committed"`
	Failed    []Failure           `json:"failed,omitempty"`
}

// Backfill commits once per planned date, rendering the date into the
// placeholder body.
type Backfill struct {
	Committer  scheduler.Committer
	Sleeper    scheduler.Sleeper
	Random     core.Random
	Pause      time.Duration
	Logger     *logging.Logger
	OnProgress func(done, total int, date time.Time, err error)
}

// Run executes plan. Individual commit failures are collected in the report;
// only plan validation and context cancellation abort the run.
func (b *Backfill) Run(ctx context.Context, plan Plan) (*Report, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.Committer == nil {
		return nil, &engine.ConfigurationError{Reason: "backfill has no committer"}
	}
	if err := engine.ValidateTarget(plan.Repo, plan.Branch, plan.Path); err != nil {
		return nil, err
	}

	dates, err := Dates(plan.Pattern, plan.Start, plan.End, plan.Count, b.Random)
	if err != nil {
		return nil, err
	}

	report := &Report{Planned: len(dates)}
	pause := b.Pause
	if pause <= 0 {
		pause = DefaultPause
	}
	sleeper := b.Sleeper
	if sleeper == nil {
		sleeper = scheduler.TimerSleeper{}
	}

	for i, date := range dates {
		record, err := b.Committer.Commit(ctx, engine.CommitRequest{
			Repo:   plan.Repo,
			Branch: plan.Branch,
			Path:   plan.Path,
			Stamp:  date.Format(stampLayout),
			Mode:   "simulate",
		})
		if err != nil {
			report.Failed = append(report.Failed, Failure{Date: date, Error: err.Error()})
			if b.Logger != nil {
				b.Logger.Warn("backfill commit failed", zap.Time("date", date), zap.Error(err))
			}
		} else {
			report.Committed = append(report.Committed, *record)
		}
		if b.OnProgress != nil {
			b.OnProgress(i+1, len(dates), date, err)
		}

		if i < len(dates)-1 {
			if err := sleeper.Sleep(ctx, pause); err != nil {
				return report, err
			}
		}
	}
	return report, nil
}
