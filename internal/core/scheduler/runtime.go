// Package scheduler drives automated commits on a randomized timetable.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/greenstreak/greenstreak/internal/core"
	"github.com/greenstreak/greenstreak/internal/core/engine"
	"github.com/greenstreak/greenstreak/internal/metrics"
)

// Committer performs one commit. *engine.Orchestrator satisfies it.
type Committer interface {
	Commit(ctx context.Context, req engine.CommitRequest) (*core.CommitRecord, error)
}

// Scheduler is the control surface shared by both loop kinds.
type Scheduler interface {
	Start(ctx context.Context) error
	Run(ctx context.Context) error
	Stop() bool
	Wait(ctx context.Context) error
	Status() Status
}

// Target is the file every automated commit writes to.
type Target struct {
	Selector *engine.Selector
	Branch   string
	Path     string
	Content  string
}

// Validate checks every configured repository once, before the loop starts.
func (t Target) Validate() error {
	if t.Selector == nil || len(t.Selector.Repos) == 0 {
		return &engine.ConfigurationError{Reason: "at least one repository is required"}
	}
	for _, repo := range t.Selector.Repos {
		if err := engine.ValidateTarget(repo, t.Branch, t.Path); err != nil {
			return err
		}
	}
	return nil
}

// Status is a point-in-time view of a scheduler.
type Status struct {
	Mode         string             `json:"mode"`
	State        string             `json:"state"`
	NextActionAt *time.Time         `json:"next_action_at,omitempty"`
	CommitsToday int                `json:"commits_today"`
	Commits      int                `json:"commits"`
	Failures     int                `json:"failures"`
	LastCommit   *core.CommitRecord `json:"last_commit,omitempty"`
}

// Runtime holds the collaborators and run state common to both schedulers.
type Runtime struct {
	Committer Committer
	Target    Target
	History   *engine.ActivityHistory
	Sleeper   Sleeper
	Random    core.Random
	Clock     func() time.Time
	Location  *time.Location
	Logger    *logging.Logger
	Events    EventSink

	ctl control

	mu           sync.Mutex
	nextAt       *time.Time
	commits      int
	failures     int
	today        string
	commitsToday int
	lastCommit   *core.CommitRecord
}

// Stop requests a cooperative stop. A pending sleep ends immediately; an
// in-flight commit completes. It reports whether a running loop was signalled.
func (r *Runtime) Stop() bool {
	return r.ctl.stop()
}

// Wait blocks until the current loop has exited.
func (r *Runtime) Wait(ctx context.Context) error {
	return r.ctl.wait(ctx)
}

// State returns the lifecycle token.
func (r *Runtime) State() State {
	return r.ctl.current()
}

func (r *Runtime) status(mode string) Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	status := Status{
		Mode:       mode,
		State:      r.ctl.current().String(),
		Commits:    r.commits,
		Failures:   r.failures,
		LastCommit: r.lastCommit,
	}
	if r.today == r.dayKey(r.now()) {
		status.CommitsToday = r.commitsToday
	}
	if r.nextAt != nil && status.State == StateRunning.String() {
		next := *r.nextAt
		status.NextActionAt = &next
	}
	return status
}

// run executes loop under the lifecycle guard and blocks until it exits.
func (r *Runtime) run(ctx context.Context, mode string, loop loopFunc) error {
	ctx, stopCtx, err := r.begin(ctx, mode)
	if err != nil {
		return err
	}
	r.drive(ctx, stopCtx, mode, loop)
	return nil
}

// start executes loop in a new goroutine. ctx must outlive the loop.
func (r *Runtime) start(ctx context.Context, mode string, loop loopFunc) error {
	ctx, stopCtx, err := r.begin(ctx, mode)
	if err != nil {
		return err
	}
	go r.drive(ctx, stopCtx, mode, loop)
	return nil
}

// loopFunc sleeps on stopCtx and commits on ctx, so a stop never aborts a
// write halfway.
type loopFunc func(ctx, stopCtx context.Context)

func (r *Runtime) begin(ctx context.Context, mode string) (context.Context, context.Context, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if r.Committer == nil {
		return nil, nil, &engine.ConfigurationError{Reason: "scheduler has no committer"}
	}
	if err := r.Target.Validate(); err != nil {
		return nil, nil, err
	}
	stopCtx, err := r.ctl.begin(ctx)
	if err != nil {
		if r.Logger != nil {
			r.Logger.Info("scheduler start ignored, loop already running", zap.String("mode", mode))
		}
		return nil, nil, err
	}
	return ctx, stopCtx, nil
}

func (r *Runtime) drive(ctx, stopCtx context.Context, mode string, loop loopFunc) {
	defer r.ctl.end()

	if r.Logger != nil {
		r.Logger.Info("scheduler started", zap.String("mode", mode))
	}
	r.emit(core.Event{Type: core.EventStarted, Detail: mode + " scheduler started"})
	loop(ctx, stopCtx)
	r.setNext(nil)
	r.emit(core.Event{Type: core.EventStopped, Detail: mode + " scheduler stopped"})
	if r.Logger != nil {
		r.Logger.Info("scheduler stopped", zap.String("mode", mode))
	}
}

// sleep publishes the next action time and event, then waits d on stopCtx.
// It reports whether the loop should continue.
func (r *Runtime) sleep(stopCtx context.Context, d time.Duration, event core.Event) bool {
	next := r.now().Add(d)
	r.setNext(&next)
	if event.Type != "" {
		event.Wait = d
		r.emit(event)
	}

	sleeper := r.Sleeper
	if sleeper == nil {
		sleeper = TimerSleeper{}
	}
	if err := sleeper.Sleep(stopCtx, d); err != nil {
		return false
	}
	return !r.ctl.stopped(stopCtx)
}

// commitOnce selects a repository and commits to it, recording the outcome.
func (r *Runtime) commitOnce(ctx context.Context, mode string) (*core.CommitRecord, error) {
	repo := r.Target.Selector.Pick()
	record, err := r.Committer.Commit(ctx, engine.CommitRequest{
		Repo:      repo,
		Branch:    r.Target.Branch,
		Path:      r.Target.Path,
		Content:   r.Target.Content,
		Automated: true,
		Mode:      mode,
	})
	if err != nil {
		r.mu.Lock()
		r.failures++
		r.mu.Unlock()

		var limited *engine.RateLimitedError
		if errors.As(err, &limited) {
			metrics.RecordSchedulerDecision("rate_limited")
			r.emit(core.Event{Type: core.EventSkipped, Repo: repo, Detail: err.Error(), Wait: limited.Wait})
		} else {
			metrics.RecordSchedulerDecision("failed")
			r.emit(core.Event{Type: core.EventFailed, Repo: repo, Detail: err.Error()})
		}
		if r.Logger != nil {
			r.Logger.Warn("scheduled commit failed", zap.String("repo", repo), zap.Error(err))
		}
		return nil, err
	}

	r.mu.Lock()
	r.commits++
	day := r.dayKey(r.now())
	if r.today != day {
		r.today = day
		r.commitsToday = 0
	}
	r.commitsToday++
	r.lastCommit = record
	r.mu.Unlock()

	metrics.RecordSchedulerDecision("committed")
	r.emit(core.Event{Type: core.EventCommitted, Repo: repo, Detail: record.Message})
	r.checkActivity(ctx)
	return record, nil
}

// checkActivity reports suspicious timing. The verdict is advisory only.
func (r *Runtime) checkActivity(ctx context.Context) {
	if r.History == nil {
		return
	}
	anomaly := r.History.DetectAnomaly(ctx)
	if !anomaly.Suspicious {
		return
	}
	metrics.RecordAnomaly(string(anomaly.Kind))
	if r.Logger != nil {
		r.Logger.Warn("suspicious activity pattern",
			zap.String("reason", anomaly.Reason),
			zap.String("recommendation", anomaly.Recommendation))
	}
}

func (r *Runtime) todayCount(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.today != r.dayKey(now) {
		return 0
	}
	return r.commitsToday
}

func (r *Runtime) resetDay() {
	r.mu.Lock()
	r.today = ""
	r.commitsToday = 0
	r.mu.Unlock()
}

func (r *Runtime) setNext(next *time.Time) {
	r.mu.Lock()
	r.nextAt = next
	r.mu.Unlock()
}

func (r *Runtime) emit(event core.Event) {
	if r.Events == nil {
		return
	}
	if event.Time.IsZero() {
		event.Time = r.now()
	}
	r.Events(event)
}

func (r *Runtime) random() core.Random {
	if r.Random != nil {
		return r.Random
	}
	return core.DefaultRandom()
}

func (r *Runtime) local(t time.Time) time.Time {
	if r.Location != nil {
		return t.In(r.Location)
	}
	return t.Local()
}

func (r *Runtime) dayKey(t time.Time) string {
	return r.local(t).Format(time.DateOnly)
}

func (r *Runtime) now() time.Time {
	if r.Clock != nil {
		return r.Clock()
	}
	return time.Now()
}

var (
	_ Scheduler = (*SafeMode)(nil)
	_ Scheduler = (*FixedInterval)(nil)
)
