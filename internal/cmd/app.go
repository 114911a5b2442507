package cmd

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/greenstreak/greenstreak/internal/config"
	"github.com/greenstreak/greenstreak/internal/core"
	"github.com/greenstreak/greenstreak/internal/core/engine"
	"github.com/greenstreak/greenstreak/internal/core/github"
	"github.com/greenstreak/greenstreak/internal/core/scheduler"
	"github.com/greenstreak/greenstreak/internal/core/store"
)

// app is the wired commit pipeline shared by commit, run, serve and simulate.
type app struct {
	cfg      *config.Config
	store    *store.Store
	limiters engine.Limiters
	history  *engine.ActivityHistory
	client   *github.Client
	orch     *engine.Orchestrator
	selector *engine.Selector
	events   *scheduler.EventLog
	location *time.Location
	logger   *logging.Logger
}

// newApp opens the store and builds every collaborator. The GitHub client
// is only created when withGitHub is set; read-only commands skip token
// validation.
func newApp(ctx context.Context, cfg *config.Config, logger *logging.Logger, withGitHub bool) (*app, error) {
	if withGitHub {
		if err := cfg.ValidateGitHub(); err != nil {
			return nil, err
		}
	}

	location, err := cfg.Schedule.Location()
	if err != nil {
		return nil, err
	}
	selection, err := engine.ParseSelectionMode(cfg.Schedule.Selection)
	if err != nil {
		return nil, &engine.ConfigurationError{Reason: err.Error()}
	}

	db, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	limiter := func(name string, limit config.LimitConfig) *engine.RateLimiter {
		l := engine.NewRateLimiter(name, limit.RateLimit(), db)
		l.Logger = logger
		return l
	}

	a := &app{
		cfg:   cfg,
		store: db,
		limiters: engine.Limiters{
			Commits:  limiter(engine.LimiterCommits, cfg.Limits.Commits),
			Requests: limiter(engine.LimiterAPI, cfg.Limits.API),
			Daily:    limiter(engine.LimiterDaily, cfg.Limits.Daily),
		},
		history: &engine.ActivityHistory{
			Store:    db,
			Location: location,
			Logger:   logger,
		},
		selector: &engine.Selector{
			Repos:  cfg.GitHub.Repos,
			Mode:   selection,
			Random: core.DefaultRandom(),
		},
		events:   scheduler.NewEventLog(scheduler.DefaultEventLimit),
		location: location,
		logger:   logger,
	}

	if withGitHub {
		a.client = &github.Client{
			BaseURL:    cfg.GitHub.APIURL,
			Token:      cfg.GitHub.Token,
			HTTPClient: &http.Client{Timeout: cfg.GitHub.RequestTimeout},
			UserAgent:  userAgent(),
		}
		a.orch = &engine.Orchestrator{
			Client:         a.client,
			Limiters:       a.limiters,
			History:        a.history,
			Stats:          db,
			Random:         core.DefaultRandom(),
			Logger:         logger,
			RequestTimeout: cfg.GitHub.RequestTimeout,
		}
	}
	return a, nil
}

func (a *app) Close() error {
	if a == nil {
		return nil
	}
	return a.store.Close()
}

// target is the automated commit destination.
func (a *app) target() scheduler.Target {
	return scheduler.Target{
		Selector: a.selector,
		Branch:   a.cfg.GitHub.Branch,
		Path:     a.cfg.GitHub.Path,
		Content:  a.cfg.GitHub.Content,
	}
}

// newScheduler builds the configured loop kind. sink receives events in
// addition to the in-memory event log.
func (a *app) newScheduler(mode string, interval time.Duration, sink scheduler.EventSink) (scheduler.Scheduler, error) {
	if a.orch == nil {
		return nil, &engine.ConfigurationError{Reason: "scheduler requires a GitHub client"}
	}

	runtime := scheduler.Runtime{
		Committer: a.orch,
		Target:    a.target(),
		History:   a.history,
		Random:    core.DefaultRandom(),
		Location:  a.location,
		Logger:    a.logger,
		Events:    scheduler.Tee(a.events.Sink(), sink),
	}

	switch strings.ToLower(strings.TrimSpace(mode)) {
	case scheduler.ModeSafe:
		safe := a.cfg.Schedule.Safe.SafeMode()
		if err := safe.Validate(); err != nil {
			return nil, err
		}
		return &scheduler.SafeMode{Runtime: runtime, Config: safe}, nil
	case scheduler.ModeFixed:
		if interval <= 0 {
			interval = a.cfg.Schedule.Interval
		}
		return &scheduler.FixedInterval{
			Runtime:       runtime,
			Interval:      interval,
			CommitOnStart: a.cfg.Schedule.CommitOnStart,
		}, nil
	default:
		return nil, &engine.ConfigurationError{Reason: fmt.Sprintf("unknown schedule mode %q", mode)}
	}
}

// logEvent writes a scheduler event to logger.
func logEvent(logger *logging.Logger) scheduler.EventSink {
	return func(event core.Event) {
		if logger == nil {
			return
		}
		fields := []zap.Field{zap.String("event", string(event.Type))}
		if event.Repo != "" {
			fields = append(fields, zap.String("repo", event.Repo))
		}
		if event.Wait > 0 {
			fields = append(fields, zap.Duration("wait", event.Wait))
		}
		if event.Detail != "" {
			fields = append(fields, zap.String("detail", event.Detail))
		}
		switch event.Type {
		case core.EventFailed:
			logger.Warn("scheduler event", fields...)
		case core.EventWaiting, core.EventSkipped:
			logger.Debug("scheduler event", fields...)
		default:
			logger.Info("scheduler event", fields...)
		}
	}
}

func userAgent() string {
	name := "greenstreak"
	if appIdentity != nil && appIdentity.BinaryName != "" {
		name = appIdentity.BinaryName
	}
	return name + "/" + versionInfo.Version
}
