package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/greenstreak/greenstreak/internal/config"
	"github.com/greenstreak/greenstreak/internal/core/engine"
	"github.com/greenstreak/greenstreak/internal/core/scheduler"
	apperrors "github.com/greenstreak/greenstreak/internal/errors"
	"github.com/greenstreak/greenstreak/internal/metrics"
	"github.com/greenstreak/greenstreak/internal/observability"
	"github.com/greenstreak/greenstreak/internal/server"
	"github.com/greenstreak/greenstreak/internal/server/handlers"
)

var (
	serverPort int
	serverHost string
)

// telemetryHealthChecker ensures telemetry system and exporter are available
type telemetryHealthChecker struct{}

func (telemetryHealthChecker) CheckHealth(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return apperrors.NewInternalError("telemetry system not initialized")
	}
	return nil
}

// identityHealthChecker validates app identity metadata
type identityHealthChecker struct {
	binaryName string
	envPrefix  string
	configName string
}

func (i identityHealthChecker) CheckHealth(ctx context.Context) error {
	switch {
	case i.binaryName == "":
		return &engine.ConfigurationError{Reason: "app identity missing binary name"}
	case i.envPrefix == "":
		return &engine.ConfigurationError{Reason: "app identity missing env prefix"}
	case i.configName == "":
		return &engine.ConfigurationError{Reason: "app identity missing config name"}
	}
	return nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP control server",
	Long: `Start the HTTP server exposing health probes, version, metrics and the
/api/v1 control surface (status, stats, rate limits, activity, events,
direct commits and scheduler start/stop).

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: stop the scheduler, then shut down
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: re-read the config file (running components keep their settings)

Set <PREFIX>ADMIN_TOKEN to enable POST /admin/signal.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		identity := GetAppIdentity()
		namespace := identity.TelemetryNamespace()

		cfg, err := loadConfig(serveOverrides(cmd))
		if err != nil {
			return err
		}

		observability.InitServerLogger(identity.BinaryName, cfg.Logging.Level, namespace)
		logger := observability.ServerLogger

		if cfg.Metrics.Enabled {
			if err := observability.InitMetrics(identity.BinaryName, cfg.Metrics.Port, namespace); err != nil {
				logger.Error("Failed to initialize metrics", zap.Error(err))
				return err
			}
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		a, err := newApp(ctx, cfg, logger, true)
		if err != nil {
			return err
		}
		defer a.Close() // nolint:errcheck // best-effort cleanup

		sched, err := a.newScheduler(cfg.Schedule.Mode, cfg.Schedule.Interval, logEvent(logger))
		if err != nil {
			return err
		}

		logger.Info("Initializing server",
			zap.String("service", identity.BinaryName),
			zap.String("namespace", namespace),
			zap.String("version", versionInfo.Version),
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port),
			zap.Bool("metrics", cfg.Metrics.Enabled),
			zap.Int("metrics_port", observability.GetMetricsPort()),
			zap.String("schedule_mode", cfg.Schedule.Mode),
			zap.Strings("repos", cfg.GitHub.Repos))

		handlers.InitHealthManager(versionInfo.Version)
		hm := handlers.GetHealthManager()
		hm.RegisterChecker("store", a.store)
		hm.RegisterChecker("app_identity", identityHealthChecker{
			binaryName: identity.BinaryName,
			envPrefix:  identity.EnvPrefix,
			configName: identity.ConfigName,
		})
		if cfg.Metrics.Enabled {
			hm.RegisterChecker("telemetry", telemetryHealthChecker{})
		}
		handlers.SetAppIdentity(identity)

		api := &handlers.API{
			Commits:   a.orch,
			Stats:     a.store,
			Limiters:  a.limiters,
			History:   a.history,
			Scheduler: sched,
			Events:    a.events,
			Defaults: handlers.CommitDefaults{
				Repo:    cfg.GitHub.Repos[0],
				Branch:  cfg.GitHub.Branch,
				Path:    cfg.GitHub.Path,
				Content: cfg.GitHub.Content,
			},
			Context: ctx,
		}

		srv := server.New(server.Options{
			Config:     cfg.Server,
			API:        api,
			AdminToken: os.Getenv(identity.EnvPrefix + "ADMIN_TOKEN"),
		})

		done := registerServeSignals(logger, cfg.Server.ShutdownTimeout, srv, sched)

		if cfg.Server.AutoStart {
			if err := sched.Start(ctx); err != nil {
				return err
			}
			logger.Info("Scheduler started", zap.String("mode", cfg.Schedule.Mode))
		}

		errChan := make(chan error, 2)
		go func() {
			logger.Info("Starting HTTP server...", zap.String("addr", srv.Addr()))
			metrics.SetServerStartTime(time.Now())
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()

		go func() {
			if err := signals.Listen(ctx); err != nil {
				logger.Error("Signal handler error", zap.Error(err))
				errChan <- err
			}
		}()

		select {
		case err := <-errChan:
			sched.Stop()
			return err
		case <-done:
			return nil
		}
	},
}

// registerServeSignals wires shutdown (LIFO: scheduler, then HTTP, then
// logger flush), SIGHUP reload and double-tap force quit. The returned
// channel closes once shutdown has completed.
func registerServeSignals(logger *logging.Logger, timeout time.Duration, srv *server.Server, sched scheduler.Scheduler) <-chan struct{} {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	done := make(chan struct{})

	signals.OnShutdown(func(ctx context.Context) error {
		logger.Info("Flushing logger...")
		if err := logger.Sync(); err != nil {
			// stdout/stderr may already be closed
			logger.Warn("Logger sync returned error (may be benign)", zap.Error(err))
		}
		close(done)
		return nil
	})

	signals.OnShutdown(func(ctx context.Context) error {
		logger.Info("Shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown failed", zap.Error(err))
			return err
		}
		logger.Info("HTTP server stopped gracefully")
		return nil
	})

	signals.OnShutdown(func(ctx context.Context) error {
		if !sched.Stop() {
			return nil
		}
		logger.Info("Stopping scheduler...")
		waitCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return sched.Wait(waitCtx)
	})

	signals.OnReload(func(ctx context.Context) error {
		logger.Info("Received SIGHUP: attempting config reload")
		if err := viper.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) {
				logger.Info("No config file found - using defaults and environment variables")
				return nil
			}
			logger.Error("Failed to reload config file",
				zap.String("file", viper.ConfigFileUsed()),
				zap.Error(err))
			return err
		}
		if _, err := config.Load(viper.GetViper()); err != nil {
			logger.Error("Reloaded configuration is invalid", zap.Error(err))
			return err
		}
		logger.Info("Configuration reloaded; restart to apply limiter and schedule changes",
			zap.String("file", viper.ConfigFileUsed()))
		return nil
	})

	if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
		Window:  2 * time.Second,
		Message: "Press Ctrl+C again within 2 seconds to force quit",
	}); err != nil {
		logger.Warn("Failed to enable double-tap force quit", zap.Error(err))
	}
	return done
}

func serveOverrides(cmd *cobra.Command) map[string]any {
	overrides := map[string]any{}
	if cmd.Flags().Changed("host") {
		overrides["server.host"] = serverHost
	}
	if cmd.Flags().Changed("port") {
		overrides["server.port"] = serverPort
	}
	if cmd.Flags().Changed("auto-start") {
		overrides["server.auto_start"] = serveAutoStart
	}
	return overrides
}

var serveAutoStart bool

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "localhost", "server host")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "server port")
	serveCmd.Flags().BoolVar(&serveAutoStart, "auto-start", false, "start the scheduler immediately")
}
