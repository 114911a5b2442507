package cmd

import (
	"context"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/greenstreak/greenstreak/internal/observability"
)

var runOpts struct {
	mode     string
	interval time.Duration
	metrics  bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the automated commit scheduler in the foreground",
	Long: `Run the scheduler until interrupted.

Modes:
  safe   randomized delays, quiet hours, weekday bias and a per-day cap
  fixed  one commit per --interval

Ctrl+C stops the loop after the current commit completes.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		overrides := map[string]any{}
		if cmd.Flags().Changed("mode") {
			overrides["schedule.mode"] = runOpts.mode
		}
		if cmd.Flags().Changed("interval") {
			overrides["schedule.interval"] = runOpts.interval.String()
		}
		if cmd.Flags().Changed("metrics") {
			overrides["metrics.enabled"] = runOpts.metrics
		}
		cfg, err := loadConfig(overrides)
		if err != nil {
			return err
		}

		identity := GetAppIdentity()
		namespace := identity.TelemetryNamespace()
		observability.InitServerLogger(identity.BinaryName, cfg.Logging.Level, namespace)
		logger := observability.ServerLogger
		defer logger.Sync() // nolint:errcheck // flush on exit

		if cfg.Metrics.Enabled {
			if err := observability.InitMetrics(identity.BinaryName, cfg.Metrics.Port, namespace); err != nil {
				return err
			}
			logger.Info("Metrics exporter started", zap.Int("port", observability.GetMetricsPort()))
		}

		a, err := newApp(cmd.Context(), cfg, logger, true)
		if err != nil {
			return err
		}
		defer a.Close() // nolint:errcheck // best-effort cleanup

		sched, err := a.newScheduler(cfg.Schedule.Mode, cfg.Schedule.Interval, logEvent(logger))
		if err != nil {
			return err
		}

		signals.OnShutdown(func(ctx context.Context) error {
			if sched.Stop() {
				logger.Info("Stopping scheduler...")
			}
			return nil
		})
		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			logger.Warn("Failed to enable double-tap force quit", zap.Error(err))
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		go func() {
			if err := signals.Listen(ctx); err != nil {
				logger.Error("Signal handler error", zap.Error(err))
				sched.Stop()
			}
		}()

		logger.Info("Scheduler starting",
			zap.String("mode", cfg.Schedule.Mode),
			zap.Strings("repos", cfg.GitHub.Repos),
			zap.String("selection", cfg.Schedule.Selection))

		if err := sched.Run(ctx); err != nil {
			return err
		}

		status := sched.Status()
		logger.Info("Scheduler stopped",
			zap.Int("commits", status.Commits),
			zap.Int("failures", status.Failures))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runOpts.mode, "mode", "safe", "scheduler mode: safe or fixed")
	runCmd.Flags().DurationVar(&runOpts.interval, "interval", time.Hour, "commit interval in fixed mode")
	runCmd.Flags().BoolVar(&runOpts.metrics, "metrics", false, "start the Prometheus exporter")
}
