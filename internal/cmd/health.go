package cmd

import (
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/greenstreak/greenstreak/internal/core/engine"
	"github.com/greenstreak/greenstreak/internal/observability"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run self-health check",
	Long:  "Verify the binary can start: version metadata, logger, configuration and store.",
	Run: func(cmd *cobra.Command, args []string) {
		// Can't log if logger is nil, so use stderr
		if observability.CLILogger == nil {
			ExitWithCodeStderr(foundry.ExitConfigInvalid, "Logger not initialized", &engine.ConfigurationError{Reason: "logger not initialized"})
			return
		}
		log := observability.CLILogger
		log.Info("Running health check...")

		if versionInfo.Version == "" {
			log.Error("❌ FAIL: Version information missing")
			ExitWithCode(log, foundry.ExitConfigInvalid, "Version information missing", &engine.ConfigurationError{Reason: "version information missing"})
			return
		}
		log.Debug("Version check passed", zap.String("version", versionInfo.Version))
		log.Info("✅ Version information available")
		log.Info("✅ Logger initialized")

		cfg, err := loadConfig(nil)
		if err != nil {
			ExitWithCode(log, ExitCodeFor(err), "Configuration invalid", err)
			return
		}
		log.Info("✅ Configuration valid")

		db, err := openStore(cmd.Context(), cfg.Store)
		if err != nil {
			ExitWithCode(log, foundry.ExitFailure, "Store unavailable", err)
			return
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup
		if err := db.CheckHealth(cmd.Context()); err != nil {
			ExitWithCode(log, foundry.ExitFailure, "Store ping failed", err)
			return
		}
		log.Info("✅ Store reachable", zap.String("driver", db.Driver()))

		log.Info("")
		log.Info("✅ All health checks passed")
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
