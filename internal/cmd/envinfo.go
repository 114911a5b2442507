package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/greenstreak/greenstreak/internal/config"
	"github.com/greenstreak/greenstreak/internal/core/github"
	"github.com/greenstreak/greenstreak/internal/core/store"
	"github.com/greenstreak/greenstreak/internal/observability"
)

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display environment, configuration, and version information. Secrets are masked.",
	Run: func(cmd *cobra.Command, args []string) {
		log := observability.CLILogger
		version := crucible.GetVersion()
		identity := GetAppIdentity()

		log.Info("=== Environment Information ===")
		log.Info("")

		log.Info("Application:")
		log.Info("  Name:       " + identity.BinaryName)
		log.Info("  Version:    " + versionInfo.Version)
		log.Info("  Commit:     " + versionInfo.Commit)
		log.Info("  Built:      " + versionInfo.BuildDate)
		log.Info("")

		log.Info("SSOT:")
		log.Info("  Gofulmen:   "+version.Gofulmen, zap.String("gofulmen_version", version.Gofulmen))
		log.Info("  Crucible:   "+version.Crucible, zap.String("crucible_version", version.Crucible))
		log.Info("")

		log.Info("Runtime:")
		log.Info("  Go Version: "+runtime.Version(), zap.String("go_version", runtime.Version()))
		log.Info("  GOOS:       "+runtime.GOOS, zap.String("goos", runtime.GOOS))
		log.Info("  GOARCH:     "+runtime.GOARCH, zap.String("goarch", runtime.GOARCH))
		log.Info(fmt.Sprintf("  NumCPU:     %d", runtime.NumCPU()), zap.Int("num_cpu", runtime.NumCPU()))
		log.Info("")

		cfg, err := loadConfig(nil)
		if err != nil {
			log.Warn("Config load failed", zap.Error(err))
			return
		}

		token := "(not set)"
		if strings.TrimSpace(cfg.GitHub.Token) != "" {
			token = github.MaskToken(cfg.GitHub.Token)
		}

		log.Info("GitHub:")
		log.Info("  API URL:        " + cfg.GitHub.APIURL)
		log.Info("  Token:          " + token)
		log.Info("  Repositories:   " + strings.Join(cfg.GitHub.Repos, ", "))
		log.Info("  Target:         " + cfg.GitHub.Branch + ":" + cfg.GitHub.Path)
		log.Info("")

		log.Info("Schedule:")
		log.Info("  Mode:           " + cfg.Schedule.Mode)
		log.Info("  Selection:      " + cfg.Schedule.Selection)
		log.Info("  Timezone:       " + firstNonEmpty(cfg.Schedule.Timezone, "(local)"))
		log.Info(fmt.Sprintf("  Safe delays:    %s - %s", cfg.Schedule.Safe.MinDelay, cfg.Schedule.Safe.MaxDelay))
		log.Info(fmt.Sprintf("  Quiet hours:    %02d:00 - %02d:00", cfg.Schedule.Safe.QuietStart, cfg.Schedule.Safe.QuietEnd))
		log.Info(fmt.Sprintf("  Daily cap:      %d", cfg.Schedule.Safe.MaxCommitsPerDay))
		log.Info("")

		log.Info("Limits:")
		for _, name := range []string{"commits", "api", "daily"} {
			limit := configuredLimits(cfg)[name]
			log.Info(fmt.Sprintf("  %-8s        %d per %s", name+":", limit.Capacity, limit.Window))
		}
		log.Info("")

		log.Info("Configuration:")
		log.Info("  Server:         "+cfg.Server.Host+fmt.Sprintf(":%d", cfg.Server.Port), zap.String("host", cfg.Server.Host), zap.Int("port", cfg.Server.Port))
		log.Info("  Log Level:      "+cfg.Logging.Level, zap.String("log_level", cfg.Logging.Level))
		log.Info("  DB Driver:      "+cfg.Store.Driver, zap.String("db_driver", cfg.Store.Driver))
		if target, err := store.Resolve(cfg.Store); err != nil {
			log.Info("  DB:             invalid", zap.Error(err))
		} else {
			log.Info("  DB:             "+target.String(), zap.Bool("remote", target.Remote))
		}
		log.Info(fmt.Sprintf("  Metrics:        %t (port %d)", cfg.Metrics.Enabled, cfg.Metrics.Port))
		log.Info("  Config File:    " + config.DefaultConfigPath())
		log.Info("")
		log.Info("=== End Environment Information ===")
	},
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}
