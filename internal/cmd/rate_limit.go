package cmd

import (
	"github.com/spf13/cobra"

	"github.com/greenstreak/greenstreak/internal/config"
	"github.com/greenstreak/greenstreak/internal/core/engine"
)

var rateLimitCmd = &cobra.Command{
	Use:   "rate-limit",
	Short: "Inspect and reset persisted limiter windows",
	Long: `Inspect and reset the persisted sliding windows of the commits, api and
daily limiters.`,
}

// configuredLimits maps limiter names to their configured windows.
func configuredLimits(cfg *config.Config) map[string]config.LimitConfig {
	return map[string]config.LimitConfig{
		engine.LimiterCommits: cfg.Limits.Commits,
		engine.LimiterAPI:     cfg.Limits.API,
		engine.LimiterDaily:   cfg.Limits.Daily,
	}
}

func init() {
	rateLimitCmd.AddCommand(rateLimitListCmd)
	rateLimitCmd.AddCommand(rateLimitResetCmd)
	rootCmd.AddCommand(rateLimitCmd)
}
