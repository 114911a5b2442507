package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/greenstreak/greenstreak/internal/output"
)

var statsLimit int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show lifetime commit counters and recent commits",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, sink, err := commandOutput(cmd, "stats")
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}
		db, err := openStore(cmd.Context(), cfg.Store)
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		stats, err := db.Stats(cmd.Context())
		if err != nil {
			return err
		}
		recent, err := db.ListCommits(cmd.Context(), statsLimit)
		if err != nil {
			return err
		}

		rendered, err := output.NewFormatter(format).FormatStats(output.NewStatsReport(stats, recent, time.Now()))
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(sink.writer, rendered)
		return err
	},
}

var statsResetYes bool

var statsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the commit counters and commit log",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !statsResetYes {
			return errors.New("reset requires --yes")
		}
		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}
		db, err := openStore(cmd.Context(), cfg.Store)
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		if err := db.ResetStats(cmd.Context()); err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), "Commit statistics cleared")
		return err
	},
}

func init() {
	addOutputFlags(statsCmd, "table|json|markdown")
	statsCmd.Flags().IntVar(&statsLimit, "limit", 10, "number of recent commits to list (0 for all)")
	statsResetCmd.Flags().BoolVar(&statsResetYes, "yes", false, "Confirm clearing the statistics")

	statsCmd.AddCommand(statsResetCmd)
	rootCmd.AddCommand(statsCmd)
}
