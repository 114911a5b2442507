package cmd

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/greenstreak/greenstreak/internal/observability"
	"github.com/greenstreak/greenstreak/internal/output"
)

var activityCmd = &cobra.Command{
	Use:   "activity",
	Short: "Inspect the recorded commit history used for anomaly detection",
}

var activityCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Report whether recent commit timing looks automated",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, sink, err := commandOutput(cmd, "activity")
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), cfg, observability.CLILogger, false)
		if err != nil {
			return err
		}
		defer a.Close() // nolint:errcheck // best-effort cleanup

		times := a.history.Times(cmd.Context())
		report := &output.ActivityReport{
			Entries: len(times),
			Anomaly: a.history.DetectAnomaly(cmd.Context()),
		}
		if n := len(times); n > 0 {
			last := times[n-1]
			report.Last = &last
		}

		rendered, err := output.NewFormatter(format).FormatActivity(report)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(sink.writer, rendered); err != nil {
			return err
		}

		if format == output.FormatTable {
			if report.Anomaly.Suspicious {
				color.New(color.FgYellow).Fprintln(sink.writer, "⚠ commit timing looks automated") // nolint:errcheck
			} else {
				color.New(color.FgGreen).Fprintln(sink.writer, "✓ no anomaly detected") // nolint:errcheck
			}
		}
		return nil
	},
}

var activityResetYes bool

var activityResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the recorded commit history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !activityResetYes {
			return errors.New("reset requires --yes")
		}
		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), cfg, observability.CLILogger, false)
		if err != nil {
			return err
		}
		defer a.Close() // nolint:errcheck // best-effort cleanup

		cleared := a.history.Len(cmd.Context())
		if err := a.history.Reset(cmd.Context()); err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d recorded commit time(s)\n", cleared)
		return err
	},
}

func init() {
	addOutputFlags(activityCheckCmd, "table|json|markdown")
	activityResetCmd.Flags().BoolVar(&activityResetYes, "yes", false, "Confirm clearing the history")

	activityCmd.AddCommand(activityCheckCmd)
	activityCmd.AddCommand(activityResetCmd)
	rootCmd.AddCommand(activityCmd)
}
