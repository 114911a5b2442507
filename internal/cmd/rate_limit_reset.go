package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/greenstreak/greenstreak/internal/core/store"
	"github.com/greenstreak/greenstreak/internal/output"
)

var (
	rateLimitResetAll    bool
	rateLimitResetName   string
	rateLimitResetPrefix string
	rateLimitResetYes    bool
	rateLimitResetDryRun bool
)

var rateLimitResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset stored limiter state",
	Long: `Delete persisted limiter windows. A reset limiter starts empty with a
backoff multiplier of 1 the next time it is loaded.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		query := store.RateLimitQuery{
			All:    rateLimitResetAll,
			Name:   strings.TrimSpace(rateLimitResetName),
			Prefix: strings.TrimSpace(rateLimitResetPrefix),
		}
		if err := query.Validate(); err != nil {
			return err
		}
		if query.All && !rateLimitResetYes && !rateLimitResetDryRun {
			return errors.New("--all requires --yes (or use --dry-run)")
		}

		format, sink, err := commandOutput(cmd, "rate-limit.reset")
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()
		if format == output.FormatMarkdown {
			return fmt.Errorf("unsupported output format: %s", format)
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

		matched, err := db.CountRateLimits(cmd.Context(), query)
		if err != nil {
			return err
		}
		if rateLimitResetDryRun {
			return writeRateLimitResetResult(format, sink.writer, matched, 0, true)
		}

		deleted, err := db.ResetRateLimits(cmd.Context(), query)
		if err != nil {
			return err
		}
		return writeRateLimitResetResult(format, sink.writer, matched, deleted, false)
	},
}

func writeRateLimitResetResult(format output.Format, w io.Writer, matched int, deleted int64, dryRun bool) error {
	if format == output.FormatJSON {
		payload, err := json.MarshalIndent(map[string]any{
			"matched": matched,
			"deleted": deleted,
			"dry_run": dryRun,
		}, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(payload))
		return err
	}

	if dryRun {
		_, err := fmt.Fprintf(w, "Would reset %d limiter(s)\n", matched)
		return err
	}
	_, err := fmt.Fprintf(w, "Reset %d/%d limiter(s)\n", deleted, matched)
	return err
}

func init() {
	addOutputFlags(rateLimitResetCmd, "table|json")
	rateLimitResetCmd.Flags().BoolVar(&rateLimitResetAll, "all", false, "Reset every limiter")
	rateLimitResetCmd.Flags().StringVar(&rateLimitResetName, "name", "", "Reset one limiter (commits, api or daily)")
	rateLimitResetCmd.Flags().StringVar(&rateLimitResetPrefix, "prefix", "", "Reset limiters with matching prefix")
	rateLimitResetCmd.Flags().BoolVar(&rateLimitResetYes, "yes", false, "Confirm destructive reset")
	rateLimitResetCmd.Flags().BoolVar(&rateLimitResetDryRun, "dry-run", false, "Show what would be reset")
}
