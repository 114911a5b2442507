package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fulmenhq/gofulmen/ascii"
	"github.com/spf13/cobra"

	"github.com/greenstreak/greenstreak/internal/config"
	"github.com/greenstreak/greenstreak/internal/core/store"
	"github.com/greenstreak/greenstreak/internal/output"
)

var (
	rateLimitListAll    bool
	rateLimitListPrefix string
)

// rateLimitView is the listed shape of one stored limiter.
type rateLimitView struct {
	Name      string     `json:"name"`
	Stored    int        `json:"stored_timestamps"`
	InWindow  int        `json:"in_window"`
	Capacity  int        `json:"capacity,omitempty"`
	Window    string     `json:"window,omitempty"`
	Backoff   float64    `json:"backoff_multiplier"`
	LastUsed  *time.Time `json:"last_used_at,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func newRateLimitViews(entries []store.RateLimitEntry, limits map[string]config.LimitConfig, now time.Time) []rateLimitView {
	views := make([]rateLimitView, 0, len(entries))
	for _, entry := range entries {
		view := rateLimitView{
			Name:      entry.Name,
			Stored:    len(entry.State.Timestamps),
			Backoff:   entry.State.BackoffMultiplier,
			UpdatedAt: entry.State.UpdatedAt,
		}
		limit, known := limits[entry.Name]
		if known {
			view.Capacity = limit.Capacity
			view.Window = limit.Window.String()
		}
		for _, ts := range entry.State.Timestamps {
			if !known || now.Sub(ts) < limit.Window {
				view.InWindow++
			}
		}
		if n := len(entry.State.Timestamps); n > 0 {
			last := entry.State.Timestamps[n-1]
			view.LastUsed = &last
		}
		views = append(views, view)
	}
	return views
}

var rateLimitListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored limiter state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, sink, err := commandOutput(cmd, "rate-limit.list")
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

		query := store.RateLimitQuery{
			All:    rateLimitListAll,
			Prefix: strings.TrimSpace(rateLimitListPrefix),
		}
		if !query.All && query.Prefix == "" {
			query.All = true
		}

		entries, err := db.ListRateLimits(cmd.Context(), query)
		if err != nil {
			return err
		}
		now := time.Now()
		views := newRateLimitViews(entries, configuredLimits(cfg), now)

		if format == output.FormatJSON {
			payload, err := json.MarshalIndent(views, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(sink.writer, string(payload))
			return err
		}

		_, err = fmt.Fprint(sink.writer, ascii.DrawBox(rateLimitBox(views, now), 0))
		return err
	},
}

func rateLimitBox(views []rateLimitView, now time.Time) string {
	lines := []string{"Rate Limits", ""}
	if len(views) == 0 {
		return strings.Join(append(lines, "(no stored rate limit state)"), "\n")
	}
	for _, view := range views {
		capacity := "?"
		if view.Capacity > 0 {
			capacity = fmt.Sprintf("%d per %s", view.Capacity, view.Window)
		}
		last := "never"
		if view.LastUsed != nil {
			last = humanize.RelTime(*view.LastUsed, now, "ago", "from now")
		}
		lines = append(lines, fmt.Sprintf("%s: %d/%s backoff=%.2fx last=%s",
			view.Name, view.InWindow, capacity, view.Backoff, last))
	}
	return strings.Join(lines, "\n")
}

func init() {
	addOutputFlags(rateLimitListCmd, "table|json")
	rateLimitListCmd.Flags().BoolVar(&rateLimitListAll, "all", false, "List all limiters")
	rateLimitListCmd.Flags().StringVar(&rateLimitListPrefix, "prefix", "", "List limiters with matching prefix")
}
