package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/greenstreak/greenstreak/internal/config"
	"github.com/greenstreak/greenstreak/internal/core"
	"github.com/greenstreak/greenstreak/internal/core/simulate"
	"github.com/greenstreak/greenstreak/internal/observability"
)

const dateLayout = "2006-01-02"

var simulateOpts struct {
	pattern string
	start   string
	end     string
	count   int
	repo    string
	branch  string
	path    string
	plan    string
	pause   time.Duration
	dryRun  bool
	yes     bool
	json    bool
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Backfill dated commits following a pattern",
	Long: `Create one commit per planned date. Each commit's body carries the planned
date; GitHub attributes commits to the time they are pushed.

Patterns: random, random-burst, 30-day-streak, year-grid, checkerboard,
weekdays-only. random and random-burst take --count.

A plan can also be read from a YAML file with --plan:

  pattern: weekdays-only
  start: 2026-01-05
  end: 2026-01-30
  repo: octocat/streak`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}
		location, err := cfg.Schedule.Location()
		if err != nil {
			return err
		}

		plan, err := resolvePlan(cfg, location)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if simulateOpts.dryRun {
			dates, err := simulate.Dates(plan.Pattern, plan.Start, plan.End, plan.Count, core.DefaultRandom())
			if err != nil {
				return err
			}
			return writePlannedDates(out, plan, dates)
		}

		if !simulateOpts.yes {
			ok, err := confirm(out, cmd.InOrStdin(), fmt.Sprintf(
				"Backfill %s commits into %s between %s and %s? [y/N] ",
				plan.Pattern, plan.Repo, plan.Start.Format(dateLayout), plan.End.Format(dateLayout)))
			if err != nil {
				return err
			}
			if !ok {
				_, err := fmt.Fprintln(out, "Aborted.")
				return err
			}
		}

		a, err := newApp(cmd.Context(), cfg, observability.CLILogger, true)
		if err != nil {
			return err
		}
		defer a.Close() // nolint:errcheck // best-effort cleanup

		backfill := &simulate.Backfill{
			Committer:  a.orch,
			Random:     core.DefaultRandom(),
			Pause:      simulateOpts.pause,
			Logger:     observability.CLILogger,
			OnProgress: progressPrinter(out),
		}
		report, err := backfill.Run(cmd.Context(), plan)
		if report != nil {
			if werr := writeBackfillReport(out, report); werr != nil && err == nil {
				err = werr
			}
		}
		if err != nil {
			return err
		}
		if len(report.Failed) > 0 {
			return fmt.Errorf("%d of %d backfill commits failed", len(report.Failed), report.Planned)
		}
		return nil
	},
}

// resolvePlan builds the backfill plan from --plan or the flags, filling
// branch and path from configuration.
func resolvePlan(cfg *config.Config, location *time.Location) (simulate.Plan, error) {
	var plan simulate.Plan
	if simulateOpts.plan != "" {
		data, err := os.ReadFile(simulateOpts.plan) // #nosec G304 -- path is chosen by the user
		if err != nil {
			return plan, fmt.Errorf("read plan: %w", err)
		}
		if plan, err = parsePlan(data); err != nil {
			return plan, err
		}
	} else {
		pattern, err := simulate.ParsePattern(simulateOpts.pattern)
		if err != nil {
			return plan, err
		}
		plan.Pattern = pattern
		plan.Count = simulateOpts.count
		plan.Repo = simulateOpts.repo
		plan.Branch = simulateOpts.branch
		plan.Path = simulateOpts.path
		if plan.Start, err = parseDay(simulateOpts.start, location); err != nil {
			return plan, err
		}
		if simulateOpts.end != "" {
			end, err := parseDay(simulateOpts.end, location)
			if err != nil {
				return plan, err
			}
			plan.End = end.Add(24*time.Hour - time.Second)
		}
	}

	if plan.End.IsZero() {
		plan.End = defaultPlanEnd(plan.Pattern, plan.Start)
	}
	if plan.Repo == "" && len(cfg.GitHub.Repos) > 0 {
		plan.Repo = cfg.GitHub.Repos[0]
	}
	plan.Branch = firstNonEmpty(plan.Branch, cfg.GitHub.Branch)
	plan.Path = firstNonEmpty(plan.Path, cfg.GitHub.Path)
	return plan, nil
}

// parsePlan decodes a YAML (or JSON) plan document.
func parsePlan(data []byte) (simulate.Plan, error) {
	var plan simulate.Plan
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&plan); err != nil && !errors.Is(err, io.EOF) {
		return plan, fmt.Errorf("parse plan: %w", err)
	}
	pattern, err := simulate.ParsePattern(string(plan.Pattern))
	if err != nil {
		return plan, err
	}
	plan.Pattern = pattern
	if plan.Start.IsZero() {
		return plan, fmt.Errorf("parse plan: start is required")
	}
	return plan, nil
}

func parseDay(value string, location *time.Location) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, fmt.Errorf("--start is required (YYYY-MM-DD)")
	}
	day, err := time.ParseInLocation(dateLayout, strings.TrimSpace(value), location)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", value)
	}
	return day, nil
}

// defaultPlanEnd picks the natural span of a pattern when no end is given.
// The result is the last second of the final day.
func defaultPlanEnd(pattern simulate.Pattern, start time.Time) time.Time {
	var last time.Time
	switch pattern {
	case simulate.PatternStreak30:
		last = start.AddDate(0, 0, 29)
	case simulate.PatternYearGrid:
		last = start.AddDate(1, 0, -1)
	default:
		last = start.AddDate(0, 0, 30)
	}
	return last.Add(24*time.Hour - time.Second)
}

func writePlannedDates(w io.Writer, plan simulate.Plan, dates []time.Time) error {
	if simulateOpts.json {
		payload, err := json.MarshalIndent(map[string]any{"plan": plan, "dates": dates}, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(payload))
		return err
	}
	if _, err := fmt.Fprintf(w, "%s plan for %s: %s commits\n", plan.Pattern, plan.Repo, humanize.Comma(int64(len(dates)))); err != nil {
		return err
	}
	for _, date := range dates {
		if _, err := fmt.Fprintf(w, "  %s\n", date.Format("Mon 2006-01-02 15:04")); err != nil {
			return err
		}
	}
	return nil
}

func progressPrinter(w io.Writer) func(done, total int, date time.Time, err error) {
	ok := color.New(color.FgGreen)
	bad := color.New(color.FgRed)
	return func(done, total int, date time.Time, err error) {
		if err != nil {
			bad.Fprintf(w, "[%d/%d] ✗ %s: %v\n", done, total, date.Format(dateLayout), err) // nolint:errcheck
			return
		}
		ok.Fprintf(w, "[%d/%d] ✓ %s\n", done, total, date.Format(dateLayout)) // nolint:errcheck
	}
}

func writeBackfillReport(w io.Writer, report *simulate.Report) error {
	if simulateOpts.json {
		payload, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(payload))
		return err
	}
	_, err := fmt.Fprintf(w, "Backfill finished: %d/%d committed, %d failed\n",
		len(report.Committed), report.Planned, len(report.Failed))
	return err
}

func init() {
	rootCmd.AddCommand(simulateCmd)

	f := simulateCmd.Flags()
	f.StringVar(&simulateOpts.pattern, "pattern", string(simulate.PatternRandom), "date pattern")
	f.StringVar(&simulateOpts.start, "start", "", "first day (YYYY-MM-DD)")
	f.StringVar(&simulateOpts.end, "end", "", "last day, inclusive (default depends on pattern)")
	f.IntVar(&simulateOpts.count, "count", 10, "commits for random patterns")
	f.StringVar(&simulateOpts.repo, "repo", "", "target repository (default: first configured repo)")
	f.StringVar(&simulateOpts.branch, "branch", "", "target branch")
	f.StringVar(&simulateOpts.path, "path", "", "file to write")
	f.StringVar(&simulateOpts.plan, "plan", "", "read the plan from a YAML file")
	f.DurationVar(&simulateOpts.pause, "pause", simulate.DefaultPause, "pause between commits")
	f.BoolVar(&simulateOpts.dryRun, "dry-run", false, "list the planned dates without committing")
	f.BoolVarP(&simulateOpts.yes, "yes", "y", false, "skip the confirmation prompt")
	f.BoolVar(&simulateOpts.json, "json", false, "print JSON")
}
