package output

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/greenstreak/greenstreak/internal/core"
	"github.com/greenstreak/greenstreak/internal/core/engine"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// StatsReport is the stats view: lifetime counters plus recent commits.
type StatsReport struct {
	Stats      core.Stats          `json:"stats"`
	PerDay     float64             `json:"commits_per_day"`
	MostActive string              `json:"most_active_repo,omitempty"`
	Recent     []core.CommitRecord `json:"recent,omitempty"`
	At         time.Time           `json:"generated_at"`
}

// NewStatsReport derives the per-day rate and busiest repository.
func NewStatsReport(stats core.Stats, recent []core.CommitRecord, now time.Time) *StatsReport {
	report := &StatsReport{Stats: stats, PerDay: stats.PerDay(now), Recent: recent, At: now}
	if repo, count := stats.MostActiveRepo(); count > 0 {
		report.MostActive = repo
	}
	return report
}

// LimiterRow is one named limiter's current window.
type LimiterRow struct {
	Name      string        `json:"name"`
	Capacity  int           `json:"capacity"`
	Window    time.Duration `json:"window"`
	Used      int           `json:"used"`
	Remaining int           `json:"remaining"`
	Backoff   float64       `json:"backoff_multiplier"`
	LastUsed  *time.Time    `json:"last_used_at,omitempty"`
}

// LimiterRows snapshots each limiter.
func LimiterRows(ctx context.Context, limiters ...*engine.RateLimiter) []LimiterRow {
	rows := make([]LimiterRow, 0, len(limiters))
	for _, limiter := range limiters {
		if limiter == nil {
			continue
		}
		state := limiter.Snapshot(ctx)
		row := LimiterRow{
			Name:     limiter.Name,
			Capacity: limiter.Capacity,
			Window:   limiter.Window,
			Used:     len(state.Timestamps),
			Backoff:  state.BackoffMultiplier,
		}
		if row.Remaining = row.Capacity - row.Used; row.Remaining < 0 {
			row.Remaining = 0
		}
		if n := len(state.Timestamps); n > 0 {
			last := state.Timestamps[n-1]
			row.LastUsed = &last
		}
		rows = append(rows, row)
	}
	return rows
}

// ActivityReport is the anomaly verdict over the recorded history.
type ActivityReport struct {
	Entries int          `json:"entries"`
	Last    *time.Time   `json:"last_commit_at,omitempty"`
	Anomaly core.Anomaly `json:"anomaly"`
}

// Formatter renders the command views.
type Formatter interface {
	FormatStats(report *StatsReport) (string, error)
	FormatLimiters(rows []LimiterRow) (string, error)
	FormatActivity(report *ActivityReport) (string, error)
	FormatEvents(events []core.Event) (string, error)
	FormatCommits(records []core.CommitRecord) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatMarkdown), "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	default:
		return &TableFormatter{}
	}
}
