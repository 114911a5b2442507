package output

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/greenstreak/greenstreak/internal/core"
)

const messageWidth = 48

// views builds go-pretty writers shared by the table and markdown formatters.
type views struct {
	now func() time.Time
}

func (v views) clock() time.Time {
	if v.now != nil {
		return v.now()
	}
	return time.Now()
}

func (v views) when(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.RelTime(t, v.clock(), "ago", "from now")
}

func (v views) whenPtr(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return v.when(*t)
}

func (v views) stats(report *StatsReport) (summary, repos table.Writer) {
	stats := report.Stats

	summary = table.NewWriter()
	summary.AppendHeader(table.Row{"Metric", "Value"})
	summary.AppendRows([]table.Row{
		{"Total commits", humanize.Comma(int64(stats.TotalCommits))},
		{"Automated", humanize.Comma(int64(stats.AutomatedCommits))},
		{"Manual", humanize.Comma(int64(stats.TotalCommits - stats.AutomatedCommits))},
		{"Commits per day", fmt.Sprintf("%.2f", report.PerDay)},
		{"First commit", v.whenPtr(stats.FirstCommitAt)},
		{"Last commit", v.whenPtr(stats.LastCommitAt)},
		{"Most active repo", dash(report.MostActive)},
	})

	if len(stats.RepoCounts) == 0 {
		return summary, nil
	}

	names := make([]string, 0, len(stats.RepoCounts))
	for name := range stats.RepoCounts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ci, cj := stats.RepoCounts[names[i]], stats.RepoCounts[names[j]]
		if ci != cj {
			return ci > cj
		}
		return names[i] < names[j]
	})

	repos = table.NewWriter()
	repos.AppendHeader(table.Row{"Repository", "Commits", "Share"})
	for _, name := range names {
		count := stats.RepoCounts[name]
		share := 0.0
		if stats.TotalCommits > 0 {
			share = float64(count) / float64(stats.TotalCommits) * 100
		}
		repos.AppendRow(table.Row{name, humanize.Comma(int64(count)), fmt.Sprintf("%.0f%%", share)})
	}
	return summary, repos
}

func (v views) limiters(rows []LimiterRow) table.Writer {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Limiter", "Used", "Remaining", "Window", "Backoff", "Last used"})
	for _, row := range rows {
		t.AppendRow(table.Row{
			row.Name,
			fmt.Sprintf("%d/%d", row.Used, row.Capacity),
			row.Remaining,
			row.Window.String(),
			fmt.Sprintf("x%.2f", row.Backoff),
			v.whenPtr(row.LastUsed),
		})
	}
	return t
}

func (v views) activity(report *ActivityReport) table.Writer {
	verdict := "natural"
	if report.Anomaly.Suspicious {
		verdict = "suspicious (" + string(report.Anomaly.Kind) + ")"
	}

	t := table.NewWriter()
	t.AppendHeader(table.Row{"Check", "Result"})
	t.AppendRows([]table.Row{
		{"Entries", report.Entries},
		{"Last commit", v.whenPtr(report.Last)},
		{"Verdict", verdict},
	})
	if report.Anomaly.Suspicious {
		t.AppendRow(table.Row{"Reason", report.Anomaly.Reason})
		t.AppendRow(table.Row{"Recommendation", report.Anomaly.Recommendation})
	}
	return t
}

func (v views) events(events []core.Event) table.Writer {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Time", "Event", "Repo", "Detail"})
	for _, event := range events {
		detail := event.Detail
		if event.Wait > 0 {
			detail = strings.TrimSpace(detail + " (" + event.Wait.Round(time.Second).String() + ")")
		}
		t.AppendRow(table.Row{
			event.Time.Format(time.DateTime),
			string(event.Type),
			dash(event.Repo),
			dash(detail),
		})
	}
	return t
}

func (v views) commits(records []core.CommitRecord) table.Writer {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"When", "Repo", "Path", "SHA", "Kind", "Message"})
	for i := range records {
		record := &records[i]
		kind := "manual"
		if record.Automated {
			kind = "auto"
		}
		t.AppendRow(table.Row{
			v.when(record.CommittedAt),
			record.Repo,
			record.Path,
			dash(record.ShortSHA()),
			kind,
			truncate(record.Message, messageWidth),
		})
	}
	return t
}

func dash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func truncate(value string, width int) string {
	runes := []rune(value)
	if len(runes) <= width {
		return value
	}
	return string(runes[:width-3]) + "..."
}
