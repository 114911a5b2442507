package output

import (
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/greenstreak/greenstreak/internal/core"
)

// TableFormatter renders results as rounded ASCII tables.
type TableFormatter struct {
	// Now anchors relative times; nil means time.Now.
	Now func() time.Time
}

func (f *TableFormatter) views() views { return views{now: f.Now} }

// FormatStats renders the summary followed by the per-repository breakdown.
func (f *TableFormatter) FormatStats(report *StatsReport) (string, error) {
	if report == nil {
		return "", nil
	}
	summary, repos := f.views().stats(report)
	parts := []string{render(summary)}
	if repos != nil {
		parts = append(parts, render(repos))
	}
	if len(report.Recent) > 0 {
		parts = append(parts, render(f.views().commits(report.Recent)))
	}
	return strings.Join(parts, "\n"), nil
}

func (f *TableFormatter) FormatLimiters(rows []LimiterRow) (string, error) {
	return render(f.views().limiters(rows)), nil
}

func (f *TableFormatter) FormatActivity(report *ActivityReport) (string, error) {
	if report == nil {
		return "", nil
	}
	return render(f.views().activity(report)), nil
}

func (f *TableFormatter) FormatEvents(events []core.Event) (string, error) {
	if len(events) == 0 {
		return "no events", nil
	}
	return render(f.views().events(events)), nil
}

func (f *TableFormatter) FormatCommits(records []core.CommitRecord) (string, error) {
	if len(records) == 0 {
		return "no commits recorded", nil
	}
	return render(f.views().commits(records)), nil
}

func render(t table.Writer) string {
	t.SetStyle(table.StyleRounded)
	return t.Render()
}
