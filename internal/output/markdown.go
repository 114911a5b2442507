package output

import (
	"strings"
	"time"

	"github.com/greenstreak/greenstreak/internal/core"
)

// MarkdownFormatter renders results as markdown tables with headings.
type MarkdownFormatter struct {
	Now func() time.Time
}

func (f *MarkdownFormatter) views() views { return views{now: f.Now} }

func (f *MarkdownFormatter) FormatStats(report *StatsReport) (string, error) {
	if report == nil {
		return "", nil
	}
	summary, repos := f.views().stats(report)

	var sb strings.Builder
	sb.WriteString("## Commit stats\n\n")
	sb.WriteString(summary.RenderMarkdown())
	if repos != nil {
		sb.WriteString("\n\n### Repositories\n\n")
		sb.WriteString(repos.RenderMarkdown())
	}
	if len(report.Recent) > 0 {
		sb.WriteString("\n\n### Recent commits\n\n")
		sb.WriteString(f.views().commits(report.Recent).RenderMarkdown())
	}
	sb.WriteString("\n")
	return sb.String(), nil
}

func (f *MarkdownFormatter) FormatLimiters(rows []LimiterRow) (string, error) {
	return "## Rate limits\n\n" + f.views().limiters(rows).RenderMarkdown() + "\n", nil
}

func (f *MarkdownFormatter) FormatActivity(report *ActivityReport) (string, error) {
	if report == nil {
		return "", nil
	}
	return "## Activity\n\n" + f.views().activity(report).RenderMarkdown() + "\n", nil
}

func (f *MarkdownFormatter) FormatEvents(events []core.Event) (string, error) {
	return "## Scheduler events\n\n" + f.views().events(events).RenderMarkdown() + "\n", nil
}

func (f *MarkdownFormatter) FormatCommits(records []core.CommitRecord) (string, error) {
	return "## Commits\n\n" + f.views().commits(records).RenderMarkdown() + "\n", nil
}
