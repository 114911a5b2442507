package output

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/greenstreak/greenstreak/internal/core"
	"github.com/greenstreak/greenstreak/internal/core/engine"
)

var fixedNow = time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)

func sampleStats() core.Stats {
	first := fixedNow.Add(-4 * 24 * time.Hour)
	last := fixedNow.Add(-2 * time.Hour)
	return core.Stats{
		TotalCommits:     12,
		AutomatedCommits: 9,
		FirstCommitAt:    &first,
		LastCommitAt:     &last,
		RepoCounts:       map[string]int{"octo/site": 8, "octo/notes": 4},
	}
}

func sampleCommits() []core.CommitRecord {
	return []core.CommitRecord{{
		ID:          "c1",
		Repo:        "octo/site",
		Branch:      "main",
		Path:        "activity.md",
		Message:     "docs(api): update installation instructions with a rather long tail that gets cut",
		SHA:         "0123456789abcdef",
		CommittedAt: fixedNow.Add(-2 * time.Hour),
		Automated:   true,
	}}
}

func TestParseFormat(t *testing.T) {
	format, err := ParseFormat("table")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	format, err = ParseFormat("JSON")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, format)

	format, err = ParseFormat("md")
	require.NoError(t, err)
	require.Equal(t, FormatMarkdown, format)

	format, err = ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	_, err = ParseFormat("csv")
	require.Error(t, err)
}

func TestNewStatsReport(t *testing.T) {
	report := NewStatsReport(sampleStats(), nil, fixedNow)
	require.Equal(t, "octo/site", report.MostActive)
	require.InDelta(t, 3.0, report.PerDay, 0.001)

	empty := NewStatsReport(core.Stats{}, nil, fixedNow)
	require.Empty(t, empty.MostActive)
	require.Zero(t, empty.PerDay)
}

func TestTableFormatter(t *testing.T) {
	f := &TableFormatter{Now: func() time.Time { return fixedNow }}

	rendered, err := f.FormatStats(NewStatsReport(sampleStats(), sampleCommits(), fixedNow))
	require.NoError(t, err)
	require.Contains(t, rendered, "octo/site")
	require.Contains(t, rendered, "67%")
	require.Contains(t, rendered, "2 hours ago")
	require.Contains(t, rendered, "0123456")
	require.Contains(t, rendered, "...")

	rendered, err = f.FormatLimiters([]LimiterRow{{
		Name: "commits", Capacity: 50, Window: time.Hour, Used: 3, Remaining: 47, Backoff: 1.5,
	}})
	require.NoError(t, err)
	require.Contains(t, rendered, "3/50")
	require.Contains(t, rendered, "x1.50")
	require.Contains(t, rendered, "1h0m0s")
	require.Contains(t, rendered, "-")

	rendered, err = f.FormatActivity(&ActivityReport{
		Entries: 25,
		Anomaly: core.Anomaly{Suspicious: true, Kind: core.AnomalyBurst, Reason: "burst", Recommendation: "slow down"},
	})
	require.NoError(t, err)
	require.Contains(t, rendered, "suspicious (burst)")
	require.Contains(t, rendered, "slow down")

	rendered, err = f.FormatEvents(nil)
	require.NoError(t, err)
	require.Equal(t, "no events", rendered)
}

func TestMarkdownFormatter(t *testing.T) {
	f := &MarkdownFormatter{Now: func() time.Time { return fixedNow }}

	rendered, err := f.FormatStats(NewStatsReport(sampleStats(), nil, fixedNow))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(rendered, "## Commit stats"))
	require.Contains(t, rendered, "### Repositories")
	require.Contains(t, rendered, "| octo/site |")

	rendered, err = f.FormatEvents([]core.Event{{
		Type: core.EventWaiting, Time: fixedNow, Detail: "next commit", Wait: 90 * time.Minute,
	}})
	require.NoError(t, err)
	require.Contains(t, rendered, "waiting")
	require.Contains(t, rendered, "1h30m0s")
}

func TestJSONFormatter(t *testing.T) {
	f := NewFormatter(FormatJSON)

	rendered, err := f.FormatCommits(sampleCommits())
	require.NoError(t, err)

	var records []core.CommitRecord
	require.NoError(t, json.Unmarshal([]byte(rendered), &records))
	require.Len(t, records, 1)
	require.Equal(t, "octo/site", records[0].Repo)

	rendered, err = f.FormatLimiters(nil)
	require.NoError(t, err)
	require.Equal(t, "[]", rendered)

	rendered, err = f.FormatActivity(&ActivityReport{Entries: 3})
	require.NoError(t, err)
	require.Contains(t, rendered, `"entries": 3`)
	require.Contains(t, rendered, `"suspicious": false`)
}

func TestLimiterRows(t *testing.T) {
	clock := fixedNow
	limiter := &engine.RateLimiter{Name: "daily", Capacity: 2, Window: 24 * time.Hour, Clock: func() time.Time { return clock }}
	ctx := context.Background()

	require.True(t, limiter.CanMakeRequest(ctx).Allowed)
	clock = clock.Add(time.Minute)
	require.True(t, limiter.CanMakeRequest(ctx).Allowed)
	require.False(t, limiter.CanMakeRequest(ctx).Allowed)

	rows := LimiterRows(ctx, limiter, nil)
	require.Len(t, rows, 1)
	require.Equal(t, 2, rows[0].Used)
	require.Zero(t, rows[0].Remaining)
	require.Equal(t, 1.5, rows[0].Backoff)
	require.NotNil(t, rows[0].LastUsed)
	require.Equal(t, fixedNow.Add(time.Minute), *rows[0].LastUsed)
}

func TestLineDiff(t *testing.T) {
	lines := LineDiff("# Title\n\nUpdated on monday\n", "# Title\n\nUpdated on tuesday\n")

	var added, removed, same []string
	for _, line := range lines {
		switch line.Op {
		case '+':
			added = append(added, line.Text)
		case '-':
			removed = append(removed, line.Text)
		default:
			same = append(same, line.Text)
		}
	}
	require.Equal(t, []string{"Updated on tuesday"}, added)
	require.Equal(t, []string{"Updated on monday"}, removed)
	require.Equal(t, []string{"# Title", ""}, same)

	var buf strings.Builder
	require.NoError(t, WriteDiff(&buf, LineDiff("", "new file\n")))
	require.Contains(t, buf.String(), "+new file")
}

func TestSnippet(t *testing.T) {
	require.Equal(t, "short", Snippet("short"))
	long := strings.Repeat("x", PreviewSnippetLength+10)
	require.Len(t, []rune(Snippet(long)), PreviewSnippetLength+3)
}
