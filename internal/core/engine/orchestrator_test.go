package engine

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/greenstreak/greenstreak/internal/core/github"
)

type fakeContents struct {
	files     map[string]*github.File
	getErr    error
	putErrs   []error
	gets      int
	puts      []github.PutFileRequest
	blockPuts bool
}

func (f *fakeContents) GetFile(ctx context.Context, repo, path, ref string) (*github.File, error) {
	f.gets++
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.files == nil {
		return nil, nil
	}
	return f.files[repo+"/"+path], nil
}

func (f *fakeContents) PutFile(ctx context.Context, repo, path string, body github.PutFileRequest) (*github.PutFileResult, error) {
	if f.blockPuts {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	f.puts = append(f.puts, body)
	if len(f.putErrs) > 0 {
		err := f.putErrs[0]
		f.putErrs = f.putErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &github.PutFileResult{CommitSHA: "0123456789abcdef", HTMLURL: "https://github.com/" + repo + "/commit/0123456789abcdef"}, nil
}

type sequenceRandom struct{}

func (sequenceRandom) Float64() float64 { return 0.99 }
func (sequenceRandom) IntN(n int) int { return 0 }

func newTestOrchestrator(client ContentsAPI, clock *fakeClock) *Orchestrator {
	return &Orchestrator{
		Client: client,
		Limiters: Limiters{
			Commits:  &RateLimiter{Name: "commits", Capacity: 50, Window: time.Hour, Clock: clock.Now},
			Requests: &RateLimiter{Name: "api", Capacity: 80, Window: time.Hour, Clock: clock.Now},
			Daily:    &RateLimiter{Name: "daily", Capacity: 15, Window: 24 * time.Hour, Clock: clock.Now},
		},
		History: &ActivityHistory{Clock: clock.Now, Location: time.UTC},
		Stats:   &MemoryStats{},
		Random:  sequenceRandom{},
		Clock:   clock.Now,
	}
}

func TestCommitCreatesNewFile(t *testing.T) {
	clock := newClock()
	client := &fakeContents{}
	orch := newTestOrchestrator(client, clock)
	ctx := context.Background()

	record, err := orch.Commit(ctx, CommitRequest{Repo: "octo/demo", Branch: "main", Path: "streak.md"})
	require.NoError(t, err)
	require.Equal(t, "octo/demo", record.Repo)
	require.Equal(t, "chore: update dependencies", record.Message)
	require.Equal(t, "0123456", record.ShortSHA())
	require.False(t, record.Automated)
	require.NotEmpty(t, record.ID)

	require.Len(t, client.puts, 1)
	put := client.puts[0]
	require.Empty(t, put.SHA)
	require.Equal(t, "main", put.Branch)
	body, err := github.DecodeContent(put.Content)
	require.NoError(t, err)
	require.Equal(t, "# chore: update dependencies\n\nUpdated on 2025-01-06T12:00:00Z", string(body))

	require.Equal(t, 1, orch.History.Len(ctx))
	stats, err := orch.Stats.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.TotalCommits)
	require.Equal(t, 0, stats.AutomatedCommits)
	require.Equal(t, 1, stats.RepoCounts["octo/demo"])
}

func TestCommitUsesPriorVersionAndVerbatimContent(t *testing.T) {
	clock := newClock()
	client := &fakeContents{files: map[string]*github.File{"octo/demo/notes.txt": {SHA: "prior"}}}
	orch := newTestOrchestrator(client, clock)

	_, err := orch.Commit(context.Background(), CommitRequest{Repo: "octo/demo", Branch: "main", Path: "notes.txt", Content: "raw body", Automated: true})
	require.NoError(t, err)
	require.Equal(t, "prior", client.puts[0].SHA)
	body, err := github.DecodeContent(client.puts[0].Content)
	require.NoError(t, err)
	require.Equal(t, "raw body", string(body))

	stats, _ := orch.Stats.Stats(context.Background())
	require.Equal(t, 1, stats.AutomatedCommits)
}

func TestCommitMessageOverride(t *testing.T) {
	clock := newClock()
	client := &fakeContents{}
	orch := newTestOrchestrator(client, clock)

	record, err := orch.Commit(context.Background(), CommitRequest{Repo: "octo/demo", Branch: "main", Path: "a.md", Message: "ship it", Content: "ignored"})
	require.NoError(t, err)
	require.Equal(t, "ship it", record.Message)
	body, _ := github.DecodeContent(client.puts[0].Content)
	require.True(t, strings.HasPrefix(string(body), "# Auto Commit\n\nship it\n\nUpdated on "))
}

func TestCommitRejectsTraversalWithoutNetwork(t *testing.T) {
	clock := newClock()
	client := &fakeContents{}
	orch := newTestOrchestrator(client, clock)

	for _, path := range []string{"../etc/passwd", "docs/../../x", "/abs/path", ""} {
		_, err := orch.Commit(context.Background(), CommitRequest{Repo: "octo/demo", Branch: "main", Path: path})
		var validation *ValidationError
		require.ErrorAs(t, err, &validation, path)
		require.ErrorIs(t, err, ErrValidation)
	}
	_, err := orch.Commit(context.Background(), CommitRequest{Repo: "nope", Branch: "main", Path: "a"})
	require.ErrorIs(t, err, ErrValidation)
	_, err = orch.Commit(context.Background(), CommitRequest{Repo: "octo/demo", Path: "a"})
	require.ErrorIs(t, err, ErrValidation)

	require.Zero(t, client.gets)
	require.Empty(t, client.puts)
	require.Equal(t, 50, orch.Limiters.Commits.Remaining(context.Background()))
}

func TestCommitRateLimitedWithoutNetwork(t *testing.T) {
	clock := newClock()
	client := &fakeContents{}
	orch := newTestOrchestrator(client, clock)
	orch.Limiters.Daily = &RateLimiter{Name: "daily", Capacity: 1, Window: 24 * time.Hour, Clock: clock.Now}
	ctx := context.Background()

	_, err := orch.Commit(ctx, CommitRequest{Repo: "octo/demo", Branch: "main", Path: "a.md"})
	require.NoError(t, err)

	_, err = orch.Commit(ctx, CommitRequest{Repo: "octo/demo", Branch: "main", Path: "a.md"})
	var limited *RateLimitedError
	require.ErrorAs(t, err, &limited)
	require.Equal(t, "daily", limited.Limiter)
	require.Equal(t, 24*time.Hour, limited.Wait)
	require.Len(t, client.puts, 1)

	// automated and override commits skip the daily quota
	_, err = orch.Commit(ctx, CommitRequest{Repo: "octo/demo", Branch: "main", Path: "a.md", Automated: true})
	require.NoError(t, err)
	_, err = orch.Commit(ctx, CommitRequest{Repo: "octo/demo", Branch: "main", Path: "a.md", Message: "manual"})
	require.NoError(t, err)
}

func TestCommitReadFailureIsNonBlocking(t *testing.T) {
	clock := newClock()
	client := &fakeContents{getErr: &github.StatusError{Status: http.StatusBadGateway}}
	orch := newTestOrchestrator(client, clock)

	_, err := orch.Commit(context.Background(), CommitRequest{Repo: "octo/demo", Branch: "main", Path: "a.md"})
	require.NoError(t, err)
	require.Len(t, client.puts, 1)
	require.Empty(t, client.puts[0].SHA)
}

func TestCommitConflictRetriesOnce(t *testing.T) {
	clock := newClock()
	client := &fakeContents{
		files:   map[string]*github.File{"octo/demo/a.md": {SHA: "fresh"}},
		putErrs: []error{&github.StatusError{Status: http.StatusConflict, Message: "a.md does not match"}},
	}
	orch := newTestOrchestrator(client, clock)

	record, err := orch.Commit(context.Background(), CommitRequest{Repo: "octo/demo", Branch: "main", Path: "a.md"})
	require.NoError(t, err)
	require.NotNil(t, record)
	require.Equal(t, 2, client.gets)
	require.Len(t, client.puts, 2)
	require.Equal(t, "fresh", client.puts[1].SHA)
}

func TestCommitConflictGivesUpAfterRetry(t *testing.T) {
	clock := newClock()
	conflict := &github.StatusError{Status: http.StatusConflict, Message: "still stale"}
	client := &fakeContents{putErrs: []error{conflict, conflict}}
	orch := newTestOrchestrator(client, clock)

	_, err := orch.Commit(context.Background(), CommitRequest{Repo: "octo/demo", Branch: "main", Path: "a.md"})
	require.ErrorIs(t, err, ErrConflict)
	require.Len(t, client.puts, 2)
	require.Equal(t, 0, orch.History.Len(context.Background()))
}

func TestCommitRemoteRejected(t *testing.T) {
	clock := newClock()
	client := &fakeContents{putErrs: []error{&github.StatusError{Status: http.StatusForbidden, Message: "Resource not accessible"}}}
	orch := newTestOrchestrator(client, clock)

	_, err := orch.Commit(context.Background(), CommitRequest{Repo: "octo/demo", Branch: "main", Path: "a.md"})
	var rejected *RemoteRejectedError
	require.ErrorAs(t, err, &rejected)
	require.Equal(t, http.StatusForbidden, rejected.Status)
	require.Contains(t, rejected.Message, "Access denied")
	require.Len(t, client.puts, 1)
}

func TestCommitTimeout(t *testing.T) {
	clock := newClock()
	client := &fakeContents{blockPuts: true}
	orch := newTestOrchestrator(client, clock)
	orch.RequestTimeout = 10 * time.Millisecond

	_, err := orch.Commit(context.Background(), CommitRequest{Repo: "octo/demo", Branch: "main", Path: "a.md"})
	require.ErrorIs(t, err, ErrTimeout)
	require.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestCommitWithoutClient(t *testing.T) {
	_, err := (&Orchestrator{}).Commit(context.Background(), CommitRequest{})
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestValidateTarget(t *testing.T) {
	require.NoError(t, ValidateTarget("octo/demo", "main", "docs/streak.md"))
	require.ErrorIs(t, ValidateTarget("octo", "main", "a"), ErrValidation)
	require.ErrorIs(t, ValidateTarget("octo/demo", " ", "a"), ErrValidation)
	require.ErrorIs(t, ValidateTarget("octo/demo", "main", "../a"), ErrValidation)
}

func TestPreviewMatchesCommittedBody(t *testing.T) {
	clock := newClock()
	client := &fakeContents{}
	orch := newTestOrchestrator(client, clock)

	req, title, body := orch.Preview(CommitRequest{Repo: "octo/demo", Branch: "main", Path: "streak.md"})
	require.NotEmpty(t, req.Title)
	require.Equal(t, req.Title, title)
	require.Contains(t, body, "# "+title)
	require.Contains(t, body, req.Stamp)

	clock.Advance(time.Minute)
	record, err := orch.Commit(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, title, record.Message)

	require.Len(t, client.puts, 1)
	written, err := github.DecodeContent(client.puts[0].Content)
	require.NoError(t, err)
	require.Equal(t, body, string(written))
}
