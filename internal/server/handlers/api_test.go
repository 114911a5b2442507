package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/greenstreak/greenstreak/internal/core"
	"github.com/greenstreak/greenstreak/internal/core/engine"
	"github.com/greenstreak/greenstreak/internal/core/scheduler"
)

var apiNow = time.Date(2025, 3, 4, 15, 0, 0, 0, time.UTC)

type fakeCommits struct {
	got engine.CommitRequest
	err error
}

func (f *fakeCommits) Commit(_ context.Context, req engine.CommitRequest) (*core.CommitRecord, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &core.CommitRecord{ID: "c1", Repo: req.Repo, Branch: req.Branch, Path: req.Path, SHA: "abc123", CommittedAt: apiNow}, nil
}

type fakeScheduler struct {
	running bool
}

func (f *fakeScheduler) Start(context.Context) error {
	if f.running {
		return scheduler.ErrAlreadyRunning
	}
	f.running = true
	return nil
}

func (f *fakeScheduler) Run(ctx context.Context) error { return f.Start(ctx) }

func (f *fakeScheduler) Stop() bool {
	was := f.running
	f.running = false
	return was
}

func (f *fakeScheduler) Wait(context.Context) error { return nil }

func (f *fakeScheduler) Status() scheduler.Status {
	state := "idle"
	if f.running {
		state = "running"
	}
	return scheduler.Status{Mode: "safe", State: state}
}

func newTestAPI(t *testing.T) (*API, *fakeCommits, *fakeScheduler) {
	t.Helper()
	clock := func() time.Time { return apiNow }

	stats := &engine.MemoryStats{}
	require.NoError(t, stats.RecordCommit(context.Background(), core.CommitRecord{
		ID: "c0", Repo: "octo/site", Path: "activity.md", CommittedAt: apiNow.Add(-time.Hour), Automated: true,
	}))

	events := scheduler.NewEventLog(10)
	events.Add(core.Event{Type: core.EventStarted, Time: apiNow})

	commits := &fakeCommits{}
	sched := &fakeScheduler{}
	api := &API{
		Commits: commits,
		Stats:   stats,
		Limiters: engine.Limiters{
			Daily: &engine.RateLimiter{Name: engine.LimiterDaily, Capacity: 2, Window: 24 * time.Hour, Clock: clock},
		},
		History:   &engine.ActivityHistory{Clock: clock},
		Scheduler: sched,
		Events:    events,
		Defaults:  CommitDefaults{Repo: "octo/site", Branch: "main", Path: "activity.md"},
		Clock:     clock,
	}
	return api, commits, sched
}

func serve(api *API, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	api.Routes().ServeHTTP(rec, req)
	return rec
}

func TestCommitHandlerAppliesDefaults(t *testing.T) {
	api, commits, _ := newTestAPI(t)

	rec := serve(api, http.MethodPost, "/commits", `{"message":"docs: tweak"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "octo/site", commits.got.Repo)
	require.Equal(t, "main", commits.got.Branch)
	require.Equal(t, "activity.md", commits.got.Path)
	require.Equal(t, "docs: tweak", commits.got.Message)
	require.Equal(t, "api", commits.got.Mode)
	require.False(t, commits.got.Automated)

	var record core.CommitRecord
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&record))
	require.Equal(t, "abc123", record.SHA)
}

func TestCommitHandlerRejectsUnknownFields(t *testing.T) {
	api, _, _ := newTestAPI(t)

	rec := serve(api, http.MethodPost, "/commits", `{"repository":"octo/site"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "INVALID_INPUT")
}

func TestCommitHandlerMapsRateLimit(t *testing.T) {
	api, commits, _ := newTestAPI(t)
	commits.err = &engine.RateLimitedError{Limiter: engine.LimiterDaily, Wait: 90 * time.Second}

	rec := serve(api, http.MethodPost, "/commits", `{}`)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "90", rec.Header().Get("Retry-After"))
	require.Contains(t, rec.Body.String(), "RATE_LIMITED")
}

func TestSchedulerStartStop(t *testing.T) {
	api, _, sched := newTestAPI(t)

	rec := serve(api, http.MethodPost, "/scheduler/start", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.True(t, sched.running)

	rec = serve(api, http.MethodPost, "/scheduler/start", "")
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = serve(api, http.MethodPost, "/scheduler/stop", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stop StopResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stop))
	require.True(t, stop.Stopped)
	require.Equal(t, "idle", stop.Status.State)
}

func TestSchedulerUnavailable(t *testing.T) {
	api, _, _ := newTestAPI(t)
	api.Scheduler = nil

	rec := serve(api, http.MethodPost, "/scheduler/start", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStatusAndReadEndpoints(t *testing.T) {
	api, _, _ := newTestAPI(t)
	require.True(t, api.Limiters.Daily.CanMakeRequest(context.Background()).Allowed)

	rec := serve(api, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var status StatusResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	require.NotNil(t, status.Scheduler)
	require.Len(t, status.Limiters, 1)
	require.Equal(t, 1, status.Limiters[0].Used)
	require.Equal(t, 1, status.Limiters[0].Remaining)

	rec = serve(api, http.MethodGet, "/stats?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"most_active_repo":"octo/site"`)

	rec = serve(api, http.MethodGet, "/events", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var events []core.Event
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&events))
	require.Len(t, events, 1)
	require.Equal(t, core.EventStarted, events[0].Type)

	rec = serve(api, http.MethodGet, "/activity", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"entries":0`)
}

func TestLimitParamValidation(t *testing.T) {
	api, _, _ := newTestAPI(t)

	rec := serve(api, http.MethodGet, "/stats?limit=1000", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(api, http.MethodGet, "/events?limit=abc", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
