package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/greenstreak/greenstreak/internal/core"
	"github.com/greenstreak/greenstreak/internal/core/engine"
	"github.com/greenstreak/greenstreak/internal/core/scheduler"
	apperrors "github.com/greenstreak/greenstreak/internal/errors"
	"github.com/greenstreak/greenstreak/internal/output"
)

const (
	defaultRecentCommits = 20
	maxListLimit         = 200
	maxCommitBody        = 1 << 20
)

// CommitService performs a direct commit.
type CommitService interface {
	Commit(ctx context.Context, req engine.CommitRequest) (*core.CommitRecord, error)
}

// StatsSource serves the lifetime counters and the commit log.
type StatsSource interface {
	Stats(ctx context.Context) (core.Stats, error)
	ListCommits(ctx context.Context, limit int) ([]core.CommitRecord, error)
}

// CommitDefaults fill in fields a commit request leaves empty.
type CommitDefaults struct {
	Repo    string
	Branch  string
	Path    string
	Content string
}

// API serves the /api/v1 control and status surface.
type API struct {
	Commits   CommitService
	Stats     StatsSource
	Limiters  engine.Limiters
	History   *engine.ActivityHistory
	Scheduler scheduler.Scheduler
	Events    *scheduler.EventLog
	Defaults  CommitDefaults
	Clock     func() time.Time

	// Context outlives requests; a scheduler started over HTTP runs under it.
	Context context.Context
}

// CommitPayload is the body of POST /commits.
type CommitPayload struct {
	Repo    string `json:"repo"`
	Branch  string `json:"branch"`
	Path    string `json:"path"`
	Content string `json:"content"`
	Message string `json:"message"`
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Scheduler *scheduler.Status     `json:"scheduler,omitempty"`
	Limiters  []output.LimiterRow   `json:"limiters"`
	Activity  output.ActivityReport `json:"activity"`
}

// StopResponse is the body of POST /scheduler/stop.
type StopResponse struct {
	Stopped bool             `json:"stopped"`
	Status  scheduler.Status `json:"status"`
}

// Routes returns the router to mount under /api/v1.
func (a *API) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/status", a.StatusHandler)
	r.Get("/stats", a.StatsHandler)
	r.Get("/rate-limits", a.RateLimitsHandler)
	r.Get("/activity", a.ActivityHandler)
	r.Get("/events", a.EventsHandler)
	r.Post("/commits", a.CommitHandler)
	r.Post("/scheduler/start", a.StartHandler)
	r.Post("/scheduler/stop", a.StopHandler)
	return r
}

func (a *API) StatusHandler(w http.ResponseWriter, r *http.Request) {
	response := StatusResponse{
		Limiters: output.LimiterRows(r.Context(), a.Limiters.All()...),
		Activity: a.activity(r.Context()),
	}
	if a.Scheduler != nil {
		status := a.Scheduler.Status()
		response.Scheduler = &status
	}
	writeJSON(w, http.StatusOK, response)
}

func (a *API) StatsHandler(w http.ResponseWriter, r *http.Request) {
	if a.Stats == nil {
		respondWithError(w, r, apperrors.NewUnavailableError("stats store not configured"))
		return
	}
	limit, err := limitParam(r, defaultRecentCommits)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	stats, err := a.Stats.Stats(r.Context())
	if err != nil {
		respondWithError(w, r, apperrors.WrapDatabaseError(r.Context(), err, "failed to load stats"))
		return
	}
	recent, err := a.Stats.ListCommits(r.Context(), limit)
	if err != nil {
		respondWithError(w, r, apperrors.WrapDatabaseError(r.Context(), err, "failed to list commits"))
		return
	}
	writeJSON(w, http.StatusOK, output.NewStatsReport(stats, recent, a.now()))
}

func (a *API) RateLimitsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, output.LimiterRows(r.Context(), a.Limiters.All()...))
}

func (a *API) ActivityHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.activity(r.Context()))
}

func (a *API) EventsHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r, 0)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	events := []core.Event{}
	if a.Events != nil {
		events = append(events, a.Events.Recent(limit)...)
	}
	writeJSON(w, http.StatusOK, events)
}

// CommitHandler performs a direct (non-automated) commit. Failures surface
// synchronously through the error envelope.
func (a *API) CommitHandler(w http.ResponseWriter, r *http.Request) {
	if a.Commits == nil {
		respondWithError(w, r, apperrors.NewUnavailableError("commits are not configured"))
		return
	}

	var payload CommitPayload
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCommitBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&payload); err != nil {
		respondWithError(w, r, apperrors.NewInvalidInputError("invalid commit payload: "+err.Error()))
		return
	}

	record, err := a.Commits.Commit(r.Context(), a.request(payload))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

func (a *API) StartHandler(w http.ResponseWriter, r *http.Request) {
	if a.Scheduler == nil {
		respondWithError(w, r, apperrors.NewUnavailableError("scheduler not configured"))
		return
	}

	ctx := a.Context
	if ctx == nil {
		ctx = context.Background()
	}
	if err := a.Scheduler.Start(ctx); err != nil {
		if errors.Is(err, scheduler.ErrAlreadyRunning) {
			respondWithError(w, r, apperrors.NewConflictError(err.Error()))
			return
		}
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, a.Scheduler.Status())
}

func (a *API) StopHandler(w http.ResponseWriter, r *http.Request) {
	if a.Scheduler == nil {
		respondWithError(w, r, apperrors.NewUnavailableError("scheduler not configured"))
		return
	}
	stopped := a.Scheduler.Stop()
	writeJSON(w, http.StatusOK, StopResponse{Stopped: stopped, Status: a.Scheduler.Status()})
}

func (a *API) request(payload CommitPayload) engine.CommitRequest {
	req := engine.CommitRequest{
		Repo:    firstNonEmpty(payload.Repo, a.Defaults.Repo),
		Branch:  firstNonEmpty(payload.Branch, a.Defaults.Branch),
		Path:    firstNonEmpty(payload.Path, a.Defaults.Path),
		Content: firstNonEmpty(payload.Content, a.Defaults.Content),
		Message: payload.Message,
		Mode:    "api",
	}
	return req
}

func (a *API) activity(ctx context.Context) output.ActivityReport {
	if a.History == nil {
		return output.ActivityReport{}
	}
	times := a.History.Times(ctx)
	report := output.ActivityReport{
		Entries: len(times),
		Anomaly: a.History.DetectAnomaly(ctx),
	}
	if n := len(times); n > 0 {
		last := times[n-1]
		report.Last = &last
	}
	return report
}

func (a *API) now() time.Time {
	if a.Clock != nil {
		return a.Clock()
	}
	return time.Now()
}

func limitParam(r *http.Request, fallback int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 || limit > maxListLimit {
		return 0, apperrors.NewInvalidInputError("limit must be an integer between 0 and " + strconv.Itoa(maxListLimit))
	}
	return limit, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}
