package engine

import (
	"context"
	"errors"
	"net"
	"path"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/greenstreak/greenstreak/internal/core"
	"github.com/greenstreak/greenstreak/internal/core/github"
	"github.com/greenstreak/greenstreak/internal/core/message"
	"github.com/greenstreak/greenstreak/internal/metrics"
)

// ContentsAPI is the subset of the hosting API used to commit a file.
type ContentsAPI interface {
	GetFile(ctx context.Context, repo, path, ref string) (*github.File, error)
	PutFile(ctx context.Context, repo, path string, body github.PutFileRequest) (*github.PutFileResult, error)
}

// Limiters groups the named quotas consulted before a commit.
type Limiters struct {
	Commits  *RateLimiter
	Requests *RateLimiter
	Daily    *RateLimiter
}

// All returns the configured limiters in display order.
func (l Limiters) All() []*RateLimiter {
	out := make([]*RateLimiter, 0, 3)
	for _, limiter := range []*RateLimiter{l.Commits, l.Requests, l.Daily} {
		if limiter != nil {
			out = append(out, limiter)
		}
	}
	return out
}

// Get returns the limiter registered under name.
func (l Limiters) Get(name string) *RateLimiter {
	for _, limiter := range l.All() {
		if limiter.Name == name {
			return limiter
		}
	}
	return nil
}

// CommitRequest describes one logical commit. Content is written verbatim
// unless Message overrides it; Stamp is rendered into generated bodies and
// defaults to the commit time. Title pins the generated commit title without
// switching to the override body. Mode labels the caller for metrics.
type CommitRequest struct {
	Repo      string
	Branch    string
	Path      string
	Content   string
	Message   string
	Title     string
	Automated bool
	Stamp     string
	Mode      string
}

// Orchestrator performs the read-modify-write for one commit.
type Orchestrator struct {
	Client         ContentsAPI
	Limiters       Limiters
	History        *ActivityHistory
	Stats          StatsStore
	Random         core.Random
	Clock          func() time.Time
	Logger         *logging.Logger
	RequestTimeout time.Duration
}

// ValidateTarget checks repo, branch and path. Traversal and absolute paths
// are rejected.
func ValidateTarget(repo, branch, filePath string) error {
	if _, _, ok := github.SplitRepo(repo); !ok {
		return &ValidationError{Field: "repo", Reason: "must be owner/name"}
	}
	if strings.TrimSpace(branch) == "" {
		return &ValidationError{Field: "branch", Reason: "is required"}
	}
	return validatePath(filePath, true)
}

func validatePath(filePath string, strict bool) error {
	trimmed := strings.TrimSpace(filePath)
	if trimmed == "" {
		return &ValidationError{Field: "path", Reason: "is required"}
	}
	if !strict {
		return nil
	}
	if strings.HasPrefix(trimmed, "/") || strings.HasPrefix(trimmed, "\\") || path.IsAbs(trimmed) {
		return &ValidationError{Field: "path", Reason: "must be relative to the repository root"}
	}
	for _, segment := range strings.FieldsFunc(trimmed, func(r rune) bool { return r == '/' || r == '\\' }) {
		if segment == ".." {
			return &ValidationError{Field: "path", Reason: "must not contain '..'"}
		}
	}
	return nil
}

// Commit runs one commit. A denied limiter returns *RateLimitedError before any
// network call; a stale prior version triggers exactly one re-read and retry.
func (o *Orchestrator) Commit(ctx context.Context, req CommitRequest) (*core.CommitRecord, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if o == nil || o.Client == nil {
		return nil, &ConfigurationError{Reason: "commit client is not configured"}
	}

	req.Repo = strings.TrimSpace(req.Repo)
	req.Branch = strings.TrimSpace(req.Branch)
	req.Path = strings.TrimSpace(req.Path)
	if req.Mode == "" {
		req.Mode = "manual"
		if req.Automated {
			req.Mode = "automated"
		}
	}

	if err := o.validate(req); err != nil {
		metrics.RecordCommit(req.Mode, "invalid")
		return nil, err
	}

	if err := o.admit(ctx, req); err != nil {
		metrics.RecordCommit(req.Mode, "denied")
		return nil, err
	}

	now := o.now()
	commitMessage, body := o.compose(req, now)
	encoded := github.EncodeContent([]byte(body))

	sha := o.resolveSHA(ctx, req)
	result, err := o.put(ctx, req, commitMessage, encoded, sha)
	if statusErr, ok := github.AsStatusError(err); ok && statusErr.IsConflict() {
		o.debug("stale prior version, re-reading", req)
		sha = o.resolveSHA(ctx, req)
		result, err = o.put(ctx, req, commitMessage, encoded, sha)
	}
	if err != nil {
		metrics.RecordCommit(req.Mode, "failure")
		classified := o.classify(req, err)
		if o.Logger != nil {
			o.Logger.Warn("commit failed",
				zap.String("repo", req.Repo),
				zap.String("path", req.Path),
				zap.Bool("automated", req.Automated),
				zap.Error(classified))
		}
		return nil, classified
	}

	committedAt := o.now()
	record := &core.CommitRecord{
		ID:          uuid.New().String(),
		Repo:        req.Repo,
		Branch:      req.Branch,
		Path:        req.Path,
		Message:     commitMessage,
		SHA:         result.CommitSHA,
		HTMLURL:     result.HTMLURL,
		CommittedAt: committedAt,
		Automated:   req.Automated,
	}

	o.History.Record(ctx, committedAt)
	if o.Stats != nil {
		if err := o.Stats.RecordCommit(ctx, *record); err != nil && o.Logger != nil {
			o.Logger.Warn("record commit stats failed", zap.Error(err))
		}
	}
	metrics.RecordCommit(req.Mode, "success")

	if o.Logger != nil {
		o.Logger.Info("commit created",
			zap.String("repo", record.Repo),
			zap.String("branch", record.Branch),
			zap.String("sha", record.ShortSHA()),
			zap.Bool("automated", record.Automated))
	}
	return record, nil
}

func (o *Orchestrator) validate(req CommitRequest) error {
	if req.Repo == "" {
		return &ValidationError{Field: "repo", Reason: "is required"}
	}
	if _, _, ok := github.SplitRepo(req.Repo); !ok {
		return &ValidationError{Field: "repo", Reason: "must be owner/name"}
	}
	if req.Branch == "" {
		return &ValidationError{Field: "branch", Reason: "is required"}
	}
	// Automated targets come from configuration, which ValidateTarget
	// already checked at load time.
	return validatePath(req.Path, !req.Automated)
}

func (o *Orchestrator) admit(ctx context.Context, req CommitRequest) error {
	checks := []*RateLimiter{o.Limiters.Commits}
	if !req.Automated && req.Message == "" {
		checks = append(checks, o.Limiters.Daily)
	}
	checks = append(checks, o.Limiters.Requests)

	for _, limiter := range checks {
		if limiter == nil {
			continue
		}
		decision := limiter.CanMakeRequest(ctx)
		metrics.SetLimiterRemaining(limiter.Name, limiter.Remaining(ctx))
		if !decision.Allowed {
			metrics.RecordRateLimitDenial(limiter.Name)
			return &RateLimitedError{Limiter: limiter.Name, Wait: decision.Wait}
		}
	}
	return nil
}

func (o *Orchestrator) compose(req CommitRequest, now time.Time) (string, string) {
	stamp := req.Stamp
	if stamp == "" {
		stamp = now.Format(time.RFC3339)
	}

	if msg := strings.TrimSpace(req.Message); msg != "" {
		return msg, message.OverrideBody(msg, stamp)
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = message.Generate(o.random())
	}
	if req.Content != "" {
		return title, req.Content
	}
	return title, message.Body(title, stamp)
}

// Preview fills in the generated title and stamp so that committing the
// returned request writes exactly the returned message and body.
func (o *Orchestrator) Preview(req CommitRequest) (CommitRequest, string, string) {
	if req.Stamp == "" {
		req.Stamp = o.now().Format(time.RFC3339)
	}
	if strings.TrimSpace(req.Message) == "" && strings.TrimSpace(req.Title) == "" {
		req.Title = message.Generate(o.random())
	}
	commitMessage, body := o.compose(req, o.now())
	return req, commitMessage, body
}

// resolveSHA looks up the prior version identifier. Read failures other than
// 404 are logged and the write proceeds without one.
func (o *Orchestrator) resolveSHA(ctx context.Context, req CommitRequest) string {
	callCtx, cancel := context.WithTimeout(ctx, o.timeout())
	defer cancel()

	file, err := o.Client.GetFile(callCtx, req.Repo, req.Path, req.Branch)
	if err != nil {
		if o.Logger != nil {
			o.Logger.Warn("read current file failed, writing without prior version",
				zap.String("repo", req.Repo),
				zap.String("path", req.Path),
				zap.Error(err))
		}
		return ""
	}
	if file == nil {
		return ""
	}
	return file.SHA
}

func (o *Orchestrator) put(ctx context.Context, req CommitRequest, commitMessage, encoded, sha string) (*github.PutFileResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.timeout())
	defer cancel()

	return o.Client.PutFile(callCtx, req.Repo, req.Path, github.PutFileRequest{
		Message: commitMessage,
		Content: encoded,
		SHA:     sha,
		Branch:  req.Branch,
	})
}

func (o *Orchestrator) classify(req CommitRequest, err error) error {
	if statusErr, ok := github.AsStatusError(err); ok {
		if statusErr.IsConflict() {
			return &ConflictError{Path: req.Path, Message: statusErr.Message}
		}
		return &RemoteRejectedError{Status: statusErr.Status, Message: github.StatusMessage(statusErr.Status)}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Op: "write " + req.Path, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TimeoutError{Op: "write " + req.Path, Err: err}
	}
	return err
}

func (o *Orchestrator) debug(msg string, req CommitRequest) {
	if o.Logger == nil {
		return
	}
	o.Logger.Debug(msg, zap.String("repo", req.Repo), zap.String("path", req.Path))
}

func (o *Orchestrator) random() core.Random {
	if o.Random != nil {
		return o.Random
	}
	return core.DefaultRandom()
}

func (o *Orchestrator) timeout() time.Duration {
	if o.RequestTimeout > 0 {
		return o.RequestTimeout
	}
	return github.DefaultTimeout
}

func (o *Orchestrator) now() time.Time {
	if o.Clock != nil {
		return o.Clock()
	}
	return time.Now().UTC()
}

var _ ContentsAPI = (*github.Client)(nil)
