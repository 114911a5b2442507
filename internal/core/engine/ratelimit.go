package engine

import (
	"context"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/greenstreak/greenstreak/internal/core"
)

const (
	maxBackoff    = 5.0
	backoffGrowth = 1.5
	backoffDecay  = 0.9
	minBackoff    = 1.0
)

// Limiter names.
const (
	LimiterCommits = "commits"
	LimiterAPI     = "api"
	LimiterDaily   = "daily"
)

// RateLimit describes the capacity of one sliding window.
type RateLimit struct {
	Capacity int
	Window   time.Duration
}

// DefaultLimits provides the conservative defaults per named limiter.
var DefaultLimits = map[string]RateLimit{
	LimiterCommits: {Capacity: 50, Window: time.Hour},
	LimiterAPI:     {Capacity: 80, Window: time.Hour},
	LimiterDaily:   {Capacity: 15, Window: 24 * time.Hour},
}

// RateLimitStore stores rate limit state.
type RateLimitStore interface {
	GetRateLimit(ctx context.Context, name string) (*core.RateLimitState, error)
	UpdateRateLimit(ctx context.Context, name string, state *core.RateLimitState) error
}

// Decision is the outcome of a rate limit check.
type Decision struct {
	Allowed bool
	Wait    time.Duration
}

// RateLimiter is a sliding-window counter with adaptive backoff. It is safe
// for concurrent use.
type RateLimiter struct {
	Name     string
	Capacity int
	Window   time.Duration
	Store    RateLimitStore
	Clock    func() time.Time
	Logger   *logging.Logger

	mu         sync.Mutex
	loaded     bool
	timestamps []time.Time
	backoff    float64
}

// NewRateLimiter builds a limiter for name, falling back to DefaultLimits
// when limit is zero.
func NewRateLimiter(name string, limit RateLimit, store RateLimitStore) *RateLimiter {
	if limit.Capacity <= 0 || limit.Window <= 0 {
		if def, ok := DefaultLimits[name]; ok {
			limit = def
		}
	}
	return &RateLimiter{
		Name:     name,
		Capacity: limit.Capacity,
		Window:   limit.Window,
		Store:    store,
	}
}

// CanMakeRequest records an action if capacity allows it. A denial leaves the
// timestamps untouched but grows the backoff multiplier.
func (r *RateLimiter) CanMakeRequest(ctx context.Context) Decision {
	if r == nil {
		return Decision{Allowed: true}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.load(ctx)
	now := r.now()
	r.prune(now)

	if len(r.timestamps) >= r.Capacity {
		oldest := r.timestamps[0]
		wait := time.Duration(float64(r.Window-now.Sub(oldest)) * r.backoff)
		if wait <= 0 {
			wait = time.Millisecond
		}
		r.backoff *= backoffGrowth
		if r.backoff > maxBackoff {
			r.backoff = maxBackoff
		}
		r.persist(ctx, now)
		return Decision{Allowed: false, Wait: wait}
	}

	r.backoff *= backoffDecay
	if r.backoff < minBackoff {
		r.backoff = minBackoff
	}
	r.timestamps = append(r.timestamps, now)
	r.persist(ctx, now)
	return Decision{Allowed: true}
}

// Remaining reports how many actions the current window still admits.
func (r *RateLimiter) Remaining(ctx context.Context) int {
	if r == nil {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.load(ctx)
	r.prune(r.now())
	remaining := r.Capacity - len(r.timestamps)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Backoff returns the current backoff multiplier.
func (r *RateLimiter) Backoff() float64 {
	if r == nil {
		return minBackoff
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.backoff < minBackoff {
		return minBackoff
	}
	return r.backoff
}

// Snapshot returns a copy of the limiter state after pruning.
func (r *RateLimiter) Snapshot(ctx context.Context) core.RateLimitState {
	if r == nil {
		return core.RateLimitState{BackoffMultiplier: minBackoff}
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.load(ctx)
	now := r.now()
	r.prune(now)
	return core.RateLimitState{
		Timestamps:        append([]time.Time(nil), r.timestamps...),
		BackoffMultiplier: r.backoff,
		UpdatedAt:         now,
	}
}

// Reset clears the window and the backoff multiplier.
func (r *RateLimiter) Reset(ctx context.Context) error {
	if r == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.loaded = true
	r.timestamps = nil
	r.backoff = minBackoff
	if r.Store == nil {
		return nil
	}
	return r.Store.UpdateRateLimit(ctx, r.Name, &core.RateLimitState{
		BackoffMultiplier: minBackoff,
		UpdatedAt:         r.now(),
	})
}

func (r *RateLimiter) load(ctx context.Context) {
	if r.loaded {
		return
	}
	r.loaded = true
	r.backoff = minBackoff
	if r.Store == nil {
		return
	}

	state, err := r.Store.GetRateLimit(ctx, r.Name)
	if err != nil {
		r.warn("rate limit state unavailable", err)
		return
	}
	if state == nil {
		return
	}
	r.timestamps = append(r.timestamps[:0], state.Timestamps...)
	if state.BackoffMultiplier >= minBackoff && state.BackoffMultiplier <= maxBackoff {
		r.backoff = state.BackoffMultiplier
	}
}

func (r *RateLimiter) prune(now time.Time) {
	kept := r.timestamps[:0]
	for _, ts := range r.timestamps {
		if now.Sub(ts) < r.Window {
			kept = append(kept, ts)
		}
	}
	r.timestamps = kept
}

func (r *RateLimiter) persist(ctx context.Context, now time.Time) {
	if r.Store == nil {
		return
	}
	state := &core.RateLimitState{
		Timestamps:        append([]time.Time(nil), r.timestamps...),
		BackoffMultiplier: r.backoff,
		UpdatedAt:         now,
	}
	if err := r.Store.UpdateRateLimit(ctx, r.Name, state); err != nil {
		r.warn("persist rate limit state failed", err)
	}
}

func (r *RateLimiter) warn(msg string, err error) {
	if r.Logger == nil {
		return
	}
	r.Logger.Warn(msg, zap.String("limiter", r.Name), zap.Error(err))
}

func (r *RateLimiter) now() time.Time {
	if r != nil && r.Clock != nil {
		return r.Clock()
	}
	return time.Now().UTC()
}
