package engine

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/greenstreak/greenstreak/internal/core"
)

const (
	// MaxActivityEntries bounds the retained commit history.
	MaxActivityEntries = 200

	minAnomalySamples  = 10
	regularSamples     = 20
	regularityRatio    = 0.1
	burstWindow        = 3600 * time.Second
	burstThreshold     = 15
	nightSamples       = 30
	nightFraction      = 0.7
	nightStartHour     = 23
	nightEndHour       = 6
	reasonTooRegular   = "Too regular intervals detected (robot-like)"
	adviceTooRegular   = "Enable Safe Mode for natural timing"
	reasonUnusualHours = "Unusual activity hours (70%+ at night)"
	adviceUnusualHours = "Vary commit times throughout the day"
	adviceBurst        = "Reduce commit frequency immediately"
)

// ActivityStore persists the commit-timing history.
type ActivityStore interface {
	LoadActivity(ctx context.Context) ([]time.Time, error)
	SaveActivity(ctx context.Context, times []time.Time) error
}

// ActivityHistory is a bounded record of commit instants with a robotic
// pattern detector. It is safe for concurrent use.
type ActivityHistory struct {
	Store    ActivityStore
	Clock    func() time.Time
	Location *time.Location
	Logger   *logging.Logger

	mu     sync.Mutex
	loaded bool
	times  []time.Time
}

// Record appends ts and drops the oldest entries past MaxActivityEntries.
func (h *ActivityHistory) Record(ctx context.Context, ts time.Time) {
	if h == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.load(ctx)
	h.times = append(h.times, ts)
	if over := len(h.times) - MaxActivityEntries; over > 0 {
		h.times = append(h.times[:0], h.times[over:]...)
	}
	h.persist(ctx)
}

// Len returns the number of retained entries.
func (h *ActivityHistory) Len(ctx context.Context) int {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.load(ctx)
	return len(h.times)
}

// Times returns a copy of the retained entries in insertion order.
func (h *ActivityHistory) Times(ctx context.Context) []time.Time {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.load(ctx)
	return append([]time.Time(nil), h.times...)
}

// DetectAnomaly evaluates the history in priority order: too regular, burst,
// unusual hours. At most one reason is reported.
func (h *ActivityHistory) DetectAnomaly(ctx context.Context) core.Anomaly {
	if h == nil {
		return core.Anomaly{}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.load(ctx)

	times := h.times
	if len(times) < minAnomalySamples {
		return core.Anomaly{}
	}

	if len(times) > regularSamples {
		mean, stddev := intervalStats(times)
		if mean > 0 && stddev < regularityRatio*mean {
			return core.Anomaly{
				Suspicious:     true,
				Kind:           core.AnomalyTooRegular,
				Reason:         reasonTooRegular,
				Recommendation: adviceTooRegular,
			}
		}
	}

	now := h.now()
	recent := 0
	for _, ts := range times {
		if now.Sub(ts) < burstWindow {
			recent++
		}
	}
	if recent > burstThreshold {
		return core.Anomaly{
			Suspicious:     true,
			Kind:           core.AnomalyBurst,
			Reason:         fmt.Sprintf("Burst detected: %d commits in 1 hour", recent),
			Recommendation: adviceBurst,
		}
	}

	if len(times) > nightSamples {
		night := 0
		for _, ts := range times {
			hour := ts.In(h.location()).Hour()
			if hour >= nightStartHour || hour < nightEndHour {
				night++
			}
		}
		if float64(night)/float64(len(times)) > nightFraction {
			return core.Anomaly{
				Suspicious:     true,
				Kind:           core.AnomalyUnusualHours,
				Reason:         reasonUnusualHours,
				Recommendation: adviceUnusualHours,
			}
		}
	}

	return core.Anomaly{}
}

// Reset clears the history.
func (h *ActivityHistory) Reset(ctx context.Context) error {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	h.loaded = true
	h.times = nil
	if h.Store == nil {
		return nil
	}
	return h.Store.SaveActivity(ctx, nil)
}

func intervalStats(times []time.Time) (mean, stddev float64) {
	n := len(times) - 1
	if n <= 0 {
		return 0, 0
	}
	intervals := make([]float64, n)
	for i := 1; i < len(times); i++ {
		intervals[i-1] = float64(times[i].Sub(times[i-1]))
		mean += intervals[i-1]
	}
	mean /= float64(n)
	var variance float64
	for _, v := range intervals {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(n)
	return mean, math.Sqrt(variance)
}

func (h *ActivityHistory) load(ctx context.Context) {
	if h.loaded {
		return
	}
	h.loaded = true
	if h.Store == nil {
		return
	}
	times, err := h.Store.LoadActivity(ctx)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("activity history unavailable", zap.Error(err))
		}
		return
	}
	if len(times) > MaxActivityEntries {
		times = times[len(times)-MaxActivityEntries:]
	}
	h.times = append(h.times[:0], times...)
}

func (h *ActivityHistory) persist(ctx context.Context) {
	if h.Store == nil {
		return
	}
	if err := h.Store.SaveActivity(ctx, append([]time.Time(nil), h.times...)); err != nil && h.Logger != nil {
		h.Logger.Warn("persist activity history failed", zap.Error(err))
	}
}

func (h *ActivityHistory) location() *time.Location {
	if h.Location != nil {
		return h.Location
	}
	return time.Local
}

func (h *ActivityHistory) now() time.Time {
	if h.Clock != nil {
		return h.Clock()
	}
	return time.Now()
}
