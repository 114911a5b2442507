package metrics

import (
	"github.com/greenstreak/greenstreak/internal/observability"
)

// Commit pipeline metrics
const (
	CommitsTotal           = "commits_total"
	RateLimitDenialsTotal  = "rate_limit_denials_total"
	ActivityAnomaliesTotal = "activity_anomalies_total"
	SchedulerDecisions     = "scheduler_decisions_total"
	LimiterRemaining       = "rate_limit_remaining"
)

// RecordCommit counts a commit attempt by mode (manual, safe, fixed,
// simulate) and status (success, denied, failure).
func RecordCommit(mode, status string) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Counter(CommitsTotal, 1, map[string]string{
		"mode":   mode,
		"status": status,
	})
}

// RecordRateLimitDenial counts a denial by limiter name.
func RecordRateLimitDenial(limiter string) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Counter(RateLimitDenialsTotal, 1, map[string]string{
		"limiter": limiter,
	})
}

// SetLimiterRemaining publishes the remaining capacity of a limiter.
func SetLimiterRemaining(limiter string, remaining int) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Gauge(LimiterRemaining, float64(remaining), map[string]string{
		"limiter": limiter,
	})
}

// RecordAnomaly counts an advisory activity verdict.
func RecordAnomaly(kind string) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Counter(ActivityAnomaliesTotal, 1, map[string]string{
		"reason": kind,
	})
}

// RecordSchedulerDecision counts one scheduler loop outcome.
func RecordSchedulerDecision(decision string) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Counter(SchedulerDecisions, 1, map[string]string{
		"type": decision,
	})
}
