package metrics

import (
	"strconv"

	"github.com/greenstreak/greenstreak/internal/observability"
)

// Error metrics for the HTTP surface.
const (
	ErrorsTotal = "errors_total"
	PanicsTotal = "panics_total"
)

// RecordHTTPError counts one error response. endpoint is the chi route
// pattern, or "/unknown" outside a route.
func RecordHTTPError(endpoint, code string, status int) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Counter(ErrorsTotal, 1, map[string]string{
		"endpoint":    endpoint,
		"error_code":  code,
		"http_status": strconv.Itoa(status),
	})
}

// RecordPanic counts a recovered handler panic by request path.
func RecordPanic(path string) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Counter(PanicsTotal, 1, map[string]string{"path": path})
}
