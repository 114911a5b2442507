package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/greenstreak/greenstreak/internal/observability"
)

// HTTP metric names.
const (
	HTTPRequestsTotal   = "http_requests_total"
	HTTPRequestDuration = "http_request_duration_ms"
	HTTPResponseBytes   = "http_response_size_bytes"
	HTTPErrorsTotal     = "http_errors_total"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += int64(n)
	return n, err
}

// getEndpointPattern prefers the chi route pattern and otherwise buckets the
// path so unknown URLs do not explode label cardinality.
func getEndpointPattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}

	path := r.URL.Path
	switch {
	case path == "/health" || strings.HasPrefix(path, "/health/"):
		return "/health/*"
	case path == "/version", path == "/metrics", path == "/":
		return path
	case strings.HasPrefix(path, "/api/v1/"):
		return "/api/v1/*"
	case strings.HasPrefix(path, "/admin/"):
		return "/admin/*"
	default:
		return "/unknown"
	}
}

// RequestMetrics emits per-request counters and latency, then logs the
// request with its correlation ID.
func RequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if observability.TelemetrySystem == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		duration := time.Since(start)

		endpoint := getEndpointPattern(r)
		labels := map[string]string{
			"method":   r.Method,
			"endpoint": endpoint,
			"status":   strconv.Itoa(recorder.status),
		}
		_ = observability.TelemetrySystem.Counter(HTTPRequestsTotal, 1, labels)
		_ = observability.TelemetrySystem.Histogram(HTTPRequestDuration, duration, labels)
		_ = observability.TelemetrySystem.Gauge(HTTPResponseBytes, float64(recorder.bytes), map[string]string{
			"method":   r.Method,
			"endpoint": endpoint,
		})

		if recorder.status >= 400 {
			class := "client_error"
			if recorder.status >= 500 {
				class = "server_error"
			}
			_ = observability.TelemetrySystem.Counter(HTTPErrorsTotal, 1, map[string]string{
				"method":     r.Method,
				"endpoint":   endpoint,
				"error_type": class,
			})
		}

		if observability.ServerLogger != nil {
			observability.ServerLogger.Info("HTTP request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("endpoint", endpoint),
				zap.Int("status", recorder.status),
				zap.Duration("duration", duration),
				zap.Int64("response_size", recorder.bytes),
				zap.String("request_id", GetRequestID(r.Context())))
		}
	})
}
