package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

type errorBody struct {
	Error struct {
		Code    string                 `json:"code"`
		Message string                 `json:"message"`
		Details map[string]interface{} `json:"details"`
	} `json:"error"`
}

func TestHealthHandlerReturnsHealthyStatus(t *testing.T) {
	manager := NewHealthManager("1.2.3")
	manager.RegisterChecker("store", CheckerFunc(func(context.Context) error { return nil }))

	rec := httptest.NewRecorder()
	manager.HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "healthy", resp.Status)
	require.Equal(t, "1.2.3", resp.Version)
	require.Equal(t, "healthy", resp.Checks["store"])
}

func TestHealthHandlerReturnsServiceUnavailableWhenUnhealthy(t *testing.T) {
	manager := NewHealthManager("1.2.3")
	manager.RegisterChecker("store", CheckerFunc(func(context.Context) error { return errors.New("database is locked") }))

	rec := httptest.NewRecorder()
	manager.HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp errorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "SERVICE_UNAVAILABLE", resp.Error.Code)
	checks, ok := resp.Error.Details["checks"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "unhealthy", checks["store"])
}

func TestReadinessProbeReportsProbeName(t *testing.T) {
	manager := NewHealthManager("dev")
	manager.RegisterChecker("store", CheckerFunc(func(context.Context) error { return errors.New("closed") }))

	rec := httptest.NewRecorder()
	manager.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp errorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "ready", resp.Error.Details["probe"])
}

func TestLivenessProbeWithoutCheckers(t *testing.T) {
	manager := NewHealthManager("dev")

	rec := httptest.NewRecorder()
	manager.LivenessHandler(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ProbeResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "healthy", resp.Status)
}

func TestDetermineOverallStatusTreatsTimeoutAsDegraded(t *testing.T) {
	manager := NewHealthManager("dev")
	require.Equal(t, "degraded", manager.determineOverallStatus(map[string]string{"store": "timeout"}))
	require.Equal(t, "unhealthy", manager.determineOverallStatus(map[string]string{"store": "timeout", "github": "unhealthy"}))
}

func TestGlobalHandlersWithoutManager(t *testing.T) {
	previous := globalHealthManager
	globalHealthManager = nil
	t.Cleanup(func() { globalHealthManager = previous })

	rec := httptest.NewRecorder()
	HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
