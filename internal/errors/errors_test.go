package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/greenstreak/greenstreak/internal/core/engine"
)

func TestFromDomain(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"Validation", &engine.ValidationError{Field: "path", Reason: "must not contain '..'"}, CodeValidationFailed, http.StatusBadRequest},
		{"RateLimited", &engine.RateLimitedError{Limiter: "commits", Wait: 90 * time.Second}, CodeRateLimited, http.StatusTooManyRequests},
		{"Timeout", &engine.TimeoutError{Op: "put", Err: context.DeadlineExceeded}, CodeTimeout, http.StatusGatewayTimeout},
		{"Conflict", &engine.ConflictError{Path: "a.md", Message: "sha mismatch"}, CodeConflict, http.StatusConflict},
		{"RemoteRejected", &engine.RemoteRejectedError{Status: 403, Message: "forbidden"}, CodeExternalService, http.StatusBadGateway},
		{"Configuration", &engine.ConfigurationError{Reason: "no repos"}, CodeConfigInvalid, http.StatusInternalServerError},
		{"Wrapped", fmt.Errorf("scheduler: %w", &engine.ConflictError{Path: "b.md"}), CodeConflict, http.StatusConflict},
		{"Unknown", fmt.Errorf("boom"), CodeInternal, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			envelope := FromDomain(ctx, tc.err)
			require.Equal(t, tc.code, envelope.Code)
			require.Equal(t, tc.status, HTTPStatusFromEnvelope(envelope))
		})
	}
}

func TestRespondWithErrorRateLimited(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/commits", nil)

	RespondWithError(rec, req, &engine.RateLimitedError{Limiter: "daily", Wait: 1500 * time.Millisecond})

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "2", rec.Header().Get("Retry-After"))

	var body HTTPErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, CodeRateLimited, body.Error.Code)
	require.Equal(t, "daily", body.Error.Details["limiter"])
	require.NotEmpty(t, body.Error.RequestID)
}

func TestEnsureEnvelopeNil(t *testing.T) {
	envelope := EnsureEnvelope(nil)
	require.Equal(t, CodeInternal, envelope.Code)
}
