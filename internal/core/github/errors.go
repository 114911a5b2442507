package github

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var statusMessages = map[int]string{
	http.StatusUnauthorized:        "Invalid or expired token. Please reconnect your GitHub account.",
	http.StatusForbidden:           "Access denied. Ensure your token has \"repo\" and \"read:user\" scopes.",
	http.StatusNotFound:            "Resource not found. Check repository name and branch.",
	http.StatusConflict:            "File changed on the remote. Refresh and try again.",
	http.StatusUnprocessableEntity: "Invalid data. Verify file path and commit message format.",
	http.StatusTooManyRequests:     "Rate limit exceeded. Please wait before trying again.",
	http.StatusInternalServerError: "GitHub server error. Please try again later.",
	http.StatusServiceUnavailable:  "GitHub service unavailable. Please try again later.",
}

// StatusMessage returns a human-readable explanation for an API status.
func StatusMessage(status int) string {
	if msg, ok := statusMessages[status]; ok {
		return msg
	}
	if text := http.StatusText(status); text != "" {
		return fmt.Sprintf("GitHub request failed: %s", text)
	}
	return fmt.Sprintf("GitHub request failed with status %d", status)
}

// StatusError is a non-success response from the API.
type StatusError struct {
	Status     int
	Message    string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("github: status %d", e.Status)
	}
	return fmt.Sprintf("github: status %d: %s", e.Status, e.Message)
}

// IsConflict reports whether the write was rejected because the prior
// version identifier was stale or missing.
func (e *StatusError) IsConflict() bool {
	if e == nil {
		return false
	}
	if e.Status == http.StatusConflict {
		return true
	}
	if e.Status != http.StatusUnprocessableEntity {
		return false
	}
	msg := strings.ToLower(e.Message)
	return strings.Contains(msg, "sha") || strings.Contains(msg, "does not match")
}

// AsStatusError unwraps err into a *StatusError.
func AsStatusError(err error) (*StatusError, bool) {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr, true
	}
	return nil, false
}

func newStatusError(resp *http.Response) *StatusError {
	statusErr := &StatusError{Status: resp.StatusCode}
	statusErr.RetryAfter = retryAfterHeader(resp)

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		statusErr.Message = payload.Message
	} else {
		statusErr.Message = strings.TrimSpace(string(body))
	}
	return statusErr
}

func retryAfterHeader(resp *http.Response) time.Duration {
	if resp == nil || resp.Header == nil {
		return 0
	}

	retry := resp.Header.Get("Retry-After")
	if retry == "" {
		return 0
	}
	if seconds, err := time.ParseDuration(retry + "s"); err == nil {
		return seconds
	}
	if parsed, err := http.ParseTime(retry); err == nil {
		return time.Until(parsed)
	}
	return 0
}
