package engine

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrValidation     = errors.New("validation failed")
	ErrRateLimited    = errors.New("rate limited")
	ErrTimeout        = errors.New("request timed out")
	ErrConflict       = errors.New("remote conflict")
	ErrRemoteRejected = errors.New("remote rejected request")
	ErrConfiguration  = errors.New("invalid configuration")
)

// ValidationError reports a bad repo, branch, path or content.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// RateLimitedError is returned when a named limiter denies the action.
type RateLimitedError struct {
	Limiter string
	Wait    time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s limit reached, retry in %s", e.Limiter, e.Wait.Round(time.Second))
}

func (e *RateLimitedError) Is(target error) bool { return target == ErrRateLimited }

// TimeoutError is returned when a network call exceeds its deadline.
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out: %v", e.Op, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// ConflictError is returned when a write still conflicts after the re-read retry.
type ConflictError struct {
	Path    string
	Message string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict writing %s: %s", e.Path, e.Message)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// RemoteRejectedError wraps a non-conflict 4xx/5xx from the hosting API.
type RemoteRejectedError struct {
	Status  int
	Message string
}

func (e *RemoteRejectedError) Error() string {
	return fmt.Sprintf("remote rejected request (%d): %s", e.Status, e.Message)
}

func (e *RemoteRejectedError) Is(target error) bool { return target == ErrRemoteRejected }

// ConfigurationError reports missing credentials or required fields.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }
