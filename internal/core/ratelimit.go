package core

import "time"

// RateLimitState captures the persisted state of one named limiter.
type RateLimitState struct {
	Timestamps        []time.Time
	BackoffMultiplier float64
	UpdatedAt         time.Time
}
