package core

import "math/rand/v2"

// Random is the source of randomness used by message generation, repository
// selection and scheduling. *rand.Rand satisfies it.
type Random interface {
	Float64() float64
	IntN(n int) int
}

type globalRandom struct{}

func (globalRandom) Float64() float64 { return rand.Float64() }

func (globalRandom) IntN(n int) int { return rand.IntN(n) }

// DefaultRandom returns a Random backed by the auto-seeded global generator.
// It is safe for concurrent use.
func DefaultRandom() Random {
	return globalRandom{}
}
