// Package clock provides an injectable time and randomness source so that
// retry, cooldown, deadline and checkpoint-age logic can be driven
// deterministically under test, per spec §9's "Clock injection" note.
package clock

import (
	"math/rand/v2"
	"time"
)

// Clock returns the current time. Components take a Clock instead of
// calling time.Now() directly.
type Clock func() time.Time

// Real returns a Clock backed by the system wall clock.
func Real() Clock {
	return time.Now
}

// Fixed returns a Clock that always reports t, for deterministic tests.
func Fixed(t time.Time) Clock {
	return func() time.Time { return t }
}

// Rand is an injectable source of uniform float64s in [0,1), used by the
// retry policy's jitter and by selection strategies that need randomness
// (credential pool "random" strategy, proxy pool "random" rotation).
type Rand func() float64

// RealRand returns a Rand backed by math/rand/v2's global source.
func RealRand() Rand {
	return rand.Float64
}

// SeededRand returns a deterministic Rand for tests, seeded with seed.
func SeededRand(seed uint64) Rand {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return r.Float64
}

// IntN returns a deterministic [0,n) generator built on the same PRNG
// family, for shuffles (manifest queue shuffling) and index-based picks.
func IntN(seed uint64) func(n int) int {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return func(n int) int {
		if n <= 0 {
			return 0
		}
		return r.IntN(n)
	}
}
