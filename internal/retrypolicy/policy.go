// Package retrypolicy implements Bentham's retry decision and backoff-delay
// calculation as pure functions (spec §4.A): no clocks, no I/O, no side
// effects beyond what the caller passes in.
package retrypolicy

import (
	"math"

	"github.com/bentham/bentham/internal/bentherr"
	"github.com/bentham/bentham/internal/clock"
)

// BackoffStrategy selects the delay curve.
type BackoffStrategy string

const (
	Fixed       BackoffStrategy = "fixed"
	Linear      BackoffStrategy = "linear"
	Exponential BackoffStrategy = "exponential"
)

// Config mirrors spec §4.A's config shape.
type Config struct {
	MaxRetries        int
	BackoffStrategy   BackoffStrategy
	InitialDelayMs    int
	MaxDelayMs        int
	BackoffMultiplier float64
	Jitter            bool
	// RetryConditions overrides the default retryable/non-retryable split
	// per error kind. A kind absent from this map falls back to
	// bentherr.DefaultRetryableKinds.
	RetryConditions map[bentherr.Code]bool
}

// ShouldRetry reports whether a job erroring with kind at attempt (0-based,
// the attempt number that just failed) should be retried.
func ShouldRetry(kind bentherr.Code, attempt int, cfg Config) bool {
	if attempt >= cfg.MaxRetries {
		return false
	}
	if cond, ok := cfg.RetryConditions[kind]; ok {
		return cond
	}
	return bentherr.DefaultRetryableKinds[kind]
}

// CalculateDelayMs computes the backoff delay in milliseconds for the given
// attempt (0-based), capped at cfg.MaxDelayMs, with optional jitter drawn
// from rnd (a uniform [0,1) source — see internal/clock.Rand).
func CalculateDelayMs(attempt int, cfg Config, rnd clock.Rand) int {
	var d float64
	switch cfg.BackoffStrategy {
	case Fixed:
		d = float64(cfg.InitialDelayMs)
	case Linear:
		d = float64(cfg.InitialDelayMs) * float64(attempt+1)
	case Exponential:
		mult := cfg.BackoffMultiplier
		if mult <= 0 {
			mult = 2
		}
		d = float64(cfg.InitialDelayMs) * math.Pow(mult, float64(attempt))
	default:
		d = float64(cfg.InitialDelayMs)
	}

	if d > float64(cfg.MaxDelayMs) {
		d = float64(cfg.MaxDelayMs)
	}

	if cfg.Jitter && rnd != nil {
		// uniform(0.8, 1.2)
		factor := 0.8 + rnd()*0.4
		d *= factor
		if d > float64(cfg.MaxDelayMs) {
			d = float64(cfg.MaxDelayMs)
		}
	}

	if d < 0 {
		d = 0
	}
	return int(d)
}
