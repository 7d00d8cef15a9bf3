package config

import "time"

// RetryDefaults holds default retry-policy values. Nothing in this module
// copies them into a study's execution.retry block.
type RetryDefaults struct {
	MaxRetries        int      `json:"max_retries"`
	BackoffStrategy   string   `json:"backoff_strategy"`
	InitialDelayMs    int      `json:"initial_delay_ms"`
	MaxDelayMs        int      `json:"max_delay_ms"`
	BackoffMultiplier float64  `json:"backoff_multiplier"`
	Jitter            bool     `json:"jitter"`
	NonRetryableKinds []string `json:"non_retryable_kinds"`
}

// CheckpointDefaults holds the default auto-save policy for CheckpointManager.
type CheckpointDefaults struct {
	Enabled             bool     `json:"enabled"`
	SaveIntervalCells   int      `json:"save_interval_cells"`
	SaveIntervalSeconds Duration `json:"save_interval_seconds"`
	PreserveCheckpoint  bool     `json:"preserve_checkpoint"`
}

// AccountDefaults holds the Account Manager's checkout defaults: the
// cooldown after a failed checkin, the longest a checkout may stay open, and
// the expired-checkout sweep interval.
type AccountDefaults struct {
	DefaultCooldownSeconds int      `json:"default_cooldown_seconds"`
	MaxCheckoutDuration    Duration `json:"max_checkout_duration"`
	SweepInterval          Duration `json:"sweep_interval"`
}

// ProxyDefaults holds the default sticky-session and health-tracking
// parameters for the Proxy Manager.
type ProxyDefaults struct {
	DefaultStickyDuration Duration `json:"default_sticky_duration"`
	UnhealthyThreshold    int      `json:"unhealthy_threshold"`
	RecoveryThreshold     int      `json:"recovery_threshold"`
	HealthCheckInterval   Duration `json:"health_check_interval"`
	HealthCheckTimeout    Duration `json:"health_check_timeout"`
}

// RuntimeConfig holds all hot-updatable defaults for a Bentham deployment.
// It is deliberately small and data-only so it can be round-tripped as JSON,
// mirroring the teacher's RuntimeConfig/NewDefaultRuntimeConfig convention.
type RuntimeConfig struct {
	Retry      RetryDefaults      `json:"retry"`
	Checkpoint CheckpointDefaults `json:"checkpoint"`
	Account    AccountDefaults    `json:"account"`
	Proxy      ProxyDefaults      `json:"proxy"`

	// SafetyMargin is subtracted from a study's deadline before projecting
	// at-risk status (spec §9 Open Question resolution).
	SafetyMargin Duration `json:"safety_margin"`
}

// NewDefaultRuntimeConfig returns a RuntimeConfig populated with sensible
// production defaults.
func NewDefaultRuntimeConfig() *RuntimeConfig {
	return &RuntimeConfig{
		Retry: RetryDefaults{
			MaxRetries:        3,
			BackoffStrategy:   "exponential",
			InitialDelayMs:    1000,
			MaxDelayMs:        60000,
			BackoffMultiplier: 2,
			Jitter:            true,
			NonRetryableKinds: []string{
				"AUTH_FAILED", "QUOTA_EXCEEDED", "INVALID_REQUEST",
				"CONTENT_BLOCKED", "CAPTCHA_REQUIRED",
			},
		},
		Checkpoint: CheckpointDefaults{
			Enabled:             true,
			SaveIntervalCells:   25,
			SaveIntervalSeconds: Duration(30 * time.Second),
			PreserveCheckpoint:  false,
		},
		Account: AccountDefaults{
			DefaultCooldownSeconds: 60,
			MaxCheckoutDuration:    Duration(15 * time.Minute),
			SweepInterval:          Duration(30 * time.Second),
		},
		Proxy: ProxyDefaults{
			DefaultStickyDuration: Duration(10 * time.Minute),
			UnhealthyThreshold:    5,
			RecoveryThreshold:     3,
			HealthCheckInterval:   Duration(time.Minute),
			HealthCheckTimeout:    Duration(10 * time.Second),
		},
		SafetyMargin: Duration(0),
	}
}
