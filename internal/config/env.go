// Package config handles environment-based configuration loading and the
// hot-updatable runtime defaults shared across Bentham's components.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvConfig holds all environment-variable-driven settings that are fixed
// for the lifetime of a process (not hot-updatable).
type EnvConfig struct {
	// Directories
	CheckpointDir string
	VaultDir      string

	// Concurrency
	MaxConcurrency        int
	DefaultConcurrencyCap int

	// Credential vault
	VaultMasterPassword string
	VaultBackend        string // memory | environment | encrypted_file
	CredentialEnvPrefix string

	// Account sweep / checkpoint manager
	AccountSweepEnabled bool

	// Listen address for the optional status/control API.
	ListenAddress string
}

// LoadEnvConfig reads environment variables and returns a validated EnvConfig.
// Returns an error if any value fails validation.
func LoadEnvConfig() (*EnvConfig, error) {
	cfg := &EnvConfig{}
	var errs []string

	cfg.CheckpointDir = envStr("BENTHAM_CHECKPOINT_DIR", "/var/lib/bentham/checkpoints")
	cfg.VaultDir = envStr("BENTHAM_VAULT_DIR", "/var/lib/bentham/vault")

	cfg.MaxConcurrency = envInt("BENTHAM_MAX_CONCURRENCY", 50, &errs)
	cfg.DefaultConcurrencyCap = envInt("BENTHAM_DEFAULT_CONCURRENCY_PER_SURFACE", 5, &errs)

	cfg.VaultMasterPassword = os.Getenv("BENTHAM_VAULT_MASTER_PASSWORD")
	cfg.VaultBackend = envStr("BENTHAM_VAULT_BACKEND", "memory")
	cfg.CredentialEnvPrefix = envStr("BENTHAM_CREDENTIAL_PREFIX", "BENTHAM")

	cfg.AccountSweepEnabled = envBool("BENTHAM_ACCOUNT_SWEEP_ENABLED", true, &errs)

	cfg.ListenAddress = strings.TrimSpace(envStr("BENTHAM_LISTEN_ADDRESS", "127.0.0.1:8420"))

	// --- Validation ---
	validatePositive("BENTHAM_MAX_CONCURRENCY", cfg.MaxConcurrency, &errs)
	validatePositive("BENTHAM_DEFAULT_CONCURRENCY_PER_SURFACE", cfg.DefaultConcurrencyCap, &errs)
	if cfg.DefaultConcurrencyCap > cfg.MaxConcurrency {
		errs = append(errs, "BENTHAM_DEFAULT_CONCURRENCY_PER_SURFACE must be <= BENTHAM_MAX_CONCURRENCY")
	}
	switch cfg.VaultBackend {
	case "memory", "environment", "encrypted_file":
	default:
		errs = append(errs, fmt.Sprintf("BENTHAM_VAULT_BACKEND: invalid value %q (allowed: memory, environment, encrypted_file)", cfg.VaultBackend))
	}
	if cfg.VaultBackend == "encrypted_file" && cfg.VaultMasterPassword == "" {
		errs = append(errs, "BENTHAM_VAULT_MASTER_PASSWORD must be set when BENTHAM_VAULT_BACKEND=encrypted_file")
	}
	if cfg.CredentialEnvPrefix == "" {
		errs = append(errs, "BENTHAM_CREDENTIAL_PREFIX must not be empty")
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}

	return cfg, nil
}

// --- helpers ---

func envStr(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int, errs *[]string) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid integer %q", key, v))
		return defaultVal
	}
	return n
}

func envBool(key string, defaultVal bool, errs *[]string) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid bool %q", key, v))
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration, errs *[]string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid duration %q", key, v))
		return defaultVal
	}
	return d
}

func validatePositive(name string, value int, errs *[]string) {
	if value <= 0 {
		*errs = append(*errs, fmt.Sprintf("%s: must be positive, got %d", name, value))
	}
}
