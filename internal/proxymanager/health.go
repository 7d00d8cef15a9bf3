package proxymanager

import (
	"sync/atomic"
	"time"

	"github.com/bentham/bentham/internal/manifest"
)

// healthEntry is the mutable health record for one proxy (spec §4.E),
// grounded on the teacher's circuit-breaker counters
// (node.NodeEntry.FailureCount/CircuitOpenSince).
type healthEntry struct {
	consecutiveFailures atomic.Int32
	consecutiveSuccess  atomic.Int32
	unhealthySince      atomic.Int64 // unix nano; 0 = healthy

	totalRequests  atomic.Int64
	failedRequests atomic.Int64
	successRateX1000 atomic.Int64 // successRate * 1000, for lock-free float-ish storage
	latencyMs      atomic.Int64
	lastCheckedNs  atomic.Int64
	lastError      atomic.Value // string
}

func newHealthEntry() *healthEntry {
	h := &healthEntry{}
	h.successRateX1000.Store(1000)
	h.lastError.Store("")
	return h
}

// HealthConfig bounds unhealthy/recovery thresholds (spec §4.E).
type HealthConfig struct {
	UnhealthyThreshold int
	RecoveryThreshold  int
}

const emaAlpha = 0.2

// recordUsage adjusts successRate via EMA and advances the consecutive
// failure/success circuit-breaker counters (spec §4.E).
func (h *healthEntry) recordUsage(success bool, latencyMs int, now time.Time, cfg HealthConfig) (becameUnhealthy, becameHealthy bool) {
	h.totalRequests.Add(1)
	h.latencyMs.Store(int64(latencyMs))
	h.lastCheckedNs.Store(now.UnixNano())

	prevRate := float64(h.successRateX1000.Load()) / 1000.0
	var observed float64
	if success {
		observed = 1
	}
	newRate := prevRate + emaAlpha*(observed-prevRate)
	h.successRateX1000.Store(int64(newRate * 1000))

	if success {
		h.consecutiveSuccess.Add(1)
		h.consecutiveFailures.Store(0)
		if h.unhealthySince.Load() != 0 {
			successStreak := h.consecutiveSuccess.Load()
			if int(successStreak) >= cfg.RecoveryThreshold {
				if h.unhealthySince.CompareAndSwap(h.unhealthySince.Load(), 0) {
					becameHealthy = true
				}
			}
		}
		return
	}

	h.failedRequests.Add(1)
	h.consecutiveSuccess.Store(0)
	failStreak := h.consecutiveFailures.Add(1)
	if int(failStreak) >= cfg.UnhealthyThreshold && h.unhealthySince.Load() == 0 {
		if h.unhealthySince.CompareAndSwap(0, now.UnixNano()) {
			becameUnhealthy = true
		}
	}
	return
}

func (h *healthEntry) snapshot() manifest.ProxyHealth {
	status := manifest.ProxyHealthy
	if h.unhealthySince.Load() != 0 {
		status = manifest.ProxyUnhealthy
	} else if h.consecutiveFailures.Load() > 0 {
		status = manifest.ProxyDegraded
	}
	lastErr, _ := h.lastError.Load().(string)
	return manifest.ProxyHealth{
		Status:         status,
		LatencyMs:      int(h.latencyMs.Load()),
		SuccessRate:    float64(h.successRateX1000.Load()) / 1000.0,
		TotalRequests:  int(h.totalRequests.Load()),
		FailedRequests: int(h.failedRequests.Load()),
		LastChecked:    time.Unix(0, h.lastCheckedNs.Load()),
		LastError:      lastErr,
	}
}

func (h *healthEntry) recordError(msg string) {
	h.lastError.Store(msg)
}
