package account

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/bentham/bentham/internal/bentherr"
	"github.com/bentham/bentham/internal/manifest"
)

// Manager composes the Registry, Pools, and active-checkout table into the
// Account Manager's public operations (spec §4.D).
type Manager struct {
	*Registry
	*Pools

	maxCheckoutDuration time.Duration
	defaultCooldown     time.Duration

	checkouts *xsync.Map[string, manifest.AccountCheckout]
}

// ManagerConfig configures default checkout/cooldown durations.
type ManagerConfig struct {
	MaxCheckoutDuration    time.Duration
	DefaultCooldownSeconds int
}

// NewManager constructs a Manager.
func NewManager(registry *Registry, cfg ManagerConfig) *Manager {
	return &Manager{
		Registry:            registry,
		Pools:                NewPools(registry),
		maxCheckoutDuration: cfg.MaxCheckoutDuration,
		defaultCooldown:     time.Duration(cfg.DefaultCooldownSeconds) * time.Second,
		checkouts:            xsync.NewMap[string, manifest.AccountCheckout](),
	}
}

// ErrNoAvailableAccount is returned by Checkout when no candidate survives
// the selection rules.
var ErrNoAvailableAccount = bentherr.New(bentherr.ServiceUnavailable, "account: no available account for request")

func contains(list []string, id string) bool {
	for _, x := range list {
		if x == id {
			return true
		}
	}
	return false
}

// candidates applies selection rules 1-2 of spec §4.D.
func (m *Manager) candidates(req manifest.CheckoutRequest, now time.Time) []manifest.Account {
	var pool *Pool
	if req.PoolID != "" {
		p, ok := m.Pools.GetPool(req.PoolID)
		if !ok {
			return nil
		}
		pool = p
	}

	out := []manifest.Account{}
	m.Registry.accounts.Range(func(_ string, a manifest.Account) bool {
		if a.SurfaceID != req.SurfaceID || a.TenantID != req.TenantID {
			return true
		}
		if pool != nil && !pool.Contains(a.ID) {
			return true
		}
		if contains(req.Exclude, a.ID) {
			return true
		}
		usage, _ := m.Registry.GetUsage(a.ID)
		if !isAvailable(a, usage, now) {
			return true
		}
		out = append(out, a)
		return true
	})
	return out
}

// Checkout reserves one of a candidate account's concurrency slots,
// applying the full selection order of spec §4.D.
func (m *Manager) Checkout(req manifest.CheckoutRequest) (*manifest.AccountCheckout, error) {
	now := m.Registry.clock()
	candidates := m.candidates(req, now)
	if len(candidates) == 0 {
		return nil, ErrNoAvailableAccount
	}

	if len(req.Prefer) > 0 {
		preferred := make([]manifest.Account, 0, len(candidates))
		for _, c := range candidates {
			if contains(req.Prefer, c.ID) {
				preferred = append(preferred, c)
			}
		}
		if len(preferred) > 0 {
			candidates = preferred
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		ui, _ := m.Registry.GetUsage(candidates[i].ID)
		uj, _ := m.Registry.GetUsage(candidates[j].ID)
		li, lj := ui.LastUsedAt, uj.LastUsedAt
		switch {
		case li == nil && lj == nil:
			return candidates[i].ID < candidates[j].ID
		case li == nil:
			return true
		case lj == nil:
			return false
		case !li.Equal(*lj):
			return li.Before(*lj)
		default:
			return candidates[i].ID < candidates[j].ID
		}
	})

	chosen := candidates[0]

	duration := m.maxCheckoutDuration
	if req.SessionDuration > 0 && req.SessionDuration < duration {
		duration = req.SessionDuration
	}

	checkout := manifest.AccountCheckout{
		ID:           uuid.NewString(),
		AccountID:    chosen.ID,
		CheckedOutAt: now,
		ExpiresAt:    now.Add(duration),
		SessionID:    req.PoolID,
	}
	m.checkouts.Store(checkout.ID, checkout)

	m.Registry.updateUsage(chosen.ID, func(u *manifest.AccountUsage) {
		u.ActiveSessions++
		u.LastUsedAt = &now
	})

	return &checkout, nil
}

// Checkin releases a checkout, recording success/failure and decrementing
// the account's active session count.
func (m *Manager) Checkin(checkoutID string, success bool) (bool, error) {
	checkout, ok := m.checkouts.LoadAndDelete(checkoutID)
	if !ok {
		return false, nil
	}

	now := m.Registry.clock()
	m.Registry.updateUsage(checkout.AccountID, func(u *manifest.AccountUsage) {
		u.RequestCount++
		if success {
			u.SuccessCount++
		} else {
			u.FailedCount++
		}
		if u.ActiveSessions > 0 {
			u.ActiveSessions--
		}
		if !success && m.defaultCooldown > 0 {
			until := now.Add(m.defaultCooldown)
			u.CooldownEndsAt = &until
		}
	})

	return true, nil
}

// GetCheckout returns the active checkout for checkoutID.
func (m *Manager) GetCheckout(checkoutID string) (manifest.AccountCheckout, bool) {
	return m.checkouts.Load(checkoutID)
}

// GetActiveCheckouts returns every unexpired checkout as of now.
func (m *Manager) GetActiveCheckouts(now time.Time) []manifest.AccountCheckout {
	out := []manifest.AccountCheckout{}
	m.checkouts.Range(func(_ string, c manifest.AccountCheckout) bool {
		if c.ExpiresAt.After(now) {
			out = append(out, c)
		}
		return true
	})
	return out
}

// CleanupExpiredCheckouts expires any checkout whose ExpiresAt has passed,
// decrementing the owning account's activeSessions. Idempotent and safe to
// race with concurrent Checkin (a Checkin that wins the race simply finds
// nothing left to expire).
func (m *Manager) CleanupExpiredCheckouts(now time.Time) int {
	expired := 0
	m.checkouts.Range(func(id string, c manifest.AccountCheckout) bool {
		if !c.ExpiresAt.Before(now) {
			return true
		}
		_, removed := m.checkouts.LoadAndDelete(id)
		if !removed {
			return true
		}
		expired++
		m.Registry.updateUsage(c.AccountID, func(u *manifest.AccountUsage) {
			if u.ActiveSessions > 0 {
				u.ActiveSessions--
			}
		})
		return true
	})
	return expired
}

// ReportHealthCheck updates an account's status and optionally clears or
// extends its cooldown (spec §4.D).
func (m *Manager) ReportHealthCheck(accountID string, status manifest.AccountStatus, clearCooldown bool) error {
	if err := m.Registry.SetAccountStatus(accountID, status); err != nil {
		return err
	}
	if clearCooldown {
		m.Registry.updateUsage(accountID, func(u *manifest.AccountUsage) { u.CooldownEndsAt = nil })
	}
	return nil
}
