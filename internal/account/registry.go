// Package account implements Bentham's Account Manager (spec §4.D):
// registry, pool grouping, and checkout/checkin with concurrency-bounded
// selection, plus a background sweep for expired checkouts.
package account

import (
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/bentham/bentham/internal/bentherr"
	"github.com/bentham/bentham/internal/clock"
	"github.com/bentham/bentham/internal/manifest"
)

// Registry owns Account and AccountUsage records (spec §3 ownership rules).
type Registry struct {
	accounts *xsync.Map[string, manifest.Account]
	usage    *xsync.Map[string, manifest.AccountUsage]
	clock    clock.Clock
}

// NewRegistry returns an empty Registry.
func NewRegistry(now clock.Clock) *Registry {
	return &Registry{
		accounts: xsync.NewMap[string, manifest.Account](),
		usage:    xsync.NewMap[string, manifest.AccountUsage](),
		clock:    now,
	}
}

// AddAccount registers a new account, generating an ID if unset.
func (r *Registry) AddAccount(acc manifest.Account) manifest.Account {
	if acc.ID == "" {
		acc.ID = uuid.NewString()
	}
	now := r.clock()
	acc.CreatedAt = now
	acc.UpdatedAt = now
	r.accounts.Store(acc.ID, acc)
	r.usage.Store(acc.ID, manifest.AccountUsage{AccountID: acc.ID})
	return acc
}

// RemoveAccount deletes an account and its usage record. Idempotent.
func (r *Registry) RemoveAccount(id string) {
	r.accounts.Delete(id)
	r.usage.Delete(id)
}

// GetAccount returns the account for id.
func (r *Registry) GetAccount(id string) (manifest.Account, bool) {
	return r.accounts.Load(id)
}

// GetUsage returns the usage record for id.
func (r *Registry) GetUsage(id string) (manifest.AccountUsage, bool) {
	return r.usage.Load(id)
}

// GetAllAccounts returns every registered account.
func (r *Registry) GetAllAccounts() []manifest.Account {
	out := make([]manifest.Account, 0, r.accounts.Size())
	r.accounts.Range(func(_ string, a manifest.Account) bool {
		out = append(out, a)
		return true
	})
	return out
}

// GetTenantAccounts returns accounts owned by tenantID.
func (r *Registry) GetTenantAccounts(tenantID string) []manifest.Account {
	out := []manifest.Account{}
	r.accounts.Range(func(_ string, a manifest.Account) bool {
		if a.TenantID == tenantID {
			out = append(out, a)
		}
		return true
	})
	return out
}

// GetSurfaceAccounts returns accounts for surfaceID.
func (r *Registry) GetSurfaceAccounts(surfaceID string) []manifest.Account {
	out := []manifest.Account{}
	r.accounts.Range(func(_ string, a manifest.Account) bool {
		if a.SurfaceID == surfaceID {
			out = append(out, a)
		}
		return true
	})
	return out
}

// UpdateAccount applies mutate to the stored account for id.
func (r *Registry) UpdateAccount(id string, mutate func(*manifest.Account)) error {
	_, ok := r.accounts.Compute(id, func(a manifest.Account, loaded bool) (manifest.Account, xsync.ComputeOp) {
		if !loaded {
			return a, xsync.CancelOp
		}
		mutate(&a)
		a.UpdatedAt = r.clock()
		return a, xsync.UpdateOp
	})
	if !ok {
		return ErrAccountNotFound
	}
	return nil
}

// SetAccountStatus updates an account's status field.
func (r *Registry) SetAccountStatus(id string, status manifest.AccountStatus) error {
	return r.UpdateAccount(id, func(a *manifest.Account) { a.Status = status })
}

// SetEnabled toggles an account's enabled flag.
func (r *Registry) SetEnabled(id string, enabled bool) error {
	return r.UpdateAccount(id, func(a *manifest.Account) { a.Enabled = enabled })
}

// ErrAccountNotFound is returned when an operation targets an unknown account.
var ErrAccountNotFound = bentherr.NotFound(bentherr.InvalidRequest, "account: not found")

// updateUsage applies mutate to the usage record for accountID, creating
// one if absent.
func (r *Registry) updateUsage(accountID string, mutate func(*manifest.AccountUsage)) {
	r.usage.Compute(accountID, func(u manifest.AccountUsage, loaded bool) (manifest.AccountUsage, xsync.ComputeOp) {
		if !loaded {
			u = manifest.AccountUsage{AccountID: accountID}
		}
		mutate(&u)
		return u, xsync.UpdateOp
	})
}

// isAvailable composes the in-order availability predicate (spec §4.D):
// enabled ∧ active ∧ not-in-cooldown ∧ activeSessions < maxConcurrent.
func isAvailable(acc manifest.Account, usage manifest.AccountUsage, now time.Time) bool {
	if !acc.Enabled {
		return false
	}
	if acc.Status != manifest.AccountActive {
		return false
	}
	if usage.CooldownEndsAt != nil && usage.CooldownEndsAt.After(now) {
		return false
	}
	if acc.MaxConcurrent > 0 && usage.ActiveSessions >= acc.MaxConcurrent {
		return false
	}
	return true
}

// IsAvailable reports whether accountID currently satisfies the
// availability predicate.
func (r *Registry) IsAvailable(accountID string) bool {
	acc, ok := r.accounts.Load(accountID)
	if !ok {
		return false
	}
	usage, _ := r.usage.Load(accountID)
	return isAvailable(acc, usage, r.clock())
}
