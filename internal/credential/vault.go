// Package credential implements Bentham's Credential Vault and Pool
// (spec §4.C): polymorphic storage backends for authenticators, plus
// per-surface selection pools with cooldown and health events.
package credential

import (
	"time"

	"github.com/bentham/bentham/internal/bentherr"
	"github.com/bentham/bentham/internal/manifest"
)

// Vault is the storage contract every backend implements. The memory
// backend is read/write; the environment backend is read-only and its
// mutating methods return ErrReadOnly.
type Vault interface {
	Store(cred manifest.Credential) error
	Update(id string, mutate func(*manifest.Credential)) error
	Delete(id string) error
	Get(id string) (*manifest.Credential, bool)
	Exists(id string) bool
	List() []manifest.Credential
	ListByType(t manifest.CredentialType) []manifest.Credential
	GetBySurface(surfaceID string) []manifest.Credential
	// GetActiveBySurface returns only credentials that are IsActive and
	// unexpired (spec §4.C common invariant).
	GetActiveBySurface(surfaceID string, now time.Time) []manifest.Credential
}

// ErrReadOnly is returned by mutating operations on a read-only backend
// (the environment backend).
var ErrReadOnly = bentherr.New(bentherr.InvalidRequest, "credential: vault backend is read-only")

// ErrNotFound is returned when an operation targets a credential ID the
// vault does not hold.
var ErrNotFound = bentherr.NotFound(bentherr.InvalidRequest, "credential: not found")
