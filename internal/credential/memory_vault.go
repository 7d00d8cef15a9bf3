package credential

import (
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/bentham/bentham/internal/manifest"
)

// MemoryVault is a read/write, in-process Vault backend for development
// and tests (spec §4.C).
type MemoryVault struct {
	creds *xsync.Map[string, manifest.Credential]
}

// NewMemoryVault returns an empty MemoryVault.
func NewMemoryVault() *MemoryVault {
	return &MemoryVault{creds: xsync.NewMap[string, manifest.Credential]()}
}

func (v *MemoryVault) Store(cred manifest.Credential) error {
	v.creds.Store(cred.ID, cred)
	return nil
}

func (v *MemoryVault) Update(id string, mutate func(*manifest.Credential)) error {
	_, ok := v.creds.Compute(id, func(old manifest.Credential, loaded bool) (manifest.Credential, xsync.ComputeOp) {
		if !loaded {
			return old, xsync.CancelOp
		}
		mutate(&old)
		return old, xsync.UpdateOp
	})
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (v *MemoryVault) Delete(id string) error {
	_, existed := v.creds.LoadAndDelete(id)
	if !existed {
		return ErrNotFound
	}
	return nil
}

func (v *MemoryVault) Get(id string) (*manifest.Credential, bool) {
	c, ok := v.creds.Load(id)
	if !ok {
		return nil, false
	}
	return &c, true
}

func (v *MemoryVault) Exists(id string) bool {
	_, ok := v.creds.Load(id)
	return ok
}

func (v *MemoryVault) List() []manifest.Credential {
	out := make([]manifest.Credential, 0, v.creds.Size())
	v.creds.Range(func(_ string, c manifest.Credential) bool {
		out = append(out, c)
		return true
	})
	return out
}

func (v *MemoryVault) ListByType(t manifest.CredentialType) []manifest.Credential {
	out := []manifest.Credential{}
	v.creds.Range(func(_ string, c manifest.Credential) bool {
		if c.Type == t {
			out = append(out, c)
		}
		return true
	})
	return out
}

func (v *MemoryVault) GetBySurface(surfaceID string) []manifest.Credential {
	out := []manifest.Credential{}
	v.creds.Range(func(_ string, c manifest.Credential) bool {
		if c.SurfaceID == surfaceID {
			out = append(out, c)
		}
		return true
	})
	return out
}

func (v *MemoryVault) GetActiveBySurface(surfaceID string, now time.Time) []manifest.Credential {
	out := []manifest.Credential{}
	v.creds.Range(func(_ string, c manifest.Credential) bool {
		if c.SurfaceID == surfaceID && c.Active(now) {
			out = append(out, c)
		}
		return true
	})
	return out
}
