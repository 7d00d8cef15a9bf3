package credential

import (
	"sync"

	"github.com/bentham/bentham/internal/clock"
	"github.com/bentham/bentham/internal/manifest"
)

// PoolManager lazily creates one Pool per surfaceId and reports results to
// the correct pool (spec §4.C).
type PoolManager struct {
	vault       Vault
	clock       clock.Clock
	rnd         clock.Rand
	defaultCfg  func(surfaceID string) PoolConfig

	mu    sync.Mutex
	pools map[string]*Pool
}

// NewPoolManager constructs a PoolManager. defaultCfg builds the PoolConfig
// for a surface the first time it's requested.
func NewPoolManager(vault Vault, now clock.Clock, rnd clock.Rand, defaultCfg func(surfaceID string) PoolConfig) *PoolManager {
	return &PoolManager{
		vault:      vault,
		clock:      now,
		rnd:        rnd,
		defaultCfg: defaultCfg,
		pools:      map[string]*Pool{},
	}
}

// PoolFor returns (creating if necessary) the pool for surfaceID.
func (m *PoolManager) PoolFor(surfaceID string) *Pool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.pools[surfaceID]; ok {
		return p
	}
	cfg := m.defaultCfg(surfaceID)
	cfg.SurfaceID = surfaceID
	p := NewPool(m.vault, cfg, m.clock, m.rnd)
	m.pools[surfaceID] = p
	return p
}

// GetNext is a convenience wrapper: selects the next credential for surfaceID.
func (m *PoolManager) GetNext(surfaceID string) (*manifest.Credential, error) {
	return m.PoolFor(surfaceID).GetNext()
}

// ReportResult forwards a usage outcome to surfaceID's pool.
func (m *PoolManager) ReportResult(surfaceID, credentialID string, success bool) {
	m.PoolFor(surfaceID).ReportResult(credentialID, success)
}
