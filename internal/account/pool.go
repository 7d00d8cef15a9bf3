package account

import (
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/bentham/bentham/internal/bentherr"
)

// Pool is a labeled subset of accounts for one surface (spec §4.D).
type Pool struct {
	ID        string
	SurfaceID string
	members   *xsync.Map[string, struct{}]
}

// Pools manages the registry's named account pools.
type Pools struct {
	registry *Registry
	pools    *xsync.Map[string, *Pool]
}

// NewPools returns an empty Pools manager bound to registry.
func NewPools(registry *Registry) *Pools {
	return &Pools{registry: registry, pools: xsync.NewMap[string, *Pool]()}
}

// ErrSurfaceMismatch is returned when addToPool targets an account whose
// surfaceId does not match the pool's surfaceId (spec §4.D).
var ErrSurfaceMismatch = bentherr.New(bentherr.InvalidRequest, "account: account surfaceId does not match pool surfaceId")

// ErrPoolNotFound is returned by pool operations on an unknown pool ID.
var ErrPoolNotFound = bentherr.NotFound(bentherr.InvalidRequest, "account: pool not found")

// CreatePool registers a new pool for surfaceID.
func (p *Pools) CreatePool(id, surfaceID string) *Pool {
	pool := &Pool{ID: id, SurfaceID: surfaceID, members: xsync.NewMap[string, struct{}]()}
	p.pools.Store(id, pool)
	return pool
}

// RemovePool deletes a pool. Idempotent.
func (p *Pools) RemovePool(id string) {
	p.pools.Delete(id)
}

// GetPool returns the pool for id.
func (p *Pools) GetPool(id string) (*Pool, bool) {
	return p.pools.Load(id)
}

// GetSurfacePools returns every pool scoped to surfaceID.
func (p *Pools) GetSurfacePools(surfaceID string) []*Pool {
	out := []*Pool{}
	p.pools.Range(func(_ string, pool *Pool) bool {
		if pool.SurfaceID == surfaceID {
			out = append(out, pool)
		}
		return true
	})
	return out
}

// AddToPool adds accountID to poolID, rejecting a surfaceId mismatch.
func (p *Pools) AddToPool(poolID, accountID string) error {
	pool, ok := p.pools.Load(poolID)
	if !ok {
		return ErrPoolNotFound
	}
	acc, ok := p.registry.GetAccount(accountID)
	if !ok {
		return ErrAccountNotFound
	}
	if acc.SurfaceID != pool.SurfaceID {
		return ErrSurfaceMismatch
	}
	pool.members.Store(accountID, struct{}{})
	return nil
}

// RemoveFromPool removes accountID from poolID. Idempotent.
func (p *Pools) RemoveFromPool(poolID, accountID string) error {
	pool, ok := p.pools.Load(poolID)
	if !ok {
		return ErrPoolNotFound
	}
	pool.members.Delete(accountID)
	return nil
}

// Members returns the accountIds currently in pool.
func (pool *Pool) Members() []string {
	out := make([]string, 0, pool.members.Size())
	pool.members.Range(func(id string, _ struct{}) bool {
		out = append(out, id)
		return true
	})
	return out
}

// Contains reports whether accountID belongs to pool.
func (pool *Pool) Contains(accountID string) bool {
	_, ok := pool.members.Load(accountID)
	return ok
}
