package proxymanager

import (
	"net/netip"
	"sort"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/zeebo/xxh3"

	"github.com/bentham/bentham/internal/bentherr"
	"github.com/bentham/bentham/internal/clock"
	"github.com/bentham/bentham/internal/manifest"
)

// RotationStrategy enumerates a pool's proxy-rotation policy (spec §4.E).
type RotationStrategy string

const (
	RotationRoundRobin RotationStrategy = "round-robin"
	RotationRandom     RotationStrategy = "random"
	RotationLeastUsed  RotationStrategy = "least-used"
	RotationSticky     RotationStrategy = "sticky"
)

// ProxyPool is a named set of proxies constrained to specific locations.
type ProxyPool struct {
	ID                string
	ProxyIDs          []string
	Locations         []string
	RotationStrategy  RotationStrategy
	MinHealthyProxies int
}

// ProxyRequest is the input to Manager.RequestProxy (spec §4.E).
type ProxyRequest struct {
	Location  string
	Type      manifest.ProxyType
	SessionID string
	Target    string
	PoolID    string
	Exclude   []string
}

// Manager resolves locations to providers, manages sticky sessions, and
// tracks proxy health (spec §4.E).
type Manager struct {
	providers []Provider
	clock     clock.Clock
	rnd       clock.Rand
	health    HealthConfig
	geo       *GeoResolver

	defaultStickyDuration time.Duration

	sessions      *sessionTable
	healthByProxy *xsync.Map[string, *healthEntry]
	pools         *xsync.Map[string, *ProxyPool]
	configs       *xsync.Map[string, manifest.ProxyConfig]
	rrCursors     *xsync.Map[string, int]
}

// NewManager constructs a Manager over providers. geo may be nil, in which
// case VerifyEgressLocation always reports verified.
func NewManager(providers []Provider, now clock.Clock, rnd clock.Rand, health HealthConfig, defaultStickyDuration time.Duration, geo *GeoResolver) *Manager {
	return &Manager{
		providers:             providers,
		clock:                 now,
		rnd:                   rnd,
		health:                health,
		geo:                   geo,
		defaultStickyDuration: defaultStickyDuration,
		sessions:              newSessionTable(),
		healthByProxy:         xsync.NewMap[string, *healthEntry](),
		pools:                 xsync.NewMap[string, *ProxyPool](),
		configs:               xsync.NewMap[string, manifest.ProxyConfig](),
		rrCursors:             xsync.NewMap[string, int](),
	}
}

// VerifyEgressLocation reports whether egressIP resolves to expectedCountry
// via the configured GeoResolver. Returns true with no resolver configured
// or an unresolvable IP, since there is then nothing to contradict the
// provider's own location claim.
func (m *Manager) VerifyEgressLocation(egressIP netip.Addr, expectedCountry string) bool {
	if m.geo == nil || expectedCountry == "" {
		return true
	}
	got := m.geo.Lookup(egressIP)
	if got == "" {
		return true
	}
	return got == expectedCountry
}

// ErrNoProvider is returned when no provider can serve a location.
var ErrNoProvider = bentherr.New(bentherr.ServiceUnavailable, "proxymanager: no provider available for location")

// ErrPoolUnhealthy is returned when a pool's healthy-proxy count is below
// its MinHealthyProxies gate.
var ErrPoolUnhealthy = bentherr.New(bentherr.ServiceUnavailable, "proxymanager: pool below minimum healthy proxies")

// resolveProvider implements location -> provider resolution honoring the
// manifest's proxyProvider hint, 'auto' meaning highest-priority enabled
// provider supporting the location (spec §4.E).
func (m *Manager) resolveProvider(locationID, hint string) (Provider, error) {
	if hint != "" && hint != "auto" {
		for _, p := range m.providers {
			if p.Name() == hint && p.Enabled() && p.SupportsLocation(locationID) {
				return p, nil
			}
		}
		return nil, ErrNoProvider
	}

	var best Provider
	for _, p := range m.providers {
		if !p.Enabled() || !p.SupportsLocation(locationID) {
			continue
		}
		if best == nil || p.Priority() > best.Priority() {
			best = p
		}
	}
	if best == nil {
		return nil, ErrNoProvider
	}
	return best, nil
}

// RegisterPool adds or replaces a named proxy pool.
func (m *Manager) RegisterPool(pool ProxyPool) {
	p := pool
	m.pools.Store(p.ID, &p)
}

// healthFor lazily creates the health entry for proxyID.
func (m *Manager) healthFor(proxyID string) *healthEntry {
	h, _ := m.healthByProxy.LoadOrCompute(proxyID, func() (*healthEntry, bool) {
		return newHealthEntry(), false
	})
	return h
}

// RecordUsage reports a proxy usage outcome, adjusting the proxy's health
// record (spec §4.E). Sticky sessions are not touched.
func (m *Manager) RecordUsage(proxyID string, success bool, latencyMs int) {
	h := m.healthFor(proxyID)
	h.recordUsage(success, latencyMs, m.clock(), m.health)
	if !success {
		h.recordError("request failed")
	}
}

// ProxyHealth returns the current health snapshot for proxyID.
func (m *Manager) ProxyHealth(proxyID string) manifest.ProxyHealth {
	return m.healthFor(proxyID).snapshot()
}

// healthyProxies returns the pool's proxy IDs that are currently healthy
// (not ProxyUnhealthy).
func (m *Manager) healthyProxies(pool *ProxyPool) []string {
	out := make([]string, 0, len(pool.ProxyIDs))
	for _, id := range pool.ProxyIDs {
		if m.ProxyHealth(id).Status != manifest.ProxyUnhealthy {
			out = append(out, id)
		}
	}
	return out
}

// selectFromPool applies the pool's rotation strategy over its healthy
// proxies, gated by MinHealthyProxies.
func (m *Manager) selectFromPool(pool *ProxyPool, target string) (string, error) {
	healthy := m.healthyProxies(pool)
	if len(healthy) < pool.MinHealthyProxies {
		return "", ErrPoolUnhealthy
	}
	if len(healthy) == 0 {
		return "", ErrPoolUnhealthy
	}

	switch pool.RotationStrategy {
	case RotationRandom:
		idx := 0
		if m.rnd != nil && len(healthy) > 1 {
			idx = int(m.rnd() * float64(len(healthy)))
			if idx >= len(healthy) {
				idx = len(healthy) - 1
			}
		}
		return healthy[idx], nil
	case RotationLeastUsed:
		sort.Slice(healthy, func(i, j int) bool {
			return m.ProxyHealth(healthy[i]).TotalRequests < m.ProxyHealth(healthy[j]).TotalRequests
		})
		return healthy[0], nil
	case RotationSticky:
		idx := 0
		if len(healthy) > 0 {
			idx = int(xxh3.HashString(target) % uint64(len(healthy)))
		}
		return healthy[idx], nil
	case RotationRoundRobin:
		fallthrough
	default:
		cursor, _ := m.rrCursors.LoadOrStore(pool.ID, 0)
		next := healthy[cursor%len(healthy)]
		m.rrCursors.Store(pool.ID, cursor+1)
		return next, nil
	}
}

// RequestProxy returns a ProxyConfig plus the session token to attach for
// req (spec §4.E).
func (m *Manager) RequestProxy(req ProxyRequest, loc manifest.LocationConfig, providerHint string) (manifest.ProxyConfig, manifest.ProxySession, error) {
	var proxyID string

	if req.PoolID != "" {
		pool, ok := m.pools.Load(req.PoolID)
		if !ok {
			return manifest.ProxyConfig{}, manifest.ProxySession{}, bentherr.NotFound(bentherr.InvalidRequest, "proxymanager: pool not found")
		}
		id, err := m.selectFromPool(pool, req.Target)
		if err != nil {
			return manifest.ProxyConfig{}, manifest.ProxySession{}, err
		}
		proxyID = id
	}

	provider, err := m.resolveProvider(req.Location, providerHint)
	if err != nil {
		return manifest.ProxyConfig{}, manifest.ProxySession{}, err
	}

	cfg, err := provider.GetProxyConfig(req.Location, RequestOptions{SessionID: req.SessionID})
	if err != nil {
		return manifest.ProxyConfig{}, manifest.ProxySession{}, bentherr.Wrap(bentherr.ProxyError, "proxymanager: provider failed to build config", err)
	}
	if proxyID != "" {
		cfg.ID = proxyID
	}
	cfg.Health = m.ProxyHealth(cfg.ID)
	m.configs.Store(cfg.ID, cfg)

	ttl := m.defaultStickyDuration
	if loc.SessionDuration > 0 {
		ttl = loc.SessionDuration
	}

	session := m.sessions.getOrCreate(cfg.ID, req.Target, ttl, m.clock())
	m.sessions.touch(cfg.ID, req.Target)
	session.RequestCount++ // the returned copy counts this request too

	return cfg, session, nil
}
