package proxymanager

import (
	"testing"
	"time"

	"github.com/bentham/bentham/internal/clock"
	"github.com/bentham/bentham/internal/manifest"
)

type fakeProvider struct {
	name      string
	locations map[string]bool
	priority  int
	enabled   bool
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) GetProxyConfig(locationID string, opts RequestOptions) (manifest.ProxyConfig, error) {
	return manifest.ProxyConfig{
		ID:       p.name + ":" + locationID,
		Type:     manifest.ProxyResidential,
		Protocol: manifest.ProtocolHTTP,
		Host:     p.name + ".example.com",
		Port:     8080,
		Locations: []string{locationID},
		Enabled:  true,
	}, nil
}

func (p *fakeProvider) ValidateCredentials() bool       { return true }
func (p *fakeProvider) GetAvailableLocations() []string {
	locs := make([]string, 0, len(p.locations))
	for l := range p.locations {
		locs = append(locs, l)
	}
	return locs
}
func (p *fakeProvider) SupportsLocation(locationID string) bool { return p.locations[locationID] }
func (p *fakeProvider) GetCostPerGb() float64                   { return 1.0 }
func (p *fakeProvider) Priority() int                           { return p.priority }
func (p *fakeProvider) Enabled() bool                           { return p.enabled }

func TestResolveProvider_AutoPicksHighestPriorityEnabled(t *testing.T) {
	low := &fakeProvider{name: "low", locations: map[string]bool{"us": true}, priority: 1, enabled: true}
	high := &fakeProvider{name: "high", locations: map[string]bool{"us": true}, priority: 10, enabled: true}
	disabledHigher := &fakeProvider{name: "disabled", locations: map[string]bool{"us": true}, priority: 99, enabled: false}

	m := NewManager([]Provider{low, high, disabledHigher}, clock.Fixed(time.Now()), clock.RealRand(), HealthConfig{UnhealthyThreshold: 3, RecoveryThreshold: 2}, time.Minute, nil)

	p, err := m.resolveProvider("us", "auto")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name() != "high" {
		t.Fatalf("expected high-priority enabled provider, got %s", p.Name())
	}
}

func TestResolveProvider_ExplicitHintRequiresSupport(t *testing.T) {
	a := &fakeProvider{name: "a", locations: map[string]bool{"us": true}, priority: 1, enabled: true}
	b := &fakeProvider{name: "b", locations: map[string]bool{"fr": true}, priority: 5, enabled: true}
	m := NewManager([]Provider{a, b}, clock.Fixed(time.Now()), clock.RealRand(), HealthConfig{UnhealthyThreshold: 3, RecoveryThreshold: 2}, time.Minute, nil)

	if _, err := m.resolveProvider("us", "b"); err == nil {
		t.Fatal("expected error: b does not support us")
	}
	p, err := m.resolveProvider("fr", "b")
	if err != nil || p.Name() != "b" {
		t.Fatalf("expected b for fr, got %v err %v", p, err)
	}
}

func TestResolveProvider_NoneAvailable(t *testing.T) {
	m := NewManager(nil, clock.Fixed(time.Now()), clock.RealRand(), HealthConfig{UnhealthyThreshold: 3, RecoveryThreshold: 2}, time.Minute, nil)
	if _, err := m.resolveProvider("us", "auto"); err != ErrNoProvider {
		t.Fatalf("expected ErrNoProvider, got %v", err)
	}
}

func TestRequestProxy_StickySessionReusedUntilExpiry(t *testing.T) {
	now := time.Now()
	cur := now
	c := func() time.Time { return cur }

	provider := &fakeProvider{name: "p1", locations: map[string]bool{"us": true}, priority: 1, enabled: true}
	m := NewManager([]Provider{provider}, c, clock.RealRand(), HealthConfig{UnhealthyThreshold: 3, RecoveryThreshold: 2}, time.Minute, nil)

	loc := manifest.LocationConfig{ID: "us", RequireSticky: true, SessionDuration: 5 * time.Minute}
	req := ProxyRequest{Location: "us", Target: "target-a"}

	_, s1, err := m.RequestProxy(req, loc, "auto")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cur = cur.Add(time.Minute)
	_, s2, err := m.RequestProxy(req, loc, "auto")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s1.ID != s2.ID {
		t.Fatalf("expected sticky session reuse, got %s vs %s", s1.ID, s2.ID)
	}
	if s2.RequestCount < 2 {
		t.Fatalf("expected request count to accumulate, got %d", s2.RequestCount)
	}

	cur = cur.Add(10 * time.Minute)
	_, s3, err := m.RequestProxy(req, loc, "auto")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s3.ID == s1.ID {
		t.Fatal("expected a new session after TTL expiry")
	}
}

func TestHealthEntry_CircuitBreakerTransitions(t *testing.T) {
	now := time.Now()
	cur := now
	cfg := HealthConfig{UnhealthyThreshold: 3, RecoveryThreshold: 2}
	h := newHealthEntry()

	for i := 0; i < 2; i++ {
		h.recordUsage(false, 50, cur, cfg)
	}
	if h.snapshot().Status == manifest.ProxyUnhealthy {
		t.Fatal("should not be unhealthy before threshold reached")
	}

	becameUnhealthy, _ := h.recordUsage(false, 50, cur, cfg)
	if !becameUnhealthy {
		t.Fatal("expected becameUnhealthy at threshold")
	}
	if h.snapshot().Status != manifest.ProxyUnhealthy {
		t.Fatalf("expected unhealthy status, got %s", h.snapshot().Status)
	}

	h.recordUsage(true, 50, cur, cfg)
	if h.snapshot().Status != manifest.ProxyUnhealthy {
		t.Fatal("should remain unhealthy before recovery threshold")
	}
	_, becameHealthy := h.recordUsage(true, 50, cur, cfg)
	if !becameHealthy {
		t.Fatal("expected becameHealthy at recovery threshold")
	}
	if h.snapshot().Status != manifest.ProxyHealthy {
		t.Fatalf("expected healthy status after recovery, got %s", h.snapshot().Status)
	}
}

func TestSelectFromPool_RoundRobinCycles(t *testing.T) {
	m := NewManager(nil, clock.Fixed(time.Now()), clock.RealRand(), HealthConfig{UnhealthyThreshold: 99, RecoveryThreshold: 1}, time.Minute, nil)
	pool := &ProxyPool{ID: "pool1", ProxyIDs: []string{"a", "b", "c"}, RotationStrategy: RotationRoundRobin, MinHealthyProxies: 1}
	m.RegisterPool(*pool)
	registered, _ := m.pools.Load("pool1")

	seen := map[string]int{}
	for i := 0; i < 6; i++ {
		id, err := m.selectFromPool(registered, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		seen[id]++
	}
	for _, id := range pool.ProxyIDs {
		if seen[id] != 2 {
			t.Fatalf("expected each proxy picked twice in 6 rounds, got %v", seen)
		}
	}
}

func TestSelectFromPool_GatesOnMinHealthyProxies(t *testing.T) {
	m := NewManager(nil, clock.Fixed(time.Now()), clock.RealRand(), HealthConfig{UnhealthyThreshold: 1, RecoveryThreshold: 1}, time.Minute, nil)
	pool := &ProxyPool{ID: "pool1", ProxyIDs: []string{"a", "b"}, RotationStrategy: RotationRoundRobin, MinHealthyProxies: 2}
	m.RegisterPool(*pool)
	registered, _ := m.pools.Load("pool1")

	m.RecordUsage("a", false, 10)

	if _, err := m.selectFromPool(registered, ""); err != ErrPoolUnhealthy {
		t.Fatalf("expected ErrPoolUnhealthy, got %v", err)
	}
}

func TestSelectFromPool_StickyIsDeterministicForSameTarget(t *testing.T) {
	m := NewManager(nil, clock.Fixed(time.Now()), clock.RealRand(), HealthConfig{UnhealthyThreshold: 99, RecoveryThreshold: 1}, time.Minute, nil)
	pool := &ProxyPool{ID: "pool1", ProxyIDs: []string{"a", "b", "c"}, RotationStrategy: RotationSticky, MinHealthyProxies: 1}
	m.RegisterPool(*pool)
	registered, _ := m.pools.Load("pool1")

	first, err := m.selectFromPool(registered, "target-x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := m.selectFromPool(registered, "target-x")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if again != first {
			t.Fatalf("expected sticky selection to be stable for the same target, got %s then %s", first, again)
		}
	}
}

func TestBuildUsername_FormatsAllSegments(t *testing.T) {
	u := BuildUsername("key123", "us", RequestOptions{State: "ca", City: "la", SessionMinutes: 120, SessionID: "abc"}, 90)
	want := "key123-country-us-state-ca-city-la-session-90-sessid-abc"
	if u != want {
		t.Fatalf("got %q want %q", u, want)
	}
}

func TestBuildUsername_OmitsAbsentSegments(t *testing.T) {
	u := BuildUsername("key123", "us", RequestOptions{}, 0)
	want := "key123-country-us"
	if u != want {
		t.Fatalf("got %q want %q", u, want)
	}
}

func TestSessionTable_TouchIncrementsRequestCount(t *testing.T) {
	now := time.Now()
	st := newSessionTable()
	s := st.getOrCreate("proxy1", "target1", time.Minute, now)
	if s.RequestCount != 0 {
		t.Fatalf("expected fresh session to start at 0, got %d", s.RequestCount)
	}
	st.touch("proxy1", "target1")
	st.touch("proxy1", "target1")
	again := st.getOrCreate("proxy1", "target1", time.Minute, now)
	if again.RequestCount != 2 {
		t.Fatalf("expected request count 2, got %d", again.RequestCount)
	}
}
