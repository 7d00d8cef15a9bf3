package account

import (
	"testing"
	"time"

	"github.com/bentham/bentham/internal/manifest"
)

func newTestManager(t *testing.T, now time.Time) (*Manager, func(time.Time)) {
	t.Helper()
	cur := now
	fixed := func() time.Time { return cur }
	registry := NewRegistry(fixed)
	mgr := NewManager(registry, ManagerConfig{MaxCheckoutDuration: 15 * time.Minute, DefaultCooldownSeconds: 60})
	advance := func(t time.Time) { cur = t }
	return mgr, advance
}

func TestCheckout_S4_RespectsMaxConcurrent(t *testing.T) {
	mgr, _ := newTestManager(t, time.Now())
	acc := mgr.AddAccount(manifest.Account{
		SurfaceID: "openai-api", TenantID: "tenant-1",
		Status: manifest.AccountActive, Enabled: true, MaxConcurrent: 1,
	})

	req := manifest.CheckoutRequest{SurfaceID: "openai-api", TenantID: "tenant-1"}

	first, err := mgr.Checkout(req)
	if err != nil || first == nil {
		t.Fatalf("expected first checkout to succeed, got %v, err=%v", first, err)
	}

	if _, err := mgr.Checkout(req); err != ErrNoAvailableAccount {
		t.Fatalf("expected second checkout to fail with ErrNoAvailableAccount, got %v", err)
	}
	if _, err := mgr.Checkout(req); err != ErrNoAvailableAccount {
		t.Fatalf("expected third checkout to fail with ErrNoAvailableAccount, got %v", err)
	}

	ok, err := mgr.Checkin(first.ID, true)
	if err != nil || !ok {
		t.Fatalf("checkin failed: ok=%v err=%v", ok, err)
	}

	usage, _ := mgr.GetUsage(acc.ID)
	if usage.RequestCount != 1 || usage.SuccessCount != 1 || usage.ActiveSessions != 0 {
		t.Fatalf("unexpected usage after checkin: %+v", usage)
	}

	second, err := mgr.Checkout(req)
	if err != nil || second == nil {
		t.Fatalf("expected checkout to succeed after checkin, got %v, err=%v", second, err)
	}
	usage, _ = mgr.GetUsage(acc.ID)
	if usage.ActiveSessions != 1 {
		t.Fatalf("expected activeSessions=1 after new checkout, got %d", usage.ActiveSessions)
	}
}

func TestCheckout_SelectionRules_ExcludeAndPrefer(t *testing.T) {
	mgr, _ := newTestManager(t, time.Now())
	a1 := mgr.AddAccount(manifest.Account{SurfaceID: "s1", TenantID: "t1", Status: manifest.AccountActive, Enabled: true, MaxConcurrent: 5})
	a2 := mgr.AddAccount(manifest.Account{SurfaceID: "s1", TenantID: "t1", Status: manifest.AccountActive, Enabled: true, MaxConcurrent: 5})

	req := manifest.CheckoutRequest{SurfaceID: "s1", TenantID: "t1", Prefer: []string{a2.ID}}
	checkout, err := mgr.Checkout(req)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if checkout.AccountID != a2.ID {
		t.Fatalf("expected preferred account %s, got %s", a2.ID, checkout.AccountID)
	}

	req2 := manifest.CheckoutRequest{SurfaceID: "s1", TenantID: "t1", Exclude: []string{a2.ID}}
	checkout2, err := mgr.Checkout(req2)
	if err != nil {
		t.Fatalf("checkout2: %v", err)
	}
	if checkout2.AccountID != a1.ID {
		t.Fatalf("expected non-excluded account %s, got %s", a1.ID, checkout2.AccountID)
	}
}

func TestCheckout_DisabledAccountsExcluded(t *testing.T) {
	mgr, _ := newTestManager(t, time.Now())
	mgr.AddAccount(manifest.Account{SurfaceID: "s1", TenantID: "t1", Status: manifest.AccountActive, Enabled: false, MaxConcurrent: 5})
	eligible := mgr.AddAccount(manifest.Account{SurfaceID: "s1", TenantID: "t1", Status: manifest.AccountActive, Enabled: true, MaxConcurrent: 5})

	checkout, err := mgr.Checkout(manifest.CheckoutRequest{SurfaceID: "s1", TenantID: "t1"})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if checkout.AccountID != eligible.ID {
		t.Fatalf("expected only enabled account %s selected, got %s", eligible.ID, checkout.AccountID)
	}
}

func TestCleanupExpiredCheckouts_DecrementsActiveSessions(t *testing.T) {
	now := time.Now()
	mgr, advance := newTestManager(t, now)
	acc := mgr.AddAccount(manifest.Account{SurfaceID: "s1", TenantID: "t1", Status: manifest.AccountActive, Enabled: true, MaxConcurrent: 5})

	if _, err := mgr.Checkout(manifest.CheckoutRequest{SurfaceID: "s1", TenantID: "t1", SessionDuration: time.Second}); err != nil {
		t.Fatalf("checkout: %v", err)
	}

	usage, _ := mgr.GetUsage(acc.ID)
	if usage.ActiveSessions != 1 {
		t.Fatalf("expected activeSessions=1, got %d", usage.ActiveSessions)
	}

	advance(now.Add(2 * time.Second))
	expired := mgr.CleanupExpiredCheckouts(now.Add(2 * time.Second))
	if expired != 1 {
		t.Fatalf("expected 1 expired checkout, got %d", expired)
	}

	usage, _ = mgr.GetUsage(acc.ID)
	if usage.ActiveSessions != 0 {
		t.Fatalf("expected activeSessions=0 after sweep, got %d", usage.ActiveSessions)
	}
}

func TestPools_AddToPoolRejectsSurfaceMismatch(t *testing.T) {
	mgr, _ := newTestManager(t, time.Now())
	acc := mgr.AddAccount(manifest.Account{SurfaceID: "s1", TenantID: "t1", Status: manifest.AccountActive, Enabled: true})
	mgr.Pools.CreatePool("pool-s2", "s2")

	if err := mgr.Pools.AddToPool("pool-s2", acc.ID); err != ErrSurfaceMismatch {
		t.Fatalf("expected ErrSurfaceMismatch, got %v", err)
	}

	mgr.Pools.CreatePool("pool-s1", "s1")
	if err := mgr.Pools.AddToPool("pool-s1", acc.ID); err != nil {
		t.Fatalf("expected add to same-surface pool to succeed, got %v", err)
	}
}
