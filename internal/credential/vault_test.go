package credential

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/bentham/bentham/internal/manifest"
)

func TestMemoryVault_GetActiveBySurfaceFiltersExpiredAndInactive(t *testing.T) {
	v := NewMemoryVault()
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	active := manifest.Credential{ID: "active", SurfaceID: "s1", IsActive: true, ExpiresAt: &future}
	expired := manifest.Credential{ID: "expired", SurfaceID: "s1", IsActive: true, ExpiresAt: &past}
	disabled := manifest.Credential{ID: "disabled", SurfaceID: "s1", IsActive: false}
	otherSurface := manifest.Credential{ID: "other", SurfaceID: "s2", IsActive: true}

	for _, c := range []manifest.Credential{active, expired, disabled, otherSurface} {
		if err := v.Store(c); err != nil {
			t.Fatalf("store %s: %v", c.ID, err)
		}
	}

	got := v.GetActiveBySurface("s1", now)
	if len(got) != 1 || got[0].ID != "active" {
		t.Fatalf("expected only 'active' credential, got %+v", got)
	}
}

func TestMemoryVault_UpdateAndDelete(t *testing.T) {
	v := NewMemoryVault()
	cred := manifest.Credential{ID: "c1", SurfaceID: "s1", IsActive: true, Payload: map[string]string{"key": "v1"}}
	if err := v.Store(cred); err != nil {
		t.Fatalf("store: %v", err)
	}

	if err := v.Update("c1", func(c *manifest.Credential) { c.Payload["key"] = "v2" }); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := v.Get("c1")
	if got.Payload["key"] != "v2" {
		t.Fatalf("expected updated payload, got %v", got.Payload)
	}

	if err := v.Delete("c1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if v.Exists("c1") {
		t.Fatal("expected credential to be gone after delete")
	}
	if err := v.Delete("c1"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound deleting twice, got %v", err)
	}
}

func TestEnvVault_IsReadOnlyAndSkipsMissingFields(t *testing.T) {
	fakeEnv := map[string]string{"OPENAI_API_KEY": "sk-test-123"}
	lookup := func(k string) (string, bool) {
		v, ok := fakeEnv[k]
		return v, ok
	}

	v := NewEnvVault("BENTHAM", DefaultEnvMappings, lookup)

	got := v.GetBySurface("openai-api")
	if len(got) != 1 {
		t.Fatalf("expected 1 credential for openai-api, got %d", len(got))
	}
	if got[0].Payload["key"] != "sk-test-123" {
		t.Fatalf("expected key sk-test-123, got %v", got[0].Payload)
	}

	// Anthropic/Google keys are absent from fakeEnv and must be skipped.
	if len(v.GetBySurface("anthropic-api")) != 0 {
		t.Fatal("expected no anthropic credential when env var is absent")
	}

	if err := v.Store(manifest.Credential{ID: "x"}); err != ErrReadOnly {
		t.Fatalf("expected ErrReadOnly from Store, got %v", err)
	}
	if err := v.Delete("x"); err != ErrReadOnly {
		t.Fatalf("expected ErrReadOnly from Delete, got %v", err)
	}
}

func TestEncryptedFileVault_RoundTripAndWrongPassword(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vault.json")

	v, err := NewEncryptedFileVault(path, "correct horse battery staple 42", true)
	if err != nil {
		t.Fatalf("NewEncryptedFileVault: %v", err)
	}
	cred := manifest.Credential{ID: "c1", SurfaceID: "s1", IsActive: true, Payload: map[string]string{"key": "secret"}}
	if err := v.Store(cred); err != nil {
		t.Fatalf("store: %v", err)
	}

	reopened, err := NewEncryptedFileVault(path, "correct horse battery staple 42", true)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, ok := reopened.Get("c1")
	if !ok || got.Payload["key"] != "secret" {
		t.Fatalf("expected round-tripped credential, got %+v ok=%v", got, ok)
	}

	if _, err := NewEncryptedFileVault(path, "totally wrong password value", true); err == nil {
		t.Fatal("expected wrong password to fail decryption cleanly")
	}
}

func TestEncryptedFileVault_ChangePasswordRequiresOldMatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vault.json")
	v, err := NewEncryptedFileVault(path, "correct horse battery staple 42", true)
	if err != nil {
		t.Fatalf("NewEncryptedFileVault: %v", err)
	}

	if err := v.ChangePassword("wrong old password", "new strong password phrase"); err == nil {
		t.Fatal("expected error for mismatched old password")
	}
	if err := v.ChangePassword("correct horse battery staple 42", "new strong password phrase 99"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if !v.VerifyPassword("new strong password phrase 99") {
		t.Fatal("expected new password to verify after change")
	}
}
