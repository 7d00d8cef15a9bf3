package manifest

import (
	"testing"
	"time"
)

func TestCellKey_DependsOnlyOnTriple(t *testing.T) {
	a := NewCellKey(2, "openai-api", "us-east")
	b := NewCellKey(2, "openai-api", "us-east")
	if a != b {
		t.Fatalf("expected identical cell keys for identical triples, got %q vs %q", a, b)
	}
	c := NewCellKey(2, "openai-api", "us-west")
	if a == c {
		t.Fatalf("expected distinct cell keys for distinct locations")
	}
}

func TestCellKey_Format(t *testing.T) {
	got := NewCellKey(3, "claude-web", "eu-central")
	want := CellKey("3-claude-web-eu-central")
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestCanTransition_LegalTable(t *testing.T) {
	legal := []struct{ from, to StudyStatus }{
		{StatusManifestReceived, StatusValidating},
		{StatusValidating, StatusQueued},
		{StatusValidating, StatusFailed},
		{StatusQueued, StatusExecuting},
		{StatusExecuting, StatusPaused},
		{StatusPaused, StatusExecuting},
		{StatusExecuting, StatusValidatingResults},
		{StatusExecuting, StatusFailed},
		{StatusValidatingResults, StatusComplete},
		{StatusValidatingResults, StatusFailed},
	}
	for _, tc := range legal {
		if !CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be legal", tc.from, tc.to)
		}
	}
}

func TestCanTransition_RejectsIllegalJumps(t *testing.T) {
	illegal := []struct{ from, to StudyStatus }{
		{StatusManifestReceived, StatusExecuting},
		{StatusQueued, StatusPaused},
		{StatusComplete, StatusExecuting},
		{StatusFailed, StatusQueued},
		{StatusExecuting, StatusQueued},
	}
	for _, tc := range illegal {
		if CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be illegal", tc.from, tc.to)
		}
	}
}

func TestProgress_PendingCellsConservesTotal(t *testing.T) {
	p := Progress{TotalCells: 10, ExecutingCells: 2, CompletedCells: 5, FailedCells: 1}
	pending := p.PendingCells()
	if pending != 2 {
		t.Fatalf("expected 2 pending, got %d", pending)
	}
	sum := p.ExecutingCells + p.CompletedCells + p.FailedCells + pending
	if sum != p.TotalCells {
		t.Fatalf("conservation violated: sum=%d total=%d", sum, p.TotalCells)
	}
}

func TestCredential_ActiveRequiresActiveFlagAndUnexpired(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	active := &Credential{IsActive: true, ExpiresAt: &future}
	if !active.Active(now) {
		t.Error("expected active, unexpired credential to be Active")
	}

	expired := &Credential{IsActive: true, ExpiresAt: &past}
	if expired.Active(now) {
		t.Error("expected expired credential to be inactive")
	}

	disabled := &Credential{IsActive: false}
	if disabled.Active(now) {
		t.Error("expected IsActive=false credential to be inactive regardless of expiry")
	}

	noExpiry := &Credential{IsActive: true}
	if !noExpiry.Active(now) {
		t.Error("expected credential with nil expiry to be active when IsActive")
	}
}
