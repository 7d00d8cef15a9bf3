package checkpoint

import (
	"log"
	"sync"
	"time"

	"github.com/bentham/bentham/internal/clock"
)

// AutoSavePolicy mirrors the manifest's execution.checkpoint config
// (spec §4.B): a save triggers whenever N cells have accumulated since the
// last save, or T seconds have elapsed, whichever comes first.
type AutoSavePolicy struct {
	Enabled             bool
	SaveIntervalCells   int
	SaveIntervalSeconds time.Duration
	PreserveCheckpoint  bool
}

// Manager wraps a Store with the auto-save policy and owns the single
// current in-memory snapshot for one study (spec §5: "all update functions
// are pure and produce a new snapshot that is installed under a single
// lock").
type Manager struct {
	store  *Store
	policy AutoSavePolicy
	clock  clock.Clock

	mu             sync.Mutex
	current        *Checkpoint
	cellsSinceSave int
	lastSaveAt     time.Time
}

// NewManager creates a Manager for studyID, seeded with an initial snapshot.
func NewManager(store *Store, policy AutoSavePolicy, now clock.Clock, initial *Checkpoint) *Manager {
	return &Manager{
		store:      store,
		policy:     policy,
		clock:      now,
		current:    initial,
		lastSaveAt: now(),
	}
}

// Current returns a deep copy of the in-memory checkpoint.
func (m *Manager) Current() *Checkpoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clone(m.current)
}

// Install replaces the in-memory checkpoint with next and, if the auto-save
// policy's thresholds are crossed, persists it. Save failures are logged and
// surfaced to the caller but never corrupt in-memory state — the in-memory
// checkpoint remains authoritative (spec §4.B failure model).
func (m *Manager) Install(next *Checkpoint) error {
	m.mu.Lock()
	m.current = next
	m.cellsSinceSave++
	due := m.policy.Enabled && (m.cellsSinceSave >= m.policy.SaveIntervalCells ||
		m.clock().Sub(m.lastSaveAt) >= m.policy.SaveIntervalSeconds)
	snapshot := clone(m.current)
	m.mu.Unlock()

	if !due {
		return nil
	}
	return m.saveNow(snapshot)
}

// ForceSave persists the current snapshot immediately, bypassing the
// interval policy (used by shutdown/pause paths).
func (m *Manager) ForceSave() error {
	return m.saveNow(m.Current())
}

func (m *Manager) saveNow(snapshot *Checkpoint) error {
	if err := m.store.Save(snapshot); err != nil {
		log.Printf("checkpoint: save failed for study %s: %v", snapshot.StudyID, err)
		return err
	}
	m.mu.Lock()
	m.cellsSinceSave = 0
	m.lastSaveAt = m.clock()
	m.mu.Unlock()
	return nil
}

// Finalize deletes or keeps the snapshot according to PreserveCheckpoint.
func (m *Manager) Finalize() error {
	if m.policy.PreserveCheckpoint {
		return m.ForceSave()
	}
	studyID := m.Current().StudyID
	return m.store.Delete(studyID)
}
