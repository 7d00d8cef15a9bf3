package orchestrator

import (
	"fmt"
	"sync"
	"time"

	"github.com/bentham/bentham/internal/bentherr"
	"github.com/bentham/bentham/internal/checkpoint"
	"github.com/bentham/bentham/internal/clock"
	"github.com/bentham/bentham/internal/manifest"
	"github.com/bentham/bentham/internal/retrypolicy"
	"github.com/bentham/bentham/internal/validator"
)

// StudyRuntime bundles one study's mutable orchestration state: its graph,
// study record, deadline-risk flag, rate window, and fail-fast tracker.
// Grounded on the teacher's GlobalNodePool: one owner struct, guarded by a
// single mutex rather than field-level locks, because every mutation here
// touches several fields together (progress + graph + checkpoint sequence).
type StudyRuntime struct {
	mu sync.Mutex

	Graph       *JobGraph
	Study       *manifest.Study
	Manifest    *manifest.Manifest
	RateWindow  *RateWindow
	FailFast    *FailFastTracker
	AtRisk      bool
	LastCkptSeq int64
}

// Manager drives the orchestrator's scheduling, state-machine, and
// checkpoint lifecycle for all in-flight studies (spec §4.G).
type Manager struct {
	clock clock.Clock
	rnd   clock.Rand
	hooks Hooks

	ckptStore *checkpoint.Store

	mu      sync.RWMutex
	studies map[string]*StudyRuntime
}

// NewManager constructs a Manager.
func NewManager(now clock.Clock, rnd clock.Rand, hooks Hooks, ckptStore *checkpoint.Store) *Manager {
	return &Manager{
		clock:     now,
		rnd:       rnd,
		hooks:     hooks,
		ckptStore: ckptStore,
		studies:   make(map[string]*StudyRuntime),
	}
}

// ErrStudyNotFound is returned when an operation names an unregistered study.
var ErrStudyNotFound = bentherr.NotFound(bentherr.StudyNotFound, "orchestrator: study not found")

// RegisterStudy builds the job graph for m and registers a fresh
// manifest_received study under studyID.
func (mgr *Manager) RegisterStudy(studyID, tenantID string, m *manifest.Manifest, queryShuffle func(n int) int) *StudyRuntime {
	graph := BuildJobGraph(studyID, m, queryShuffle)
	total := len(graph.Jobs)

	study := &manifest.Study{
		ID:       studyID,
		TenantID: tenantID,
		Manifest: *m,
		Status:   manifest.StatusManifestReceived,
		Progress: manifest.Progress{TotalCells: total},
		DeadlineStatus: manifest.DeadlineStatus{Deadline: m.Deadline},
	}

	rt := &StudyRuntime{
		Graph:      graph,
		Study:      study,
		Manifest:   m,
		RateWindow: NewRateWindow(time.Hour),
		FailFast:   NewFailFastTracker(m.CompletionCriteria.ConsecutiveFailureLimit),
	}

	mgr.mu.Lock()
	mgr.studies[studyID] = rt
	mgr.mu.Unlock()
	return rt
}

// Runtime returns the StudyRuntime for studyID.
func (mgr *Manager) Runtime(studyID string) (*StudyRuntime, error) {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()
	rt, ok := mgr.studies[studyID]
	if !ok {
		return nil, ErrStudyNotFound
	}
	return rt, nil
}

// StartStudy auto-traverses the study to executing (spec §4.G.1).
func (mgr *Manager) StartStudy(studyID string) error {
	rt, err := mgr.Runtime(studyID)
	if err != nil {
		return err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return StartStudy(rt.Study, mgr.hooks)
}

// PauseStudy pauses dispatch for studyID (spec §4.G.6).
func (mgr *Manager) PauseStudy(studyID, reason string) error {
	rt, err := mgr.Runtime(studyID)
	if err != nil {
		return err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return PauseStudy(rt.Study, reason, mgr.hooks)
}

// ResumeStudy resumes dispatch for studyID.
func (mgr *Manager) ResumeStudy(studyID string) error {
	rt, err := mgr.Runtime(studyID)
	if err != nil {
		return err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return ResumeStudy(rt.Study, mgr.hooks)
}

// NextJobs returns up to limit ready jobs for studyID (spec §4.G.3).
func (mgr *Manager) NextJobs(studyID string, limit int) ([]*manifest.Job, error) {
	rt, err := mgr.Runtime(studyID)
	if err != nil {
		return nil, err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.Study.Status != manifest.StatusExecuting {
		return nil, nil
	}
	return GetNextJobs(rt.Graph, rt.Manifest, mgr.clock, limit), nil
}

// Dispatch claims jobID (startJob) under the study's lock.
func (mgr *Manager) Dispatch(studyID, jobID string) (*manifest.Job, error) {
	rt, err := mgr.Runtime(studyID)
	if err != nil {
		return nil, err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return StartJob(rt.Graph, rt.Study, jobID, mgr.clock, mgr.hooks)
}

// Complete finishes jobID successfully, updates the fail-fast tracker and
// rate window, and evaluates study completion (spec §4.G.3, §4.F).
func (mgr *Manager) Complete(studyID, jobID string, result *manifest.JobResult) (*manifest.Job, error) {
	rt, err := mgr.Runtime(studyID)
	if err != nil {
		return nil, err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()

	job, err := CompleteJob(rt.Graph, rt.Study, jobID, result, mgr.clock, mgr.hooks)
	if err != nil {
		return nil, err
	}
	rt.FailFast.RecordSuccess(job.SurfaceID)
	rt.RateWindow.RecordCompletion(mgr.clock())

	mgr.evaluateCompletionLocked(rt)
	return job, nil
}

// Fail fails jobID per the retry policy, updates the fail-fast tracker,
// and triggers the fail-fast study transition if a required surface trips
// its consecutive-failure limit (spec §4, Open Question 3).
func (mgr *Manager) Fail(studyID, jobID string, errCode bentherr.Code, errMessage string, retryCfg retrypolicy.Config) (*manifest.Job, bool, error) {
	rt, err := mgr.Runtime(studyID)
	if err != nil {
		return nil, false, err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()

	job, willRetry, err := FailJob(rt.Graph, rt.Study, jobID, errCode, errMessage, retryCfg, mgr.clock, mgr.rnd, mgr.hooks)
	if err != nil {
		return nil, false, err
	}

	if !willRetry {
		required := requiredSurfaceSet(rt.Manifest)
		if required[job.SurfaceID] {
			if tripped := rt.FailFast.RecordFailure(job.SurfaceID); tripped {
				_ = transition(rt.Study, manifest.StatusFailed, mgr.hooks)
			}
		}
	}

	return job, willRetry, nil
}

// evaluateCompletionLocked checks whether every required surface has met
// its coverage threshold and, if so, drives the study through
// validating_results -> complete (spec §4.F, §4.G.3). Caller must hold
// rt.mu.
func (mgr *Manager) evaluateCompletionLocked(rt *StudyRuntime) {
	if rt.Study.Status != manifest.StatusExecuting {
		return
	}

	totalBySurface := map[string]int{}
	completedBySurface := map[string]int{}
	for _, job := range rt.Graph.Jobs {
		totalBySurface[job.SurfaceID]++
		if job.Status == manifest.JobComplete {
			completedBySurface[job.SurfaceID]++
		}
	}

	result := validator.CheckStudy(validator.StudyInput{
		RequiredSurfaceIDs: rt.Manifest.CompletionCriteria.RequiredSurfaceIDs,
		OptionalSurfaceIDs: rt.Manifest.CompletionCriteria.OptionalSurfaceIDs,
		CoverageThreshold:  rt.Manifest.CompletionCriteria.CoverageThreshold,
		TotalBySurface:     totalBySurface,
		CompletedBySurface: completedBySurface,
	})

	allAccountedFor := rt.Study.Progress.CompletedCells+rt.Study.Progress.FailedCells >= rt.Study.Progress.TotalCells
	if !result.CanComplete && !allAccountedFor {
		return
	}

	if err := transition(rt.Study, manifest.StatusValidatingResults, mgr.hooks); err != nil {
		return
	}
	if result.CanComplete {
		_ = transition(rt.Study, manifest.StatusComplete, mgr.hooks)
	} else {
		_ = transition(rt.Study, manifest.StatusFailed, mgr.hooks)
	}
}

// EvaluateDeadline recomputes the study's deadline risk and fires
// onDeadlineAtRisk exactly once per state change (spec §4.G.4).
func (mgr *Manager) EvaluateDeadline(studyID string, safetyMargin time.Duration) error {
	rt, err := mgr.Runtime(studyID)
	if err != nil {
		return err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()

	now := mgr.clock()
	rate := rt.RateWindow.RatePerHour(now)
	remaining := rt.Study.Progress.TotalCells - rt.Study.Progress.CompletedCells - rt.Study.Progress.FailedCells

	atRisk, projected := EvaluateDeadline(now, rt.Study.DeadlineStatus.Deadline, remaining, rate, safetyMargin, rt.AtRisk, func() {
		mgr.hooks.fireDeadlineAtRisk(rt.Study)
	})
	rt.AtRisk = atRisk
	rt.Study.DeadlineStatus.AtRisk = atRisk
	if !projected.IsZero() {
		rt.Study.DeadlineStatus.ProjectedCompletion = &projected
	}
	rt.Study.Progress.RatePerHour = rate
	return nil
}

// CreateCheckpoint snapshots studyID's state and persists it via the
// configured store (if any), bumping the sequence number (spec §4.G.5).
func (mgr *Manager) CreateCheckpoint(studyID string) (*checkpoint.Checkpoint, error) {
	rt, err := mgr.Runtime(studyID)
	if err != nil {
		return nil, err
	}
	rt.mu.Lock()
	ckpt := CreateCheckpoint(rt.Graph, rt.Study, rt.LastCkptSeq, mgr.clock(), mgr.hooks)
	rt.LastCkptSeq = ckpt.SequenceNumber
	rt.mu.Unlock()

	if mgr.ckptStore != nil {
		if err := mgr.ckptStore.Save(ckpt); err != nil {
			return ckpt, fmt.Errorf("orchestrator: checkpoint save failed: %w", err)
		}
	}
	return ckpt, nil
}

// RestoreFromCheckpoint replaces studyID's in-memory job graph to match
// ckpt exactly (spec §4.G.5).
func (mgr *Manager) RestoreFromCheckpoint(studyID string, ckpt *checkpoint.Checkpoint) error {
	rt, err := mgr.Runtime(studyID)
	if err != nil {
		return err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if err := RestoreFromCheckpoint(rt.Graph, rt.Study, ckpt); err != nil {
		return err
	}
	rt.LastCkptSeq = ckpt.SequenceNumber
	return nil
}
