package orchestrator

import (
	"github.com/bentham/bentham/internal/checkpoint"
	"github.com/bentham/bentham/internal/manifest"
)

// CheckpointSnapshot is the value passed to onCheckpointCreated.
type CheckpointSnapshot = checkpoint.Checkpoint

// Hooks are optional, synchronous observer callbacks (spec §4.G.7). A
// failing hook is logged by the caller but must never corrupt orchestrator
// state, so hooks are invoked defensively via fire*.
type Hooks struct {
	OnStudyTransition func(from, to manifest.StudyStatus, study *manifest.Study)
	OnJobStart        func(job *manifest.Job)
	OnJobComplete     func(job *manifest.Job)
	OnJobFail         func(job *manifest.Job, errorKind string)
	OnDeadlineAtRisk  func(study *manifest.Study)
	OnCheckpointCreated func(ckpt *CheckpointSnapshot)

	// OnHookError, if set, receives any panic recovered while invoking a
	// hook. Never called by the hooks themselves, only by fire* wrappers.
	OnHookError func(hookName string, recovered any)
}

func (h Hooks) fireStudyTransition(from, to manifest.StudyStatus, study *manifest.Study) {
	if h.OnStudyTransition == nil {
		return
	}
	defer h.recover("onStudyTransition")
	h.OnStudyTransition(from, to, study)
}

func (h Hooks) fireJobStart(job *manifest.Job) {
	if h.OnJobStart == nil {
		return
	}
	defer h.recover("onJobStart")
	h.OnJobStart(job)
}

func (h Hooks) fireJobComplete(job *manifest.Job) {
	if h.OnJobComplete == nil {
		return
	}
	defer h.recover("onJobComplete")
	h.OnJobComplete(job)
}

func (h Hooks) fireJobFail(job *manifest.Job, errorKind string) {
	if h.OnJobFail == nil {
		return
	}
	defer h.recover("onJobFail")
	h.OnJobFail(job, errorKind)
}

func (h Hooks) fireDeadlineAtRisk(study *manifest.Study) {
	if h.OnDeadlineAtRisk == nil {
		return
	}
	defer h.recover("onDeadlineAtRisk")
	h.OnDeadlineAtRisk(study)
}

func (h Hooks) fireCheckpointCreated(ckpt *CheckpointSnapshot) {
	if h.OnCheckpointCreated == nil {
		return
	}
	defer h.recover("onCheckpointCreated")
	h.OnCheckpointCreated(ckpt)
}

func (h Hooks) recover(name string) {
	if r := recover(); r != nil && h.OnHookError != nil {
		h.OnHookError(name, r)
	}
}
