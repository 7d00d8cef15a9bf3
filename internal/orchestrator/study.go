package orchestrator

import (
	"fmt"

	"github.com/bentham/bentham/internal/manifest"
)

// ErrIllegalTransition is returned when a requested study transition is
// not in the fixed legal-transition table (spec §4.G.1: "rejection of any
// other is an error, not a no-op").
type ErrIllegalTransition struct {
	From, To manifest.StudyStatus
}

func (e *ErrIllegalTransition) Error() string {
	return fmt.Sprintf("orchestrator: illegal study transition %s -> %s", e.From, e.To)
}

// transition moves study to `to`, validating against manifest.CanTransition
// and firing the onStudyTransition hook on success.
func transition(study *manifest.Study, to manifest.StudyStatus, hooks Hooks) error {
	from := study.Status
	if !manifest.CanTransition(from, to) {
		return &ErrIllegalTransition{From: from, To: to}
	}
	study.Status = to
	hooks.fireStudyTransition(from, to, study)
	return nil
}

// StartStudy auto-traverses manifest_received -> validating -> queued ->
// executing when called on a fresh study (spec §4.G.1).
func StartStudy(study *manifest.Study, hooks Hooks) error {
	path := []manifest.StudyStatus{
		manifest.StatusValidating,
		manifest.StatusQueued,
		manifest.StatusExecuting,
	}
	for _, to := range path {
		if !manifest.CanTransition(study.Status, to) {
			break
		}
		if err := transition(study, to, hooks); err != nil {
			return err
		}
	}
	return nil
}

// PauseStudy transitions executing -> paused and records reason (spec
// §4.G.6).
func PauseStudy(study *manifest.Study, reason string, hooks Hooks) error {
	if err := transition(study, manifest.StatusPaused, hooks); err != nil {
		return err
	}
	study.PauseReason = reason
	return nil
}

// ResumeStudy transitions paused -> executing and clears the pause reason.
func ResumeStudy(study *manifest.Study, hooks Hooks) error {
	if err := transition(study, manifest.StatusExecuting, hooks); err != nil {
		return err
	}
	study.PauseReason = ""
	return nil
}
