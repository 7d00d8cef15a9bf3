// Package checkpoint implements Bentham's crash-safe study checkpoint
// snapshots (spec §4.B): a JSON document written with write-temp-then-
// rename-then-fsync discipline, plus the pure state-transition functions
// the Orchestrator drives it with.
package checkpoint

import (
	"time"

	"github.com/bentham/bentham/internal/manifest"
)

// FormatVersion is the Checkpoint.Version written by this build. Readers
// refuse to load a checkpoint whose major version differs (spec §6).
const FormatVersion = 1

// CellResult is the per-cell outcome recorded in a checkpoint snapshot.
type CellResult struct {
	Success    bool                `json:"success"`
	Result     *manifest.JobResult `json:"result,omitempty"`
	Attempts   int                 `json:"attempts"`
	FinishedAt time.Time           `json:"finishedAt"`
}

// Metadata captures the study shape a checkpoint was produced for, used by
// canResume/remainingCells to reason about the original manifest without
// needing the whole manifest document.
type Metadata struct {
	Surfaces   []string `json:"surfaces"`
	Locations  []string `json:"locations"`
	QueryCount int      `json:"queryCount"`
}

// Checkpoint is the durable snapshot of a study's progress and retry state
// (spec §3). Invariant: CompletedCells + FailedCells <= TotalCells, and
// ProgressPercent = round(100*(CompletedCells+FailedCells)/TotalCells).
type Checkpoint struct {
	Version         int                                   `json:"version"`
	StudyID         string                                `json:"studyId"`
	StudyName       string                                `json:"studyName"`
	CreatedAt       time.Time                              `json:"createdAt"`
	UpdatedAt       time.Time                              `json:"updatedAt"`
	TotalCells      int                                   `json:"totalCells"`
	CompletedCells  int                                   `json:"completedCells"`
	FailedCells     int                                   `json:"failedCells"`
	ProgressPercent int                                   `json:"progressPercent"`
	ExecutionQueue  []manifest.CellKey                    `json:"executionQueue"`
	CellResults     map[manifest.CellKey]CellResult        `json:"cellResults"`
	RetryStates     map[manifest.CellKey]manifest.RetryState `json:"retryStates"`
	Metadata        Metadata                              `json:"metadata"`
	SequenceNumber  int64                                 `json:"sequenceNumber"`
}

// recomputeProgress fills ProgressPercent from the completed/failed/total
// counters, matching the invariant in spec §3.
func recomputeProgress(ckpt *Checkpoint) {
	if ckpt.TotalCells <= 0 {
		ckpt.ProgressPercent = 0
		return
	}
	pct := 100.0 * float64(ckpt.CompletedCells+ckpt.FailedCells) / float64(ckpt.TotalCells)
	ckpt.ProgressPercent = int(pct + 0.5)
}

// clone deep-copies ckpt so update functions remain pure (no caller-visible
// mutation of the input).
func clone(ckpt *Checkpoint) *Checkpoint {
	out := *ckpt
	out.ExecutionQueue = append([]manifest.CellKey(nil), ckpt.ExecutionQueue...)

	out.CellResults = make(map[manifest.CellKey]CellResult, len(ckpt.CellResults))
	for k, v := range ckpt.CellResults {
		out.CellResults[k] = v
	}

	out.RetryStates = make(map[manifest.CellKey]manifest.RetryState, len(ckpt.RetryStates))
	for k, v := range ckpt.RetryStates {
		out.RetryStates[k] = v
	}

	out.Metadata.Surfaces = append([]string(nil), ckpt.Metadata.Surfaces...)
	out.Metadata.Locations = append([]string(nil), ckpt.Metadata.Locations...)

	return &out
}

// UpdateWithResult returns a new checkpoint reflecting cellKey's outcome.
// Pure: ckpt is never mutated.
func UpdateWithResult(ckpt *Checkpoint, cellKey manifest.CellKey, result manifest.JobResult, attempts int, now time.Time) *Checkpoint {
	next := clone(ckpt)

	_, alreadyRecorded := next.CellResults[cellKey]
	next.CellResults[cellKey] = CellResult{
		Success:    result.Success,
		Result:     &result,
		Attempts:   attempts,
		FinishedAt: now,
	}
	if !alreadyRecorded {
		if result.Success {
			next.CompletedCells++
		} else {
			next.FailedCells++
		}
	}
	delete(next.RetryStates, cellKey)

	next.UpdatedAt = now
	next.SequenceNumber++
	recomputeProgress(next)
	return next
}

// UpdateRetry returns a new checkpoint recording cellKey's retry state.
// Pure: ckpt is never mutated.
func UpdateRetry(ckpt *Checkpoint, cellKey manifest.CellKey, state manifest.RetryState, now time.Time) *Checkpoint {
	next := clone(ckpt)
	next.RetryStates[cellKey] = state
	next.UpdatedAt = now
	next.SequenceNumber++
	return next
}

// RemainingCells returns the cells in the execution queue that are neither
// completed nor failed.
func RemainingCells(ckpt *Checkpoint) []manifest.CellKey {
	remaining := make([]manifest.CellKey, 0, len(ckpt.ExecutionQueue))
	for _, key := range ckpt.ExecutionQueue {
		if r, ok := ckpt.CellResults[key]; ok {
			_ = r
			continue
		}
		remaining = append(remaining, key)
	}
	return remaining
}

// ResumeInfo is the result of CanResume.
type ResumeInfo struct {
	CanResume      bool
	Reason         string
	RemainingCells []manifest.CellKey
}

// CanResume reports whether ckpt represents unfinished work that a new run
// can pick up.
func CanResume(ckpt *Checkpoint) ResumeInfo {
	remaining := RemainingCells(ckpt)
	if ckpt.CompletedCells+ckpt.FailedCells >= ckpt.TotalCells {
		return ResumeInfo{CanResume: false, Reason: "study already reached its cell total", RemainingCells: remaining}
	}
	return ResumeInfo{CanResume: true, RemainingCells: remaining}
}
