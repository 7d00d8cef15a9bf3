package orchestrator

import (
	"fmt"
	"time"

	"github.com/bentham/bentham/internal/bentherr"
	"github.com/bentham/bentham/internal/checkpoint"
	"github.com/bentham/bentham/internal/clock"
	"github.com/bentham/bentham/internal/manifest"
	"github.com/bentham/bentham/internal/retrypolicy"
)

// ErrJobNotFound is returned when an operation names an unknown job ID.
var ErrJobNotFound = bentherr.NotFound(bentherr.JobNotFound, "orchestrator: job not found")

// ErrJobNotPending is returned by StartJob for a job that is not pending,
// so a job already claimed by a worker cannot be claimed again.
var ErrJobNotPending = bentherr.New(bentherr.InvalidRequest, "orchestrator: job is not pending")

// StartJob transitions a job pending -> executing, stamping lastAttemptAt
// and bumping attempts (spec §4.G.3). A job that is not pending is refused
// with ErrJobNotPending (the per-job lock named in rule 3). The caller is
// responsible for serializing access to g.
func StartJob(g *JobGraph, study *manifest.Study, jobID string, now clock.Clock, hooks Hooks) (*manifest.Job, error) {
	job, ok := g.Jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	if job.Status != manifest.JobPending {
		return nil, ErrJobNotPending
	}
	t := now()
	job.Status = manifest.JobExecuting
	job.LastAttemptAt = &t
	job.Attempts++
	study.Progress.ExecutingCells++
	hooks.fireJobStart(job)
	return job, nil
}

// CompleteJob moves job to complete, updates the graph/progress, and
// returns the job. Recomputing the study-completion predicate is the
// caller's responsibility (see validator.CheckStudy). Emits job_completed
// via hooks (spec §4.G.3).
func CompleteJob(g *JobGraph, study *manifest.Study, jobID string, result *manifest.JobResult, now clock.Clock, hooks Hooks) (*manifest.Job, error) {
	job, ok := g.Jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	job.Status = manifest.JobComplete
	job.Result = result
	g.Completed[jobID] = true
	removeFromReadyQueue(g, jobID)

	if study.Progress.ExecutingCells > 0 {
		study.Progress.ExecutingCells--
	}
	study.Progress.CompletedCells++
	recomputeCompletionPercentage(study)

	hooks.fireJobComplete(job)
	return job, nil
}

// FailJob consults the retry policy with (errorCode, job.attempts-1,
// retryCfg): on retry, reinserts the job as pending with a computed
// nextAttemptAt; otherwise marks it permanently failed (spec §4.G.3).
// Emits job_failed either way.
func FailJob(g *JobGraph, study *manifest.Study, jobID string, errCode bentherr.Code, errMessage string, retryCfg retrypolicy.Config, now clock.Clock, rnd clock.Rand, hooks Hooks) (*manifest.Job, bool, error) {
	job, ok := g.Jobs[jobID]
	if !ok {
		return nil, false, ErrJobNotFound
	}

	attempt := job.Attempts - 1
	if attempt < 0 {
		attempt = 0
	}
	willRetry := retrypolicy.ShouldRetry(errCode, attempt, retryCfg)

	if study.Progress.ExecutingCells > 0 {
		study.Progress.ExecutingCells--
	}

	if willRetry {
		delayMs := retrypolicy.CalculateDelayMs(attempt, retryCfg, rnd)
		next := now().Add(time.Duration(delayMs) * time.Millisecond)
		job.Status = manifest.JobPending
		job.NextAttemptAt = &next
		if !containsID(g.ReadyQueue, jobID) {
			g.ReadyQueue = append(g.ReadyQueue, jobID)
		}
	} else {
		job.Status = manifest.JobFailed
		g.Failed[jobID] = true
		removeFromReadyQueue(g, jobID)
		study.Progress.FailedCells++
		recomputeCompletionPercentage(study)
	}

	job.Result = &manifest.JobResult{
		Success: false,
		Error:   &manifest.ResultError{Code: string(errCode), Message: errMessage, Retryable: willRetry},
	}

	hooks.fireJobFail(job, string(errCode))
	return job, willRetry, nil
}

func removeFromReadyQueue(g *JobGraph, jobID string) {
	out := g.ReadyQueue[:0]
	for _, id := range g.ReadyQueue {
		if id != jobID {
			out = append(out, id)
		}
	}
	g.ReadyQueue = out
}

func containsID(ids []string, id string) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func recomputeCompletionPercentage(study *manifest.Study) {
	if study.Progress.TotalCells == 0 {
		return
	}
	done := study.Progress.CompletedCells + study.Progress.FailedCells
	study.Progress.CompletionPercentage = 100.0 * float64(done) / float64(study.Progress.TotalCells)
}

// CreateCheckpoint produces a deep-copy snapshot of the job graph and
// progress, bumping sequenceNumber, and fires onCheckpointCreated (spec
// §4.G.5).
func CreateCheckpoint(g *JobGraph, study *manifest.Study, prevSeq int64, now time.Time, hooks Hooks) *checkpoint.Checkpoint {
	ckpt := &checkpoint.Checkpoint{
		Version:         checkpoint.FormatVersion,
		StudyID:         g.StudyID,
		CreatedAt:       now,
		UpdatedAt:       now,
		TotalCells:      study.Progress.TotalCells,
		CompletedCells:  study.Progress.CompletedCells,
		FailedCells:     study.Progress.FailedCells,
		ExecutionQueue:  append([]manifest.CellKey{}, cellKeysFor(g, g.ReadyQueue)...),
		CellResults:     make(map[manifest.CellKey]checkpoint.CellResult),
		RetryStates:     make(map[manifest.CellKey]manifest.RetryState),
		SequenceNumber:  prevSeq + 1,
	}
	for id := range g.Completed {
		job := g.Jobs[id]
		if job == nil || job.Result == nil {
			continue
		}
		ckpt.CellResults[job.CellKey()] = checkpoint.CellResult{
			Success:    job.Result.Success,
			Result:     job.Result,
			Attempts:   job.Attempts,
			FinishedAt: now,
		}
	}
	for id, job := range g.Jobs {
		if job.Status == manifest.JobPending && job.NextAttemptAt != nil {
			ckpt.RetryStates[job.CellKey()] = manifest.RetryState{
				Attempts:      job.Attempts,
				NextRetryTime: job.NextAttemptAt,
			}
		}
		_ = id
	}
	if ckpt.TotalCells > 0 {
		ckpt.ProgressPercent = int(100*float64(ckpt.CompletedCells+ckpt.FailedCells)/float64(ckpt.TotalCells) + 0.5)
	}

	hooks.fireCheckpointCreated(ckpt)
	return ckpt
}

func cellKeysFor(g *JobGraph, ids []string) []manifest.CellKey {
	out := make([]manifest.CellKey, 0, len(ids))
	for _, id := range ids {
		if job, ok := g.Jobs[id]; ok {
			out = append(out, job.CellKey())
		}
	}
	return out
}

// RestoreFromCheckpoint replaces g's job graph state so the completed set
// and progress match ckpt exactly; every other job reverts to pending with
// attempts preserved (spec §4.G.5).
func RestoreFromCheckpoint(g *JobGraph, study *manifest.Study, ckpt *checkpoint.Checkpoint) error {
	if ckpt == nil {
		return fmt.Errorf("orchestrator: nil checkpoint")
	}

	g.Completed = make(map[string]bool)
	g.Failed = make(map[string]bool)
	g.ReadyQueue = nil

	// Every job not recorded as a completed/failed cell in the checkpoint
	// reverts to pending. Order is taken from ckpt.ExecutionQueue (the
	// ready-queue order at snapshot time), not map iteration, so
	// getNextJobs replays cells in their original order after restore.
	for key, jobID := range g.ByCellKey {
		job := g.Jobs[jobID]
		if cr, ok := ckpt.CellResults[key]; ok {
			job.Result = cr.Result
			job.Attempts = cr.Attempts
			job.NextAttemptAt = nil
			if cr.Success {
				job.Status = manifest.JobComplete
				g.Completed[job.ID] = true
			} else {
				job.Status = manifest.JobFailed
				g.Failed[job.ID] = true
			}
			continue
		}

		job.Status = manifest.JobPending
		if rs, ok := ckpt.RetryStates[key]; ok {
			job.Attempts = rs.Attempts
			job.NextAttemptAt = rs.NextRetryTime
		} else {
			job.NextAttemptAt = nil
		}
	}

	for _, key := range ckpt.ExecutionQueue {
		if jobID, ok := g.ByCellKey[key]; ok {
			if _, isCompleted := ckpt.CellResults[key]; !isCompleted {
				g.ReadyQueue = append(g.ReadyQueue, jobID)
			}
		}
	}

	study.Progress.TotalCells = ckpt.TotalCells
	study.Progress.CompletedCells = ckpt.CompletedCells
	study.Progress.FailedCells = ckpt.FailedCells
	study.Progress.ExecutingCells = 0
	recomputeCompletionPercentage(study)

	return nil
}
