package orchestrator

import "github.com/puzpuzpuz/xsync/v4"

// FailFastTracker counts consecutive failed jobs (any cell) per required
// surface, resetting on any success on that surface (spec §4, Open
// Question 3 resolution). When a surface's count reaches
// consecutiveFailureLimit, the study may be failed early.
type FailFastTracker struct {
	limit  int
	counts *xsync.Map[string, int]
}

// NewFailFastTracker returns a tracker gated at limit consecutive failures
// per surface. limit <= 0 disables the fail-fast policy.
func NewFailFastTracker(limit int) *FailFastTracker {
	return &FailFastTracker{limit: limit, counts: xsync.NewMap[string, int]()}
}

// RecordSuccess resets the surface's consecutive-failure counter.
func (f *FailFastTracker) RecordSuccess(surfaceID string) {
	f.counts.Store(surfaceID, 0)
}

// RecordFailure increments the surface's consecutive-failure counter and
// reports whether it has now reached the configured limit.
func (f *FailFastTracker) RecordFailure(surfaceID string) (tripped bool) {
	next, _ := f.counts.Compute(surfaceID, func(old int, loaded bool) (int, xsync.ComputeOp) {
		return old + 1, xsync.UpdateOp
	})
	if f.limit <= 0 {
		return false
	}
	return next >= f.limit
}

// Count returns the current consecutive-failure count for surfaceID.
func (f *FailFastTracker) Count(surfaceID string) int {
	v, _ := f.counts.Load(surfaceID)
	return v
}
