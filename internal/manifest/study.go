package manifest

import "time"

// StudyStatus enumerates the study lifecycle states (spec §4.G.1).
type StudyStatus string

const (
	StatusManifestReceived  StudyStatus = "manifest_received"
	StatusValidating        StudyStatus = "validating"
	StatusQueued            StudyStatus = "queued"
	StatusExecuting         StudyStatus = "executing"
	StatusPaused            StudyStatus = "paused"
	StatusValidatingResults StudyStatus = "validating_results"
	StatusComplete          StudyStatus = "complete"
	StatusFailed            StudyStatus = "failed"
)

// transitions is the fixed legal-transition table from spec §4.G.1.
var transitions = map[StudyStatus]map[StudyStatus]bool{
	StatusManifestReceived:  {StatusValidating: true},
	StatusValidating:        {StatusQueued: true, StatusFailed: true},
	StatusQueued:            {StatusExecuting: true},
	StatusExecuting:         {StatusPaused: true, StatusValidatingResults: true, StatusFailed: true},
	StatusPaused:            {StatusExecuting: true},
	StatusValidatingResults: {StatusComplete: true, StatusFailed: true},
}

// CanTransition reports whether from → to is a legal study transition.
func CanTransition(from, to StudyStatus) bool {
	return transitions[from][to]
}

// Progress tracks the conservation-law counters of §8 property 1.
type Progress struct {
	TotalCells           int     `json:"totalCells"`
	ExecutingCells       int     `json:"executingCells"`
	CompletedCells       int     `json:"completedCells"`
	FailedCells          int     `json:"failedCells"`
	CompletionPercentage float64 `json:"completionPercentage"`
	RatePerHour          float64 `json:"ratePerHour"`
}

// PendingCells derives the pending count so total = executing+completed+failed+pending.
func (p Progress) PendingCells() int {
	pending := p.TotalCells - p.ExecutingCells - p.CompletedCells - p.FailedCells
	if pending < 0 {
		return 0
	}
	return pending
}

// DeadlineStatus reports whether a study is on pace to finish by its deadline.
type DeadlineStatus struct {
	Deadline            time.Time  `json:"deadline"`
	AtRisk              bool       `json:"atRisk"`
	ProjectedCompletion *time.Time `json:"projectedCompletion,omitempty"`
}

// Costs accumulates per-study spend, keyed loosely to let callers add
// provider-specific cost lines without a schema migration.
type Costs struct {
	TotalUSD   float64            `json:"totalUsd"`
	ByProvider map[string]float64 `json:"byProvider,omitempty"`
}

// Study is the runtime instance of a manifest in execution (spec §3).
type Study struct {
	ID             string          `json:"id"`
	TenantID       string          `json:"tenantId"`
	Manifest       Manifest        `json:"manifest"`
	Status         StudyStatus     `json:"status"`
	Progress       Progress        `json:"progress"`
	Costs          Costs           `json:"costs"`
	DeadlineStatus DeadlineStatus  `json:"deadlineStatus"`
	LastCheckpoint *time.Time      `json:"lastCheckpoint,omitempty"`
	PauseReason    string          `json:"pauseReason,omitempty"`
}
