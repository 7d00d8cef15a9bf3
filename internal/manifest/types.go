// Package manifest holds Bentham's data model (spec §3): the immutable
// study Manifest, the runtime Study/Job/JobResult shapes, and the Checkpoint
// snapshot format shared with internal/checkpoint.
package manifest

import (
	"fmt"
	"time"
)

// ProxyType enumerates the proxy classes a location may request.
type ProxyType string

const (
	ProxyResidential ProxyType = "residential"
	ProxyDatacenter  ProxyType = "datacenter"
	ProxyMobile      ProxyType = "mobile"
)

// ExecutionOrder enumerates how the ready queue orders cells when queries
// are not shuffled.
type ExecutionOrder string

const (
	RoundRobin    ExecutionOrder = "round-robin"
	SurfaceFirst  ExecutionOrder = "surface-first"
	LocationFirst ExecutionOrder = "location-first"
)

// EvidenceLevel controls how much proof-of-execution evidence jobs collect.
type EvidenceLevel string

const (
	EvidenceFull     EvidenceLevel = "full"
	EvidenceMetadata EvidenceLevel = "metadata"
	EvidenceNone     EvidenceLevel = "none"
)

// SessionIsolation controls whether jobs within a study share sessions.
type SessionIsolation string

const (
	SessionShared          SessionIsolation = "shared"
	SessionDedicatedPerRun SessionIsolation = "dedicated_per_study"
)

// Query is one ordered query spec within a manifest.
type Query struct {
	Text     string   `json:"text" yaml:"text"`
	Category string   `json:"category,omitempty" yaml:"category,omitempty"`
	Tags     []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// SurfaceConfig describes one target AI surface in a manifest.
type SurfaceConfig struct {
	ID       string         `json:"id" yaml:"id"`
	Required bool           `json:"required" yaml:"required"`
	Options  map[string]any `json:"options,omitempty" yaml:"options,omitempty"`
}

// LocationConfig describes one geographic/proxy location in a manifest.
type LocationConfig struct {
	ID              string        `json:"id" yaml:"id"`
	ProxyType       ProxyType     `json:"proxyType" yaml:"proxyType"`
	RequireSticky   bool          `json:"requireSticky" yaml:"requireSticky"`
	ProxyProvider   string        `json:"proxyProvider,omitempty" yaml:"proxyProvider,omitempty"`
	SessionDuration time.Duration `json:"sessionDuration,omitempty" yaml:"sessionDuration,omitempty"`
}

// CompletionCriteria decides when a study is allowed to finish.
type CompletionCriteria struct {
	RequiredSurfaceIDs      []string `json:"requiredSurfaceIds" yaml:"requiredSurfaceIds"`
	CoverageThreshold       float64  `json:"coverageThreshold" yaml:"coverageThreshold"`
	OptionalSurfaceIDs      []string `json:"optionalSurfaceIds,omitempty" yaml:"optionalSurfaceIds,omitempty"`
	MinSuccessRate          float64  `json:"minSuccessRate,omitempty" yaml:"minSuccessRate,omitempty"`
	ConsecutiveFailureLimit int      `json:"consecutiveFailureLimit,omitempty" yaml:"consecutiveFailureLimit,omitempty"`
}

// QualityGates gates whether a job's response counts as meaningful content.
type QualityGates struct {
	MinResponseLength    int      `json:"minResponseLength,omitempty" yaml:"minResponseLength,omitempty"`
	RequireActualContent bool     `json:"requireActualContent" yaml:"requireActualContent"`
	RequiredKeywords     []string `json:"requiredKeywords,omitempty" yaml:"requiredKeywords,omitempty"`
	ForbiddenKeywords    []string `json:"forbiddenKeywords,omitempty" yaml:"forbiddenKeywords,omitempty"`
	StrictMode           bool     `json:"strictMode,omitempty" yaml:"strictMode,omitempty"`
}

// RetryConfig mirrors retrypolicy.Config at the manifest boundary (kept
// separate so manifest has no dependency on retrypolicy's package).
type RetryConfig struct {
	MaxRetries        int      `json:"maxRetries" yaml:"maxRetries"`
	BackoffStrategy   string   `json:"backoffStrategy" yaml:"backoffStrategy"`
	InitialDelayMs    int      `json:"initialDelayMs" yaml:"initialDelayMs"`
	MaxDelayMs        int      `json:"maxDelayMs" yaml:"maxDelayMs"`
	BackoffMultiplier float64  `json:"backoffMultiplier" yaml:"backoffMultiplier"`
	Jitter            bool     `json:"jitter" yaml:"jitter"`
	NonRetryableKinds []string `json:"nonRetryableKinds,omitempty" yaml:"nonRetryableKinds,omitempty"`
}

// CheckpointConfig mirrors the CheckpointManager's auto-save policy (§4.B).
type CheckpointConfig struct {
	Enabled             bool          `json:"enabled" yaml:"enabled"`
	SaveIntervalCells    int           `json:"saveIntervalCells" yaml:"saveIntervalCells"`
	SaveIntervalSeconds time.Duration `json:"saveIntervalSeconds" yaml:"saveIntervalSeconds"`
	PreserveCheckpoint  bool          `json:"preserveCheckpoint" yaml:"preserveCheckpoint"`
}

// Timeouts bounds the blocking operations a job may perform (§5).
type Timeouts struct {
	QueryTimeoutMs   int `json:"queryTimeoutMs" yaml:"queryTimeoutMs"`
	SurfaceTimeoutMs int `json:"surfaceTimeoutMs,omitempty" yaml:"surfaceTimeoutMs,omitempty"`
	StudyTimeoutMs   int `json:"studyTimeoutMs,omitempty" yaml:"studyTimeoutMs,omitempty"`
}

// ExecutionConfig bundles scheduling and concurrency knobs.
type ExecutionConfig struct {
	Retry                 RetryConfig      `json:"retry" yaml:"retry"`
	Checkpoint            CheckpointConfig `json:"checkpoint" yaml:"checkpoint"`
	Timeouts              Timeouts         `json:"timeouts" yaml:"timeouts"`
	ConcurrencyPerSurface int              `json:"concurrencyPerSurface" yaml:"concurrencyPerSurface"`
	MaxConcurrency        int              `json:"maxConcurrency" yaml:"maxConcurrency"`
	QueryDelayMinMs       int              `json:"queryDelayMinMs" yaml:"queryDelayMinMs"`
	QueryDelayMaxMs       int              `json:"queryDelayMaxMs" yaml:"queryDelayMaxMs"`
	ShuffleQueries        bool             `json:"shuffleQueries" yaml:"shuffleQueries"`
	ExecutionOrder        ExecutionOrder   `json:"executionOrder" yaml:"executionOrder"`
}

// Manifest is the validated, immutable study definition (spec §3).
type Manifest struct {
	Queries             []Query            `json:"queries" yaml:"queries"`
	Surfaces            []SurfaceConfig    `json:"surfaces" yaml:"surfaces"`
	Locations           []LocationConfig   `json:"locations" yaml:"locations"`
	CompletionCriteria  CompletionCriteria `json:"completionCriteria" yaml:"completionCriteria"`
	QualityGates        QualityGates       `json:"qualityGates" yaml:"qualityGates"`
	Execution           ExecutionConfig    `json:"execution" yaml:"execution"`
	EvidenceLevel       EvidenceLevel      `json:"evidenceLevel" yaml:"evidenceLevel"`
	LegalHold           bool               `json:"legalHold" yaml:"legalHold"`
	RetentionDays       int                `json:"retentionDays,omitempty" yaml:"retentionDays,omitempty"`
	Deadline            time.Time          `json:"deadline" yaml:"deadline"`
	SessionIsolation    SessionIsolation   `json:"sessionIsolation" yaml:"sessionIsolation"`
}

// CellKey is the canonical string identity of a cell, stable across runs of
// the same manifest (spec §3, property 4).
type CellKey string

// NewCellKey builds the canonical `"{queryIndex}-{surfaceId}-{locationId}"`
// identity for a cell.
func NewCellKey(queryIndex int, surfaceID, locationID string) CellKey {
	return CellKey(fmt.Sprintf("%d-%s-%s", queryIndex, surfaceID, locationID))
}

// JobStatus enumerates a job's lifecycle states (spec §3).
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobExecuting JobStatus = "executing"
	JobComplete  JobStatus = "complete"
	JobFailed    JobStatus = "failed"
)

// ResponsePayload is the adapter's raw response (part of JobResult).
type ResponsePayload struct {
	Text           string         `json:"text"`
	Structured     map[string]any `json:"structured,omitempty"`
	ResponseTimeMs int            `json:"responseTimeMs"`
}

// Evidence captures proof-of-execution artifacts, collected according to
// the manifest's EvidenceLevel.
type Evidence struct {
	SHA256         string `json:"sha256,omitempty"`
	TimestampToken string `json:"timestampToken,omitempty"`
	Screenshot     []byte `json:"screenshot,omitempty"`
	HTMLArchive    []byte `json:"htmlArchive,omitempty"`
	HARFile        []byte `json:"harFile,omitempty"`
}

// Validation summarizes the Validator's per-job quality checks inline on
// the result (the full Check list lives alongside, see internal/validator).
type Validation struct {
	PassedQualityGates bool `json:"passedQualityGates"`
	IsActualContent    bool `json:"isActualContent"`
	ResponseLength     int  `json:"responseLength"`
}

// ResultError is the normalized error attached to a failed JobResult.
type ResultError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// ResultContext records the execution context a result was produced under.
type ResultContext struct {
	SessionID string `json:"sessionId"`
	ProxyIP   string `json:"proxyIp,omitempty"`
	AccountID string `json:"accountId,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
}

// JobResult is the outcome of one adapter invocation for a cell.
type JobResult struct {
	Success    bool             `json:"success"`
	Response   *ResponsePayload `json:"response,omitempty"`
	Evidence   *Evidence        `json:"evidence,omitempty"`
	Validation Validation       `json:"validation"`
	Error      *ResultError     `json:"error,omitempty"`
	Context    ResultContext    `json:"context"`
}

// Job is one cell in execution, with retry/state bookkeeping (spec §3).
type Job struct {
	ID            string     `json:"id"`
	StudyID       string     `json:"studyId"`
	QueryIndex    int        `json:"queryIndex"`
	SurfaceID     string     `json:"surfaceId"`
	LocationID    string     `json:"locationId"`
	Status        JobStatus  `json:"status"`
	Attempts      int        `json:"attempts"`
	NextAttemptAt *time.Time `json:"nextAttemptAt,omitempty"`
	LastAttemptAt *time.Time `json:"lastAttemptAt,omitempty"`
	DependsOn     []string   `json:"dependsOn,omitempty"`
	Result        *JobResult `json:"result,omitempty"`
}

// CellKey returns the canonical identity of this job's cell.
func (j *Job) CellKey() CellKey {
	return NewCellKey(j.QueryIndex, j.SurfaceID, j.LocationID)
}

// RetryState is the per-cell retry bookkeeping persisted in checkpoints.
type RetryState struct {
	Attempts      int        `json:"attempts"`
	LastError     string     `json:"lastError,omitempty"`
	LastErrorCode string     `json:"lastErrorCode,omitempty"`
	NextRetryTime *time.Time `json:"nextRetryTime,omitempty"`
	Exhausted     bool       `json:"exhausted"`
}
