// Package adapter defines the contract a surface integration implements to
// execute queries and manage sessions (spec §6). Concrete adapters (a real
// ChatGPT/Perplexity/Google AI Overview backend, etc.) are explicitly out of
// scope (spec §1) — this package only fixes the interface every adapter
// plugged into the orchestrator must satisfy.
package adapter

import (
	"context"

	"github.com/bentham/bentham/internal/manifest"
)

// QueryResult is what ExecuteQuery returns for one job (spec §6).
type QueryResult struct {
	Success          bool
	ResponseText     string
	IsActualContent  bool
	HasEvidence      bool
	EvidenceSHA256   string
	EvidenceCaptured string // RFC3339 timestamp token, empty if unavailable
	EvidenceScreen   []byte
	ErrorCode        string
	ErrorMessage     string
}

// Category groups adapters by the kind of surface they automate (spec §6).
type Category string

const (
	CategoryChatInterface  Category = "chat_interface"
	CategorySearchEngine   Category = "search_engine"
	CategoryVoiceAssistant Category = "voice_assistant"
	CategoryAPI            Category = "api"
)

// SurfaceAdapter is implemented by each surface integration. The
// orchestrator and validator only ever depend on this interface; they never
// know which concrete surface they are driving.
type SurfaceAdapter interface {
	// ID identifies this adapter's surface, matching a manifest surface ID.
	ID() string
	Category() Category

	RequiresAuth() bool
	SupportsAnonymous() bool
	SupportsGeoTargeting() bool

	// ExecuteQuery runs queryText through the surface, routed via proxy and
	// authenticated via account/credential as account/proxy describe, and
	// returns the observed response plus whatever evidence the surface
	// supports capturing.
	ExecuteQuery(ctx context.Context, queryText string, account *manifest.Account, proxy manifest.ProxyConfig, location manifest.LocationConfig) (QueryResult, error)

	// ValidateSession reports whether account's current session/cookie
	// still authenticates against the surface, without spending a query.
	ValidateSession(ctx context.Context, account *manifest.Account) (bool, error)

	// ResetSession discards any cached session-state for account, forcing
	// the next ExecuteQuery to authenticate fresh.
	ResetSession(ctx context.Context, account *manifest.Account) error
}

// Registry resolves a manifest surface ID to its adapter, mirroring how the
// orchestrator looks up which backend serves a job's surface.
type Registry struct {
	adapters map[string]SurfaceAdapter
}

// NewRegistry constructs an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]SurfaceAdapter)}
}

// Register adds or replaces the adapter for its own ID().
func (r *Registry) Register(a SurfaceAdapter) {
	r.adapters[a.ID()] = a
}

// Get returns the adapter registered for surfaceID, or ok=false.
func (r *Registry) Get(surfaceID string) (SurfaceAdapter, bool) {
	a, ok := r.adapters[surfaceID]
	return a, ok
}
