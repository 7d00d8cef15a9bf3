// Package proxymanager implements Bentham's Proxy Manager (spec §4.E):
// provider-agnostic proxy selection, sticky sessions, health tracking, and
// pool rotation.
package proxymanager

import (
	"github.com/bentham/bentham/internal/manifest"
)

// RequestOptions carries provider-specific hints for one proxy request.
type RequestOptions struct {
	SessionMinutes int
	State          string
	City           string
	SessionID      string
}

// Provider is implemented by each proxy vendor integration (spec §4.E).
type Provider interface {
	Name() string
	GetProxyConfig(locationID string, opts RequestOptions) (manifest.ProxyConfig, error)
	ValidateCredentials() bool
	GetAvailableLocations() []string
	SupportsLocation(locationID string) bool
	GetCostPerGb() float64
	// Priority orders providers when the manifest's proxyProvider hint is
	// 'auto' — higher wins.
	Priority() int
	Enabled() bool
}
