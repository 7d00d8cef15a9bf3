package credential

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bentham/bentham/internal/manifest"
)

// EnvFieldMapping maps a well-known environment variable name directly to
// a (surfaceId, type, field) triple, for vars that don't follow the
// `{PREFIX}_{SURFACE}_{TYPE}_{FIELD}` convention (spec §6).
type EnvFieldMapping struct {
	EnvVar    string
	SurfaceID string
	Type      manifest.CredentialType
	Field     string
}

// DefaultEnvMappings covers the well-known provider API key variables
// named in spec §6.
var DefaultEnvMappings = []EnvFieldMapping{
	{EnvVar: "OPENAI_API_KEY", SurfaceID: "openai-api", Type: manifest.CredentialAPIKey, Field: "key"},
	{EnvVar: "ANTHROPIC_API_KEY", SurfaceID: "anthropic-api", Type: manifest.CredentialAPIKey, Field: "key"},
	{EnvVar: "GOOGLE_API_KEY", SurfaceID: "google-api", Type: manifest.CredentialAPIKey, Field: "key"},
}

// EnvVault is a read-only Vault backend built from environment variables.
// NewEnvVault reads only the explicit mapping table for well-known keys;
// variables named `{PREFIX}_{SURFACE}_{TYPE}_{FIELD}` are read only for the
// (surface, type, field) triples passed to ScanConventionKeys. Missing
// fields skip the credential silently (spec §4.C).
type EnvVault struct {
	prefix   string
	mappings []EnvFieldMapping
	creds    map[string]manifest.Credential
}

// NewEnvVault scans the process environment and builds a read-only vault.
// lookup defaults to os.LookupEnv when nil (tests may inject a fake).
func NewEnvVault(prefix string, mappings []EnvFieldMapping, lookup func(string) (string, bool)) *EnvVault {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	v := &EnvVault{prefix: prefix, mappings: mappings, creds: map[string]manifest.Credential{}}
	v.scan(lookup)
	return v
}

func (v *EnvVault) scan(lookup func(string) (string, bool)) {
	now := time.Now()

	for _, m := range v.mappings {
		val, ok := lookup(m.EnvVar)
		if !ok || val == "" {
			continue
		}
		id := fmt.Sprintf("env:%s", m.EnvVar)
		v.creds[id] = manifest.Credential{
			ID:        id,
			SurfaceID: m.SurfaceID,
			Type:      m.Type,
			CreatedAt: now,
			IsActive:  true,
			Payload:   map[string]string{m.Field: val},
		}
	}

	// Convention-based scan: {PREFIX}_{SURFACE}_{TYPE}_{FIELD}. Reconstructing
	// the full universe of surfaces/types from the environment alone would
	// require enumerating os.Environ(); accept an explicit key list via
	// ScanConventionKeys for callers that know their surface registry.
}

// ScanConventionKeys looks up `{PREFIX}_{SURFACE}_{TYPE}_{FIELD}` for each
// given (surfaceID, credType, field) triple and adds any hits found.
func (v *EnvVault) ScanConventionKeys(lookup func(string) (string, bool), triples [][3]string) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	now := time.Now()
	for _, triple := range triples {
		surfaceID, credType, field := triple[0], triple[1], triple[2]
		key := strings.ToUpper(strings.Join([]string{v.prefix, surfaceID, credType, field}, "_"))
		key = strings.ReplaceAll(key, "-", "_")
		val, ok := lookup(key)
		if !ok || val == "" {
			continue
		}
		id := fmt.Sprintf("env:%s", key)
		v.creds[id] = manifest.Credential{
			ID:        id,
			SurfaceID: surfaceID,
			Type:      manifest.CredentialType(credType),
			CreatedAt: now,
			IsActive:  true,
			Payload:   map[string]string{field: val},
		}
	}
}

func (v *EnvVault) Store(manifest.Credential) error                          { return ErrReadOnly }
func (v *EnvVault) Update(string, func(*manifest.Credential)) error          { return ErrReadOnly }
func (v *EnvVault) Delete(string) error                                      { return ErrReadOnly }

func (v *EnvVault) Get(id string) (*manifest.Credential, bool) {
	c, ok := v.creds[id]
	if !ok {
		return nil, false
	}
	return &c, true
}

func (v *EnvVault) Exists(id string) bool {
	_, ok := v.creds[id]
	return ok
}

func (v *EnvVault) List() []manifest.Credential {
	out := make([]manifest.Credential, 0, len(v.creds))
	for _, c := range v.creds {
		out = append(out, c)
	}
	return out
}

func (v *EnvVault) ListByType(t manifest.CredentialType) []manifest.Credential {
	out := []manifest.Credential{}
	for _, c := range v.creds {
		if c.Type == t {
			out = append(out, c)
		}
	}
	return out
}

func (v *EnvVault) GetBySurface(surfaceID string) []manifest.Credential {
	out := []manifest.Credential{}
	for _, c := range v.creds {
		if c.SurfaceID == surfaceID {
			out = append(out, c)
		}
	}
	return out
}

func (v *EnvVault) GetActiveBySurface(surfaceID string, now time.Time) []manifest.Credential {
	out := []manifest.Credential{}
	for _, c := range v.creds {
		if c.SurfaceID == surfaceID && c.Active(now) {
			out = append(out, c)
		}
	}
	return out
}
