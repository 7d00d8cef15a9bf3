package proxymanager

import (
	"fmt"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/bentham/bentham/internal/manifest"
)

// sessionKey identifies a sticky session by (proxyId, target) (spec §4.E).
type sessionKey struct {
	ProxyID string
	Target  string
}

// sessionTable owns sticky ProxySession state.
type sessionTable struct {
	sessions *xsync.Map[sessionKey, manifest.ProxySession]
}

func newSessionTable() *sessionTable {
	return &sessionTable{sessions: xsync.NewMap[sessionKey, manifest.ProxySession]()}
}

// getOrCreate reuses an unexpired session for (proxyID, target), or creates
// one with the given TTL.
func (t *sessionTable) getOrCreate(proxyID, target string, ttl time.Duration, now time.Time) manifest.ProxySession {
	key := sessionKey{ProxyID: proxyID, Target: target}
	session, _ := t.sessions.Compute(key, func(old manifest.ProxySession, loaded bool) (manifest.ProxySession, xsync.ComputeOp) {
		if loaded && old.ExpiresAt.After(now) {
			return old, xsync.CancelOp
		}
		return manifest.ProxySession{
			ID:        fmt.Sprintf("%s:%s:%d", proxyID, target, now.UnixNano()),
			ProxyID:   proxyID,
			Target:    target,
			CreatedAt: now,
			ExpiresAt: now.Add(ttl),
		}, xsync.UpdateOp
	})
	return session
}

// touch atomically increments a session's request count.
func (t *sessionTable) touch(proxyID, target string) {
	key := sessionKey{ProxyID: proxyID, Target: target}
	t.sessions.Compute(key, func(old manifest.ProxySession, loaded bool) (manifest.ProxySession, xsync.ComputeOp) {
		if !loaded {
			return old, xsync.CancelOp
		}
		old.RequestCount++
		return old, xsync.UpdateOp
	})
}
