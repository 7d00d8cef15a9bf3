package credential

import (
	"sort"
	"sync"
	"time"

	"github.com/bentham/bentham/internal/bentherr"
	"github.com/bentham/bentham/internal/clock"
	"github.com/bentham/bentham/internal/manifest"
)

// PoolHealth enumerates a pool's aggregate health (spec §4.C).
type PoolHealth string

const (
	PoolHealthy   PoolHealth = "healthy"
	PoolDegraded  PoolHealth = "degraded"
	PoolUnhealthy PoolHealth = "unhealthy"
)

// Events is the observer-pattern hook set a Pool reports through
// (spec §4.C, §9 "observer pattern over global event buses").
type Events struct {
	OnCredentialUsed     func(id string, success bool)
	OnCooldownStart      func(id string)
	OnCooldownEnd        func(id string)
	OnPoolExhausted      func(surfaceID string)
	OnPoolHealthChange   func(surfaceID string, health PoolHealth)
}

func (e Events) fireCredentialUsed(id string, success bool) {
	if e.OnCredentialUsed != nil {
		e.OnCredentialUsed(id, success)
	}
}
func (e Events) fireCooldownStart(id string) {
	if e.OnCooldownStart != nil {
		e.OnCooldownStart(id)
	}
}
func (e Events) fireCooldownEnd(id string) {
	if e.OnCooldownEnd != nil {
		e.OnCooldownEnd(id)
	}
}
func (e Events) firePoolExhausted(surfaceID string) {
	if e.OnPoolExhausted != nil {
		e.OnPoolExhausted(surfaceID)
	}
}
func (e Events) firePoolHealthChange(surfaceID string, h PoolHealth) {
	if e.OnPoolHealthChange != nil {
		e.OnPoolHealthChange(surfaceID, h)
	}
}

// entryState is a pool's per-credential bookkeeping (spec §4.C).
type entryState struct {
	insertionOrder int
	useCount       int
	errorCount     int
	inCooldown     bool
	cooldownUntil  time.Time
}

// Pool is a per-surface credential selector (spec §4.C).
type Pool struct {
	surfaceID         string
	strategy          manifest.SelectionStrategy
	vault             Vault
	clock             clock.Clock
	rnd               clock.Rand
	maxErrors         int
	errorCooldown     time.Duration
	minActive         int
	events            Events

	mu          sync.Mutex
	states      map[string]*entryState
	nextInorder int
	rrCursor    int
	lastHealth  PoolHealth
}

// PoolConfig configures a new Pool.
type PoolConfig struct {
	SurfaceID            string
	Strategy             manifest.SelectionStrategy
	MaxErrors            int
	ErrorCooldown        time.Duration
	MinActiveCredentials int
	Events               Events
}

// NewPool constructs a Pool backed by vault for one surface.
func NewPool(vault Vault, cfg PoolConfig, now clock.Clock, rnd clock.Rand) *Pool {
	return &Pool{
		surfaceID:     cfg.SurfaceID,
		strategy:      cfg.Strategy,
		vault:         vault,
		clock:         now,
		rnd:           rnd,
		maxErrors:     cfg.MaxErrors,
		errorCooldown: cfg.ErrorCooldown,
		minActive:     cfg.MinActiveCredentials,
		events:        cfg.Events,
		states:        map[string]*entryState{},
		lastHealth:    PoolHealthy,
	}
}

func (p *Pool) stateFor(id string) *entryState {
	st, ok := p.states[id]
	if !ok {
		st = &entryState{insertionOrder: p.nextInorder}
		p.nextInorder++
		p.states[id] = st
	}
	return st
}

// eligible returns the active, non-cooldown credential IDs in insertion
// order, clearing any cooldowns whose deadline has passed. Credentials new
// to the pool are assigned their insertion order by CreatedAt, then ID.
func (p *Pool) eligible(now time.Time) []manifest.Credential {
	active := p.vault.GetActiveBySurface(p.surfaceID, now)
	sort.Slice(active, func(i, j int) bool {
		if !active[i].CreatedAt.Equal(active[j].CreatedAt) {
			return active[i].CreatedAt.Before(active[j].CreatedAt)
		}
		return active[i].ID < active[j].ID
	})
	out := make([]manifest.Credential, 0, len(active))
	for _, c := range active {
		st := p.stateFor(c.ID)
		if st.inCooldown && !st.cooldownUntil.After(now) {
			st.inCooldown = false
			st.errorCount = 0
			p.events.fireCooldownEnd(c.ID)
		}
		if st.inCooldown {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return p.stateFor(out[i].ID).insertionOrder < p.stateFor(out[j].ID).insertionOrder
	})
	return out
}

// GetNext selects the next credential per the pool's strategy, or
// ErrPoolExhausted if none are eligible.
func (p *Pool) GetNext() (*manifest.Credential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock()
	candidates := p.eligible(now)
	if len(candidates) == 0 {
		p.events.firePoolExhausted(p.surfaceID)
		p.updateHealthLocked(0)
		return nil, ErrPoolExhausted
	}

	var chosen manifest.Credential
	switch p.strategy {
	case manifest.StrategyRandom:
		idx := 0
		if p.rnd != nil && len(candidates) > 1 {
			idx = int(p.rnd() * float64(len(candidates)))
			if idx >= len(candidates) {
				idx = len(candidates) - 1
			}
		}
		chosen = candidates[idx]
	case manifest.StrategyLeastUsed:
		chosen = candidates[0]
		best := p.stateFor(chosen.ID).useCount
		for _, c := range candidates[1:] {
			st := p.stateFor(c.ID)
			if st.useCount < best {
				chosen = c
				best = st.useCount
			}
		}
	case manifest.StrategyRoundRobin:
		fallthrough
	default:
		chosen = candidates[p.rrCursor%len(candidates)]
		p.rrCursor++
	}

	p.updateHealthLocked(len(candidates))
	result := chosen
	return &result, nil
}

// ReportResult records a usage outcome for credential id, adjusting use
// counts, error counts, and cooldown state (spec §4.C).
func (p *Pool) ReportResult(id string, success bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := p.stateFor(id)
	st.useCount++
	if success {
		st.errorCount = 0
	} else {
		st.errorCount++
		if st.errorCount >= p.maxErrors && !st.inCooldown {
			st.inCooldown = true
			st.cooldownUntil = p.clock().Add(p.errorCooldown)
			p.events.fireCooldownStart(id)
		}
	}
	p.events.fireCredentialUsed(id, success)
	p.updateHealthLocked(len(p.eligible(p.clock())))
}

func (p *Pool) updateHealthLocked(eligibleCount int) {
	var health PoolHealth
	switch {
	case eligibleCount >= p.minActive:
		health = PoolHealthy
	case eligibleCount > 0:
		health = PoolDegraded
	default:
		health = PoolUnhealthy
	}
	if health != p.lastHealth {
		p.lastHealth = health
		p.events.firePoolHealthChange(p.surfaceID, health)
	}
}

// ErrPoolExhausted is returned by GetNext when no eligible credential exists.
var ErrPoolExhausted = bentherr.New(bentherr.ServiceUnavailable, "credential: pool exhausted, no eligible credentials")
