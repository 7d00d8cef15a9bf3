package account

import (
	"sync"
	"time"

	"github.com/bentham/bentham/internal/clock"
	"github.com/bentham/bentham/internal/scanloop"
)

// Sweeper periodically runs CleanupExpiredCheckouts in the background
// (spec §4.D "autoCleanup:true default"), mirroring the teacher's
// LeaseCleaner scan-loop idiom.
type Sweeper struct {
	manager     *Manager
	clock       clock.Clock
	stopCh      chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
	minInterval time.Duration
	jitterRange time.Duration

	sweepHook func()
}

// NewSweeper constructs a Sweeper for manager with the given scan cadence.
func NewSweeper(manager *Manager, now clock.Clock, minInterval, jitterRange time.Duration) *Sweeper {
	return &Sweeper{
		manager:     manager,
		clock:       now,
		stopCh:      make(chan struct{}),
		minInterval: minInterval,
		jitterRange: jitterRange,
	}
}

// Start runs the sweep loop in a background goroutine until Stop is called.
func (s *Sweeper) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		scanloop.Run(s.stopCh, s.minInterval, s.jitterRange, s.sweep)
	}()
}

// Stop signals the sweep loop to exit and waits for it to finish.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

func (s *Sweeper) sweep() {
	if s.sweepHook != nil {
		s.sweepHook()
	}
	s.manager.CleanupExpiredCheckouts(s.clock())
}
