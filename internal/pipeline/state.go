package pipeline

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/amishk599/jobsift/internal/model"
)

// Status is a point-in-time view of the run gate.
type Status struct {
	Running bool
	Since   time.Time  // start of the in-flight run, zero when idle
	LastRun *model.Run // most recent finished run in this process
}

// RunState is the process-wide single-flight gate plus the last-run cache.
// It is owned by the Orchestrator; nothing else flips the gate.
type RunState struct {
	running atomic.Bool
	now     func() time.Time

	mu      sync.Mutex
	since   time.Time
	lastRun *model.Run
}

// NewRunState creates an idle gate. now may be nil to use the wall clock.
func NewRunState(now func() time.Time) *RunState {
	if now == nil {
		now = time.Now
	}
	return &RunState{now: now}
}

// TryAcquire closes the gate. It reports false, without blocking, when a run
// is already in flight.
func (s *RunState) TryAcquire() bool {
	if !s.running.CompareAndSwap(false, true) {
		return false
	}
	s.mu.Lock()
	s.since = s.now()
	s.mu.Unlock()
	return true
}

// Release opens the gate and caches last when it is non-nil.
func (s *RunState) Release(last *model.Run) {
	s.mu.Lock()
	if last != nil {
		r := *last
		s.lastRun = &r
	}
	s.since = time.Time{}
	s.mu.Unlock()
	s.running.Store(false)
}

// Running reports whether a run is in flight.
func (s *RunState) Running() bool {
	return s.running.Load()
}

// LastRun returns the most recently finished run, if any.
func (s *RunState) LastRun() (model.Run, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastRun == nil {
		return model.Run{}, false
	}
	return *s.lastRun, true
}

// Snapshot returns the current gate status.
func (s *RunState) Snapshot() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{Running: s.running.Load(), Since: s.since}
	if s.lastRun != nil {
		r := *s.lastRun
		st.LastRun = &r
	}
	return st
}
