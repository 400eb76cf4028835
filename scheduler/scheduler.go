// Package scheduler runs the background maintenance of the repertory API:
// evicting idle working sets and watching the upstream session. The session
// itself is only refreshed lazily by the next request, never by a timer.
package scheduler

import (
	"fmt"
	"time"

	"github.com/giygas/repertory-api/interfaces"
	"github.com/giygas/repertory-api/logging"
	"github.com/giygas/repertory-api/metrics"
	"github.com/giygas/repertory-api/repertory"
	"github.com/go-co-op/gocron"
)

// Compile-time check to ensure Scheduler implements Scheduler interface
var _ interfaces.Scheduler = (*Scheduler)(nil)

// Scheduler sweeps idle cases on a fixed interval using dependency injection
type Scheduler struct {
	store      interfaces.CaseStore
	session    interfaces.SessionReporter
	idleTTL    time.Duration
	sweepEvery int
	scheduler  *gocron.Scheduler
}

// NewScheduler creates a new scheduler instance with injected dependencies.
// sweepMinutes is the interval between sweeps; idleTTL is how long a case may
// go unused before it is dropped.
func NewScheduler(store interfaces.CaseStore, session interfaces.SessionReporter, idleTTL time.Duration, sweepMinutes int) *Scheduler {
	if sweepMinutes < 1 {
		sweepMinutes = 1
	}
	return &Scheduler{
		store:      store,
		session:    session,
		idleTTL:    idleTTL,
		sweepEvery: sweepMinutes,
		scheduler:  gocron.NewScheduler(time.Local),
	}
}

// Start schedules the sweep and starts the scheduler in the background
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Every(s.sweepEvery).Minutes().Do(s.sweep)
	if err != nil {
		logging.Error("Failed to schedule case sweep", "error", err)
		return fmt.Errorf("failed to schedule case sweep: %w", err)
	}

	s.scheduler.StartAsync()
	logging.Info("Scheduler started", "sweep_minutes", s.sweepEvery, "case_idle_ttl", s.idleTTL.String())

	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) sweep() {
	evicted := s.store.EvictIdle(s.idleTTL)
	active := s.store.Len()
	metrics.ActiveCases.Set(float64(active))

	logging.Debug("Case sweep completed", "evicted", evicted, "active_cases", active)

	s.checkSession()
}

// checkSession warns when the last handshake failed and no valid session is
// cached
func (s *Scheduler) checkSession() bool {
	if s.session == nil {
		return true
	}

	snap := s.session.Snapshot()
	if snap.LastError == nil || snap.State == repertory.StateValid {
		return true
	}

	logging.Warn("Repertory session has been failing",
		"last_handshake", snap.LastHandshake.Format(time.RFC3339),
		"error", snap.LastError,
	)
	return false
}
