package scheduler

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/giygas/repertory-api/analysis"
	"github.com/giygas/repertory-api/data"
	"github.com/giygas/repertory-api/logging"
	"github.com/giygas/repertory-api/repertory"
)

// mockSchedulerCaseStore records sweep calls
type mockSchedulerCaseStore struct {
	mu          sync.Mutex
	count       int
	evictCalls  int
	evictReturn int
	lastMaxIdle time.Duration
}

func (m *mockSchedulerCaseStore) Create() (string, *analysis.Case) { return "", analysis.NewCase() }
func (m *mockSchedulerCaseStore) Get(id string) (*analysis.Case, error) {
	return nil, data.ErrCaseNotFound
}
func (m *mockSchedulerCaseStore) Update(id string, fn func(c *analysis.Case) error) (*analysis.Case, error) {
	return nil, data.ErrCaseNotFound
}
func (m *mockSchedulerCaseStore) Delete(id string) error { return nil }

func (m *mockSchedulerCaseStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

func (m *mockSchedulerCaseStore) EvictIdle(maxIdle time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictCalls++
	m.lastMaxIdle = maxIdle
	m.count -= m.evictReturn
	return m.evictReturn
}

func (m *mockSchedulerCaseStore) GetServerStartTime() time.Time { return time.Time{} }

func (m *mockSchedulerCaseStore) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.evictCalls
}

type mockSessionReporter struct {
	snapshot repertory.SessionSnapshot
}

func (m *mockSessionReporter) Snapshot() repertory.SessionSnapshot { return m.snapshot }

func TestScheduler_SweepEvictsIdleCases(t *testing.T) {
	logging.InitLogger("")

	store := &mockSchedulerCaseStore{count: 5, evictReturn: 2}
	s := NewScheduler(store, &mockSessionReporter{}, 4*time.Hour, 15)

	s.sweep()

	if store.calls() != 1 {
		t.Errorf("Expected 1 EvictIdle call, got %d", store.calls())
	}
	if store.lastMaxIdle != 4*time.Hour {
		t.Errorf("Expected max idle 4h, got %s", store.lastMaxIdle)
	}
	if store.Len() != 3 {
		t.Errorf("Expected 3 remaining cases, got %d", store.Len())
	}
}

func TestScheduler_SweepWithRealStore(t *testing.T) {
	logging.InitLogger("")

	store := data.NewCaseContainer()
	store.Create()
	store.Create()

	// zero idle TTL drops every case created before the sweep
	time.Sleep(2 * time.Millisecond)
	s := NewScheduler(store, nil, 0, 1)
	s.sweep()

	if store.Len() != 0 {
		t.Errorf("Expected all cases evicted, got %d", store.Len())
	}
}

func TestScheduler_CheckSession(t *testing.T) {
	testCases := []struct {
		name     string
		snapshot repertory.SessionSnapshot
		healthy  bool
	}{
		{"never connected", repertory.SessionSnapshot{State: repertory.StateNoSession}, true},
		{"valid", repertory.SessionSnapshot{State: repertory.StateValid}, true},
		{"failing", repertory.SessionSnapshot{
			State:     repertory.StateNoSession,
			LastError: errors.New("handshake failed"),
		}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewScheduler(&mockSchedulerCaseStore{}, &mockSessionReporter{snapshot: tc.snapshot}, time.Hour, 15)
			if got := s.checkSession(); got != tc.healthy {
				t.Errorf("checkSession() = %v, want %v", got, tc.healthy)
			}
		})
	}
}

func TestScheduler_StartRunsSweep(t *testing.T) {
	logging.InitLogger("")

	store := &mockSchedulerCaseStore{}
	s := NewScheduler(store, &mockSessionReporter{}, time.Hour, 1)

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	// gocron runs a new interval job immediately on start
	deadline := time.Now().Add(2 * time.Second)
	for store.calls() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if store.calls() == 0 {
		t.Error("Expected the sweep to run after Start")
	}
}

func TestNewScheduler_ClampsInterval(t *testing.T) {
	s := NewScheduler(&mockSchedulerCaseStore{}, nil, time.Hour, 0)
	if s.sweepEvery != 1 {
		t.Errorf("Expected sweep interval clamped to 1, got %d", s.sweepEvery)
	}
}
