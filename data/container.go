// Package data provides thread-safe in-memory storage for analysis working
// sets. Cases are never persisted; they live until deleted or evicted idle.
package data

import (
	"crypto/rand"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/giygas/repertory-api/analysis"
	"github.com/giygas/repertory-api/interfaces"
	"github.com/giygas/repertory-api/logging"
	"github.com/giygas/repertory-api/metrics"
	"github.com/oklog/ulid/v2"
)

// Compile-time check to ensure CaseContainer implements CaseStore
var _ interfaces.CaseStore = (*CaseContainer)(nil)

var ErrCaseNotFound = errors.New("case not found")

type caseEntry struct {
	c        *analysis.Case
	lastUsed time.Time
}

// CaseContainer holds working sets keyed by ULID
type CaseContainer struct {
	mu              sync.Mutex
	cases           map[string]*caseEntry
	entropy         *ulid.MonotonicEntropy
	serverStartTime atomic.Value // time.Time
	now             func() time.Time
}

// NewCaseContainer creates an empty CaseContainer
func NewCaseContainer() *CaseContainer {
	cc := &CaseContainer{
		cases:   make(map[string]*caseEntry),
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}
	cc.serverStartTime.Store(time.Time{})
	return cc
}

// Create registers an empty working set and returns its id with a copy
func (cc *CaseContainer) Create() (string, *analysis.Case) {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	now := cc.now()
	id := ulid.MustNew(ulid.Timestamp(now), cc.entropy).String()
	c := analysis.NewCase()
	cc.cases[id] = &caseEntry{c: c, lastUsed: now}
	metrics.ActiveCases.Set(float64(len(cc.cases)))

	return id, c.Clone()
}

// Get returns a copy of the case; reading it counts as use
func (cc *CaseContainer) Get(id string) (*analysis.Case, error) {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	entry, ok := cc.cases[id]
	if !ok {
		return nil, ErrCaseNotFound
	}
	entry.lastUsed = cc.now()
	return entry.c.Clone(), nil
}

// Update runs fn on the stored case while holding the store lock and
// returns a copy of the result. fn's error is passed through unchanged.
func (cc *CaseContainer) Update(id string, fn func(c *analysis.Case) error) (*analysis.Case, error) {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	entry, ok := cc.cases[id]
	if !ok {
		return nil, ErrCaseNotFound
	}
	entry.lastUsed = cc.now()

	if err := fn(entry.c); err != nil {
		return entry.c.Clone(), err
	}
	return entry.c.Clone(), nil
}

func (cc *CaseContainer) Delete(id string) error {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	if _, ok := cc.cases[id]; !ok {
		return ErrCaseNotFound
	}
	delete(cc.cases, id)
	metrics.ActiveCases.Set(float64(len(cc.cases)))
	return nil
}

func (cc *CaseContainer) Len() int {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return len(cc.cases)
}

// EvictIdle removes cases not used within maxIdle
func (cc *CaseContainer) EvictIdle(maxIdle time.Duration) int {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	cutoff := cc.now().Add(-maxIdle)
	evicted := 0
	for id, entry := range cc.cases {
		if entry.lastUsed.Before(cutoff) {
			delete(cc.cases, id)
			evicted++
		}
	}
	metrics.ActiveCases.Set(float64(len(cc.cases)))

	if evicted > 0 {
		logging.Info("Evicted idle cases", "evicted", evicted, "remaining", len(cc.cases))
	}
	return evicted
}

// SetServerStartTime sets the server start time
func (cc *CaseContainer) SetServerStartTime(startTime time.Time) {
	cc.serverStartTime.Store(startTime)
}

// GetServerStartTime returns the server start time
func (cc *CaseContainer) GetServerStartTime() time.Time {
	if v := cc.serverStartTime.Load(); v != nil {
		if startTime, ok := v.(time.Time); ok {
			return startTime
		}
	}

	logging.Warn("Could not get the server start time value")
	return time.Time{}
}
