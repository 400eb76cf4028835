// Package repertory bridges the API to an external OOREP-style repertory
// service. The upstream has no token API; it hands out a Play framework
// csrf cookie and a PLAY_SESSION cookie to anyone who loads its pages, and
// SessionManager replays that browser handshake.
package repertory

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/giygas/repertory-api/logging"
	"github.com/giygas/repertory-api/metrics"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultSessionTTL = 20 * time.Minute
	DefaultProbePath  = "/api/available_rems_and_reps"
	DefaultUserAgent  = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

	defaultHandshakeTimeout = 30 * time.Second

	htmlAccept = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	jsonAccept = "application/json"
)

// SessionState is the bridge's position in NO_SESSION → ESTABLISHING → VALID
type SessionState int

const (
	StateNoSession SessionState = iota
	StateEstablishing
	StateValid
)

func (s SessionState) String() string {
	switch s {
	case StateEstablishing:
		return "ESTABLISHING"
	case StateValid:
		return "VALID"
	default:
		return "NO_SESSION"
	}
}

// SessionConfig configures a SessionManager. Zero values pick defaults.
type SessionConfig struct {
	BaseURL    string
	ProbePath  string
	UserAgent  string
	TTL        time.Duration
	HTTPClient *http.Client
}

// SessionSnapshot is the health view of the bridge. It never carries cookies.
type SessionSnapshot struct {
	State         SessionState
	ExpiresAt     time.Time
	LastHandshake time.Time
	LastError     error
}

// SessionManager caches one upstream cookie session per process
type SessionManager struct {
	baseURL   string
	probePath string
	userAgent string
	ttl       time.Duration
	http      *http.Client

	mu            sync.RWMutex
	cookie        string
	expiresAt     time.Time
	establishing  bool
	lastHandshake time.Time
	lastErr       error

	group singleflight.Group
	now   func() time.Time
}

func NewSessionManager(cfg SessionConfig) *SessionManager {
	sm := &SessionManager{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		probePath: cfg.ProbePath,
		userAgent: cfg.UserAgent,
		ttl:       cfg.TTL,
		http:      cfg.HTTPClient,
		now:       time.Now,
	}
	if sm.probePath == "" {
		sm.probePath = DefaultProbePath
	}
	if sm.userAgent == "" {
		sm.userAgent = DefaultUserAgent
	}
	if sm.ttl <= 0 {
		sm.ttl = DefaultSessionTTL
	}
	if sm.http == nil {
		sm.http = &http.Client{Timeout: 30 * time.Second}
	}
	return sm
}

// Root is the upstream root URL, used as Referer on every call
func (sm *SessionManager) Root() string {
	return sm.baseURL + "/"
}

func (sm *SessionManager) UserAgent() string {
	return sm.userAgent
}

// Acquire returns a Cookie header value for the upstream, running the
// handshake when nothing valid is cached. Concurrent callers share one
// handshake.
func (sm *SessionManager) Acquire(ctx context.Context) (string, error) {
	if cookie, ok := sm.cached(); ok {
		return cookie, nil
	}

	ch := sm.group.DoChan("session", func() (any, error) {
		// another caller may have finished a handshake while we queued
		if cookie, ok := sm.cached(); ok {
			return cookie, nil
		}
		// the flight is shared, so no single caller's cancellation may end it
		hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sm.handshakeTimeout())
		defer cancel()
		return sm.establish(hctx)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (sm *SessionManager) handshakeTimeout() time.Duration {
	if sm.http.Timeout > 0 {
		return sm.http.Timeout
	}
	return defaultHandshakeTimeout
}

func (sm *SessionManager) cached() (string, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if sm.cookie != "" && sm.now().Before(sm.expiresAt) {
		return sm.cookie, true
	}
	return "", false
}

// Invalidate drops the cached session; the next Acquire handshakes again
func (sm *SessionManager) Invalidate() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.cookie = ""
	sm.expiresAt = time.Time{}
}

func (sm *SessionManager) State() SessionState {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.stateLocked()
}

func (sm *SessionManager) stateLocked() SessionState {
	if sm.establishing {
		return StateEstablishing
	}
	if sm.cookie != "" && sm.now().Before(sm.expiresAt) {
		return StateValid
	}
	return StateNoSession
}

func (sm *SessionManager) Snapshot() SessionSnapshot {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	return SessionSnapshot{
		State:         sm.stateLocked(),
		ExpiresAt:     sm.expiresAt,
		LastHandshake: sm.lastHandshake,
		LastError:     sm.lastErr,
	}
}

func (sm *SessionManager) establish(ctx context.Context) (string, error) {
	sm.mu.Lock()
	sm.establishing = true
	sm.mu.Unlock()

	start := sm.now()
	cookie, err := sm.handshake(ctx)

	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.establishing = false
	sm.lastHandshake = start
	sm.lastErr = err

	if err != nil {
		sm.cookie = ""
		sm.expiresAt = time.Time{}
		kind := KindHandshakeFailed
		if se, ok := err.(*SessionError); ok {
			kind = se.Kind
		}
		metrics.RepertoryHandshakes.WithLabelValues(string(kind)).Inc()
		logging.Warn("repertory_handshake_failed", "kind", string(kind), "error", err)
		return "", err
	}

	sm.cookie = cookie
	sm.expiresAt = sm.now().Add(sm.ttl)
	metrics.RepertoryHandshakes.WithLabelValues("ok").Inc()
	logging.Info("repertory_handshake_ok",
		"expires_at", sm.expiresAt.Format(time.RFC3339),
		"duration_ms", sm.now().Sub(start).Milliseconds(),
	)
	return cookie, nil
}

// handshake loads the landing page for the csrf cookie, then the probe
// endpoint for PLAY_SESSION.
func (sm *SessionManager) handshake(ctx context.Context) (string, error) {
	jar, err := sm.collect(ctx, sm.Root(), htmlAccept, "")
	if err != nil {
		return "", &SessionError{Kind: KindHandshakeFailed, Err: err}
	}
	if !jar.hasCSRF() {
		return "", &SessionError{Kind: KindCsrfCookieMissing}
	}

	probe, err := sm.collect(ctx, sm.baseURL+sm.probePath, jsonAccept, jar.header())
	if err != nil {
		return "", &SessionError{Kind: KindHandshakeFailed, Err: err}
	}
	jar.merge(probe)

	if _, ok := jar.get("PLAY_SESSION"); !ok {
		return "", &SessionError{Kind: KindPlaySessionMissing}
	}
	return jar.header(), nil
}

// collect issues one handshake GET and returns the cookies it set. The status
// code is not checked; only the cookies decide the outcome.
func (sm *SessionManager) collect(ctx context.Context, url, accept, cookie string) (*cookieJar, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", sm.userAgent)
	req.Header.Set("Accept", accept)
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
		req.Header.Set("Referer", sm.Root())
	}

	resp, err := sm.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return parseSetCookie(resp.Header.Values("Set-Cookie")), nil
}
