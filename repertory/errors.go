package repertory

import (
	"errors"
	"fmt"
)

// SessionErrorKind classifies handshake failures
type SessionErrorKind string

const (
	KindCsrfCookieMissing  SessionErrorKind = "csrf_cookie_missing"
	KindPlaySessionMissing SessionErrorKind = "play_session_missing"
	KindHandshakeFailed    SessionErrorKind = "handshake_failed"
)

// Sentinels for errors.Is; a *SessionError matches the one of its kind.
var (
	ErrCsrfCookieMissing  = errors.New("repertory: csrf cookie missing")
	ErrPlaySessionMissing = errors.New("repertory: PLAY_SESSION cookie missing")
	ErrHandshakeFailed    = errors.New("repertory: session handshake failed")

	// ErrUpstreamThrottled is returned when the outbound bucket stays empty
	// for longer than the configured wait.
	ErrUpstreamThrottled = errors.New("repertory: upstream request throttled")
)

// SessionError reports why a session could not be established
type SessionError struct {
	Kind SessionErrorKind
	Err  error // transport cause, only for KindHandshakeFailed
}

func (e *SessionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("repertory session: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("repertory session: %s", e.Kind)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

func (e *SessionError) Is(target error) bool {
	switch target {
	case ErrCsrfCookieMissing:
		return e.Kind == KindCsrfCookieMissing
	case ErrPlaySessionMissing:
		return e.Kind == KindPlaySessionMissing
	case ErrHandshakeFailed:
		return e.Kind == KindHandshakeFailed
	}
	return false
}

// UpstreamError is a response the upstream sent with an unusable status.
// It is distinct from an empty search result.
type UpstreamError struct {
	Status int
	Path   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("repertory upstream %s returned status %d", e.Path, e.Status)
}
