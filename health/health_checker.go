// Package health provides health checking functionality for the repertory API.
package health

import (
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/giygas/repertory-api/interfaces"
	"github.com/giygas/repertory-api/repertory"
)

// HealthCheckerImpl implements the interfaces.HealthChecker interface
type HealthCheckerImpl struct {
	store   interfaces.CaseStore
	session interfaces.SessionReporter
}

// NewHealthChecker creates a new health checker with injected dependencies
func NewHealthChecker(store interfaces.CaseStore, session interfaces.SessionReporter) interfaces.HealthChecker {
	return &HealthCheckerImpl{
		store:   store,
		session: session,
	}
}

// HealthCheck reports the upstream session and the working sets held.
// A failing upstream only degrades the service: working sets and rankings
// keep working without it, so the status code stays 200.
func (h *HealthCheckerImpl) HealthCheck() (status string, data map[string]any, httpStatus int) {
	snap := h.session.Snapshot()

	switch {
	case snap.LastError != nil && snap.State != repertory.StateValid:
		status = "degraded"
	default:
		status = "healthy"
	}
	httpStatus = http.StatusOK

	data = map[string]any{
		"active_cases":  h.store.Len(),
		"session_state": snap.State.String(),
	}

	if startTime := h.store.GetServerStartTime(); !startTime.IsZero() {
		data["uptime_seconds"] = math.Round(time.Since(startTime).Seconds())
	}
	if !snap.LastHandshake.IsZero() {
		data["last_handshake"] = snap.LastHandshake.Format(time.RFC3339)
	}
	if snap.State == repertory.StateValid {
		data["session_expires_at"] = snap.ExpiresAt.Format(time.RFC3339)
	}
	if snap.LastError != nil {
		data["last_handshake_error"] = handshakeErrorKind(snap.LastError)
	}

	return status, data, httpStatus
}

// handshakeErrorKind keeps transport details (hosts, addresses) out of the
// public health payload
func handshakeErrorKind(err error) string {
	var se *repertory.SessionError
	if errors.As(err, &se) {
		return string(se.Kind)
	}
	return string(repertory.KindHandshakeFailed)
}
