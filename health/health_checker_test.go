package health

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/giygas/repertory-api/analysis"
	"github.com/giygas/repertory-api/repertory"
)

// MockHealthCaseStore for testing
type MockHealthCaseStore struct {
	count     int
	startTime time.Time
}

func (m *MockHealthCaseStore) Create() (string, *analysis.Case)      { return "", analysis.NewCase() }
func (m *MockHealthCaseStore) Get(id string) (*analysis.Case, error) { return nil, errors.New("not found") }
func (m *MockHealthCaseStore) Update(id string, fn func(c *analysis.Case) error) (*analysis.Case, error) {
	return nil, errors.New("not found")
}
func (m *MockHealthCaseStore) Delete(id string) error              { return nil }
func (m *MockHealthCaseStore) Len() int                            { return m.count }
func (m *MockHealthCaseStore) EvictIdle(maxIdle time.Duration) int { return 0 }
func (m *MockHealthCaseStore) GetServerStartTime() time.Time       { return m.startTime }

// MockSessionReporter for testing
type MockSessionReporter struct {
	snapshot repertory.SessionSnapshot
}

func (m *MockSessionReporter) Snapshot() repertory.SessionSnapshot {
	return m.snapshot
}

func TestHealthCheck(t *testing.T) {
	now := time.Now()

	testCases := []struct {
		name           string
		snapshot       repertory.SessionSnapshot
		expectedStatus string
		expectedKeys   []string
		absentKeys     []string
	}{
		{
			name:           "no session yet",
			snapshot:       repertory.SessionSnapshot{State: repertory.StateNoSession},
			expectedStatus: "healthy",
			absentKeys:     []string{"last_handshake", "session_expires_at", "last_handshake_error"},
		},
		{
			name: "valid session",
			snapshot: repertory.SessionSnapshot{
				State:         repertory.StateValid,
				LastHandshake: now.Add(-5 * time.Minute),
				ExpiresAt:     now.Add(15 * time.Minute),
			},
			expectedStatus: "healthy",
			expectedKeys:   []string{"last_handshake", "session_expires_at"},
			absentKeys:     []string{"last_handshake_error"},
		},
		{
			name: "handshake failing",
			snapshot: repertory.SessionSnapshot{
				State:         repertory.StateNoSession,
				LastHandshake: now.Add(-time.Minute),
				LastError:     &repertory.SessionError{Kind: repertory.KindPlaySessionMissing},
			},
			expectedStatus: "degraded",
			expectedKeys:   []string{"last_handshake", "last_handshake_error"},
			absentKeys:     []string{"session_expires_at"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			checker := NewHealthChecker(
				&MockHealthCaseStore{count: 4, startTime: now.Add(-time.Hour)},
				&MockSessionReporter{snapshot: tc.snapshot},
			)

			status, data, httpStatus := checker.HealthCheck()

			if status != tc.expectedStatus {
				t.Errorf("Expected status %s, got %s", tc.expectedStatus, status)
			}
			if httpStatus != http.StatusOK {
				t.Errorf("Expected HTTP 200, got %d", httpStatus)
			}
			if data["active_cases"] != 4 {
				t.Errorf("Expected active_cases 4, got %v", data["active_cases"])
			}
			if data["session_state"] != tc.snapshot.State.String() {
				t.Errorf("Expected session_state %s, got %v", tc.snapshot.State, data["session_state"])
			}
			if _, ok := data["uptime_seconds"]; !ok {
				t.Error("Expected uptime_seconds")
			}
			for _, key := range tc.expectedKeys {
				if _, ok := data[key]; !ok {
					t.Errorf("Expected key %s in health data", key)
				}
			}
			for _, key := range tc.absentKeys {
				if _, ok := data[key]; ok {
					t.Errorf("Did not expect key %s in health data", key)
				}
			}
		})
	}
}

func TestHealthCheckHidesTransportDetails(t *testing.T) {
	checker := NewHealthChecker(
		&MockHealthCaseStore{},
		&MockSessionReporter{snapshot: repertory.SessionSnapshot{
			State: repertory.StateNoSession,
			LastError: &repertory.SessionError{
				Kind: repertory.KindHandshakeFailed,
				Err:  errors.New("dial tcp 10.0.0.7:443: connection refused"),
			},
		}},
	)

	_, data, _ := checker.HealthCheck()

	if data["last_handshake_error"] != "handshake_failed" {
		t.Errorf("Expected handshake_failed, got %v", data["last_handshake_error"])
	}
	if _, ok := data["uptime_seconds"]; ok {
		t.Error("uptime_seconds should be omitted without a start time")
	}
}

func TestHandshakeErrorKindPlainError(t *testing.T) {
	if got := handshakeErrorKind(errors.New("boom")); got != "handshake_failed" {
		t.Errorf("Expected handshake_failed, got %s", got)
	}
}
