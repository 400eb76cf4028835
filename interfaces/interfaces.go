// Package interfaces defines core abstractions for the repertory API
// to improve testability, maintainability, and separation of concerns.
package interfaces

import (
	"context"
	"net/http"
	"time"

	"github.com/giygas/repertory-api/analysis"
	"github.com/giygas/repertory-api/repertory"
	"github.com/giygas/repertory-api/repertory/entities"
)

// RepertorySearcher runs rubric lookups against the upstream repertory.
// Implemented by *repertory.Client.
type RepertorySearcher interface {
	Search(ctx context.Context, query entities.SearchQuery) (*entities.SearchResult, error)
}

// SessionReporter exposes the upstream session state without its cookies
type SessionReporter interface {
	Snapshot() repertory.SessionSnapshot
}

// CaseStore defines the contract for the in-memory analysis working sets.
// Cases returned by Create and Get are copies; mutations go through Update
// so that each case is changed by one caller at a time.
type CaseStore interface {
	Create() (string, *analysis.Case)
	Get(id string) (*analysis.Case, error)
	Update(id string, fn func(c *analysis.Case) error) (*analysis.Case, error)
	Delete(id string) error
	Len() int

	// EvictIdle drops cases untouched for longer than maxIdle and returns
	// how many were removed
	EvictIdle(maxIdle time.Duration) int

	GetServerStartTime() time.Time
}

// Scheduler defines the contract for background jobs
type Scheduler interface {
	// Lifecycle management
	Start() error
	Stop()
}

// HTTPHandler defines the contract for HTTP request handlers.
// It provides a consistent interface for all API endpoints.
type HTTPHandler interface {
	SearchRubrics(w http.ResponseWriter, r *http.Request)

	// Working set handlers
	CreateCase(w http.ResponseWriter, r *http.Request)
	GetCase(w http.ResponseWriter, r *http.Request)
	DeleteCase(w http.ResponseWriter, r *http.Request)
	AddRubric(w http.ResponseWriter, r *http.Request)
	ClearRubrics(w http.ResponseWriter, r *http.Request)
	RemoveRubric(w http.ResponseWriter, r *http.Request)
	SetImportance(w http.ResponseWriter, r *http.Request)
	GetRanking(w http.ResponseWriter, r *http.Request)
	ExportSheet(w http.ResponseWriter, r *http.Request)

	HealthCheck(w http.ResponseWriter, r *http.Request)
}

// HealthChecker defines the contract for health check functionality.
// It provides system health monitoring and reporting.
type HealthChecker interface {
	// HealthCheck returns current system health status
	HealthCheck() (status string, details map[string]any, httpStatus int)
}

// InputValidator defines the contract for request input validation
type InputValidator interface {
	// ValidateInput validates a free-text symptom query
	ValidateInput(input string) error

	ValidateRepertory(abbrev string) error

	// ValidateMinWeight parses and checks a minWeight parameter; empty means 1
	ValidateMinWeight(input string) (int, error)

	// ValidatePage parses and checks a zero-based page; empty means 0
	ValidatePage(input string) (int, error)

	// NormalizeRemedyFilter checks a remedy filter and returns its NFC form
	NormalizeRemedyFilter(input string) (string, error)

	ValidateCaseID(input string) error
	ValidateRubricID(input string) error
	ValidateImportance(importance int) error
}
