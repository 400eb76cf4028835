package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/giygas/repertory-api/data"
	"github.com/giygas/repertory-api/repertory/entities"
	"github.com/giygas/repertory-api/validation"
	"github.com/go-chi/chi/v5"
)

// ============================================================================
// TEST DATA FACTORY
// ============================================================================

// TestDataFactory creates consistent test data across all tests
type TestDataFactory struct{}

func NewTestDataFactory() *TestDataFactory {
	return &TestDataFactory{}
}

// CreateRubric creates a rubric with the given remedies as abbrev:weight pairs
func (f *TestDataFactory) CreateRubric(id, path string, remedies map[string]int) entities.Rubric {
	rubric := entities.Rubric{
		ID:        entities.RubricID(id),
		Repertory: "kent",
		FullPath:  path,
	}
	for abbrev, weight := range remedies {
		rubric.WeightedRemedies = append(rubric.WeightedRemedies, entities.WeightedRemedy{
			Remedy: entities.Remedy{NameAbbrev: abbrev, NameLong: abbrev + " long"},
			Weight: weight,
		})
	}
	return rubric
}

// RubricJSON returns the rubric as an upstream-shaped JSON body
func (f *TestDataFactory) RubricJSON(t *testing.T, rubric entities.Rubric) string {
	t.Helper()
	body, err := json.Marshal(rubric)
	if err != nil {
		t.Fatalf("marshal rubric: %v", err)
	}
	return string(body)
}

// ============================================================================
// MOCKS
// ============================================================================

// MockSearcher implements interfaces.RepertorySearcher
type MockSearcher struct {
	mu        sync.Mutex
	result    *entities.SearchResult
	err       error
	lastQuery entities.SearchQuery
	calls     int
}

func (m *MockSearcher) Search(ctx context.Context, query entities.SearchQuery) (*entities.SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastQuery = query
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

// MockSearcherBuilder provides fluent interface for building mock searchers
type MockSearcherBuilder struct {
	searcher *MockSearcher
}

func NewMockSearcherBuilder() *MockSearcherBuilder {
	return &MockSearcherBuilder{
		searcher: &MockSearcher{
			result: &entities.SearchResult{Results: []entities.Rubric{}},
		},
	}
}

func (b *MockSearcherBuilder) WithRubrics(rubrics ...entities.Rubric) *MockSearcherBuilder {
	b.searcher.result = &entities.SearchResult{Results: rubrics, TotalResults: len(rubrics)}
	return b
}

func (b *MockSearcherBuilder) WithError(err error) *MockSearcherBuilder {
	b.searcher.err = err
	return b
}

func (b *MockSearcherBuilder) Build() *MockSearcher {
	return b.searcher
}

// MockHealthChecker implements interfaces.HealthChecker
type MockHealthChecker struct {
	status  string
	details map[string]any
	code    int
}

func (m *MockHealthChecker) HealthCheck() (string, map[string]any, int) {
	return m.status, m.details, m.code
}

// ============================================================================
// HTTP TEST HELPER
// ============================================================================

// HTTPTestHelper wires a handler with a real case store and validator behind
// the same routes the server uses
type HTTPTestHelper struct {
	t        *testing.T
	searcher *MockSearcher
	store    *data.CaseContainer
	handler  *HTTPHandlerImpl
	router   chi.Router
}

func NewHTTPTestHelper(t *testing.T, searcher *MockSearcher) *HTTPTestHelper {
	if searcher == nil {
		searcher = NewMockSearcherBuilder().Build()
	}
	store := data.NewCaseContainer()
	health := &MockHealthChecker{status: "healthy", details: map[string]any{"active_cases": 0}, code: http.StatusOK}
	handler := NewHTTPHandler(searcher, store, validation.NewInputValidator(), health).(*HTTPHandlerImpl)

	router := chi.NewRouter()
	router.Get("/health", handler.HealthCheck)
	router.Get("/api/repertory/search", handler.SearchRubrics)
	router.Post("/api/cases", handler.CreateCase)
	router.Get("/api/cases/{caseID}", handler.GetCase)
	router.Delete("/api/cases/{caseID}", handler.DeleteCase)
	router.Post("/api/cases/{caseID}/rubrics", handler.AddRubric)
	router.Delete("/api/cases/{caseID}/rubrics", handler.ClearRubrics)
	router.Delete("/api/cases/{caseID}/rubrics/{rubricID}", handler.RemoveRubric)
	router.Put("/api/cases/{caseID}/rubrics/{rubricID}/importance", handler.SetImportance)
	router.Get("/api/cases/{caseID}/ranking", handler.GetRanking)
	router.Get("/api/cases/{caseID}/sheet", handler.ExportSheet)

	return &HTTPTestHelper{t: t, searcher: searcher, store: store, handler: handler, router: router}
}

// Do executes a request against the test router
func (h *HTTPTestHelper) Do(method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rr := httptest.NewRecorder()
	h.router.ServeHTTP(rr, req)
	return rr
}

// CreateCase creates a case through the API and returns its id
func (h *HTTPTestHelper) CreateCase() string {
	h.t.Helper()
	rr := h.Do(http.MethodPost, "/api/cases", "")
	var resp map[string]string
	h.AssertJSONResponse(rr, http.StatusCreated, &resp)
	return resp["id"]
}

// AddRubric adds a rubric to a case through the API
func (h *HTTPTestHelper) AddRubric(caseID string, rubric entities.Rubric) *httptest.ResponseRecorder {
	h.t.Helper()
	return h.Do(http.MethodPost, "/api/cases/"+caseID+"/rubrics", NewTestDataFactory().RubricJSON(h.t, rubric))
}

// AssertJSONResponse asserts that response contains valid JSON with expected status
func (h *HTTPTestHelper) AssertJSONResponse(resp *httptest.ResponseRecorder, expectedStatus int, target any) {
	h.t.Helper()
	if resp.Code != expectedStatus {
		h.t.Errorf("Expected status %d, got %d: %s", expectedStatus, resp.Code, resp.Body.String())
	}

	bodyStr := resp.Body.String()
	if bodyStr == "" {
		h.t.Error("Response body should not be empty")
	}

	if err := json.Unmarshal([]byte(bodyStr), target); err != nil {
		h.t.Errorf("Response should be valid JSON, got error: %v", err)
	}
}

// AssertErrorResponse asserts that response contains an error with expected status
func (h *HTTPTestHelper) AssertErrorResponse(resp *httptest.ResponseRecorder, expectedStatus int) map[string]any {
	h.t.Helper()
	if resp.Code != expectedStatus {
		h.t.Errorf("Expected status %d, got %d: %s", expectedStatus, resp.Code, resp.Body.String())
	}

	var errorResp map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &errorResp); err != nil {
		h.t.Errorf("Error response should be valid JSON, got error: %v", err)
	}

	if _, ok := errorResp["message"]; !ok {
		h.t.Error("Error response should have message field")
	}
	if errorResp["code"] != float64(expectedStatus) {
		h.t.Errorf("Error response code should be %d, got %v", expectedStatus, errorResp["code"])
	}
	if errorResp["error"] != http.StatusText(expectedStatus) {
		h.t.Errorf("Error response error should be %q, got %v", http.StatusText(expectedStatus), errorResp["error"])
	}
	return errorResp
}
