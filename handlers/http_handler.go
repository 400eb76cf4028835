// Package handlers provides HTTP request handlers for the repertory API endpoints.
// This file implements the HTTPHandler interface with dependency injection.
package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/giygas/repertory-api/analysis"
	"github.com/giygas/repertory-api/data"
	"github.com/giygas/repertory-api/interfaces"
	"github.com/giygas/repertory-api/logging"
	"github.com/giygas/repertory-api/repertory"
	"github.com/giygas/repertory-api/repertory/entities"
	"github.com/go-chi/chi/v5"
)

// DefaultRepertory is searched when the request names none
const DefaultRepertory = "publicum"

// Compile-time check to ensure HTTPHandlerImpl implements HTTPHandler
var _ interfaces.HTTPHandler = (*HTTPHandlerImpl)(nil)

// HTTPHandlerImpl implements the interfaces.HTTPHandler interface
type HTTPHandlerImpl struct {
	searcher  interfaces.RepertorySearcher
	store     interfaces.CaseStore
	validator interfaces.InputValidator
	health    interfaces.HealthChecker
}

// NewHTTPHandler creates a new HTTP handler with injected dependencies
func NewHTTPHandler(searcher interfaces.RepertorySearcher, store interfaces.CaseStore,
	validator interfaces.InputValidator, health interfaces.HealthChecker) interfaces.HTTPHandler {
	return &HTTPHandlerImpl{
		searcher:  searcher,
		store:     store,
		validator: validator,
		health:    health,
	}
}

// HealthResponse defines the structure for consistent JSON ordering
type HealthResponse struct {
	Status string         `json:"status"`
	Data   map[string]any `json:"data"`
	System map[string]any `json:"system"`
}

// CaseResponse is a working set with its current differential
type CaseResponse struct {
	ID      string                    `json:"id"`
	Rubrics []analysis.SelectedRubric `json:"rubrics"`
	Ranking analysis.Ranking          `json:"ranking"`
}

type importanceRequest struct {
	Importance *int `json:"importance"`
}

// RespondWithJSON writes a JSON response
func (h *HTTPHandlerImpl) RespondWithJSON(w http.ResponseWriter, code int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	w.Write(data)
}

// RespondWithError writes a JSON error response
func (h *HTTPHandlerImpl) RespondWithError(w http.ResponseWriter, code int, message string) {
	errorResponse := map[string]any{
		"error":   http.StatusText(code),
		"message": message,
		"code":    code,
	}
	h.RespondWithJSON(w, code, errorResponse)
}

// respondWithCaseError maps store and working set errors to a status code
func (h *HTTPHandlerImpl) respondWithCaseError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, data.ErrCaseNotFound):
		h.RespondWithError(w, http.StatusNotFound, "Case not found")
	case errors.Is(err, analysis.ErrInvalidImportance):
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
	default:
		logging.Error("Case operation failed", "error", err)
		h.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// caseID returns the validated {caseID} URL parameter, or writes a 400
func (h *HTTPHandlerImpl) caseID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "caseID")
	if err := h.validator.ValidateCaseID(id); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, "Invalid case id")
		return "", false
	}
	return id, true
}

func (h *HTTPHandlerImpl) rubricID(w http.ResponseWriter, r *http.Request) (entities.RubricID, bool) {
	id := chi.URLParam(r, "rubricID")
	if err := h.validator.ValidateRubricID(id); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, "Invalid rubric id")
		return "", false
	}
	return entities.RubricID(id), true
}

// SearchRubrics proxies a repertory lookup to the upstream service
func (h *HTTPHandlerImpl) SearchRubrics(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	symptom := params.Get("q")
	if err := h.validator.ValidateInput(symptom); err != nil {
		logging.Warn("Unusual user input", "q", symptom)
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	rep := params.Get("repertory")
	if rep == "" {
		rep = DefaultRepertory
	}
	if err := h.validator.ValidateRepertory(rep); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	minWeight, err := h.validator.ValidateMinWeight(params.Get("minWeight"))
	if err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := h.validator.ValidatePage(params.Get("page"))
	if err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	remedy, err := h.validator.NormalizeRemedyFilter(params.Get("remedy"))
	if err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	includeRemedies := false
	if raw := params.Get("remedies"); raw != "" {
		includeRemedies, err = strconv.ParseBool(raw)
		if err != nil {
			h.RespondWithError(w, http.StatusBadRequest, "remedies must be true or false")
			return
		}
	}

	result, err := h.searcher.Search(r.Context(), entities.SearchQuery{
		Symptom:         symptom,
		Repertory:       rep,
		Page:            page,
		MinWeight:       minWeight,
		RemedyFilter:    remedy,
		IncludeRemedies: includeRemedies,
	})
	if err != nil {
		h.respondWithSearchError(w, err)
		return
	}

	// Always return 200 with results array (empty if no matches)
	h.RespondWithJSON(w, http.StatusOK, result)
}

func (h *HTTPHandlerImpl) respondWithSearchError(w http.ResponseWriter, err error) {
	var sessionErr *repertory.SessionError
	var upstreamErr *repertory.UpstreamError

	switch {
	case errors.As(err, &sessionErr):
		logging.Warn("Repertory session unavailable", "kind", string(sessionErr.Kind))
		h.RespondWithError(w, http.StatusServiceUnavailable, "search temporarily unavailable")
	case errors.Is(err, repertory.ErrUpstreamThrottled):
		logging.Warn("Repertory upstream throttled")
		h.RespondWithError(w, http.StatusServiceUnavailable, "search temporarily unavailable")
	case errors.As(err, &upstreamErr):
		logging.Error("Repertory upstream error", "status", upstreamErr.Status)
		h.RespondWithError(w, http.StatusBadGateway, "repertory service error")
	default:
		logging.Error("Repertory search failed", "error", err)
		h.RespondWithError(w, http.StatusBadGateway, "repertory service error")
	}
}

// CreateCase starts an empty working set
func (h *HTTPHandlerImpl) CreateCase(w http.ResponseWriter, r *http.Request) {
	id, _ := h.store.Create()
	w.Header().Set("Location", "/api/cases/"+id)
	h.RespondWithJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// GetCase returns the selected rubrics and the current ranking
func (h *HTTPHandlerImpl) GetCase(w http.ResponseWriter, r *http.Request) {
	id, ok := h.caseID(w, r)
	if !ok {
		return
	}

	c, err := h.store.Get(id)
	if err != nil {
		h.respondWithCaseError(w, err)
		return
	}

	h.RespondWithJSON(w, http.StatusOK, CaseResponse{
		ID:      id,
		Rubrics: c.Rubrics(),
		Ranking: c.Ranking(),
	})
}

func (h *HTTPHandlerImpl) DeleteCase(w http.ResponseWriter, r *http.Request) {
	id, ok := h.caseID(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(id); err != nil {
		h.respondWithCaseError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddRubric adds the rubric in the request body. Adding a rubric already in
// the case succeeds with added=false and keeps its importance.
func (h *HTTPHandlerImpl) AddRubric(w http.ResponseWriter, r *http.Request) {
	id, ok := h.caseID(w, r)
	if !ok {
		return
	}

	var rubric entities.Rubric
	if err := json.NewDecoder(r.Body).Decode(&rubric); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, "Invalid rubric JSON")
		return
	}
	if err := h.validateRubric(rubric); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	var added bool
	c, err := h.store.Update(id, func(c *analysis.Case) error {
		added = c.Add(rubric)
		return nil
	})
	if err != nil {
		h.respondWithCaseError(w, err)
		return
	}

	h.RespondWithJSON(w, http.StatusOK, map[string]any{
		"added":       added,
		"rubricCount": c.Len(),
	})
}

func (h *HTTPHandlerImpl) validateRubric(rubric entities.Rubric) error {
	if err := h.validator.ValidateRubricID(string(rubric.ID)); err != nil {
		return err
	}
	if strings.TrimSpace(rubric.FullPath) == "" {
		return fmt.Errorf("rubric fullPath cannot be empty")
	}
	for _, wr := range rubric.WeightedRemedies {
		if wr.Weight < 1 || wr.Weight > 5 {
			return fmt.Errorf("remedy weight must be between 1 and 5, got %d", wr.Weight)
		}
	}
	return nil
}

func (h *HTTPHandlerImpl) ClearRubrics(w http.ResponseWriter, r *http.Request) {
	id, ok := h.caseID(w, r)
	if !ok {
		return
	}

	_, err := h.store.Update(id, func(c *analysis.Case) error {
		c.Clear()
		return nil
	})
	if err != nil {
		h.respondWithCaseError(w, err)
		return
	}

	h.RespondWithJSON(w, http.StatusOK, map[string]any{"rubricCount": 0})
}

// RemoveRubric drops one rubric; removing an absent rubric is a no-op
func (h *HTTPHandlerImpl) RemoveRubric(w http.ResponseWriter, r *http.Request) {
	id, ok := h.caseID(w, r)
	if !ok {
		return
	}
	rubricID, ok := h.rubricID(w, r)
	if !ok {
		return
	}

	var removed bool
	c, err := h.store.Update(id, func(c *analysis.Case) error {
		removed = c.Remove(rubricID)
		return nil
	})
	if err != nil {
		h.respondWithCaseError(w, err)
		return
	}

	h.RespondWithJSON(w, http.StatusOK, map[string]any{
		"removed":     removed,
		"rubricCount": c.Len(),
	})
}

// SetImportance changes the importance of a selected rubric
func (h *HTTPHandlerImpl) SetImportance(w http.ResponseWriter, r *http.Request) {
	id, ok := h.caseID(w, r)
	if !ok {
		return
	}
	rubricID, ok := h.rubricID(w, r)
	if !ok {
		return
	}

	var req importanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Importance == nil {
		h.RespondWithError(w, http.StatusBadRequest, "Body must be {\"importance\": 1..3}")
		return
	}
	if err := h.validator.ValidateImportance(*req.Importance); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	var found bool
	_, err := h.store.Update(id, func(c *analysis.Case) error {
		var err error
		found, err = c.SetImportance(rubricID, *req.Importance)
		return err
	})
	if err != nil {
		h.respondWithCaseError(w, err)
		return
	}
	if !found {
		h.RespondWithError(w, http.StatusNotFound, "Rubric not in case")
		return
	}

	h.RespondWithJSON(w, http.StatusOK, map[string]any{
		"rubricId":   rubricID,
		"importance": *req.Importance,
	})
}

// GetRanking returns the ranked remedies and any analysis warnings
func (h *HTTPHandlerImpl) GetRanking(w http.ResponseWriter, r *http.Request) {
	id, ok := h.caseID(w, r)
	if !ok {
		return
	}

	c, err := h.store.Get(id)
	if err != nil {
		h.respondWithCaseError(w, err)
		return
	}

	h.RespondWithJSON(w, http.StatusOK, c.Ranking())
}

// ExportSheet renders the printable repertory sheet as text or HTML
func (h *HTTPHandlerImpl) ExportSheet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.caseID(w, r)
	if !ok {
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "text"
	}
	if format != "text" && format != "html" {
		h.RespondWithError(w, http.StatusBadRequest, "format must be text or html")
		return
	}

	c, err := h.store.Get(id)
	if err != nil {
		h.respondWithCaseError(w, err)
		return
	}

	opts := analysis.SheetOptions{Generated: time.Now()}
	var buf bytes.Buffer
	contentType := "text/plain; charset=utf-8"
	if format == "html" {
		contentType = "text/html; charset=utf-8"
		err = analysis.RenderSheetHTML(&buf, c, opts)
	} else {
		err = analysis.WriteSheet(&buf, c, opts)
	}
	if err != nil {
		logging.Error("Failed to render sheet", "case_id", id, "error", err)
		h.RespondWithError(w, http.StatusInternalServerError, "Failed to render sheet")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// HealthCheck returns server health information
func (h *HTTPHandlerImpl) HealthCheck(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	status, details, httpStatus := h.health.HealthCheck()

	response := HealthResponse{
		Status: status,
		Data:   details,
		System: map[string]any{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb": int(m.Alloc / 1024 / 1024),
				"sys_mb":   int(m.Sys / 1024 / 1024),
				"num_gc":   m.NumGC,
			},
		},
	}

	h.RespondWithJSON(w, httpStatus, response)
}
