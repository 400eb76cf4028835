package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsUsesRoutePattern(t *testing.T) {
	router := chi.NewRouter()
	router.Use(Metrics)
	router.Get("/api/cases/{caseID}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	counter := HTTPRequestTotals.WithLabelValues("GET", "/api/cases/{caseID}", "404")
	before := testutil.ToFloat64(counter)

	for _, id := range []string{"01J9Z3K5M7N8P9Q0R1S2T3V4W5", "01J9Z3K5M7N8P9Q0R1S2T3V4W6"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/cases/"+id, nil))
	}

	if got := testutil.ToFloat64(counter) - before; got != 2 {
		t.Errorf("expected both ids under one series, got %v new samples", got)
	}
	if inFlight := testutil.ToFloat64(HTTPRequestInFlight); inFlight != 0 {
		t.Errorf("expected no in-flight requests after completion, got %v", inFlight)
	}
}

func TestMetricsUnmatchedRoute(t *testing.T) {
	handler := Metrics(http.NotFoundHandler())

	counter := HTTPRequestTotals.WithLabelValues("GET", "unmatched", "404")
	before := testutil.ToFloat64(counter)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/nope", nil))

	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Errorf("expected one unmatched sample, got %v", got)
	}
}
