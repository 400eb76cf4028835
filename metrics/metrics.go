// Package metrics provides Prometheus metrics for the repertory API:
//   - http_request_total, http_request_duration_seconds, http_request_in_flight
//   - repertory_handshakes_total, repertory_auth_retries_total,
//     repertory_upstream_request_duration_seconds
//   - analysis_active_cases, rate_limiter_buckets_total
//
// All metrics are registered with the Prometheus default registry
// during package initialization.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)

	RepertoryHandshakes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repertory_handshakes_total",
			Help: "Upstream session handshakes by result",
		},
		[]string{"result"},
	)

	RepertoryAuthRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "repertory_auth_retries_total",
			Help: "Upstream requests retried after a 401/403",
		},
	)

	RepertoryUpstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "repertory_upstream_request_duration_seconds",
			Help:    "Latency of authenticated upstream repertory requests",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"status"},
	)

	ActiveCases = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "analysis_active_cases",
			Help: "Analysis working sets held in memory",
		},
	)

	RateLimiterBucketsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limiter_buckets_total",
			Help: "Total number of per-client rate limiter buckets",
		},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(RepertoryHandshakes)
	prometheus.MustRegister(RepertoryAuthRetries)
	prometheus.MustRegister(RepertoryUpstreamDuration)
	prometheus.MustRegister(ActiveCases)
	prometheus.MustRegister(RateLimiterBucketsTotal)
}
