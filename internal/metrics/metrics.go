// Package metrics exposes prometheus counters for the HTTP surface and the
// upstream MapServer calls.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parcelagent_requests_total",
		Help: "Total HTTP requests by route and status class",
	}, []string{"route", "status"})
	RequestDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "parcelagent_request_duration_ms",
		Help:    "Request duration in milliseconds",
		Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
	})
	UpstreamRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parcelagent_upstream_requests_total",
		Help: "Total MapServer queries by layer",
	}, []string{"layer"})
	UpstreamFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parcelagent_upstream_failures_total",
		Help: "Total MapServer queries that failed after retries",
	}, []string{"layer"})
	UpstreamDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "parcelagent_upstream_duration_ms",
		Help:    "MapServer query duration in milliseconds",
		Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
	})
	ParcelsResolvedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "parcelagent_parcels_resolved_total",
		Help: "Total parcel features resolved across all requests",
	})
	TokensFailedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "parcelagent_tokens_failed_total",
		Help: "Total lot/plan tokens that failed to resolve",
	})
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDurationMs,
		UpstreamRequestsTotal,
		UpstreamFailuresTotal,
		UpstreamDurationMs,
		ParcelsResolvedTotal,
		TokensFailedTotal,
	)
}

// Handler returns the prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
