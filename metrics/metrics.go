// Package metrics provides Prometheus metrics for the HTTP server, the ingestion
// pipeline and the document store.
//
// HTTP metrics:
//   - http_request_total: Counter with method, path, and status labels
//   - http_request_duration_seconds: Histogram with method and path labels
//   - http_request_in_flight: Gauge for concurrent requests
//
// Ingestion and store metrics carry the cureid_ prefix.
//
// All metrics are registered with the Prometheus default registry during
// package initialization.
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

	RateLimiterBucketsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limiter_buckets_total",
			Help: "Total number of rate limiter buckets (IPs seen in last ~5 minutes)",
		},
	)

	FilesIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cureid_files_ingested_total",
			Help: "Raw case files processed, by result",
		},
		[]string{"result"},
	)

	CasesIngested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cureid_cases_ingested_total",
			Help: "Cases normalized into drug and regimen entries",
		},
	)

	OutcomeUnmatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cureid_outcome_unmatched_total",
			Help: "Cases whose computed outcome matched no tally",
		},
		[]string{"value"},
	)

	EntriesPersisted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cureid_entries_persisted_total",
			Help: "Entries written to the store, by entry type",
		},
		[]string{"entry_type"},
	)

	RegimenDuplicates = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cureid_regimen_duplicates_total",
			Help: "Regimen entries suppressed because the regimen id already exists",
		},
	)

	StoreOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cureid_store_operation_duration_seconds",
			Help:    "Document store operation latency",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"operation", "container"},
	)

	StoreOperationCharge = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cureid_store_operation_charge",
			Help:    "Store-reported cost of an operation",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
		[]string{"operation", "container"},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(RateLimiterBucketsTotal)
	prometheus.MustRegister(FilesIngested)
	prometheus.MustRegister(CasesIngested)
	prometheus.MustRegister(OutcomeUnmatched)
	prometheus.MustRegister(EntriesPersisted)
	prometheus.MustRegister(RegimenDuplicates)
	prometheus.MustRegister(StoreOperationDuration)
	prometheus.MustRegister(StoreOperationCharge)
}
