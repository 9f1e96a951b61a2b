// Package metrics exposes the Prometheus counters and histograms the HTTP
// boundary and ingestion pipeline increment. GET /metrics serves the
// default registry via promhttp.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "legalrag_http_requests_total",
			Help: "Total HTTP requests by route and status code.",
		},
		[]string{"route", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "legalrag_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	AnalyzeConfidence = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "legalrag_analyze_confidence",
			Help:    "Confidence score returned by the verifier for each analyze request.",
			Buckets: []float64{0.1, 0.3, 0.5, 0.6, 0.7, 0.75, 0.8, 0.9, 0.95, 1.0},
		},
	)

	PIIEntitiesAnonymized = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "legalrag_pii_entities_anonymized_total",
			Help: "Total PII spans anonymized across all analyze requests.",
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "legalrag_cache_results_total",
			Help: "Query-result cache lookups, labeled hit or miss.",
		},
		[]string{"outcome"},
	)

	IngestionDocumentsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "legalrag_ingestion_documents_total",
			Help: "Documents processed by the ingestion pipeline, labeled by outcome.",
		},
		[]string{"crawler", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		AnalyzeConfidence,
		PIIEntitiesAnonymized,
		CacheHits,
		IngestionDocumentsProcessed,
	)
}

// ObserveHTTP records one completed request's status and latency.
func ObserveHTTP(route, status string, start time.Time) {
	HTTPRequestsTotal.WithLabelValues(route, status).Inc()
	HTTPRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
}
