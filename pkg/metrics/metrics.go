// Package metrics defines the Prometheus collectors used by the pipeline,
// the hash indexer and the session server, and exposes an HTTP handler for
// scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mmr"

// Metrics holds all Prometheus collectors for the platform.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	PipelineBatchesTotal  *prometheus.CounterVec
	PipelineBatchSize     prometheus.Histogram
	PipelineBatchDuration prometheus.Histogram
	ItemsYieldedTotal     prometheus.Counter
	VectorsInsertedTotal  prometheus.Counter

	HashCodesComputedTotal prometheus.Counter
	HashRunDuration        *prometheus.HistogramVec
	HashBuckets            prometheus.Gauge

	SessionsActive         prometheus.Gauge
	SessionOperationsTotal *prometheus.CounterVec
	EventsPublishedTotal   *prometheus.CounterVec
	CircuitBreakerState    *prometheus.GaugeVec
}

// New creates all collectors and registers them with reg. A nil reg uses
// the Prometheus default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency in seconds.",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Number of HTTP requests currently being processed.",
			},
		),
		PipelineBatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pipeline_batches_total",
				Help:      "Batches submitted to the descriptor generator by outcome (ok, generate_error, insert_error).",
			},
			[]string{"outcome"},
		),
		PipelineBatchSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pipeline_batch_items",
				Help:      "Items per submitted batch.",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
		PipelineBatchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pipeline_batch_duration_seconds",
				Help:      "Time spent computing and inserting one batch.",
				Buckets:   prometheus.DefBuckets,
			},
		),
		ItemsYieldedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pipeline_items_yielded_total",
				Help:      "Item and vector pairs yielded to pipeline consumers.",
			},
		),
		VectorsInsertedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pipeline_vectors_inserted_total",
				Help:      "Distinct vectors written to the vector index.",
			},
		),
		HashCodesComputedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "hash_codes_computed_total",
				Help:      "Hash codes computed by the hash indexer.",
			},
		),
		HashRunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "hash_run_duration_seconds",
				Help:      "Duration of hash indexing runs by mode (shared, isolated).",
				Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
			},
			[]string{"mode"},
		),
		HashBuckets: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "hash_index_buckets",
				Help:      "Distinct hash codes in the most recently built inverted index.",
			},
		),
		SessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "iqr_sessions_active",
				Help:      "Sessions currently registered with the controller.",
			},
		),
		SessionOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "iqr_session_operations_total",
				Help:      "Session controller operations by operation and result.",
			},
			[]string{"operation", "result"},
		),
		EventsPublishedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_published_total",
				Help:      "Events handed to Kafka by topic and status.",
			},
			[]string{"topic", "status"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.PipelineBatchesTotal,
		m.PipelineBatchSize,
		m.PipelineBatchDuration,
		m.ItemsYieldedTotal,
		m.VectorsInsertedTotal,
		m.HashCodesComputedTotal,
		m.HashRunDuration,
		m.HashBuckets,
		m.SessionsActive,
		m.SessionOperationsTotal,
		m.EventsPublishedTotal,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler for the default gatherer.
func Handler() http.Handler {
	return promhttp.Handler()
}
