// Package metrics defines the Prometheus metric collectors used across the
// engine and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the engine.
type Metrics struct {
	DocsIndexedTotal   prometheus.Counter
	DocsSkippedTotal   prometheus.Counter
	SegmentFlushes     *prometheus.CounterVec
	SegmentMergesTotal prometheus.Counter
	ActiveSegments     prometheus.Gauge
	SearchQueriesTotal *prometheus.CounterVec
	SearchLatency      *prometheus.HistogramVec
	QualitySkipsTotal  prometheus.Counter
	CacheHitsTotal     prometheus.Counter
	CacheMissesTotal   prometheus.Counter
	WorkerBatchesTotal *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		DocsIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "quill_docs_indexed_total",
				Help: "Total documents accepted by a writer.",
			},
		),
		DocsSkippedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "quill_docs_skipped_total",
				Help: "Documents skipped due to per-document analysis failures.",
			},
		),
		SegmentFlushes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quill_segment_flushes_total",
				Help: "Segment flush operations by status.",
			},
			[]string{"status"},
		),
		SegmentMergesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "quill_segment_merges_total",
				Help: "Completed segment merge operations.",
			},
		),
		ActiveSegments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "quill_active_segments",
				Help: "Number of live segments in the table of contents.",
			},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quill_search_queries_total",
				Help: "Total search queries by result type (hit, zero_result, error).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quill_search_latency_seconds",
				Help:    "Search query latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache_status"},
		),
		QualitySkipsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "quill_quality_skips_total",
				Help: "Posting blocks skipped via block-quality early termination.",
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "quill_cache_hits_total",
				Help: "Total number of query-cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "quill_cache_misses_total",
				Help: "Total number of query-cache misses.",
			},
		),
		WorkerBatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quill_worker_batches_total",
				Help: "Document batches processed by indexing workers, by status.",
			},
			[]string{"status"},
		),
	}

	prometheus.MustRegister(
		m.DocsIndexedTotal,
		m.DocsSkippedTotal,
		m.SegmentFlushes,
		m.SegmentMergesTotal,
		m.ActiveSegments,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.QualitySkipsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.WorkerBatchesTotal,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
