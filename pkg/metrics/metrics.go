// Package metrics defines the Prometheus metric collectors used by the
// matching service and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	RankQueriesTotal     *prometheus.CounterVec
	RankLatency          *prometheus.HistogramVec
	RankScannedEntries   prometheus.Histogram
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	CorpusFragments      prometheus.Gauge
	CorpusEncodings      prometheus.Gauge
	CorpusUpdatesTotal   *prometheus.CounterVec
	LemmaSearchesTotal   *prometheus.CounterVec
	LemmaMatchedLines    prometheus.Histogram
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates all collectors and registers them with reg. Passing nil
// registers with the Prometheus default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		RankQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "line_to_vec_rank_queries_total",
				Help: "Line-to-vec ranking queries by candidate kind and outcome (ok, no_encoding, not_found, timeout, error).",
			},
			[]string{"candidate", "outcome"},
		),
		RankLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "line_to_vec_rank_latency_seconds",
				Help:    "Line-to-vec ranking latency in seconds.",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"cache_status"},
		),
		RankScannedEntries: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "line_to_vec_rank_scanned_fragments",
				Help:    "Number of corpus fragments scored per ranking query.",
				Buckets: prometheus.ExponentialBuckets(10, 4, 8),
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ranking_cache_hits_total",
				Help: "Total number of ranking cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ranking_cache_misses_total",
				Help: "Total number of ranking cache misses.",
			},
		),
		CorpusFragments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "corpus_fragments",
				Help: "Fragments with line-to-vec encodings held in memory.",
			},
		),
		CorpusEncodings: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "corpus_encodings",
				Help: "Encoded sequences held in memory across all fragments.",
			},
		),
		CorpusUpdatesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "corpus_updates_total",
				Help: "Corpus update events applied, by kind (upsert, delete, reload).",
			},
			[]string{"kind"},
		),
		LemmaSearchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lemma_searches_total",
				Help: "Lemma searches by query type.",
			},
			[]string{"type"},
		),
		LemmaMatchedLines: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "lemma_search_matched_lines",
				Help:    "Matching lines returned per lemma search.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 500},
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.RankQueriesTotal,
		m.RankLatency,
		m.RankScannedEntries,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CorpusFragments,
		m.CorpusEncodings,
		m.CorpusUpdatesTotal,
		m.LemmaSearchesTotal,
		m.LemmaMatchedLines,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
