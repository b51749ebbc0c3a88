// Package metrics exposes prometheus instrumentation for the document store,
// the parser and the semantic token encoder.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ledgerls"

// Metrics owns its own registry so that several servers (or tests) can run
// in one process. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	documentsOpened prometheus.Counter
	openDocuments   prometheus.Gauge
	editsApplied    *prometheus.CounterVec
	editsRejected   *prometheus.CounterVec
	parseDuration   prometheus.Histogram
	semanticTokens  prometheus.Histogram
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		// documentsOpened counts didOpen notifications, including reopens.
		documentsOpened: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "documents",
			Name:      "opened_total",
			Help:      "Total documents opened",
		}),

		openDocuments: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "documents",
			Name:      "open",
			Help:      "Documents currently open",
		}),

		// editsApplied counts accepted changes.
		// Labels: kind (full, incremental)
		editsApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "documents",
			Name:      "edits_applied_total",
			Help:      "Total edits applied to open documents",
		}, []string{"kind"}),

		// editsRejected counts changes that left the document untouched.
		// Labels: reason (unknown_document, malformed_edit, stale_version)
		editsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "documents",
			Name:      "edits_rejected_total",
			Help:      "Total rejected document changes",
		}, []string{"reason"}),

		parseDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "parser",
			Name:      "duration_seconds",
			Help:      "Time spent parsing one document version",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),

		semanticTokens: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "semantic",
			Name:      "tokens",
			Help:      "Semantic tokens encoded per request",
			Buckets:   prometheus.ExponentialBuckets(8, 4, 8),
		}),
	}
}

func (m *Metrics) DocumentOpened() {
	if m == nil {
		return
	}
	m.documentsOpened.Inc()
	m.openDocuments.Inc()
}

func (m *Metrics) DocumentClosed() {
	if m == nil {
		return
	}
	m.openDocuments.Dec()
}

func (m *Metrics) EditApplied(kind string) {
	if m == nil {
		return
	}
	m.editsApplied.WithLabelValues(kind).Inc()
}

func (m *Metrics) EditRejected(reason string) {
	if m == nil {
		return
	}
	m.editsRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveParse(d time.Duration) {
	if m == nil {
		return
	}
	m.parseDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveTokens(n int) {
	if m == nil {
		return
	}
	m.semanticTokens.Observe(float64(n))
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// HTTPServer returns a server exposing /metrics on addr. The caller starts
// it with ListenAndServe and stops it with Shutdown.
func (m *Metrics) HTTPServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
