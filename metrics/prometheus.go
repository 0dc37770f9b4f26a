// Package metrics provides Prometheus metrics export for the retrieval
// engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusExporter exports engine metrics in Prometheus format.
type PrometheusExporter struct {
	registry *prometheus.Registry

	// Tool call metrics
	toolCalls   *prometheus.CounterVec
	toolLatency *prometheus.HistogramVec
	toolErrors  *prometheus.CounterVec

	// Vector probe metrics
	probeLatency *prometheus.HistogramVec

	// Cache metrics
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	// Session metrics
	sessionsActive prometheus.Gauge
}

// Config configures the Prometheus exporter.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds)
	LatencyBuckets []float64
}

// DefaultConfig returns default Prometheus configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}
}

// NewPrometheusExporter creates a new Prometheus metrics exporter.
func NewPrometheusExporter(cfg Config) *PrometheusExporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &PrometheusExporter{registry: registry}

	e.toolCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "talklens",
			Subsystem: "engine",
			Name:      "tool_calls_total",
			Help:      "Total number of tool calls",
		},
		[]string{"tool_name", "status"},
	)

	e.toolLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "talklens",
			Subsystem: "engine",
			Name:      "tool_latency_seconds",
			Help:      "Tool call latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"tool_name"},
	)

	e.toolErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "talklens",
			Subsystem: "engine",
			Name:      "tool_errors_total",
			Help:      "Total number of tool errors by kind",
		},
		[]string{"tool_name", "error_kind"},
	)

	e.probeLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "talklens",
			Subsystem: "engine",
			Name:      "probe_latency_seconds",
			Help:      "k-NN probe latency in seconds per descriptor set",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"descriptor_set"},
	)

	e.cacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "talklens",
			Subsystem: "engine",
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	e.cacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "talklens",
			Subsystem: "engine",
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	e.sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "talklens",
			Subsystem: "engine",
			Name:      "sessions_active",
			Help:      "Number of open engine sessions",
		},
	)

	registry.MustRegister(
		e.toolCalls,
		e.toolLatency,
		e.toolErrors,
		e.probeLatency,
		e.cacheHits,
		e.cacheMisses,
		e.sessionsActive,
	)

	return e
}

// RecordToolCall records one tool invocation.
func (e *PrometheusExporter) RecordToolCall(toolName string, latency time.Duration, errorKind string) {
	status := "success"
	if errorKind != "" {
		status = "error"
		e.toolErrors.WithLabelValues(toolName, errorKind).Inc()
	}
	e.toolCalls.WithLabelValues(toolName, status).Inc()
	e.toolLatency.WithLabelValues(toolName).Observe(latency.Seconds())
}

// RecordProbe records one k-NN probe against a descriptor set.
func (e *PrometheusExporter) RecordProbe(set string, latency time.Duration) {
	e.probeLatency.WithLabelValues(set).Observe(latency.Seconds())
}

// RecordCacheHit records a cache hit.
func (e *PrometheusExporter) RecordCacheHit(cacheType string) {
	e.cacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a cache miss.
func (e *PrometheusExporter) RecordCacheMiss(cacheType string) {
	e.cacheMisses.WithLabelValues(cacheType).Inc()
}

// SessionOpened and SessionClosed track the active-session gauge.
func (e *PrometheusExporter) SessionOpened() { e.sessionsActive.Inc() }
func (e *PrometheusExporter) SessionClosed() { e.sessionsActive.Dec() }

// Handler returns the HTTP handler serving the registry.
func (e *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (e *PrometheusExporter) Registry() *prometheus.Registry {
	return e.registry
}
