// Package metrics exposes Prometheus instrumentation for DART requests and
// indicator aggregation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors registered by dartfin.
type Metrics struct {
	registry *prometheus.Registry

	Requests  *prometheus.CounterVec   // endpoint, status
	Latency   *prometheus.HistogramVec // endpoint
	Fallbacks prometheus.Counter
	Periods   *prometheus.CounterVec // outcome
}

// New creates a Metrics instance backed by its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dartfin",
			Name:      "dart_requests_total",
			Help:      "OpenDART API requests by endpoint and API status code.",
		}, []string{"endpoint", "status"}),
		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dartfin",
			Name:      "dart_request_seconds",
			Help:      "OpenDART API request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		Fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dartfin",
			Name:      "statement_fallbacks_total",
			Help:      "Consolidated statement requests retried as standalone.",
		}),
		Periods: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dartfin",
			Name:      "aggregation_periods_total",
			Help:      "Periods processed by indicator aggregation, by outcome.",
		}, []string{"outcome"}),
	}
	m.registry.MustRegister(m.Requests, m.Latency, m.Fallbacks, m.Periods)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

var defaultMetrics = New()

// Default returns the process-wide metrics instance.
func Default() *Metrics { return defaultMetrics }
