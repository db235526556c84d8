// internal/pkg/metrics/metrics.go
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the prometheus collectors of the cart service
type Metrics struct {
	registry *prometheus.Registry

	RemoteFallbacks *prometheus.CounterVec
	CartOperations  *prometheus.CounterVec
	ActiveSessions  prometheus.Gauge
}

// New creates the collectors on a fresh registry, with Go and process collectors
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		RemoteFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "cart",
			Name:      "remote_fallback_total",
			Help:      "Commerce API failures absorbed by the local cart, by operation.",
		}, []string{"operation"}),
		CartOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "cart",
			Name:      "operations_total",
			Help:      "Cart operations by operation, outcome and applying store.",
		}, []string{"operation", "outcome", "source"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "storefront",
			Subsystem: "cart",
			Name:      "active_sessions",
			Help:      "Cart sessions currently held in memory.",
		}),
	}
	reg.MustRegister(m.RemoteFallbacks, m.CartOperations, m.ActiveSessions)
	return m
}

// Registry exposes the underlying registry for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveOperation counts one cart operation
func (m *Metrics) ObserveOperation(operation, outcome, source string) {
	if m == nil {
		return
	}
	m.CartOperations.WithLabelValues(operation, outcome, source).Inc()
}

// ObserveFallback counts one remote fallback
func (m *Metrics) ObserveFallback(operation string) {
	if m == nil {
		return
	}
	m.RemoteFallbacks.WithLabelValues(operation).Inc()
}

// SetActiveSessions records the number of live cart sessions
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}
