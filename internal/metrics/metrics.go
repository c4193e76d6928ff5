// Package metrics provides Prometheus instrumentation for the panel fleet.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics of one process
type Metrics struct {
	registry *prometheus.Registry

	// Panel request metrics
	PanelRequests   *prometheus.CounterVec
	PanelDuration   *prometheus.HistogramVec
	PanelRetries    *prometheus.CounterVec
	AuthAttempts    *prometheus.CounterVec
	CacheLookups    *prometheus.CounterVec
	ServerClients   *prometheus.GaugeVec
	ServerSelection *prometheus.CounterVec
}

// New creates a Metrics instance registered on its own registry
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "xui_fleet"
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		PanelRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "panel_requests_total",
				Help:      "Total number of HTTP requests sent to panels",
			},
			[]string{"server", "operation", "status"},
		),
		PanelDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "panel_request_duration_seconds",
				Help:      "Panel request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"server", "operation"},
		),
		PanelRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "panel_retries_total",
				Help:      "Total number of retried panel calls",
			},
			[]string{"server", "operation"},
		),
		AuthAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_attempts_total",
				Help:      "Total number of panel logins",
			},
			[]string{"server", "result"},
		),
		CacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Read-through cache lookups by kind and result",
			},
			[]string{"kind", "result"},
		),
		ServerClients: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "server_clients",
				Help:      "Client count last observed per server",
			},
			[]string{"server"},
		),
		ServerSelection: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "server_selections_total",
				Help:      "Least loaded selections per chosen server",
			},
			[]string{"server"},
		),
	}
}

// Registry returns the registry the metrics are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRequest records one panel HTTP exchange. A zero status means the
// request never got a response.
func (m *Metrics) ObserveRequest(server, operation string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if status != 0 {
		label = strconv.Itoa(status)
	}
	m.PanelRequests.WithLabelValues(server, operation, label).Inc()
	m.PanelDuration.WithLabelValues(server, operation).Observe(elapsed.Seconds())
}

// ObserveRetry records a retried panel call
func (m *Metrics) ObserveRetry(server, operation string) {
	if m == nil {
		return
	}
	m.PanelRetries.WithLabelValues(server, operation).Inc()
}

// ObserveAuth records a login outcome
func (m *Metrics) ObserveAuth(server string, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.AuthAttempts.WithLabelValues(server, result).Inc()
}

// ObserveCache records a cache hit or miss
func (m *Metrics) ObserveCache(kind string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(kind, result).Inc()
}

// SetClients records the client count of a server
func (m *Metrics) SetClients(server string, count int) {
	if m == nil {
		return
	}
	m.ServerClients.WithLabelValues(server).Set(float64(count))
}

// ObserveSelection records the server chosen by load based selection
func (m *Metrics) ObserveSelection(server string) {
	if m == nil {
		return
	}
	m.ServerSelection.WithLabelValues(server).Inc()
}
