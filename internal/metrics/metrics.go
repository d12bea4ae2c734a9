// Package metrics bundles the Prometheus collectors updated by the SSH
// and SFTP layers and the management service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	AuthAttempts      *prometheus.CounterVec
	ConnectionsActive prometheus.Gauge
	SessionsActive    prometheus.Gauge
	ReadBytes         prometheus.Counter
	WriteBytes        prometheus.Counter
	Toggles           *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.AuthAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sftpgate_auth_attempts_total",
		Help: "Password authentication attempts by result.",
	}, []string{"result"})
	m.ConnectionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sftpgate_connections_active",
		Help: "Open SSH connections.",
	})
	m.SessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sftpgate_sessions_active",
		Help: "Running SFTP subsystem channels.",
	})
	m.ReadBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sftpgate_read_bytes_total",
		Help: "Bytes served by read requests.",
	})
	m.WriteBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sftpgate_write_bytes_total",
		Help: "Bytes stored by write requests.",
	})
	m.Toggles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sftpgate_toggle_total",
		Help: "Toggle state changes by action.",
	}, []string{"action"})

	m.registry.MustRegister(
		m.AuthAttempts,
		m.ConnectionsActive,
		m.SessionsActive,
		m.ReadBytes,
		m.WriteBytes,
		m.Toggles,
	)
	return m
}

// Handler serves the exposition endpoint for the management API
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
