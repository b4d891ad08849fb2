// Package metrics exposes Prometheus collectors for the backend session,
// enrollment outcomes and token revocations. A nil *Metrics is valid and
// records nothing.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "silo_enroll"

type Metrics struct {
	registry *prometheus.Registry

	sessionHealthy    prometheus.Gauge
	reconnectAttempts prometheus.Counter
	reconnectFailures prometheus.Counter
	enrollments       *prometheus.CounterVec
	revocations       *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.sessionHealthy = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "healthy",
		Help:      "1 when the backend session passed its last liveness probe",
	})

	m.reconnectAttempts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "reconnect_attempts_total",
		Help:      "Total backend reconnection attempts",
	})

	m.reconnectFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "reconnect_failures_total",
		Help:      "Total reconnection sequences that exhausted their attempts",
	})

	m.enrollments = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "enrollment",
		Name:      "outcomes_total",
		Help:      "Enrollment outcomes by method and status",
	}, []string{"method", "status"})

	m.revocations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "tokens",
		Name:      "revocations_total",
		Help:      "Token revocations by result",
	}, []string{"success"})

	m.registry.MustRegister(
		m.sessionHealthy,
		m.reconnectAttempts,
		m.reconnectFailures,
		m.enrollments,
		m.revocations,
	)

	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) SetSessionHealthy(healthy bool) {
	if m == nil {
		return
	}
	if healthy {
		m.sessionHealthy.Set(1)
	} else {
		m.sessionHealthy.Set(0)
	}
}

func (m *Metrics) ReconnectAttempt() {
	if m == nil {
		return
	}
	m.reconnectAttempts.Inc()
}

func (m *Metrics) ReconnectFailed() {
	if m == nil {
		return
	}
	m.reconnectFailures.Inc()
}

func (m *Metrics) EnrollmentOutcome(method, status string) {
	if m == nil {
		return
	}
	m.enrollments.WithLabelValues(method, status).Inc()
}

func (m *Metrics) TokenRevoked(success bool) {
	if m == nil {
		return
	}
	m.revocations.WithLabelValues(strconv.FormatBool(success)).Inc()
}
