// Package metrics exposes Prometheus counters for the clinic workflows and
// an HTTP latency histogram. A nil *Metrics is valid and records nothing.
package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "careplus"

type Metrics struct {
	registry *prometheus.Registry

	checkinAttempts  *prometheus.CounterVec
	statusUpdates    *prometheus.CounterVec
	prescriptions    *prometheus.CounterVec
	safetyWarnings   *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	auditWriteErrors prometheus.Counter
}

// New registers every collector on a fresh registry, plus the Go runtime
// and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		checkinAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkin_attempts_total",
			Help:      "QR check-in attempts by scan result.",
		}, []string{"result"}),
		statusUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appointment_status_updates_total",
			Help:      "Doctor-initiated appointment status changes by target status.",
		}, []string{"status"}),
		prescriptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prescriptions_total",
			Help:      "Prescription operations by action and outcome.",
		}, []string{"action", "outcome"}),
		safetyWarnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "safety_warnings_total",
			Help:      "Drug safety warnings raised by type and severity.",
		}, []string{"type", "severity"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status_code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		auditWriteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_audit_write_errors_total",
			Help:      "Failure audit rows for check-ins that could not be written.",
		}),
	}

	m.registry.MustRegister(
		m.checkinAttempts,
		m.statusUpdates,
		m.prescriptions,
		m.safetyWarnings,
		m.httpRequests,
		m.httpDuration,
		m.auditWriteErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) CheckinAttempt(result string) {
	if m == nil {
		return
	}
	m.checkinAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) AuditWriteFailed() {
	if m == nil {
		return
	}
	m.auditWriteErrors.Inc()
}

func (m *Metrics) StatusUpdated(status string) {
	if m == nil {
		return
	}
	m.statusUpdates.WithLabelValues(status).Inc()
}

// Prescription records action (create, update, cancel) with outcome (ok,
// confirmation_required, rejected, error).
func (m *Metrics) Prescription(action, outcome string) {
	if m == nil {
		return
	}
	m.prescriptions.WithLabelValues(action, outcome).Inc()
}

func (m *Metrics) SafetyWarning(warningType, severity string) {
	if m == nil {
		return
	}
	m.safetyWarnings.WithLabelValues(warningType, severity).Inc()
}

// Middleware records request counts and latency by route template, so
// /appointments/:id stays one series.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method

			m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			m.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
