package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	authnTotal      *prometheus.CounterVec
	authzDenials    *prometheus.CounterVec
	roleMigrations  prometheus.Counter
}

// NewMetrics initialises the registry and the base metric set.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quartermaster_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quartermaster_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	authn := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quartermaster_authentications_total",
		Help: "Authentication attempts by strategy and outcome.",
	}, []string{"strategy", "outcome"})
	denials := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quartermaster_authorization_denials_total",
		Help: "Denied permission checks by action.",
	}, []string{"action"})
	migrations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "quartermaster_role_migrations_total",
		Help: "Role assignments written from the legacy access flag.",
	})
	registry.MustRegister(requests, duration, authn, denials, migrations)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		authnTotal:      authn,
		authzDenials:    denials,
		roleMigrations:  migrations,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveAuthentication counts one authentication attempt.
func (m *Metrics) ObserveAuthentication(strategy, outcome string) {
	if m == nil {
		return
	}
	m.authnTotal.WithLabelValues(strategy, outcome).Inc()
}

// ObserveDenial counts one denied permission check.
func (m *Metrics) ObserveDenial(action string) {
	if m == nil {
		return
	}
	m.authzDenials.WithLabelValues(action).Inc()
}

// ObserveRoleMigration counts one legacy flag migration write.
func (m *Metrics) ObserveRoleMigration() {
	if m == nil {
		return
	}
	m.roleMigrations.Inc()
}

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
