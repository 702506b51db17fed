package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application. A nil *Metrics
// is safe to call everywhere, so tests can skip wiring it.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	duesGenerated     prometheus.Counter
	paymentsRecorded  prometheus.Counter
	reconciliations   prometheus.Counter
	statusTransitions *prometheus.CounterVec
}

// NewMetrics initialises the registry with HTTP and billing metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "clubward_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "clubward_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	duesGenerated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "clubward_dues_generated_total",
		Help: "Dues created by the monthly generator.",
	})
	paymentsRecorded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "clubward_payments_recorded_total",
		Help: "Payments recorded against dues.",
	})
	reconciliations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "clubward_reconciliations_total",
		Help: "Member financial reconciliation runs.",
	})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "clubward_member_status_transitions_total",
		Help: "Member status transitions by target status.",
	}, []string{"to"})
	registry.MustRegister(requests, duration, duesGenerated, paymentsRecorded, reconciliations, transitions)
	return &Metrics{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:     requests,
		requestDuration:   duration,
		duesGenerated:     duesGenerated,
		paymentsRecorded:  paymentsRecorded,
		reconciliations:   reconciliations,
		statusTransitions: transitions,
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

// DuesGenerated counts dues created by a generation run.
func (m *Metrics) DuesGenerated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.duesGenerated.Add(float64(n))
}

// PaymentRecorded counts a recorded payment.
func (m *Metrics) PaymentRecorded() {
	if m == nil {
		return
	}
	m.paymentsRecorded.Inc()
}

// MemberReconciled counts a reconciliation run.
func (m *Metrics) MemberReconciled() {
	if m == nil {
		return
	}
	m.reconciliations.Inc()
}

// MemberStatusChanged counts a member status transition.
func (m *Metrics) MemberStatusChanged(to string) {
	if m == nil {
		return
	}
	m.statusTransitions.WithLabelValues(to).Inc()
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
