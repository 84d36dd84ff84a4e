package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Billing metrics
	IntentsCreatedTotal    *prometheus.CounterVec
	DemoModeFallbacksTotal prometheus.Counter
	ProcessorErrorsTotal   *prometheus.CounterVec
	WebhookEventsTotal     *prometheus.CounterVec
	GateDenialsTotal       *prometheus.CounterVec
	HarnessOperationsTotal *prometheus.CounterVec

	// Sync metrics
	SyncRunsTotal   *prometheus.CounterVec
	SyncDuration    prometheus.Histogram
	SyncedCompanies prometheus.Gauge

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agendly_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agendly_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		IntentsCreatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agendly_billing_intents_created_total",
				Help: "Total number of payment intents created, by result kind",
			},
			[]string{"kind"},
		),
		DemoModeFallbacksTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "agendly_billing_demo_mode_fallbacks_total",
				Help: "Upgrades served in demo mode because no processor is configured",
			},
		),
		ProcessorErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agendly_billing_processor_errors_total",
				Help: "Payment processor call failures by error code",
			},
			[]string{"code"},
		),
		WebhookEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agendly_billing_webhook_events_total",
				Help: "Processor webhook events handled, by event type",
			},
			[]string{"type"},
		),
		GateDenialsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agendly_access_gate_denials_total",
				Help: "Access gate denials by normalized status",
			},
			[]string{"status"},
		),
		HarnessOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agendly_harness_operations_total",
				Help: "Admin test harness operations by outcome",
			},
			[]string{"operation"},
		),
		SyncRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agendly_sync_runs_total",
				Help: "External status sync runs by result",
			},
			[]string{"result"},
		),
		SyncDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "agendly_sync_duration_seconds",
				Help:    "Duration of a full external status sync pass",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
			},
		),
		SyncedCompanies: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "agendly_sync_companies",
				Help: "Companies covered by the last sync pass",
			},
		),
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "agendly_db_connections_active",
				Help: "Active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "agendly_db_connections_idle",
				Help: "Idle database connections",
			},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.IntentsCreatedTotal,
		m.DemoModeFallbacksTotal,
		m.ProcessorErrorsTotal,
		m.WebhookEventsTotal,
		m.GateDenialsTotal,
		m.HarnessOperationsTotal,
		m.SyncRunsTotal,
		m.SyncDuration,
		m.SyncedCompanies,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// Handler returns the Prometheus scrape handler for this registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps an HTTP handler with request metrics. The path
// label uses the route template, not the raw URL, to keep cardinality low.
func (m *Metrics) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if template, err := route.GetPathTemplate(); err == nil {
				path = template
			}
		}

		duration := time.Since(start).Seconds()
		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(recorder.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusRecorder captures the response status code
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
