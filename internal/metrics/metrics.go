package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"clinicdesk/backend/internal/domain"
)

const namespace = "clinicdesk"

// Collector owns every clinicdesk metric. It satisfies the scheduling
// service's Recorder interface.
type Collector struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	InFlightGauge   prometheus.Gauge

	RPCsTotal *prometheus.CounterVec

	CreateAttemptsTotal *prometheus.CounterVec
	StatusUpdatesTotal  *prometheus.CounterVec
	DeletesTotal        *prometheus.CounterVec
	NotifyFailuresTotal *prometheus.CounterVec
}

// NewCollector registers all metrics, plus the Go runtime and process
// collectors, on a private registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Collector{
		registry: reg,

		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, route, and status code.",
		}, []string{"method", "route", "status"}),

		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency distribution.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method", "route"}),

		InFlightGauge: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),

		RPCsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "grpc",
			Name:      "requests_total",
			Help:      "Total number of unary RPCs by method and status code.",
		}, []string{"method", "code"}),

		CreateAttemptsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduling",
			Name:      "create_attempts_total",
			Help:      "Appointment creation attempts by outcome.",
		}, []string{"outcome"}),

		StatusUpdatesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduling",
			Name:      "status_updates_total",
			Help:      "Successful status updates by new status.",
		}, []string{"status"}),

		DeletesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduling",
			Name:      "deletes_total",
			Help:      "Delete requests by whether a record was removed.",
		}, []string{"removed"}),

		NotifyFailuresTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduling",
			Name:      "notify_failures_total",
			Help:      "Appointment events the notifier failed to deliver. Alert if non-zero.",
		}, []string{"kind"}),
	}
}

func (c *Collector) CreateAttempt(outcome string) {
	c.CreateAttemptsTotal.WithLabelValues(outcome).Inc()
}

func (c *Collector) StatusUpdated(status domain.Status) {
	c.StatusUpdatesTotal.WithLabelValues(string(status)).Inc()
}

func (c *Collector) Deleted(removed bool) {
	c.DeletesTotal.WithLabelValues(strconv.FormatBool(removed)).Inc()
}

func (c *Collector) NotifyFailed(kind domain.EventKind) {
	c.NotifyFailuresTotal.WithLabelValues(string(kind)).Inc()
}

func (c *Collector) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	c.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.RequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (c *Collector) ObserveRPC(method, code string) {
	c.RPCsTotal.WithLabelValues(method, code).Inc()
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
