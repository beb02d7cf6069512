package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"canteen-occupancy-backend/internal/model"
)

// Metrics holds the service collectors on a dedicated registry.
// All methods are safe to call on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	fetchTotal    *prometheus.CounterVec
	fetchDuration prometheus.Histogram
	occupancy     prometheus.Gauge
	lastSuccess   prometheus.Gauge
	httpRequests  *prometheus.CounterVec
	samples       prometheus.Counter
	notifications *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		fetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "canteen_fetch_total",
			Help: "Occupancy fetches from the remote channel by outcome.",
		}, []string{"status"}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "canteen_fetch_duration_seconds",
			Help:    "Latency of occupancy fetches.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		occupancy: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "canteen_occupancy_current",
			Help: "Occupancy count of the last successful fetch.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "canteen_fetch_last_success_timestamp_seconds",
			Help: "Unix time of the last successful fetch.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "canteen_http_requests_total",
			Help: "Inbound HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		samples: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "canteen_samples_recorded_total",
			Help: "Distinct readings persisted by the recorder.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "canteen_push_notifications_total",
			Help: "Web push deliveries by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.fetchTotal,
		m.fetchDuration,
		m.occupancy,
		m.lastSuccess,
		m.httpRequests,
		m.samples,
		m.notifications,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
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

// ObserveFetch records the outcome of one fetch.
func (m *Metrics) ObserveFetch(r model.OccupancyReading, took time.Duration) {
	if m == nil {
		return
	}
	m.fetchTotal.WithLabelValues(string(r.Status)).Inc()
	m.fetchDuration.Observe(took.Seconds())
	if r.OK() {
		m.occupancy.Set(float64(r.Occupancy))
		m.lastSuccess.SetToCurrentTime()
	}
}

// ObserveRequest counts one inbound request.
func (m *Metrics) ObserveRequest(route string, code int) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// SampleRecorded counts one persisted sample.
func (m *Metrics) SampleRecorded() {
	if m == nil {
		return
	}
	m.samples.Inc()
}

// NotificationSent counts one push delivery attempt by result
// ("sent", "expired", "failed", "dropped").
func (m *Metrics) NotificationSent(result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(result).Inc()
}
