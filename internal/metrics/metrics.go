// Package metrics exposes pipeline counters in Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "nbstreamer"

var histogramBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}

// Metrics owns a private registry so several servers can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	requestTotal     *prometheus.CounterVec
	requestLatency   *prometheus.HistogramVec
	eventsReceived   *prometheus.CounterVec
	eventsForwarded  *prometheus.CounterVec
	eventsFailed     *prometheus.CounterVec
	deliveryLatency  *prometheus.HistogramVec
	rateLimitHits    *prometheus.CounterVec
	degradedMessages *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Count of processed HTTP requests",
		}, []string{"method", "route", "status"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency distribution of HTTP handlers",
			Buckets:   histogramBuckets,
		}, []string{"method", "route", "status"}),
		eventsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "received_total",
			Help:      "Events accepted for processing",
		}, []string{"tenant"}),
		eventsForwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "forwarded_total",
			Help:      "Events delivered to Graylog",
		}, []string{"tenant", "level"}),
		eventsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "failed_total",
			Help:      "Events that could not be delivered",
		}, []string{"tenant", "reason"}),
		deliveryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "gelf",
			Name:      "delivery_duration_seconds",
			Help:      "Time spent sending one GELF message",
			Buckets:   histogramBuckets,
		}, []string{"protocol", "outcome"}),
		rateLimitHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "rate_limit_hits_total",
			Help:      "Events rejected by the per-tenant rate limit",
		}, []string{"tenant"}),
		degradedMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "degraded_total",
			Help:      "Events forwarded as degraded messages after a transformation problem",
		}, []string{"tenant"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestTotal,
		m.requestLatency,
		m.eventsReceived,
		m.eventsForwarded,
		m.eventsFailed,
		m.deliveryLatency,
		m.rateLimitHits,
		m.degradedMessages,
	)
	return m
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	code := strconv.Itoa(status)
	m.requestTotal.WithLabelValues(method, route, code).Inc()
	m.requestLatency.WithLabelValues(method, route, code).Observe(elapsed.Seconds())
}

func (m *Metrics) EventReceived(tenant string) {
	m.eventsReceived.WithLabelValues(tenant).Inc()
}

func (m *Metrics) EventForwarded(tenant, level string) {
	m.eventsForwarded.WithLabelValues(tenant, level).Inc()
}

func (m *Metrics) EventFailed(tenant, reason string) {
	m.eventsFailed.WithLabelValues(tenant, reason).Inc()
}

func (m *Metrics) ObserveDelivery(protocol string, ok bool, elapsed time.Duration) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.deliveryLatency.WithLabelValues(protocol, outcome).Observe(elapsed.Seconds())
}

func (m *Metrics) RateLimited(tenant string) {
	m.rateLimitHits.WithLabelValues(tenant).Inc()
}

func (m *Metrics) Degraded(tenant string) {
	m.degradedMessages.WithLabelValues(tenant).Inc()
}
