package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors exported on /metrics
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	HoldEventsTotal *prometheus.CounterVec
	StreamWatchers  prometheus.Gauge
}

// NewMetrics creates the collectors on a private registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "holdtrack_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "holdtrack_http_request_duration_seconds",
			Help:    "Duration of HTTP request processing in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		HoldEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "holdtrack_hold_events_total",
			Help: "Total number of committed hold mutations by action",
		}, []string{"action"}),
		StreamWatchers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "holdtrack_stream_watchers",
			Help: "Number of connected hold stream watchers",
		}),
	}

	m.registry.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.HoldEventsTotal,
		m.StreamWatchers,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
