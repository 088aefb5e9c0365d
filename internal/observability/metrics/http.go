package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics covers the API surface and outbound requests
type HTTPMetrics struct {
	RequestsTotal    *prometheus.CounterVec   // Inbound requests by method, route and status code
	RequestDuration  *prometheus.HistogramVec // Inbound latency by route
	OutboundTotal    *prometheus.CounterVec   // Outbound requests by host and status
	OutboundDuration *prometheus.HistogramVec // Outbound latency by host
}

// NewHTTPMetrics creates and registers HTTP metrics
func NewHTTPMetrics(registry *prometheus.Registry) (*HTTPMetrics, error) {
	m := &HTTPMetrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dofnot_http_requests_total",
			Help: "Total number of API requests by method, route and status code",
		}, []string{"method", "route", "code"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dofnot_http_request_duration_seconds",
			Help:    "API request latency by route",
			Buckets: durationBuckets,
		}, []string{"route"}),
		OutboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dofnot_http_outbound_requests_total",
			Help: "Total number of outbound HTTP requests by host and status",
		}, []string{"host", "status"}),
		OutboundDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dofnot_http_outbound_duration_seconds",
			Help:    "Outbound HTTP request latency by host",
			Buckets: durationBuckets,
		}, []string{"host"}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register HTTP metrics: %w", err)
	}
	return m, nil
}

// RecordRequest records one served API request
func (m *HTTPMetrics) RecordRequest(method, route string, code int, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// ObserveOutbound matches the httpclient after-response hook
func (m *HTTPMetrics) ObserveOutbound(req *http.Request, resp *http.Response, duration time.Duration, err error) {
	status := StatusError
	if err == nil && resp != nil && resp.StatusCode < 400 {
		status = StatusSuccess
	}
	m.OutboundTotal.WithLabelValues(req.URL.Host, status).Inc()
	m.OutboundDuration.WithLabelValues(req.URL.Host).Observe(duration.Seconds())
}

// Describe implements prometheus.Collector
func (m *HTTPMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.RequestsTotal.Describe(ch)
	m.RequestDuration.Describe(ch)
	m.OutboundTotal.Describe(ch)
	m.OutboundDuration.Describe(ch)
}

// Collect implements prometheus.Collector
func (m *HTTPMetrics) Collect(ch chan<- prometheus.Metric) {
	m.RequestsTotal.Collect(ch)
	m.RequestDuration.Collect(ch)
	m.OutboundTotal.Collect(ch)
	m.OutboundDuration.Collect(ch)
}
