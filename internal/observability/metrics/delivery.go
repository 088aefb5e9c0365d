package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DeliveryMetrics covers notification delivery providers
type DeliveryMetrics struct {
	DeliveriesTotal  *prometheus.CounterVec   // Attempts by provider and status
	DeliveryDuration *prometheus.HistogramVec // Latency by provider
	LastSuccessTime  *prometheus.GaugeVec     // Last successful delivery by provider
}

// NewDeliveryMetrics creates and registers delivery metrics
func NewDeliveryMetrics(registry *prometheus.Registry) (*DeliveryMetrics, error) {
	m := &DeliveryMetrics{
		DeliveriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dofnot_deliveries_total",
			Help: "Total number of notification delivery attempts by provider and status",
		}, []string{"provider", "status"}),
		DeliveryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dofnot_delivery_duration_seconds",
			Help:    "Time taken to deliver one notification by provider",
			Buckets: durationBuckets,
		}, []string{"provider"}),
		LastSuccessTime: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dofnot_delivery_last_success_timestamp_seconds",
			Help: "Time of the last successful delivery by provider",
		}, []string{"provider"}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register delivery metrics: %w", err)
	}
	return m, nil
}

// RecordDelivery records one delivery attempt
func (m *DeliveryMetrics) RecordDelivery(provider, status string, duration time.Duration) {
	m.DeliveriesTotal.WithLabelValues(provider, status).Inc()
	m.DeliveryDuration.WithLabelValues(provider).Observe(duration.Seconds())
	if status == StatusSuccess {
		m.LastSuccessTime.WithLabelValues(provider).SetToCurrentTime()
	}
}

// Describe implements prometheus.Collector
func (m *DeliveryMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.DeliveriesTotal.Describe(ch)
	m.DeliveryDuration.Describe(ch)
	m.LastSuccessTime.Describe(ch)
}

// Collect implements prometheus.Collector
func (m *DeliveryMetrics) Collect(ch chan<- prometheus.Metric) {
	m.DeliveriesTotal.Collect(ch)
	m.DeliveryDuration.Collect(ch)
	m.LastSuccessTime.Collect(ch)
}
