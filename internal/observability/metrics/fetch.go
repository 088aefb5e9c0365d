package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// FetchMetrics covers region data fetches
type FetchMetrics struct {
	FetchesTotal  *prometheus.CounterVec   // Fetches by source kind and status
	FetchDuration *prometheus.HistogramVec // Fetch latency by source kind
	RegionItems   *prometheus.GaugeVec     // Items kept from the last fetch by region
	CacheHits     prometheus.Counter       // Responses served from the fetch cache
}

// NewFetchMetrics creates and registers fetch metrics
func NewFetchMetrics(registry *prometheus.Registry) (*FetchMetrics, error) {
	m := &FetchMetrics{
		FetchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dofnot_region_fetches_total",
			Help: "Total number of region fetches by source and status",
		}, []string{"source", "status"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dofnot_region_fetch_duration_seconds",
			Help:    "Time taken to fetch one region",
			Buckets: durationBuckets,
		}, []string{"source"}),
		RegionItems: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dofnot_region_items",
			Help: "Items kept from the last fetch of a region",
		}, []string{"region"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dofnot_region_fetch_cache_hits_total",
			Help: "Total number of region fetches answered from cache",
		}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register fetch metrics: %w", err)
	}
	return m, nil
}

// RecordFetch records one region fetch. A failed fetch keeps zero items.
func (m *FetchMetrics) RecordFetch(source, region string, items int, duration time.Duration, err error) {
	m.FetchesTotal.WithLabelValues(source, statusOf(err)).Inc()
	m.FetchDuration.WithLabelValues(source).Observe(duration.Seconds())
	m.RegionItems.WithLabelValues(region).Set(float64(items))
}

// RecordCacheHit counts a cached response
func (m *FetchMetrics) RecordCacheHit() {
	m.CacheHits.Inc()
}

// Describe implements prometheus.Collector
func (m *FetchMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.FetchesTotal.Describe(ch)
	m.FetchDuration.Describe(ch)
	m.RegionItems.Describe(ch)
	m.CacheHits.Describe(ch)
}

// Collect implements prometheus.Collector
func (m *FetchMetrics) Collect(ch chan<- prometheus.Metric) {
	m.FetchesTotal.Collect(ch)
	m.FetchDuration.Collect(ch)
	m.RegionItems.Collect(ch)
	m.CacheHits.Collect(ch)
}
