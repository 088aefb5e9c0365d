package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics covers one batch run: parsing, threading, filtering and planning
type PipelineMetrics struct {
	BatchesTotal       *prometheus.CounterVec // Batch runs by status
	BatchDuration      prometheus.Histogram   // Wall time of a batch run
	ItemsParsed        *prometheus.CounterVec // Observations accepted by source
	LinesSkipped       prometheus.Counter     // Malformed lines discarded
	FilterDropped      *prometheus.CounterVec // Items dropped by filter stage
	FilterPassed       prometheus.Counter     // Items surviving every stage
	BaselineFallbacks  prometheus.Counter     // Runs that used the baseline categories
	Threads            *prometheus.GaugeVec   // Threads in the last batch by status
	DescriptorsPlanned *prometheus.CounterVec // Descriptors planned by kind
	LastBatchTime      prometheus.Gauge       // Completion time of the last batch
}

// NewPipelineMetrics creates and registers pipeline metrics
func NewPipelineMetrics(registry *prometheus.Registry) (*PipelineMetrics, error) {
	m := &PipelineMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register pipeline metrics: %w", err)
	}
	return m, nil
}

func (m *PipelineMetrics) initMetrics() {
	m.BatchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dofnot_batches_total",
		Help: "Total number of batch runs by status",
	}, []string{"status"})

	m.BatchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dofnot_batch_duration_seconds",
		Help:    "Time taken by one batch run",
		Buckets: durationBuckets,
	})

	m.ItemsParsed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dofnot_items_parsed_total",
		Help: "Total number of observations accepted by source",
	}, []string{"source"})

	m.LinesSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dofnot_lines_skipped_total",
		Help: "Total number of malformed observation lines discarded",
	})

	m.FilterDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dofnot_filter_dropped_total",
		Help: "Total number of items dropped by filter stage",
	}, []string{"stage"})

	m.FilterPassed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dofnot_filter_passed_total",
		Help: "Total number of items passing every filter stage",
	})

	m.BaselineFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dofnot_filter_baseline_fallbacks_total",
		Help: "Total number of filter runs that fell back to the baseline categories",
	})

	m.Threads = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dofnot_threads",
		Help: "Threads built by the last batch by status",
	}, []string{"status"})

	m.DescriptorsPlanned = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dofnot_descriptors_planned_total",
		Help: "Total number of notification descriptors planned by kind",
	}, []string{"kind"})

	m.LastBatchTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dofnot_last_batch_timestamp_seconds",
		Help: "Completion time of the last batch run",
	})
}

// RecordBatch records a finished batch
func (m *PipelineMetrics) RecordBatch(status string, duration time.Duration) {
	m.BatchesTotal.WithLabelValues(status).Inc()
	m.BatchDuration.Observe(duration.Seconds())
	m.LastBatchTime.SetToCurrentTime()
}

// RecordParsed records accepted and skipped records for one source
func (m *PipelineMetrics) RecordParsed(source string, accepted, skipped int) {
	m.ItemsParsed.WithLabelValues(source).Add(float64(accepted))
	m.LinesSkipped.Add(float64(skipped))
}

// RecordFilter records one filter run
func (m *PipelineMetrics) RecordFilter(dropped map[string]int, passed int, baseline bool) {
	for stage, n := range dropped {
		m.FilterDropped.WithLabelValues(stage).Add(float64(n))
	}
	m.FilterPassed.Add(float64(passed))
	if baseline {
		m.BaselineFallbacks.Inc()
	}
}

// SetThreads records the thread population of the last batch
func (m *PipelineMetrics) SetThreads(active, withdrawn int) {
	m.Threads.WithLabelValues("active").Set(float64(active))
	m.Threads.WithLabelValues("withdrawn").Set(float64(withdrawn))
}

// RecordPlanned counts planned descriptors of one kind
func (m *PipelineMetrics) RecordPlanned(kind string, n int) {
	m.DescriptorsPlanned.WithLabelValues(kind).Add(float64(n))
}

// Describe implements prometheus.Collector
func (m *PipelineMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.BatchesTotal.Describe(ch)
	m.BatchDuration.Describe(ch)
	m.ItemsParsed.Describe(ch)
	m.LinesSkipped.Describe(ch)
	m.FilterDropped.Describe(ch)
	m.FilterPassed.Describe(ch)
	m.BaselineFallbacks.Describe(ch)
	m.Threads.Describe(ch)
	m.DescriptorsPlanned.Describe(ch)
	m.LastBatchTime.Describe(ch)
}

// Collect implements prometheus.Collector
func (m *PipelineMetrics) Collect(ch chan<- prometheus.Metric) {
	m.BatchesTotal.Collect(ch)
	m.BatchDuration.Collect(ch)
	m.ItemsParsed.Collect(ch)
	m.LinesSkipped.Collect(ch)
	m.FilterDropped.Collect(ch)
	m.FilterPassed.Collect(ch)
	m.BaselineFallbacks.Collect(ch)
	m.Threads.Collect(ch)
	m.DescriptorsPlanned.Collect(ch)
	m.LastBatchTime.Collect(ch)
}
