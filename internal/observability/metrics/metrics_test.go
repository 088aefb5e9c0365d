package metrics

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineMetrics(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := NewPipelineMetrics(registry)
	require.NoError(t, err)

	m.RecordParsed("log", 10, 2)
	m.RecordParsed("log", 5, 0)
	m.RecordFilter(map[string]int{"region": 4, "exclude": 1}, 3, true)
	m.SetThreads(7, 2)
	m.RecordPlanned("sighting", 3)
	m.RecordBatch(StatusSuccess, 150*time.Millisecond)

	assert.InDelta(t, 15, testutil.ToFloat64(m.ItemsParsed.WithLabelValues("log")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.LinesSkipped), 0)
	assert.InDelta(t, 4, testutil.ToFloat64(m.FilterDropped.WithLabelValues("region")), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(m.FilterPassed), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.BaselineFallbacks), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.Threads.WithLabelValues("withdrawn")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.BatchesTotal.WithLabelValues(StatusSuccess)), 0)

	families, err := registry.Gather()
	require.NoError(t, err)
	hist := findFamily(t, families, "dofnot_batch_duration_seconds")
	require.Len(t, hist.GetMetric(), 1)
	assert.Equal(t, uint64(1), hist.GetMetric()[0].GetHistogram().GetSampleCount())
}

func TestDuplicateRegistrationFails(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	_, err := NewDeliveryMetrics(registry)
	require.NoError(t, err)
	_, err = NewDeliveryMetrics(registry)
	require.Error(t, err)
}

func TestDeliveryMetrics(t *testing.T) {
	t.Parallel()

	m, err := NewDeliveryMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	m.RecordDelivery("webhook", StatusSuccess, 20*time.Millisecond)
	m.RecordDelivery("webhook", StatusError, time.Second)

	assert.InDelta(t, 1, testutil.ToFloat64(m.DeliveriesTotal.WithLabelValues("webhook", StatusSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.DeliveriesTotal.WithLabelValues("webhook", StatusError)), 0)
	assert.Positive(t, testutil.ToFloat64(m.LastSuccessTime.WithLabelValues("webhook")))
}

func TestFetchMetrics(t *testing.T) {
	t.Parallel()

	m, err := NewFetchMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	m.RecordFetch("http", "fyn", 12, 10*time.Millisecond, nil)
	m.RecordFetch("http", "fyn", 0, 10*time.Millisecond, assert.AnError)
	m.RecordCacheHit()

	assert.InDelta(t, 1, testutil.ToFloat64(m.FetchesTotal.WithLabelValues("http", StatusError)), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.RegionItems.WithLabelValues("fyn")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.CacheHits), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.FetchDuration))
}

func TestMQTTMetrics(t *testing.T) {
	t.Parallel()

	m, err := NewMQTTMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	m.UpdateConnectionStatus(true)
	m.RecordPublish(128, time.Millisecond, nil)
	m.RecordPublish(64, time.Millisecond, assert.AnError)
	m.UpdateConnectionStatus(false)

	assert.InDelta(t, 0, testutil.ToFloat64(m.ConnectionStatus), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.MessagesDelivered), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Errors), 0)
}

func TestHTTPMetrics(t *testing.T) {
	t.Parallel()

	m, err := NewHTTPMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	m.RecordRequest(http.MethodGet, "/healthz", http.StatusOK, time.Millisecond)
	req := &http.Request{URL: &url.URL{Scheme: "https", Host: "dofbasen.dk"}}
	m.ObserveOutbound(req, &http.Response{StatusCode: http.StatusOK}, time.Millisecond, nil)
	m.ObserveOutbound(req, nil, time.Millisecond, assert.AnError)

	assert.InDelta(t, 1, testutil.ToFloat64(m.RequestsTotal.WithLabelValues(http.MethodGet, "/healthz", "200")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.OutboundTotal.WithLabelValues("dofbasen.dk", StatusSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.OutboundTotal.WithLabelValues("dofbasen.dk", StatusError)), 0)
}

func findFamily(t *testing.T, families []*dto.MetricFamily, name string) *dto.MetricFamily {
	t.Helper()
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	require.Failf(t, "metric family not found", "%s", name)
	return nil
}
