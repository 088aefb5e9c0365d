package fetch

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/thyholm1234/DOF.not/internal/errors"
	"github.com/thyholm1234/DOF.not/internal/httpclient"
	"github.com/thyholm1234/DOF.not/internal/observation"
	"github.com/thyholm1234/DOF.not/internal/species"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// go-cache janitors live until their cache is collected
		goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"),
	)
}

func logLine(source, region, ts, countSpecies, locality string) string {
	return fmt.Sprintf("[%s-%s] ... %s · [%s] · %s · Fouragerer · %s · DOF · Jens Hansen",
		source, region, ts, source, countSpecies, locality)
}

func writeFile(t *testing.T, path string, lines ...string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600))
}

func TestLogSource(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "su-kobenhavn.log"),
		logLine("su", "kobenhavn", "2025-01-10 08:15:00", "3 Sangsvane", "Amager Strand"),
		"garbage line",
		"",
	)
	writeFile(t, filepath.Join(dir, "sub-kobenhavn.log"),
		logLine("sub", "kobenhavn", "2025-01-10 09:00:00", "1 Hvid Stork", "Kalvebod Fælled"),
	)
	writeFile(t, filepath.Join(dir, "sub-fyn.log"),
		logLine("sub", "fyn", "2025-01-10 07:00:00", "2 Sort Glente", "Odense Å"),
	)

	src := NewLogSource(dir, observation.NewParser(nil))
	assert.Equal(t, "log", src.Name())

	items, err := src.Fetch(t.Context(), "kobenhavn")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, species.CategorySU, items[0].Source)
	assert.Equal(t, species.CategorySUB, items[1].Source)
	for _, it := range items {
		assert.Equal(t, "kobenhavn", it.Region)
	}

	items, err = src.Fetch(t.Context(), "fyn")
	require.NoError(t, err, "one missing file is not an error")
	require.Len(t, items, 1)

	_, err = src.Fetch(t.Context(), "bornholm")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryNotFound))
}

const baseURL = "https://data.example.test/regions"

func mockedClient(t *testing.T) *httpclient.Client {
	t.Helper()
	client := httpclient.New(nil)
	httpmock.ActivateNonDefault(client.HTTPClient())
	t.Cleanup(httpmock.DeactivateAndReset)
	return client
}

type countingRecorder struct {
	mu        sync.Mutex
	fetches   map[string]int
	failures  int
	cacheHits atomic.Int32
}

func (r *countingRecorder) RecordFetch(_, region string, items int, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fetches == nil {
		r.fetches = make(map[string]int)
	}
	r.fetches[region] = items
	if err != nil {
		r.failures++
	}
}

func (r *countingRecorder) RecordCacheHit() { r.cacheHits.Add(1) }

const regionDocument = `{"items": [
	{"obsid": "101", "art": "Sangsvane", "antal": "ca. 12", "lok": "Amager Strand", "dof_afdeling": "DOF København",
	 "kategori": "sub", "thread_id": "sangsvane-1", "ymd": "2025-01-10", "ts_obs": "2025-01-10T08:15:00+01:00"},
	{"obsid": "102", "art": "Hvid Stork", "antal_num": 1, "lok": "Tønder Marsk", "kategori": "su",
	 "ts_obs": "2025-01-10T09:15:00+01:00"},
	{"obsid": "103", "antal": "4"}
]}`

func TestHTTPSource(t *testing.T) {
	client := mockedClient(t)
	httpmock.RegisterResponder(http.MethodGet, baseURL+"/kobenhavn.json",
		httpmock.NewStringResponder(http.StatusOK, regionDocument))
	httpmock.RegisterResponder(http.MethodGet, baseURL+"/fyn.json",
		httpmock.NewStringResponder(http.StatusServiceUnavailable, "busy"))

	rec := &countingRecorder{}
	src, err := NewHTTPSource(baseURL+"/", client, observation.NewParser(nil), time.Minute, rec)
	require.NoError(t, err)
	assert.Equal(t, baseURL+"/kobenhavn.json", src.URL("kobenhavn"))

	items, err := src.Fetch(t.Context(), "kobenhavn")
	require.NoError(t, err)
	require.Len(t, items, 2, "items without a species are dropped")
	assert.Equal(t, "Sangsvane", items[0].Species)
	assert.Equal(t, "kobenhavn", items[0].Region)
	assert.Equal(t, "kobenhavn", items[1].Region, "unknown branch falls back to the fetched region")
	n, ok := items[0].CountValue()
	require.True(t, ok)
	assert.Equal(t, 12, n)

	_, err = src.Fetch(t.Context(), "kobenhavn")
	require.NoError(t, err)
	assert.Equal(t, 1, httpmock.GetCallCountInfo()["GET "+baseURL+"/kobenhavn.json"])
	assert.Equal(t, int32(1), rec.cacheHits.Load())

	src.Flush()
	_, err = src.Fetch(t.Context(), "kobenhavn")
	require.NoError(t, err)
	assert.Equal(t, 2, httpmock.GetCallCountInfo()["GET "+baseURL+"/kobenhavn.json"])

	_, err = src.Fetch(t.Context(), "fyn")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryHTTP))
}

func TestHTTPSourceRejectsBadURL(t *testing.T) {
	t.Parallel()

	_, err := NewHTTPSource("file:///tmp", nil, nil, 0, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

// stubSource serves fixed items per region and fails for regions in fail
type stubSource struct {
	items    map[string][]observation.Observation
	fail     map[string]bool
	inflight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) Fetch(ctx context.Context, region string) ([]observation.Observation, error) {
	cur := s.inflight.Add(1)
	defer s.inflight.Add(-1)
	for {
		old := s.peak.Load()
		if cur <= old || s.peak.CompareAndSwap(old, cur) {
			break
		}
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.fail[region] {
		return nil, errors.NewStd("unavailable")
	}
	return s.items[region], nil
}

func at(t *testing.T, s string) *time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return &ts
}

func intp(v int) *int { return &v }

func TestPoolFetch(t *testing.T) {
	t.Parallel()

	src := &stubSource{
		items: map[string][]observation.Observation{
			"kobenhavn": {
				{Species: "a", Timestamp: at(t, "2025-01-10T08:00:00Z")},
				{Species: "b"},
				{Species: "c", Timestamp: at(t, "2025-01-10T10:00:00Z")},
			},
			"fyn": {{Species: "d", Timestamp: at(t, "2025-01-10T09:00:00Z")}},
		},
		fail: map[string]bool{"bornholm": true},
	}
	rec := &countingRecorder{}

	res, err := NewPool(src, WithRecorder(rec)).Fetch(t.Context(), []string{"kobenhavn", "bornholm", "fyn"})
	require.NoError(t, err, "a failing region never fails the pool")
	assert.Equal(t, []string{"bornholm"}, res.Failed)

	names := func(items []observation.Observation) []string {
		out := make([]string, len(items))
		for i := range items {
			out[i] = items[i].Species
		}
		return out
	}
	assert.Equal(t, []string{"c", "a", "b"}, names(res.ByRegion["kobenhavn"]), "newest first, unknown time last")
	assert.Equal(t, []string{"c", "a", "b", "d"}, names(res.Items))
	assert.Equal(t, []string{"b", "a", "d", "c"}, names(res.Chronological()))

	assert.Equal(t, 1, rec.failures)
	assert.Equal(t, 3, rec.fetches["kobenhavn"])
	assert.Equal(t, 0, rec.fetches["bornholm"])
}

func TestPoolShaping(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation(observation.DefaultTimezone)
	require.NoError(t, err)
	now := func() time.Time { return time.Date(2025, 1, 10, 12, 0, 0, 0, loc) }

	src := &stubSource{items: map[string][]observation.Observation{
		"r": {
			{Species: "today", Timestamp: at(t, "2025-01-10T07:00:00Z")},
			// 23:30 UTC on the 9th is the 10th in Copenhagen
			{Species: "late", Timestamp: at(t, "2025-01-09T23:30:00Z")},
			{Species: "yesterday", Timestamp: at(t, "2025-01-09T10:00:00Z")},
			{Species: "daykey", DayKey: "2025-01-10"},
			{Species: "zero", Count: intp(0), Timestamp: at(t, "2025-01-10T08:00:00Z")},
			{Species: "many", Count: intp(4), Timestamp: at(t, "2025-01-10T06:00:00Z")},
		},
	}}

	tests := []struct {
		name string
		opts []Option
		want []string
	}{
		{"no filters", nil, []string{"zero", "today", "many", "late", "yesterday", "daykey"}},
		{"today only", []Option{WithTodayOnly(loc, now)}, []string{"zero", "today", "many", "late", "daykey"}},
		{"hide zero", []Option{WithHideZero()}, []string{"today", "many", "late", "yesterday", "daykey"}},
		{"capped", []Option{WithMaxItems(2), WithHideZero()}, []string{"today", "many"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res, err := NewPool(src, tt.opts...).Fetch(t.Context(), []string{"r"})
			require.NoError(t, err)
			got := make([]string, 0, len(res.Items))
			for i := range res.Items {
				got = append(got, res.Items[i].Species)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPoolConcurrencyLimit(t *testing.T) {
	t.Parallel()

	src := &stubSource{delay: 10 * time.Millisecond}
	regions := make([]string, 12)
	for i := range regions {
		regions[i] = fmt.Sprintf("r%d", i)
	}

	res, err := NewPool(src, WithConcurrency(3)).Fetch(t.Context(), regions)
	require.NoError(t, err)
	assert.Empty(t, res.Failed)
	assert.LessOrEqual(t, src.peak.Load(), int32(3))
}

func TestPoolCancellation(t *testing.T) {
	t.Parallel()

	src := &stubSource{delay: time.Second}
	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	regions := []string{"a", "b", "c", "d"}
	start := time.Now()
	_, err := NewPool(src, WithConcurrency(1)).Fetch(ctx, regions)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}
