package httpclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thyholm1234/DOF.not/internal/errors"
)

func newTestClient(t *testing.T, cfg *Config) *Client {
	t.Helper()
	client := New(cfg)
	t.Cleanup(client.Close)
	return client
}

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func TestNewDefaults(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, nil)
	assert.Equal(t, DefaultTimeout, client.defaultTimeout)
	assert.Equal(t, defaultUserAgent, client.userAgent)

	custom := newTestClient(t, &Config{DefaultTimeout: 2 * time.Second, UserAgent: "test/1.0"})
	assert.Equal(t, 2*time.Second, custom.defaultTimeout)
	assert.Equal(t, "test/1.0", custom.userAgent)
}

func TestDoSetsUserAgent(t *testing.T) {
	t.Parallel()

	var ua atomic.Value
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		ua.Store(r.Header.Get("User-Agent"))
		_, _ = io.WriteString(w, "ok")
	})

	client := newTestClient(t, nil)
	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, server.URL, http.NoBody)
	require.NoError(t, err)

	resp, err := client.Do(context.Background(), req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	assert.Equal(t, "ok", string(body))
	assert.Equal(t, defaultUserAgent, ua.Load())
}

func TestDefaultTimeoutApplies(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	client := newTestClient(t, &Config{DefaultTimeout: 50 * time.Millisecond})
	var out map[string]any
	err := client.GetJSON(context.Background(), server.URL, &out)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryTimeout))
}

func TestGetJSON(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, nil)
	httpmock.ActivateNonDefault(client.HTTPClient())
	t.Cleanup(func() { httpmock.DeactivateAndReset() })

	httpmock.RegisterResponder(http.MethodGet, "https://example.test/items.json",
		httpmock.NewStringResponder(http.StatusOK, `{"items":[{"art":"Sangsvane"}]}`))
	httpmock.RegisterResponder(http.MethodGet, "https://example.test/missing.json",
		httpmock.NewStringResponder(http.StatusNotFound, `gone`))
	httpmock.RegisterResponder(http.MethodGet, "https://example.test/broken.json",
		httpmock.NewStringResponder(http.StatusOK, `{"items":`))

	var doc struct {
		Items []map[string]string `json:"items"`
	}
	require.NoError(t, client.GetJSON(t.Context(), "https://example.test/items.json", &doc))
	assert.Equal(t, "Sangsvane", doc.Items[0]["art"])

	err := client.GetJSON(t.Context(), "https://example.test/missing.json", &doc)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryHTTP))

	err = client.GetJSON(t.Context(), "https://example.test/broken.json", &doc)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileParsing))
}

func TestPostJSON(t *testing.T) {
	t.Parallel()

	var got map[string]string
	var auth string
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	})

	client := newTestClient(t, nil)
	err := client.PostJSON(t.Context(), server.URL, map[string]string{"tag": "thread-x"},
		map[string]string{"Authorization": "Bearer k"})
	require.NoError(t, err)
	assert.Equal(t, "thread-x", got["tag"])
	assert.Equal(t, "Bearer k", auth)
}

func TestPostJSONRejectsErrorStatus(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	})

	err := newTestClient(t, nil).PostJSON(t.Context(), server.URL, map[string]int{"a": 1}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryHTTP))
}

func TestHooks(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	client := newTestClient(t, nil)
	var before, after atomic.Int32
	var status atomic.Int32
	client.SetBeforeRequestHook(func(*http.Request) { before.Add(1) })
	client.SetAfterResponseHook(func(_ *http.Request, resp *http.Response, _ time.Duration, err error) {
		after.Add(1)
		if err == nil {
			status.Store(int32(resp.StatusCode))
		}
	})

	require.NoError(t, client.PostJSON(t.Context(), server.URL, struct{}{}, nil))
	assert.Equal(t, int32(1), before.Load())
	assert.Equal(t, int32(1), after.Load())
	assert.Equal(t, int32(http.StatusNoContent), status.Load())
}

func TestDoNilRequest(t *testing.T) {
	t.Parallel()

	_, err := newTestClient(t, nil).Do(t.Context(), nil)
	require.Error(t, err)
}
