package datadog

import (
	"compress/zlib"
	"context"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlassian/distributor"
	"github.com/atlassian/distributor/internal/fixtures"
)

type capturedRequest struct {
	apiKey string
	series timeSeries
}

// newTestServer returns a server decoding every posted series.  Requests for
// which fail returns true are answered with 500.
func newTestServer(t *testing.T, fail func(n uint32) bool) (*httptest.Server, func() []capturedRequest) {
	var mu sync.Mutex
	var requests []capturedRequest
	var n uint32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/series", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		if !assert.Equal(t, http.MethodPost, r.Method) {
			return
		}
		var body io.Reader = r.Body
		if r.Header.Get("Content-Encoding") == "deflate" {
			zr, err := zlib.NewReader(r.Body)
			if !assert.NoError(t, err) {
				return
			}
			body = zr
		}
		data, err := io.ReadAll(body)
		if !assert.NoError(t, err) {
			return
		}
		var ts timeSeries
		if !assert.NoError(t, json.Unmarshal(data, &ts)) {
			return
		}
		mu.Lock()
		requests = append(requests, capturedRequest{apiKey: r.URL.Query().Get("api_key"), series: ts})
		mu.Unlock()
		if fail != nil && fail(atomic.AddUint32(&n, 1)) {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})
	ts := httptest.NewServer(mux)
	return ts, func() []capturedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]capturedRequest(nil), requests...)
	}
}

func newTestClient(t *testing.T, endpoint string, perBatch int, compress bool) *Client {
	client, err := NewClient(Config{
		APIKey:          "apiKey123",
		APIEndpoint:     endpoint,
		MetricsPerBatch: perBatch,
		Timeout:         time.Second,
		Compress:        compress,
	}, fixtures.NewTestLogger(t))
	require.NoError(t, err)
	client.now = func() time.Time {
		return time.Unix(100, 0)
	}
	return client
}

func testMetrics() distributor.AggregatedMetrics {
	return distributor.AggregatedMetrics{
		{Type: distributor.AggregatedCount, Name: "requests", Value: 3},
		{Type: distributor.AggregatedMeasure, Name: "latency.max", Source: "web", Value: 1.5},
		{Type: distributor.AggregatedSample, Name: "conns", Value: 7},
	}
}

func TestForwardMetrics(t *testing.T) {
	t.Parallel()
	for name, compress := range map[string]bool{"plain": false, "deflate": true} {
		compress := compress
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ts, requests := newTestServer(t, nil)
			defer ts.Close()
			client := newTestClient(t, ts.URL, defaultMetricsPerBatch, compress)

			require.NoError(t, client.ForwardMetrics(context.Background(), testMetrics()))

			got := requests()
			require.Len(t, got, 1)
			assert.Equal(t, "apiKey123", got[0].apiKey)
			assert.Equal(t, []metric{
				{Metric: "requests", Points: [1]point{{100, 3}}, Type: counter},
				{Metric: "latency.max", Host: "web", Points: [1]point{{100, 1.5}}, Type: gauge},
				{Metric: "conns", Points: [1]point{{100, 7}}, Type: gauge},
			}, got[0].series.Series)
		})
	}
}

func TestForwardMetricsInBatches(t *testing.T) {
	t.Parallel()
	ts, requests := newTestServer(t, nil)
	defer ts.Close()
	client := newTestClient(t, ts.URL, 2, true)

	require.NoError(t, client.ForwardMetrics(context.Background(), testMetrics()))

	got := requests()
	require.Len(t, got, 2)
	total := 0
	for _, r := range got {
		assert.LessOrEqual(t, len(r.series.Series), 2)
		total += len(r.series.Series)
	}
	assert.Equal(t, 3, total)
}

func TestForwardMetricsFailureIsNotRetried(t *testing.T) {
	t.Parallel()
	ts, requests := newTestServer(t, func(uint32) bool { return true })
	defer ts.Close()
	client := newTestClient(t, ts.URL, defaultMetricsPerBatch, false)

	err := client.ForwardMetrics(context.Background(), testMetrics())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "received bad status code 500")
	assert.Len(t, requests(), 1)
}

func TestForwardMetricsHidesAPIKey(t *testing.T) {
	t.Parallel()
	ts, _ := newTestServer(t, nil)
	ts.Close()
	client := newTestClient(t, ts.URL, defaultMetricsPerBatch, false)

	err := client.ForwardMetrics(context.Background(), testMetrics())
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "apiKey123")
}

func TestForwardMetricsEmpty(t *testing.T) {
	t.Parallel()
	ts, requests := newTestServer(t, nil)
	defer ts.Close()
	client := newTestClient(t, ts.URL, defaultMetricsPerBatch, false)

	require.NoError(t, client.ForwardMetrics(context.Background(), distributor.AggregatedMetrics{}))
	assert.Empty(t, requests())
}

func TestNewClientValidation(t *testing.T) {
	t.Parallel()
	valid := Config{APIKey: "k", APIEndpoint: apiURL, MetricsPerBatch: 1, Timeout: time.Second}
	logger := fixtures.NewTestLogger(t)

	_, err := NewClient(valid, logger)
	require.NoError(t, err)

	for name, mutate := range map[string]func(*Config){
		"no key":      func(c *Config) { c.APIKey = "" },
		"no endpoint": func(c *Config) { c.APIEndpoint = "" },
		"no batch":    func(c *Config) { c.MetricsPerBatch = 0 },
		"no timeout":  func(c *Config) { c.Timeout = 0 },
	} {
		cfg := valid
		mutate(&cfg)
		_, err := NewClient(cfg, logger)
		assert.Error(t, err, name)
	}
}

func TestNewClientFromViper(t *testing.T) {
	t.Parallel()
	v := viper.New()
	v.Set("datadog", map[string]interface{}{
		"api-key":           "abc",
		"api-endpoint":      "http://localhost:1234/",
		"metrics-per-batch": 10,
	})
	f, err := NewClientFromViper(v, fixtures.NewTestLogger(t))
	require.NoError(t, err)
	client := f.(*Client)
	assert.Equal(t, ForwarderName, client.Name())
	assert.Equal(t, 10, client.metricsPerBatch)
	assert.True(t, client.compress)
	assert.Equal(t, "http://localhost:1234/api/v1/series?api_key=abc", client.authenticatedURL("/api/v1/series"))
}

func TestBatchSeries(t *testing.T) {
	t.Parallel()
	metrics := make(distributor.AggregatedMetrics, 5)
	batches := batchSeries(metrics, 1, 2)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0].Series, 2)
	assert.Len(t, batches[1].Series, 2)
	assert.Len(t, batches[2].Series, 1)
	assert.Empty(t, batchSeries(nil, 1, 2))
}

func TestCoerceToNumeric(t *testing.T) {
	t.Parallel()
	assert.Equal(t, -1.0, coerceToNumeric(math.NaN()))
	assert.Equal(t, math.MaxFloat64, coerceToNumeric(math.Inf(1)))
	assert.Equal(t, -math.MaxFloat64, coerceToNumeric(math.Inf(-1)))
	assert.Equal(t, 1.5, coerceToNumeric(1.5))
}
