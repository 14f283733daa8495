// Package datadog forwards aggregated metrics to the Datadog series API.
package datadog

import (
	"bytes"
	"compress/zlib"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"golang.org/x/net/http2"

	"github.com/atlassian/distributor"
	"github.com/atlassian/distributor/internal/util"
	"github.com/atlassian/distributor/pkg/pool"
)

const (
	apiURL = "https://app.datadoghq.com"
	// ForwarderName is the name of this forwarder.
	ForwarderName        = "datadog"
	userAgent            = "distributor"
	defaultClientTimeout = 9 * time.Second
	// defaultMetricsPerBatch is the default number of metrics to send in a single batch.
	defaultMetricsPerBatch = 1000
	// maxResponseSize is the maximum response size we are willing to read.
	maxResponseSize = 10 * 1024
)

var json = jsoniter.Config{
	EscapeHTML:  false,
	SortMapKeys: false,
}.Froze()

// Client forwards to Datadog.  A failed post is reported, never retried.
type Client struct {
	apiKey          string
	apiEndpoint     string
	metricsPerBatch int
	compress        bool
	client          http.Client
	buffers         *pool.Buffers
	logger          logrus.FieldLogger
	now             func() time.Time // Returns current time. Useful for testing.
}

// Config holds the settings of a Client.
type Config struct {
	APIKey          string
	APIEndpoint     string
	MetricsPerBatch int
	Timeout         time.Duration
	Compress        bool
}

// NewClientFromViper returns a new Datadog API client configured from the datadog section of v.
func NewClientFromViper(v *viper.Viper, logger logrus.FieldLogger) (distributor.Forwarder, error) {
	dd := util.GetSubViper(v, ForwarderName)
	dd.SetDefault("api-endpoint", apiURL)
	dd.SetDefault("metrics-per-batch", defaultMetricsPerBatch)
	dd.SetDefault("timeout", defaultClientTimeout)
	dd.SetDefault("compress-payload", true)
	return NewClient(Config{
		APIKey:          dd.GetString("api-key"),
		APIEndpoint:     dd.GetString("api-endpoint"),
		MetricsPerBatch: dd.GetInt("metrics-per-batch"),
		Timeout:         dd.GetDuration("timeout"),
		Compress:        dd.GetBool("compress-payload"),
	}, logger)
}

// NewClient returns a new Datadog API client.
func NewClient(cfg Config, logger logrus.FieldLogger) (*Client, error) {
	if cfg.APIEndpoint == "" {
		return nil, fmt.Errorf("[%s] apiEndpoint is required", ForwarderName)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("[%s] apiKey is required", ForwarderName)
	}
	if cfg.MetricsPerBatch <= 0 {
		return nil, fmt.Errorf("[%s] metricsPerBatch must be positive", ForwarderName)
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("[%s] timeout must be positive", ForwarderName)
	}
	logger = logger.WithField("forwarder", ForwarderName)
	logger.WithFields(logrus.Fields{
		"timeout":           cfg.Timeout,
		"metrics-per-batch": cfg.MetricsPerBatch,
		"compress-payload":  cfg.Compress,
	}).Info("Created forwarder")

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		TLSHandshakeTimeout: 5 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          50,
		IdleConnTimeout:       1 * time.Minute,
		ResponseHeaderTimeout: 2 * time.Second,
		ExpectContinueTimeout: 2 * time.Second,
	}
	if err := http2.ConfigureTransport(transport); err != nil {
		return nil, err
	}
	return &Client{
		apiKey:          cfg.APIKey,
		apiEndpoint:     strings.TrimRight(cfg.APIEndpoint, "/"),
		metricsPerBatch: cfg.MetricsPerBatch,
		compress:        cfg.Compress,
		client: http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		buffers: pool.NewBuffers(),
		logger:  logger,
		now:     time.Now,
	}, nil
}

// Name returns the name of the forwarder.
func (d *Client) Name() string {
	return ForwarderName
}

// ForwardMetrics posts metrics in batches of at most metrics-per-batch
// series.  Batches are posted concurrently, the returned error joins the
// failures of every batch.
func (d *Client) ForwardMetrics(ctx context.Context, metrics distributor.AggregatedMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	batches := batchSeries(metrics, float64(d.now().Unix()), d.metricsPerBatch)

	var wg sync.WaitGroup
	errs := make([]error, len(batches))
	wg.Add(len(batches))
	for i, ts := range batches {
		go func(i int, ts *timeSeries) {
			defer wg.Done()
			errs[i] = d.post(ctx, "/api/v1/series", ts)
		}(i, ts)
	}
	wg.Wait()
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("[%s] %w", ForwarderName, err)
	}
	return nil
}

func (d *Client) post(ctx context.Context, path string, data interface{}) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("unable to marshal series: %w", err)
	}
	d.logger.WithField("size", len(body)).Debug("Posting series")

	var reqBody io.Reader = bytes.NewReader(body)
	encoding := ""
	if d.compress {
		buf := d.buffers.Get()
		defer d.buffers.Put(buf)
		if err := deflate(buf, body); err != nil {
			return fmt.Errorf("unable to compress series: %w", err)
		}
		reqBody = bytes.NewReader(buf.Bytes())
		encoding = "deflate"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.authenticatedURL(path), reqBody)
	if err != nil {
		return fmt.Errorf("unable to create http.Request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if encoding != "" {
		req.Header.Set("Content-Encoding", encoding)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("error POSTing: %s", strings.Replace(err.Error(), d.apiKey, "*****", -1))
	}
	defer resp.Body.Close()
	respBody := io.LimitReader(resp.Body, maxResponseSize)
	if resp.StatusCode < http.StatusOK || resp.StatusCode > http.StatusNoContent {
		b, _ := io.ReadAll(respBody)
		d.logger.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"body":   string(b),
		}).Info("Failed request")
		return fmt.Errorf("received bad status code %d", resp.StatusCode)
	}
	_, _ = io.Copy(io.Discard, respBody)
	return nil
}

func (d *Client) authenticatedURL(path string) string {
	q := url.Values{
		"api_key": []string{d.apiKey},
	}
	return fmt.Sprintf("%s%s?%s", d.apiEndpoint, path, q.Encode())
}

func deflate(buf *bytes.Buffer, raw []byte) error {
	compressor, err := zlib.NewWriterLevel(buf, zlib.BestCompression)
	if err != nil {
		return err
	}
	_, _ = compressor.Write(raw) // error is propagated through Close
	return compressor.Close()
}
