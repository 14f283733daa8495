// Package stats exposes the internal counters of the distributor as
// prometheus collectors on a private registry.
package stats

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "distributor"

// Stats holds the internal collectors.  All methods are safe for concurrent use.
type Stats struct {
	registry *prometheus.Registry

	linesReceived     *prometheus.CounterVec
	linesInvalid      *prometheus.CounterVec
	packetsReceived   prometheus.Counter
	packetsTruncated  prometheus.Counter
	snapshotsFlushed  prometheus.Counter
	snapshotsDropped  prometheus.Counter
	forwardErrors     *prometheus.CounterVec
	flushDuration     prometheus.Histogram
	pendingDimensions prometheus.Gauge
	queueLength       prometheus.Gauge
}

// New creates a Stats with all collectors registered.
func New() *Stats {
	s := &Stats{
		registry: prometheus.NewRegistry(),
		linesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_received_total",
			Help:      "Lines received, by listener.",
		}, []string{"listener"}),
		linesInvalid: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_invalid_total",
			Help:      "Lines or batches discarded because they failed to parse, by listener.",
		}, []string{"listener"}),
		packetsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_received_total",
			Help:      "UDP datagrams received.",
		}),
		packetsTruncated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_truncated_total",
			Help:      "UDP datagrams discarded for exceeding the packet size.",
		}),
		snapshotsFlushed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_flushed_total",
			Help:      "Windows flushed from the store.",
		}),
		snapshotsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_dropped_total",
			Help:      "Flushed windows dropped because the delivery queue was full.",
		}),
		forwardErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forward_errors_total",
			Help:      "Failed deliveries, by forwarder.",
		}, []string{"forwarder"}),
		flushDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flush_duration_seconds",
			Help:      "Time taken to drain and aggregate one window.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		pendingDimensions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_dimensions",
			Help:      "Dimensions in the store at the time of the last flush.",
		}),
		queueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "delivery_queue_length",
			Help:      "Snapshots waiting for delivery.",
		}),
	}
	s.registry.MustRegister(
		s.linesReceived,
		s.linesInvalid,
		s.packetsReceived,
		s.packetsTruncated,
		s.snapshotsFlushed,
		s.snapshotsDropped,
		s.forwardErrors,
		s.flushDuration,
		s.pendingDimensions,
		s.queueLength,
		prometheus.NewGoCollector(),
	)
	return s
}

// Registry returns the registry holding the collectors.
func (s *Stats) Registry() *prometheus.Registry {
	return s.registry
}

// Handler serves the collectors in the prometheus exposition format.
func (s *Stats) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

func (s *Stats) LineReceived(listener string) {
	s.linesReceived.WithLabelValues(listener).Inc()
}

func (s *Stats) LineInvalid(listener string) {
	s.linesInvalid.WithLabelValues(listener).Inc()
}

func (s *Stats) PacketReceived() {
	s.packetsReceived.Inc()
}

func (s *Stats) PacketTruncated() {
	s.packetsTruncated.Inc()
}

func (s *Stats) SnapshotFlushed(d time.Duration) {
	s.snapshotsFlushed.Inc()
	s.flushDuration.Observe(d.Seconds())
}

func (s *Stats) SnapshotDropped() {
	s.snapshotsDropped.Inc()
}

func (s *Stats) ForwardError(forwarder string) {
	s.forwardErrors.WithLabelValues(forwarder).Inc()
}

func (s *Stats) SetPending(n int) {
	s.pendingDimensions.Set(float64(n))
}

func (s *Stats) SetQueueLength(n int) {
	s.queueLength.Set(float64(n))
}
