package fixtures

import (
	"context"
	"sync"

	"github.com/atlassian/distributor"
)

// CapturingRecorder stores everything it is asked to record.
type CapturingRecorder struct {
	mu      sync.Mutex
	metrics []distributor.Metric
}

func (cr *CapturingRecorder) Record(metrics []distributor.Metric) {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	cr.metrics = append(cr.metrics, metrics...)
}

// Metrics returns a copy of the recorded metrics.
func (cr *CapturingRecorder) Metrics() []distributor.Metric {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	out := make([]distributor.Metric, len(cr.metrics))
	copy(out, cr.metrics)
	return out
}

// Len returns the number of recorded metrics.
func (cr *CapturingRecorder) Len() int {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	return len(cr.metrics)
}

// CapturingForwarder is a distributor.Forwarder which keeps every snapshot it
// receives and publishes it on C if C is not nil.  Err is returned from every
// call.
type CapturingForwarder struct {
	NameValue string
	Err       error
	C         chan distributor.AggregatedMetrics

	mu        sync.Mutex
	snapshots []distributor.AggregatedMetrics
}

func (cf *CapturingForwarder) Name() string {
	if cf.NameValue == "" {
		return "capturing"
	}
	return cf.NameValue
}

func (cf *CapturingForwarder) ForwardMetrics(ctx context.Context, metrics distributor.AggregatedMetrics) error {
	cf.mu.Lock()
	cf.snapshots = append(cf.snapshots, metrics)
	cf.mu.Unlock()
	if cf.C != nil {
		select {
		case cf.C <- metrics:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return cf.Err
}

// Snapshots returns the snapshots received so far.
func (cf *CapturingForwarder) Snapshots() []distributor.AggregatedMetrics {
	cf.mu.Lock()
	defer cf.mu.Unlock()
	out := make([]distributor.AggregatedMetrics, len(cf.snapshots))
	copy(out, cf.snapshots)
	return out
}
