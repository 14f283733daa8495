package distributor

import (
	"context"
)

// Runnable is a long running function intended to be launched in a goroutine.
type Runnable func(context.Context)

// Runner exposes a Runnable through an interface
type Runner interface {
	Run(context.Context)
}

// MaybeAppendRunnable appends maybeRunner.Run to runnables if it is a Runner.
func MaybeAppendRunnable(runnables []Runnable, maybeRunner interface{}) []Runnable {
	if r, ok := maybeRunner.(Runner); ok {
		runnables = append(runnables, r.Run)
	}
	return runnables
}

// Recorder accepts metrics for aggregation.  Implementations must be safe for concurrent use.
type Recorder interface {
	Record([]Metric)
}

// Parser turns a raw payload into metrics.  A non-nil error means none of the payload was accepted.
type Parser interface {
	Parse([]byte) ([]Metric, error)
}

// LineReader extracts metrics embedded in a free-text log line.  A line that does not match yields no metrics.
type LineReader interface {
	Read(line string) []Metric
}

// Forwarder delivers aggregated metrics to an external system.
// If Forwarder implements the Runner interface, it's started in a new goroutine at creation.
type Forwarder interface {
	// Name returns the name of the forwarder.
	Name() string
	// ForwardMetrics delivers one flushed window. It must not mutate metrics.
	ForwardMetrics(ctx context.Context, metrics AggregatedMetrics) error
}
