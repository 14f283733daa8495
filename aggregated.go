package distributor

import (
	"fmt"
)

// AggregatedMetricType tags the output of aggregation.
type AggregatedMetricType byte

const (
	_ = iota
	// AggregatedCount is a summed counter, or the number of samples of a measure.
	AggregatedCount AggregatedMetricType = iota
	// AggregatedMeasure is one statistic computed over the samples of a measure.
	AggregatedMeasure
	// AggregatedSample is the last value of a sample.
	AggregatedSample
)

func (a AggregatedMetricType) String() string {
	switch a {
	case AggregatedCount:
		return "count"
	case AggregatedMeasure:
		return "measure"
	case AggregatedSample:
		return "sample"
	}
	return "unknown"
}

// AggregatedMetric is one entry of a flushed window.
type AggregatedMetric struct {
	Type   AggregatedMetricType
	Name   string
	Source string // Source of the originating Dimension, may be empty
	Value  float64
}

func (a AggregatedMetric) String() string {
	return fmt.Sprintf("{%s, %s, %s, %f}", a.Type, a.Name, a.Source, a.Value)
}

// AggregatedMetrics is the output of one flush.  It is built once and then
// owned by the delivery stage, it must not be mutated after it is handed off.
type AggregatedMetrics []AggregatedMetric

// Find returns the first entry with the given type and name.
func (am AggregatedMetrics) Find(t AggregatedMetricType, name string) (AggregatedMetric, bool) {
	for _, m := range am {
		if m.Type == t && m.Name == name {
			return m, true
		}
	}
	return AggregatedMetric{}, false
}
