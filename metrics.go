package distributor

import (
	"fmt"
)

// MetricType is an enumeration of all the possible types of Metric.
type MetricType byte

const (
	_ = iota
	// COUNT is an incremental delta to be summed.
	COUNT MetricType = iota
	// MEASURE is a raw sample to be statistically summarized.
	MEASURE
	// SAMPLE is a last-write-wins gauge value.
	SAMPLE
)

func (m MetricType) String() string {
	switch m {
	case COUNT:
		return "count"
	case MEASURE:
		return "measure"
	case SAMPLE:
		return "sample"
	}
	return "unknown"
}

// Dimension identifies a distinct metric series. It is comparable and is used
// directly as a map key. An empty Source means the series has no source.
type Dimension struct {
	Name   string
	Source string
}

// NewDimension returns a Dimension without a source.
func NewDimension(name string) Dimension {
	return Dimension{Name: name}
}

// HasSource returns true if the Dimension carries a source.
func (d Dimension) HasSource() bool {
	return d.Source != ""
}

// WithSuffix returns a copy of d with suffix appended to the name.
func (d Dimension) WithSuffix(suffix string) Dimension {
	return Dimension{Name: d.Name + suffix, Source: d.Source}
}

// Less orders dimensions by name, then by source.
func (d Dimension) Less(other Dimension) bool {
	if d.Name != other.Name {
		return d.Name < other.Name
	}
	return d.Source < other.Source
}

func (d Dimension) String() string {
	if d.Source == "" {
		return d.Name
	}
	return d.Name + "{source=" + d.Source + "}"
}

// Metric represents a single observed event.
// Count holds the value of a COUNT, Value holds the value of a MEASURE or a SAMPLE.
type Metric struct {
	Type      MetricType
	Dimension Dimension
	Count     uint64
	Value     float64
}

// NewCount returns a COUNT metric.
func NewCount(d Dimension, value uint64) Metric {
	return Metric{Type: COUNT, Dimension: d, Count: value}
}

// NewMeasure returns a MEASURE metric.
func NewMeasure(d Dimension, value float64) Metric {
	return Metric{Type: MEASURE, Dimension: d, Value: value}
}

// NewSample returns a SAMPLE metric.
func NewSample(d Dimension, value float64) Metric {
	return Metric{Type: SAMPLE, Dimension: d, Value: value}
}

func (m Metric) String() string {
	if m.Type == COUNT {
		return fmt.Sprintf("{%s, %s, %d}", m.Type, m.Dimension, m.Count)
	}
	return fmt.Sprintf("{%s, %s, %f}", m.Type, m.Dimension, m.Value)
}
