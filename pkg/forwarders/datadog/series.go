package datadog

import (
	"math"

	"github.com/atlassian/distributor"
)

type metricType string

const (
	// gauge is datadog gauge type.
	gauge metricType = "gauge"
	// counter is a datadog counter type.
	counter metricType = "count"
)

// timeSeries represents a time series data structure.
type timeSeries struct {
	Series []metric `json:"series"`
}

// metric represents a metric data structure for Datadog.
type metric struct {
	Host   string     `json:"host,omitempty"`
	Metric string     `json:"metric"`
	Points [1]point   `json:"points"`
	Type   metricType `json:"type"`
}

// point is a Datadog data point.
type point [2]float64

func typeOf(t distributor.AggregatedMetricType) metricType {
	if t == distributor.AggregatedCount {
		return counter
	}
	return gauge
}

// batchSeries converts metrics into series of at most perBatch entries each,
// all stamped with timestamp.
func batchSeries(metrics distributor.AggregatedMetrics, timestamp float64, perBatch int) []*timeSeries {
	var batches []*timeSeries
	var ts *timeSeries
	for _, m := range metrics {
		if ts == nil || len(ts.Series) >= perBatch {
			ts = &timeSeries{
				Series: make([]metric, 0, minInt(perBatch, len(metrics))),
			}
			batches = append(batches, ts)
		}
		ts.Series = append(ts.Series, metric{
			Host:   m.Source,
			Metric: m.Name,
			Points: [1]point{{timestamp, coerceToNumeric(m.Value)}},
			Type:   typeOf(m.Type),
		})
	}
	return batches
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// coerceToNumeric will convert non-numeric NaN and Inf values to a numeric value.
// If v is a numeric, the same value is returned.
func coerceToNumeric(v float64) float64 {
	if math.IsNaN(v) {
		return -1
	} else if math.IsInf(v, 1) {
		return math.MaxFloat64
	} else if math.IsInf(v, -1) {
		return -math.MaxFloat64
	}
	return v
}
