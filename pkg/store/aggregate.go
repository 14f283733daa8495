package store

import (
	"math"
	"sort"

	"github.com/atlassian/distributor"
)

// measuresPerDimension is the number of entries emitted for one measured dimension.
const measuresPerDimension = 7

// aggregate converts state into entries: counts, then measures, then samples,
// each ordered by dimension.
func (st state) aggregate() distributor.AggregatedMetrics {
	n := len(st.counts) + len(st.measures)*measuresPerDimension + len(st.samples)
	out := make(distributor.AggregatedMetrics, 0, n)

	for _, d := range sortedCountKeys(st.counts) {
		out = append(out, entry(distributor.AggregatedCount, d, float64(st.counts[d])))
	}
	for _, d := range sortedMeasureKeys(st.measures) {
		out = appendMeasure(out, d, st.measures[d])
	}
	for _, d := range sortedSampleKeys(st.samples) {
		out = append(out, entry(distributor.AggregatedSample, d, st.samples[d]))
	}
	return out
}

func entry(t distributor.AggregatedMetricType, d distributor.Dimension, value float64) distributor.AggregatedMetric {
	return distributor.AggregatedMetric{
		Type:   t,
		Name:   d.Name,
		Source: d.Source,
		Value:  value,
	}
}

// appendMeasure summarizes the raw values of one dimension.  values is never
// empty, a dimension only exists once a value was recorded.
func appendMeasure(out distributor.AggregatedMetrics, d distributor.Dimension, values []float64) distributor.AggregatedMetrics {
	// NaN sorts first, like sort.Float64s.
	sort.Slice(values, func(i, j int) bool {
		return values[i] < values[j] || (math.IsNaN(values[i]) && !math.IsNaN(values[j]))
	})
	n := len(values)
	var sum float64
	for _, v := range values {
		sum += v
	}
	return append(out,
		entry(distributor.AggregatedMeasure, d.WithSuffix(".min"), values[0]),
		entry(distributor.AggregatedMeasure, d.WithSuffix(".max"), values[n-1]),
		entry(distributor.AggregatedMeasure, d.WithSuffix(".median"), values[n/2]),
		entry(distributor.AggregatedMeasure, d.WithSuffix(".avg"), sum/float64(n)),
		entry(distributor.AggregatedMeasure, d.WithSuffix(".95percentile"), values[percentileIndex(n, 0.95)]),
		entry(distributor.AggregatedMeasure, d.WithSuffix(".99percentile"), values[percentileIndex(n, 0.99)]),
		entry(distributor.AggregatedCount, d.WithSuffix(".count"), float64(n)),
	)
}

// percentileIndex is floor(n*pct), which is always a valid index for 0 <= pct < 1.
func percentileIndex(n int, pct float64) int {
	idx := int(float64(n) * pct)
	if idx >= n {
		idx = n - 1
	}
	return idx
}

func sortDimensions(keys []distributor.Dimension) []distributor.Dimension {
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].Less(keys[j])
	})
	return keys
}

func sortedCountKeys(m map[distributor.Dimension]uint64) []distributor.Dimension {
	keys := make([]distributor.Dimension, 0, len(m))
	for d := range m {
		keys = append(keys, d)
	}
	return sortDimensions(keys)
}

func sortedMeasureKeys(m map[distributor.Dimension][]float64) []distributor.Dimension {
	keys := make([]distributor.Dimension, 0, len(m))
	for d := range m {
		keys = append(keys, d)
	}
	return sortDimensions(keys)
}

func sortedSampleKeys(m map[distributor.Dimension]float64) []distributor.Dimension {
	keys := make([]distributor.Dimension, 0, len(m))
	for d := range m {
		keys = append(keys, d)
	}
	return sortDimensions(keys)
}
