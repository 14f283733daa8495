package distributor

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDimensionIsDistinctBySource(t *testing.T) {
	t.Parallel()
	m := map[Dimension]int{}
	m[NewDimension("foo")]++
	m[Dimension{Name: "foo", Source: "web"}]++
	m[Dimension{Name: "foo", Source: "web"}]++

	assert.Len(t, m, 2)
	assert.Equal(t, 1, m[Dimension{Name: "foo"}])
	assert.Equal(t, 2, m[Dimension{Name: "foo", Source: "web"}])
}

func TestDimensionOrdering(t *testing.T) {
	t.Parallel()
	dims := []Dimension{
		{Name: "b"},
		{Name: "a", Source: "z"},
		{Name: "a"},
		{Name: "a", Source: "m"},
	}
	sort.Slice(dims, func(i, j int) bool { return dims[i].Less(dims[j]) })
	assert.Equal(t, []Dimension{
		{Name: "a"},
		{Name: "a", Source: "m"},
		{Name: "a", Source: "z"},
		{Name: "b"},
	}, dims)
}

func TestDimensionWithSuffix(t *testing.T) {
	t.Parallel()
	d := Dimension{Name: "req", Source: "web"}
	assert.Equal(t, Dimension{Name: "req.min", Source: "web"}, d.WithSuffix(".min"))
	assert.True(t, d.HasSource())
	assert.False(t, NewDimension("req").HasSource())
}

func TestMetricConstructors(t *testing.T) {
	t.Parallel()
	d := NewDimension("x")
	assert.Equal(t, Metric{Type: COUNT, Dimension: d, Count: 3}, NewCount(d, 3))
	assert.Equal(t, Metric{Type: MEASURE, Dimension: d, Value: 1.5}, NewMeasure(d, 1.5))
	assert.Equal(t, Metric{Type: SAMPLE, Dimension: d, Value: 2}, NewSample(d, 2))
	assert.Equal(t, "count", COUNT.String())
	assert.Equal(t, "unknown", MetricType(0).String())
}

func TestAggregatedMetricsFind(t *testing.T) {
	t.Parallel()
	am := AggregatedMetrics{
		{Type: AggregatedMeasure, Name: "a.count", Value: 1},
		{Type: AggregatedCount, Name: "a.count", Value: 2},
	}
	m, ok := am.Find(AggregatedCount, "a.count")
	assert.True(t, ok)
	assert.Equal(t, 2.0, m.Value)
	_, ok = am.Find(AggregatedSample, "a.count")
	assert.False(t, ok)
}
