package statsd

import (
	"errors"
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlassian/distributor"
)

func TestParseSingleMetric(t *testing.T) {
	t.Parallel()
	tests := map[string]ParsedMetric{
		"foo.bar_baz:12|g":    {Type: Gauge, Name: "foo.bar_baz", Value: 12},
		"foo.bar_baz:23|c":    {Type: Counter, Name: "foo.bar_baz", Value: 23},
		"foo.bar_baz:34|c|@5": {Type: Counter, Name: "foo.bar_baz", Value: 34, SampleRate: 5, HasSampleRate: true},
		"foo.bar_baz:12|ms":   {Type: Timer, Name: "foo.bar_baz", Value: 12},
		"t:7|ms|@10":          {Type: Timer, Name: "t", Value: 7, SampleRate: 10, HasSampleRate: true},
		"g:0|g|@1":            {Type: Gauge, Name: "g", Value: 0, SampleRate: 1, HasSampleRate: true},
		"CamelCase9:1|c":      {Type: Counter, Name: "CamelCase9", Value: 1},
		"trailing:1|c\n":      {Type: Counter, Name: "trailing", Value: 1},
		"crlf:1|c\r\n":        {Type: Counter, Name: "crlf", Value: 1},
		"max:18446744073709551615|c": {
			Type: Counter, Name: "max", Value: math.MaxUint64,
		},
	}
	for input, expected := range tests {
		input := input
		expected := expected
		t.Run(input, func(t *testing.T) {
			t.Parallel()
			result, err := ParseMetrics([]byte(input))
			require.NoError(t, err)
			require.Len(t, result, 1)
			assert.Equal(t, expected, result[0])
		})
	}
}

func TestParseManyMetrics(t *testing.T) {
	t.Parallel()
	result, err := ParseMetrics([]byte("foo:1|g\nbar:2|c|@3\nbaz:4|ms"))
	require.NoError(t, err)
	assert.Equal(t, []ParsedMetric{
		{Type: Gauge, Name: "foo", Value: 1},
		{Type: Counter, Name: "bar", Value: 2, SampleRate: 3, HasSampleRate: true},
		{Type: Timer, Name: "baz", Value: 4},
	}, result)
}

func TestParseInvalidMetrics(t *testing.T) {
	t.Parallel()
	failing := map[string]error{
		"":                           errEmptyLine,
		":1|c":                       errEmptyName,
		"fOO|bar:bazkk":              errInvalidName,
		"foo-bar:1|c":                errInvalidName,
		"foo bar:1|c":                errInvalidName,
		"foo":                        errMissingValue,
		"foo:":                       errMissingValue,
		"foo:|c":                     errMissingValue,
		"foo:-1|c":                   errMissingValue,
		"foo:1":                      errMissingValueSep,
		"foo:1.5|g":                  errMissingValueSep,
		"foo:1|":                     errInvalidType,
		"foo.bar.baz:1|q":            errInvalidType,
		"foo:1|s":                    errInvalidType,
		"foo:1|m":                    errInvalidType,
		"foo:1|mx":                   errInvalidType,
		"foo:1|cc":                   errTrailingData,
		"foo:1|c|@":                  errInvalidSampleRate,
		"foo:1|c|0.5":                errInvalidSampleRate,
		"foo:1|c|@0.5":               errTrailingData,
		"foo:1|c|@2|#tag":            errTrailingData,
		"foo:1|c\x00":                errTrailingData,
		"foo:18446744073709551616|c": errOverflow,
	}
	for input, expectedErr := range failing {
		input := input
		expectedErr := expectedErr
		t.Run(strconv.Quote(input), func(t *testing.T) {
			t.Parallel()
			result, err := ParseMetrics([]byte(input))
			require.Error(t, err)
			assert.True(t, errors.Is(err, expectedErr), "expected %v, got %v", expectedErr, err)
			assert.Nil(t, result)
		})
	}
}

func TestParseBatchIsAllOrNothing(t *testing.T) {
	t.Parallel()
	inputs := []string{
		"foo:1|g\nbar:2|x\nbaz:4|ms",
		"foo:1|g\n\nbaz:4|ms",
		"foo:1|g\nbaz",
	}
	for _, input := range inputs {
		input := input
		t.Run(strconv.Quote(input), func(t *testing.T) {
			t.Parallel()
			result, err := ParseMetrics([]byte(input))
			require.Error(t, err)
			assert.Nil(t, result)
		})
	}
}

func TestParseErrorReportsLine(t *testing.T) {
	t.Parallel()
	_, err := ParseMetrics([]byte("a:1|c\nb:2|c\nc:3|x"))
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 2, pe.Line)
	assert.Equal(t, []byte("c:3|x"), pe.Input)
	assert.Equal(t, errInvalidType, pe.Err)
}

func TestToMetric(t *testing.T) {
	t.Parallel()
	d := distributor.NewDimension("m")
	assert.Equal(t, distributor.NewCount(d, 2), ParsedMetric{Type: Counter, Name: "m", Value: 2}.ToMetric())
	assert.Equal(t, distributor.NewSample(d, 1), ParsedMetric{Type: Gauge, Name: "m", Value: 1}.ToMetric())
	assert.Equal(t, distributor.NewMeasure(d, 4), ParsedMetric{Type: Timer, Name: "m", Value: 4}.ToMetric())
}

func TestToMetricKeepsIntegerValuesExact(t *testing.T) {
	t.Parallel()
	m := ParsedMetric{Type: Counter, Name: "big", Value: math.MaxUint64}.ToMetric()
	assert.Equal(t, uint64(math.MaxUint64), m.Count)

	// Every integer up to 2^53 is representable exactly as a float64.
	g := ParsedMetric{Type: Gauge, Name: "g", Value: 1 << 53}.ToMetric()
	assert.Equal(t, uint64(1<<53), uint64(g.Value))
}

func TestParserParse(t *testing.T) {
	t.Parallel()
	metrics, err := Parser{}.Parse([]byte("foo:1|g\nbar:2|c|@3\nbaz:4|ms"))
	require.NoError(t, err)
	assert.Equal(t, []distributor.Metric{
		distributor.NewSample(distributor.NewDimension("foo"), 1),
		distributor.NewCount(distributor.NewDimension("bar"), 2),
		distributor.NewMeasure(distributor.NewDimension("baz"), 4),
	}, metrics)

	metrics, err = Parser{}.Parse([]byte("foo:1|g\nbar"))
	require.Error(t, err)
	assert.Nil(t, metrics)
}

func BenchmarkParseMetrics(b *testing.B) {
	input := []byte("foo.bar:1|g\nbar.baz:2|c|@3\nbaz.qux:4|ms")
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = ParseMetrics(input)
	}
}
