package logline

import (
	"regexp"
	"strconv"

	"github.com/atlassian/distributor"
)

var (
	measureRegexp = regexp.MustCompile(`measure#([a-zA-Z0-9._]+)=(-?\d+(?:\.\d+)?)`)
	countRegexp   = regexp.MustCompile(`count#([a-zA-Z0-9._]+)=(\d+)`)
	sampleRegexp  = regexp.MustCompile(`sample#([a-zA-Z0-9._]+)=(-?\d+(?:\.\d+)?)`)
	sourceRegexp  = regexp.MustCompile(`(?:^|\s)source=(\S+)`)
)

// StandardReader reads metrics from log lines in the l2met conventions:
//
//   - Measures: `measure#metric=1.2`
//   - Counts: `count#metric=3`
//   - Samples: `sample#metric=4.5`
//
// If the line also carries `source=token`, that token becomes the source of
// every metric read from the line.
type StandardReader struct{}

// Read returns the metrics found in line: measures first, then counts, then
// samples, each in the order they appear.
func (StandardReader) Read(line string) []distributor.Metric {
	var metrics []distributor.Metric
	source := findSource(line)

	for _, match := range measureRegexp.FindAllStringSubmatch(line, -1) {
		if value, err := strconv.ParseFloat(match[2], 64); err == nil {
			metrics = append(metrics, distributor.NewMeasure(distributor.Dimension{Name: match[1], Source: source}, value))
		}
	}

	for _, match := range countRegexp.FindAllStringSubmatch(line, -1) {
		if value, err := strconv.ParseUint(match[2], 10, 64); err == nil {
			metrics = append(metrics, distributor.NewCount(distributor.Dimension{Name: match[1], Source: source}, value))
		}
	}

	for _, match := range sampleRegexp.FindAllStringSubmatch(line, -1) {
		if value, err := strconv.ParseFloat(match[2], 64); err == nil {
			metrics = append(metrics, distributor.NewSample(distributor.Dimension{Name: match[1], Source: source}, value))
		}
	}

	return metrics
}

func findSource(line string) string {
	if match := sourceRegexp.FindStringSubmatch(line); match != nil {
		return match[1]
	}
	return ""
}
