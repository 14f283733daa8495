// Package statsd decodes the StatsD line protocol.
//
// Each metric has the form
//
//	name ":" uint "|" ("c" | "g" | "ms") ["|@" uint]
//
// and a batch is one or more metrics separated by "\n".
package statsd

import (
	"bytes"
	"fmt"

	"github.com/atlassian/distributor"
)

// ParsedType is the StatsD type of a parsed metric.
type ParsedType byte

const (
	_ = iota
	// Counter is the "c" type.
	Counter ParsedType = iota
	// Gauge is the "g" type.
	Gauge
	// Timer is the "ms" type.
	Timer
)

func (p ParsedType) String() string {
	switch p {
	case Counter:
		return "counter"
	case Gauge:
		return "gauge"
	case Timer:
		return "timer"
	}
	return "unknown"
}

// ParsedMetric is one decoded StatsD metric.  The sample rate is kept as it
// was sent and is never applied to Value.
type ParsedMetric struct {
	Type          ParsedType
	Name          string
	Value         uint64
	SampleRate    uint64
	HasSampleRate bool
}

// ToMetric converts the parsed metric into the model: counters become counts,
// gauges become samples and timers become measures.
func (p ParsedMetric) ToMetric() distributor.Metric {
	d := distributor.NewDimension(p.Name)
	switch p.Type {
	case Counter:
		return distributor.NewCount(d, p.Value)
	case Gauge:
		return distributor.NewSample(d, float64(p.Value))
	default:
		return distributor.NewMeasure(d, float64(p.Value))
	}
}

// ParseError reports the line of a batch which failed to parse.
type ParseError struct {
	Line  int // 0-based index of the offending line
	Input []byte
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d %q: %v", e.Line, e.Input, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseMetrics parses a batch of newline separated metrics.  Parsing is all
// or nothing, if any line fails the whole batch is rejected.  Trailing line
// terminators are ignored and a "\r" before each "\n" is stripped.
func ParseMetrics(input []byte) ([]ParsedMetric, error) {
	input = bytes.TrimRight(input, "\r\n")
	if len(input) == 0 {
		return nil, &ParseError{Err: errEmptyLine}
	}
	metrics := make([]ParsedMetric, 0, bytes.Count(input, newline)+1)
	l := lexer{}
	for n := 0; ; n++ {
		idx := bytes.IndexByte(input, '\n')
		var line []byte
		if idx == -1 {
			line = input
		} else {
			line = input[:idx]
		}
		line = bytes.TrimSuffix(line, carriageReturn)
		m, err := l.run(line)
		if err != nil {
			return nil, &ParseError{Line: n, Input: line, Err: err}
		}
		metrics = append(metrics, m)
		if idx == -1 {
			return metrics, nil
		}
		input = input[idx+1:]
	}
}

var newline = []byte("\n")
var carriageReturn = []byte("\r")

// Parser adapts ParseMetrics to distributor.Parser.
type Parser struct{}

// Parse parses a batch and converts every metric into the model.
func (Parser) Parse(input []byte) ([]distributor.Metric, error) {
	parsed, err := ParseMetrics(input)
	if err != nil {
		return nil, err
	}
	metrics := make([]distributor.Metric, len(parsed))
	for i, p := range parsed {
		metrics[i] = p.ToMetric()
	}
	return metrics, nil
}
