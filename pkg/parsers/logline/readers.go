// Package logline extracts metrics embedded in free-text log lines.
package logline

import (
	"fmt"
	"strings"

	"github.com/atlassian/distributor"
)

// All known readers.
var readers = map[string]distributor.LineReader{
	"standard": StandardReader{},
	"heroku":   HerokuReader{},
}

// Get returns the named reader, or an error if the name is not known.
func Get(name string) (distributor.LineReader, error) {
	r, ok := readers[name]
	if !ok {
		return nil, fmt.Errorf("unknown log line reader %q", name)
	}
	return r, nil
}

// FromNames returns the named readers in order.
func FromNames(names []string) (Readers, error) {
	rs := make(Readers, 0, len(names))
	for _, name := range names {
		r, err := Get(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		rs = append(rs, r)
	}
	return rs, nil
}

// Readers applies every reader to each line.  It implements
// distributor.Parser, and never returns an error.
type Readers []distributor.LineReader

// ReadLine applies every reader to a single line.
func (rs Readers) ReadLine(line string) []distributor.Metric {
	var metrics []distributor.Metric
	for _, r := range rs {
		metrics = append(metrics, r.Read(line)...)
	}
	return metrics
}

// ReadLines splits text into lines and applies every reader to each of them.
func (rs Readers) ReadLines(text string) []distributor.Metric {
	var metrics []distributor.Metric
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}
		metrics = append(metrics, rs.ReadLine(line)...)
	}
	return metrics
}

// Parse implements distributor.Parser.
func (rs Readers) Parse(input []byte) ([]distributor.Metric, error) {
	return rs.ReadLines(string(input)), nil
}
