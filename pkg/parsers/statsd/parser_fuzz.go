//go:build gofuzz
// +build gofuzz

package statsd

import (
	"fmt"
)

func Fuzz(data []byte) int {
	metrics, err := ParseMetrics(data)
	if err != nil {
		if metrics != nil {
			panic(fmt.Errorf("partial batch on error: %+v", metrics))
		}
		return 0
	}
	for _, m := range metrics {
		if m.Name == "" {
			panic(fmt.Errorf("empty name: %+v", m))
		}
	}
	return 1
}
