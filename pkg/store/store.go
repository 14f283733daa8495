// Package store accumulates metrics over a flush window.
package store

import (
	"sync"

	"github.com/atlassian/distributor"
)

// Store holds the in-flight accumulators for one window.  All three maps are
// guarded by a single lock.  A *Store is the handle shared between listeners
// and the flusher.
type Store struct {
	mu    sync.Mutex
	state state
}

// state is the accumulated, not yet aggregated, content of a window.  A key is
// present only if something was recorded for it since the last flush.
type state struct {
	counts   map[distributor.Dimension]uint64
	measures map[distributor.Dimension][]float64
	samples  map[distributor.Dimension]float64
}

func newState() state {
	return state{
		counts:   make(map[distributor.Dimension]uint64),
		measures: make(map[distributor.Dimension][]float64),
		samples:  make(map[distributor.Dimension]float64),
	}
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		state: newState(),
	}
}

// Record adds metrics to the current window.  Counts are summed, measures are
// appended and samples overwrite the previous value.  Safe for concurrent use.
func (s *Store) Record(metrics []distributor.Metric) {
	if len(metrics) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range metrics {
		switch m.Type {
		case distributor.COUNT:
			s.state.counts[m.Dimension] += m.Count
		case distributor.MEASURE:
			s.state.measures[m.Dimension] = append(s.state.measures[m.Dimension], m.Value)
		case distributor.SAMPLE:
			s.state.samples[m.Dimension] = m.Value
		}
	}
}

// Pending returns the number of dimensions recorded since the last flush.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.counts) + len(s.state.measures) + len(s.state.samples)
}

// Flush drains the window and returns its aggregated form.  The accumulators
// are swapped out under the lock and aggregated after it is released, so
// recording is not blocked by the aggregation.  An empty window results in an
// empty snapshot.
func (s *Store) Flush() distributor.AggregatedMetrics {
	s.mu.Lock()
	st := s.state
	s.state = newState()
	s.mu.Unlock()

	return st.aggregate()
}
