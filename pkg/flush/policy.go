package flush

import (
	"fmt"
)

// Policy decides what happens to a snapshot when the delivery queue is full.
type Policy string

const (
	// PolicyDropOldest discards the oldest queued snapshot to make room.
	PolicyDropOldest Policy = "drop-oldest"
	// PolicyBlock makes the producer wait for room, delaying the next flush.
	PolicyBlock Policy = "block"
)

// ParsePolicy validates a policy name.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicyDropOldest, PolicyBlock:
		return p, nil
	}
	return "", fmt.Errorf("unknown flush queue policy %q", s)
}
