package stats

import (
	"context"
)

type statsKey int

const statsContextKey = statsKey(0)

// discard collects into a registry nobody exports.
var discard = New()

// NewContext attaches a Stats to a Context
func NewContext(ctx context.Context, s *Stats) context.Context {
	return context.WithValue(ctx, statsContextKey, s)
}

// FromContext returns the Stats attached to a Context.  Always succeeds, a Stats
// that is never exported is returned if there is none present.
func FromContext(ctx context.Context) *Stats {
	if s, ok := ctx.Value(statsContextKey).(*Stats); ok && s != nil {
		return s
	}
	return discard
}
