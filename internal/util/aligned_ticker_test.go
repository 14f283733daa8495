package util

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tilinna/clock"

	"github.com/atlassian/distributor/internal/fixtures"
)

const ms = int64(time.Millisecond)

func checkTime(t *testing.T, ctx context.Context, ch <-chan time.Time, expected time.Time) {
	select {
	case <-ctx.Done():
		require.FailNow(t, "timed out")
	case now := <-ch:
		require.Equal(t, expected.UnixNano(), now.UnixNano())
	}
}

func TestAlignedTicker(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		start  time.Time
		offset time.Duration
		first  time.Time
		second time.Time
	}{
		{
			name:   "aligned start",
			start:  time.Unix(1, 0),
			first:  time.Unix(2, 0),
			second: time.Unix(3, 0),
		},
		{
			name:   "rounds up first tick",
			start:  time.Unix(1, 500*ms),
			first:  time.Unix(2, 0),
			second: time.Unix(3, 0),
		},
		{
			name:   "offset",
			start:  time.Unix(1, 300*ms),
			offset: 300 * time.Millisecond,
			first:  time.Unix(2, 300*ms),
			second: time.Unix(3, 300*ms),
		},
		{
			name:   "rounds up to offset",
			start:  time.Unix(1, 0),
			offset: 300 * time.Millisecond,
			first:  time.Unix(1, 300*ms),
			second: time.Unix(2, 300*ms),
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			clck := clock.NewMock(tc.start)
			ctx, cancel := context.WithTimeout(clock.Context(context.Background(), clck), time.Second)
			defer cancel()
			tckr := NewAlignedTicker(ctx, time.Second, tc.offset)
			defer tckr.Stop()

			fixtures.NextStep(ctx, clck)
			checkTime(t, ctx, tckr.C, tc.first)

			fixtures.NextStep(ctx, clck)
			checkTime(t, ctx, tckr.C, tc.second)
		})
	}
}

func TestAlignedTickerStopTwice(t *testing.T) {
	t.Parallel()
	clck := clock.NewMock(time.Unix(1, 0))
	tckr := NewAlignedTicker(clock.Context(context.Background(), clck), time.Second, 0)
	tckr.Stop()
	assert.NotPanics(t, tckr.Stop)
}

func TestNextAligned(t *testing.T) {
	t.Parallel()
	assert.Equal(t, time.Unix(10, 0).UnixNano(), nextAligned(time.Unix(0, 1), 10*time.Second, 0).UnixNano())
	assert.Equal(t, time.Unix(20, 0).UnixNano(), nextAligned(time.Unix(10, 0), 10*time.Second, 0).UnixNano())
	assert.Equal(t, time.Unix(12, 0).UnixNano(), nextAligned(time.Unix(5, 0), 10*time.Second, 2*time.Second).UnixNano())
}
