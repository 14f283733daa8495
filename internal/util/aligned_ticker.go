package util

import (
	"context"
	"sync"
	"time"

	"github.com/tilinna/clock"
)

// AlignedTicker ticks on multiples of interval shifted by offset, instead of
// multiples of interval from the time it was created.  With a creation time of
// T, the first tick is at
//
//	r = roundup(T-offset, interval)+offset
//
// and the following ones at r+interval, r+2*interval, and so on.  The time sent
// on C is the aligned time, not the time the tick was observed.  Ticks are
// dropped if the receiver is not keeping up.
type AlignedTicker struct {
	C <-chan time.Time

	c        chan time.Time
	done     chan struct{}
	stopOnce sync.Once
	interval time.Duration
	offset   time.Duration
}

// NewAlignedTicker starts an AlignedTicker using the clock from ctx.  The
// ticker stops when Stop is called or ctx is done.
func NewAlignedTicker(ctx context.Context, interval, offset time.Duration) *AlignedTicker {
	ch := make(chan time.Time, 1)
	at := &AlignedTicker{
		C:        ch,
		c:        ch,
		done:     make(chan struct{}),
		interval: interval,
		offset:   offset,
	}
	go at.run(ctx, clock.FromContext(ctx))
	return at
}

// nextAligned returns the first aligned time strictly after now.
func nextAligned(now time.Time, interval, offset time.Duration) time.Time {
	return now.Add(-offset).Truncate(interval).Add(interval).Add(offset)
}

func (at *AlignedTicker) align(t time.Time) time.Time {
	return t.Add(-at.offset).Truncate(at.interval).Add(at.offset)
}

func (at *AlignedTicker) run(ctx context.Context, clck clock.Clock) {
	now := clck.Now()
	tmr := clck.NewTimer(nextAligned(now, at.interval, at.offset).Sub(now))
	defer tmr.Stop()

	first := tmr.C
	var ticks <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-at.done:
			return
		case t := <-first:
			// Start repeating from the first aligned time.
			tckr := clck.NewTicker(at.interval)
			defer tckr.Stop()
			first, ticks = nil, tckr.C
			at.deliver(t)
		case t := <-ticks:
			at.deliver(t)
		}
	}
}

func (at *AlignedTicker) deliver(t time.Time) {
	select {
	case at.c <- at.align(t):
	default:
	}
}

// Stop stops the ticker.  It does not close C.
func (at *AlignedTicker) Stop() {
	at.stopOnce.Do(func() {
		close(at.done)
	})
}
