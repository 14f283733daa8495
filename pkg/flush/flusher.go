// Package flush periodically drains the store and hands the snapshots to
// forwarders.
package flush

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ash2k/stager/wait"
	"github.com/sirupsen/logrus"
	"github.com/tilinna/clock"

	"github.com/atlassian/distributor"
	"github.com/atlassian/distributor/internal/util"
	"github.com/atlassian/distributor/pkg/healthcheck"
	"github.com/atlassian/distributor/pkg/stats"
)

// Flushable is the source of snapshots, usually a *store.Store.
type Flushable interface {
	Flush() distributor.AggregatedMetrics
}

type pender interface {
	Pending() int
}

// Config holds the scheduling and delivery settings of a Flusher.
type Config struct {
	Interval      time.Duration // How often to flush
	Offset        time.Duration // Offset for when to flush if alignment is enabled
	Aligned       bool          // Align flushes to multiples of Interval
	QueueSize     int           // Snapshots that may wait for delivery
	Policy        Policy        // What to do when the queue is full
	ForwardEmpty  bool          // Deliver snapshots with no entries
	MaxForwarders int           // Concurrent forwarder calls, 0 for unbounded
}

// Flusher runs the two halves of a flush cycle.  The producer ticks, drains
// the source and enqueues the snapshot.  The consumer dequeues snapshots in
// order and hands each one to every forwarder concurrently, waiting for all of
// them before taking the next.  A failed delivery is logged and never retried.
type Flusher struct {
	// Counter fields below must be read/written only using atomic instructions.
	// 64-bit fields must be the first fields in the struct to guarantee proper memory alignment.
	// See https://golang.org/pkg/sync/atomic/#pkg-note-BUG
	lastFlush int64 // Last time the store was flushed. Unix timestamp in nsec.
	dropped   uint64

	clck       atomic.Pointer[flushClock] // Clock lastFlush was taken from. Set before lastFlush.
	cfg        Config
	source     Flushable
	forwarders []distributor.Forwarder
	queue      chan distributor.AggregatedMetrics
	sem        *util.Semaphore
	logger     logrus.FieldLogger
}

// NewFlusher creates a new Flusher with provided configuration.
func NewFlusher(cfg Config, source Flushable, forwarders []distributor.Forwarder, logger logrus.FieldLogger) *Flusher {
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyDropOldest
	}
	return &Flusher{
		cfg:        cfg,
		source:     source,
		forwarders: forwarders,
		queue:      make(chan distributor.AggregatedMetrics, cfg.QueueSize),
		sem:        util.NewSemaphore(cfg.MaxForwarders),
		logger:     logger.WithField("component", "flusher"),
	}
}

// Dropped returns the number of snapshots discarded because the queue was full.
func (f *Flusher) Dropped() uint64 {
	return atomic.LoadUint64(&f.dropped)
}

// HealthChecks reports the flusher unhealthy once no flush happened for
// staleFlushes intervals.
func (f *Flusher) HealthChecks() []healthcheck.Func {
	return []healthcheck.Func{f.checkLastFlush}
}

const staleFlushes = 3

type flushClock struct {
	clock.Clock
}

func (f *Flusher) checkLastFlush() (string, healthcheck.Status) {
	last := atomic.LoadInt64(&f.lastFlush)
	if last == 0 {
		return "flusher: waiting for first flush", healthcheck.Healthy
	}
	since := f.clck.Load().Now().Sub(time.Unix(0, last)).Truncate(time.Millisecond)
	if since > staleFlushes*f.cfg.Interval {
		return fmt.Sprintf("flusher: last flush %s ago", since), healthcheck.Unhealthy
	}
	return fmt.Sprintf("flusher: last flush %s ago", since), healthcheck.Healthy
}

func (f *Flusher) makeTicker(ctx context.Context) (<-chan time.Time, func()) {
	if f.cfg.Aligned {
		flushTicker := util.NewAlignedTicker(ctx, f.cfg.Interval, f.cfg.Offset)
		return flushTicker.C, flushTicker.Stop
	}
	flushTicker := clock.FromContext(ctx).NewTicker(f.cfg.Interval)
	return flushTicker.C, flushTicker.Stop
}

// Run runs the Flusher until ctx is done.  Snapshots already queued when ctx
// is done are still delivered before Run returns.
func (f *Flusher) Run(ctx context.Context) {
	var wg wait.Group
	defer wg.Wait()
	wg.Start(func() {
		f.consume(ctx)
	})
	defer close(f.queue)

	ch, stop := f.makeTicker(ctx)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ch:
			f.flush(ctx)
		}
	}
}

func (f *Flusher) flush(ctx context.Context) {
	statser := stats.FromContext(ctx)
	clck := clock.FromContext(ctx)

	if p, ok := f.source.(pender); ok {
		statser.SetPending(p.Pending())
	}
	start := clck.Now()
	snapshot := f.source.Flush()
	statser.SnapshotFlushed(clck.Now().Sub(start))
	f.clck.Store(&flushClock{clck})
	atomic.StoreInt64(&f.lastFlush, clck.Now().UnixNano())

	if len(snapshot) == 0 && !f.cfg.ForwardEmpty {
		return
	}
	f.enqueue(ctx, snapshot)
	statser.SetQueueLength(len(f.queue))
}

// enqueue is only called from the producer, so with PolicyDropOldest the retry
// loop ends once the consumer or the drop makes room.
func (f *Flusher) enqueue(ctx context.Context, snapshot distributor.AggregatedMetrics) {
	if f.cfg.Policy == PolicyBlock {
		select {
		case f.queue <- snapshot:
		case <-ctx.Done():
			f.drop(ctx, len(snapshot))
		}
		return
	}
	for {
		select {
		case f.queue <- snapshot:
			return
		default:
		}
		select {
		case old := <-f.queue:
			f.drop(ctx, len(old))
		default:
		}
	}
}

func (f *Flusher) drop(ctx context.Context, size int) {
	atomic.AddUint64(&f.dropped, 1)
	stats.FromContext(ctx).SnapshotDropped()
	f.logger.WithField("entries", size).Warn("Delivery queue full, dropped snapshot")
}

func (f *Flusher) consume(ctx context.Context) {
	statser := stats.FromContext(ctx)
	for snapshot := range f.queue {
		statser.SetQueueLength(len(f.queue))
		f.forward(ctx, snapshot)
	}
}

// forward delivers one snapshot to every forwarder.  Delivery outlives ctx so
// that the queue can drain on shutdown, each round is bounded by the flush
// interval instead.
func (f *Flusher) forward(ctx context.Context, snapshot distributor.AggregatedMetrics) {
	statser := stats.FromContext(ctx)
	fctx, cancel := clock.FromContext(ctx).TimeoutContext(context.WithoutCancel(ctx), f.cfg.Interval)
	defer cancel()

	var wg sync.WaitGroup
	defer wg.Wait()
	for _, fwd := range f.forwarders {
		if !f.sem.Acquire(fctx) {
			statser.ForwardError(fwd.Name())
			f.logger.WithField("forwarder", fwd.Name()).Error("Timed out waiting to forward metrics")
			continue
		}
		wg.Add(1)
		go func(fwd distributor.Forwarder) {
			defer wg.Done()
			defer f.sem.Release()
			if err := fwd.ForwardMetrics(fctx, snapshot); err != nil {
				statser.ForwardError(fwd.Name())
				f.logger.WithError(err).WithField("forwarder", fwd.Name()).Error("Forwarding metrics failed")
			}
		}(fwd)
	}
}
