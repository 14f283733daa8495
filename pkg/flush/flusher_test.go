package flush

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlassian/distributor"
	"github.com/atlassian/distributor/internal/fixtures"
	"github.com/atlassian/distributor/pkg/healthcheck"
	"github.com/atlassian/distributor/pkg/store"
)

func snapshot(name string) distributor.AggregatedMetrics {
	return distributor.AggregatedMetrics{
		{Type: distributor.AggregatedCount, Name: name, Value: 1},
	}
}

func newTestFlusher(t *testing.T, cfg Config, source Flushable, forwarders ...distributor.Forwarder) *Flusher {
	if cfg.Interval == 0 {
		cfg.Interval = time.Second
	}
	return NewFlusher(cfg, source, forwarders, fixtures.NewTestLogger(t))
}

func receive(t *testing.T, ctx context.Context, ch <-chan distributor.AggregatedMetrics) distributor.AggregatedMetrics {
	select {
	case <-ctx.Done():
		require.FailNow(t, "timed out")
		return nil
	case am := <-ch:
		return am
	}
}

func TestFlusherForwardsOnTick(t *testing.T) {
	t.Parallel()
	for _, aligned := range []bool{false, true} {
		aligned := aligned
		t.Run(fmt.Sprintf("aligned=%t", aligned), func(t *testing.T) {
			t.Parallel()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			ctx, clck := fixtures.MockContext(ctx, time.Unix(1, 500*int64(time.Millisecond)))

			s := store.New()
			s.Record([]distributor.Metric{distributor.NewCount(distributor.NewDimension("foo"), 3)})
			fwd := &fixtures.CapturingForwarder{C: make(chan distributor.AggregatedMetrics)}
			f := newTestFlusher(t, Config{Aligned: aligned}, s, fwd)

			runCtx, stop := context.WithCancel(ctx)
			done := make(chan struct{})
			go func() {
				defer close(done)
				f.Run(runCtx)
			}()

			fixtures.NextStep(ctx, clck)
			am := receive(t, ctx, fwd.C)
			m, ok := am.Find(distributor.AggregatedCount, "foo")
			require.True(t, ok)
			assert.Equal(t, 3.0, m.Value)

			stop()
			select {
			case <-done:
			case <-ctx.Done():
				require.FailNow(t, "flusher did not stop")
			}
		})
	}
}

func TestFlushEmptySnapshot(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newTestFlusher(t, Config{QueueSize: 4}, store.New())
	f.flush(ctx)
	assert.Zero(t, len(f.queue))

	f = newTestFlusher(t, Config{QueueSize: 4, ForwardEmpty: true}, store.New())
	f.flush(ctx)
	require.Equal(t, 1, len(f.queue))
	assert.Empty(t, <-f.queue)
}

func TestEnqueueDropOldest(t *testing.T) {
	t.Parallel()
	f := newTestFlusher(t, Config{QueueSize: 2}, store.New())
	ctx := context.Background()

	f.enqueue(ctx, snapshot("a"))
	f.enqueue(ctx, snapshot("b"))
	f.enqueue(ctx, snapshot("c"))

	assert.EqualValues(t, 1, f.Dropped())
	require.Equal(t, 2, len(f.queue))
	assert.Equal(t, "b", (<-f.queue)[0].Name)
	assert.Equal(t, "c", (<-f.queue)[0].Name)
}

func TestEnqueueBlockGivesUpOnCancel(t *testing.T) {
	t.Parallel()
	f := newTestFlusher(t, Config{QueueSize: 1, Policy: PolicyBlock}, store.New())

	f.enqueue(context.Background(), snapshot("a"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.enqueue(ctx, snapshot("b"))

	assert.EqualValues(t, 1, f.Dropped())
	require.Equal(t, 1, len(f.queue))
	assert.Equal(t, "a", (<-f.queue)[0].Name)
}

func TestForwardCallsEveryForwarder(t *testing.T) {
	t.Parallel()
	failing := &fixtures.CapturingForwarder{NameValue: "failing", Err: errors.New("unavailable")}
	ok := &fixtures.CapturingForwarder{NameValue: "ok"}
	f := newTestFlusher(t, Config{MaxForwarders: 1}, store.New(), failing, ok)

	f.forward(context.Background(), snapshot("a"))

	require.Len(t, failing.Snapshots(), 1)
	require.Len(t, ok.Snapshots(), 1)
	assert.Equal(t, "a", ok.Snapshots()[0][0].Name)
}

func TestRunDrainsQueueOnShutdown(t *testing.T) {
	t.Parallel()
	fwd := &fixtures.CapturingForwarder{}
	f := newTestFlusher(t, Config{Interval: time.Hour, QueueSize: 4}, store.New(), fwd)
	f.queue <- snapshot("a")
	f.queue <- snapshot("b")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.Run(ctx)

	got := fwd.Snapshots()
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0][0].Name)
	assert.Equal(t, "b", got[1][0].Name)
}

func TestParsePolicy(t *testing.T) {
	t.Parallel()
	p, err := ParsePolicy("block")
	require.NoError(t, err)
	assert.Equal(t, PolicyBlock, p)

	p, err = ParsePolicy("drop-oldest")
	require.NoError(t, err)
	assert.Equal(t, PolicyDropOldest, p)

	_, err = ParsePolicy("drop-newest")
	assert.Error(t, err)
}

func TestFlusherHealthCheck(t *testing.T) {
	t.Parallel()
	ctx, clck := fixtures.MockContext(context.Background(), time.Unix(1000, 0))
	f := newTestFlusher(t, Config{QueueSize: 1}, store.New())
	checks := f.HealthChecks()
	require.Len(t, checks, 1)

	_, status := checks[0]()
	assert.Equal(t, healthcheck.Healthy, status)

	f.flush(ctx)
	assert.Equal(t, clck.Now().UnixNano(), atomic.LoadInt64(&f.lastFlush))
	report, status := checks[0]()
	assert.Equal(t, healthcheck.Healthy, status)
	assert.Equal(t, "flusher: last flush 0s ago", report)

	clck.Add(2 * time.Second)
	_, status = checks[0]()
	assert.Equal(t, healthcheck.Healthy, status)

	clck.Add(2 * time.Second)
	report, status = checks[0]()
	assert.Equal(t, healthcheck.Unhealthy, status)
	assert.Equal(t, "flusher: last flush 4s ago", report)
}

// stuckForwarder blocks every delivery until release is closed, ignoring its context.
type stuckForwarder struct {
	release chan struct{}

	mu        sync.Mutex
	snapshots []distributor.AggregatedMetrics
}

func (sf *stuckForwarder) Name() string {
	return "stuck"
}

func (sf *stuckForwarder) ForwardMetrics(ctx context.Context, am distributor.AggregatedMetrics) error {
	sf.mu.Lock()
	sf.snapshots = append(sf.snapshots, am)
	sf.mu.Unlock()
	<-sf.release
	return nil
}

func (sf *stuckForwarder) Snapshots() []distributor.AggregatedMetrics {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	return append([]distributor.AggregatedMetrics(nil), sf.snapshots...)
}

func TestRunKeepsFlushingWhileForwarderIsStuck(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ctx, clck := fixtures.MockContext(ctx, time.Unix(1000, 0))

	s := store.New()
	fwd := &stuckForwarder{release: make(chan struct{})}
	f := newTestFlusher(t, Config{QueueSize: 1, Policy: PolicyDropOldest}, s, fwd)

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.Run(runCtx)
	}()

	tick := func(name string) {
		recorded := make(chan struct{})
		go func() {
			defer close(recorded)
			s.Record([]distributor.Metric{distributor.NewCount(distributor.NewDimension(name), 1)})
		}()
		select {
		case <-recorded:
		case <-ctx.Done():
			require.FailNow(t, "record blocked")
		}
		fixtures.NextStep(ctx, clck)
		require.Eventually(t, func() bool { return s.Pending() == 0 }, 2*time.Second, time.Millisecond)
	}

	// The consumer takes the first window and gets stuck forwarding it.
	tick("w1")
	require.Eventually(t, func() bool { return len(fwd.Snapshots()) == 1 }, 2*time.Second, time.Millisecond)

	// The second window waits in the queue.
	tick("w2")
	require.Eventually(t, func() bool { return len(f.queue) == 1 }, 2*time.Second, time.Millisecond)
	assert.Zero(t, f.Dropped())

	// Later windows replace the queued one.
	tick("w3")
	require.Eventually(t, func() bool { return f.Dropped() == 1 }, 2*time.Second, time.Millisecond)
	tick("w4")
	require.Eventually(t, func() bool { return f.Dropped() == 2 }, 2*time.Second, time.Millisecond)
	assert.Len(t, fwd.Snapshots(), 1)

	close(fwd.release)
	stop()
	select {
	case <-done:
	case <-ctx.Done():
		require.FailNow(t, "flusher did not stop")
	}

	snapshots := fwd.Snapshots()
	require.Len(t, snapshots, 2)
	_, ok := snapshots[0].Find(distributor.AggregatedCount, "w1")
	assert.True(t, ok)
	_, ok = snapshots[1].Find(distributor.AggregatedCount, "w4")
	assert.True(t, ok)
}
