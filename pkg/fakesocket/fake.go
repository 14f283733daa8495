// Package fakesocket provides net.PacketConn implementations producing StatsD
// datagrams, for tests and benchmarks.
package fakesocket

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"time"
)

// FakeMetric is a fake metric.
var FakeMetric = []byte("foo.bar.baz:2|c")

// FakeAddr is a fake net.Addr
var FakeAddr = &net.UDPAddr{
	IP:   net.IPv4(127, 0, 0, 1),
	Port: 8181,
}

var ErrClosedConnection = errors.New("connection is closed")
var ErrAlreadyClosedConnection = errors.New("connection is already closed")

// FakePacketConn is a fake net.PacketConn which returns Payload on every read.
type FakePacketConn struct {
	Payload []byte

	closeOnce sync.Once
	closed    chan struct{}
}

// NewFakePacketConn returns a FakePacketConn reading payload, or FakeMetric if payload is nil.
func NewFakePacketConn(payload []byte) *FakePacketConn {
	if payload == nil {
		payload = FakeMetric
	}
	return &FakePacketConn{
		Payload: payload,
		closed:  make(chan struct{}),
	}
}

func (fpc *FakePacketConn) isClosed() bool {
	select {
	case <-fpc.closed:
		return true
	default:
		return false
	}
}

// ReadFrom copies Payload into b.  As with a real socket, a payload larger
// than b is cut to len(b).
func (fpc *FakePacketConn) ReadFrom(b []byte) (int, net.Addr, error) {
	if fpc.isClosed() {
		return 0, nil, ErrClosedConnection
	}
	// Don't spin a core while a test waits on something else.
	time.Sleep(time.Microsecond)
	n := copy(b, fpc.Payload)
	return n, FakeAddr, nil
}

// WriteTo dummy impl.
func (fpc *FakePacketConn) WriteTo(b []byte, addr net.Addr) (int, error) {
	if fpc.isClosed() {
		return 0, ErrClosedConnection
	}
	return len(b), nil
}

// Close makes subsequent reads fail.
func (fpc *FakePacketConn) Close() error {
	err := ErrAlreadyClosedConnection
	fpc.closeOnce.Do(func() {
		close(fpc.closed)
		err = nil
	})
	return err
}

// LocalAddr dummy impl.
func (fpc *FakePacketConn) LocalAddr() net.Addr { return FakeAddr }

// SetDeadline dummy impl.
func (fpc *FakePacketConn) SetDeadline(t time.Time) error { return nil }

// SetReadDeadline dummy impl.
func (fpc *FakePacketConn) SetReadDeadline(t time.Time) error { return nil }

// SetWriteDeadline dummy impl.
func (fpc *FakePacketConn) SetWriteDeadline(t time.Time) error { return nil }

// FakeRandomPacketConn is a fake net.PacketConn providing random fake metrics.
type FakeRandomPacketConn struct {
	FakePacketConn
}

// ReadFrom generates a random batch and writes it into b.
func (frpc *FakeRandomPacketConn) ReadFrom(b []byte) (int, net.Addr, error) {
	if frpc.isClosed() {
		return 0, nil, ErrClosedConnection
	}

	num := rand.Int31n(10000) // Randomize metric name
	buf := new(bytes.Buffer)
	switch rand.Int31n(3) {
	case 0: // Counter
		fmt.Fprintf(buf, "statsd.tester.counter_%d:%d|c\n", num, rand.Int31n(100)) // #nosec
	case 1: // Gauge
		fmt.Fprintf(buf, "statsd.tester.gauge_%d:%d|g\n", num, rand.Int31n(100)) // #nosec
	case 2: // Timer
		for i := 0; i < 10; i++ {
			fmt.Fprintf(buf, "statsd.tester.timer_%d:%d|ms|@1\n", num, rand.Int31n(100)) // #nosec
		}
	default:
		panic(errors.New("unreachable"))
	}
	n := copy(b, buf.Bytes())
	return n, FakeAddr, nil
}

// Factory is a replacement for net.ListenPacket() that produces instances of FakeRandomPacketConn.
func Factory() (net.PacketConn, error) {
	return &FakeRandomPacketConn{
		FakePacketConn: FakePacketConn{
			closed: make(chan struct{}),
		},
	}, nil
}
