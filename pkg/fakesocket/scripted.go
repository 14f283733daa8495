package fakesocket

import (
	"net"
	"sync"
)

// ScriptedPacketConn returns each of Payloads once, in order, then blocks
// reads until it is closed.
type ScriptedPacketConn struct {
	FakePacketConn

	mu       sync.Mutex
	payloads [][]byte
}

// NewScriptedPacketConn returns a ScriptedPacketConn reading payloads.
func NewScriptedPacketConn(payloads ...[]byte) *ScriptedPacketConn {
	return &ScriptedPacketConn{
		FakePacketConn: FakePacketConn{
			closed: make(chan struct{}),
		},
		payloads: payloads,
	}
}

// ReadFrom copies the next payload into b.
func (spc *ScriptedPacketConn) ReadFrom(b []byte) (int, net.Addr, error) {
	spc.mu.Lock()
	if len(spc.payloads) > 0 && !spc.isClosed() {
		p := spc.payloads[0]
		spc.payloads = spc.payloads[1:]
		spc.mu.Unlock()
		return copy(b, p), FakeAddr, nil
	}
	spc.mu.Unlock()
	<-spc.closed
	return 0, nil, ErrClosedConnection
}

// Remaining returns the number of payloads not read yet.
func (spc *ScriptedPacketConn) Remaining() int {
	spc.mu.Lock()
	defer spc.mu.Unlock()
	return len(spc.payloads)
}
