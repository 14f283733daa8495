package collectors

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/ash2k/stager/wait"
	"github.com/libp2p/go-reuseport"
	"github.com/sirupsen/logrus"

	"github.com/atlassian/distributor"
	"github.com/atlassian/distributor/pkg/stats"
)

const listenerUDP = "udp"

// SocketFactory is an indirection layer over net.ListenPacket() to allow for different implementations.
type SocketFactory func() (net.PacketConn, error)

// NewSocketFactory returns a SocketFactory listening on addr.  With reusePort
// every socket is opened with SO_REUSEPORT, so several can share addr.
func NewSocketFactory(addr string, reusePort bool) SocketFactory {
	return func() (net.PacketConn, error) {
		if reusePort {
			return reuseport.ListenPacket("udp", addr)
		}
		return net.ListenPacket("udp", addr)
	}
}

// UDPListener accepts StatsD over UDP.  A datagram is a batch and is parsed as
// a whole, a datagram larger than PacketSize is discarded.
type UDPListener struct {
	SocketFactory SocketFactory
	PacketSize    int  // Largest accepted datagram
	MaxReaders    int  // Receive loops
	ConnPerReader bool // One socket per receive loop instead of a shared one
	Parser        distributor.Parser
	Recorder      distributor.Recorder
	BadLines      *BadLineLogger
	Logger        logrus.FieldLogger
}

// Run receives datagrams until ctx is done.  A failure to open or read a socket
// stops every receive loop and is returned.
func (u *UDPListener) Run(ctx context.Context) error {
	readers := u.MaxReaders
	if readers < 1 {
		readers = 1
	}
	sockets := 1
	if u.ConnPerReader {
		sockets = readers
	}

	conns := make([]net.PacketConn, 0, sockets)
	var closeOnce sync.Once
	closeAll := func() {
		closeOnce.Do(func() {
			for _, c := range conns {
				if err := c.Close(); err != nil {
					u.Logger.WithError(err).Warn("Error closing socket")
				}
			}
		})
	}
	for i := 0; i < sockets; i++ {
		c, err := u.SocketFactory()
		if err != nil {
			closeAll()
			return fmt.Errorf("opening socket: %w", err)
		}
		conns = append(conns, c)
	}
	defer closeAll()
	stopClose := context.AfterFunc(ctx, closeAll)
	defer stopClose()

	u.Logger.WithFields(logrus.Fields{
		"address": conns[0].LocalAddr().String(),
		"readers": readers,
		"sockets": sockets,
	}).Info("Listening for StatsD over UDP")

	errs := make(chan error, readers)
	var wg wait.Group
	for r := 0; r < readers; r++ {
		c := conns[r%sockets]
		wg.Start(func() {
			if err := u.receive(ctx, c); err != nil {
				errs <- err
				closeAll()
			}
		})
	}
	wg.Wait()
	close(errs)
	return <-errs
}

func (u *UDPListener) receive(ctx context.Context, c net.PacketConn) error {
	statser := stats.FromContext(ctx)
	// One extra byte tells an oversize datagram apart from one of exactly PacketSize.
	buf := make([]byte, u.PacketSize+1)
	for {
		n, addr, err := c.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return fmt.Errorf("reading from socket: %w", err)
		}
		statser.PacketReceived()
		if n > u.PacketSize {
			statser.PacketTruncated()
			u.BadLines.Log(listenerUDP, buf[:u.PacketSize], fmt.Errorf("datagram from %v larger than %d bytes", addr, u.PacketSize))
			continue
		}
		u.handlePacket(statser, buf[:n])
	}
}

// handlePacket parses and records one datagram.  The parsers keep no reference
// to payload, so the receive buffer can be reused.
func (u *UDPListener) handlePacket(statser *stats.Stats, payload []byte) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return
	}
	statser.LineReceived(listenerUDP)
	metrics, err := u.Parser.Parse(payload)
	if err != nil {
		statser.LineInvalid(listenerUDP)
		u.BadLines.Log(listenerUDP, payload, err)
		return
	}
	u.Recorder.Record(metrics)
}
