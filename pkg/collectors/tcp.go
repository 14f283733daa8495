package collectors

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/ash2k/stager/wait"
	"github.com/sirupsen/logrus"

	"github.com/atlassian/distributor"
	"github.com/atlassian/distributor/pkg/stats"
)

const listenerTCP = "tcp"

// TCPListener accepts StatsD over TCP.  Each connection is handled by its own
// goroutine and carries newline-delimited lines, every line is parsed and
// recorded on its own.
type TCPListener struct {
	Addr        string
	Parser      distributor.Parser
	Recorder    distributor.Recorder
	ReadTimeout time.Duration // Idle time after which a connection is closed, 0 for none
	BadLines    *BadLineLogger
	Logger      logrus.FieldLogger
}

// Run listens on Addr until ctx is done.  A failure to bind or accept is returned.
func (t *TCPListener) Run(ctx context.Context) error {
	l, err := net.Listen("tcp", t.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", t.Addr, err)
	}
	defer l.Close()
	return t.Serve(ctx, l)
}

// Serve accepts connections on l until ctx is done, then closes l and every
// open connection and waits for their handlers to return.
func (t *TCPListener) Serve(ctx context.Context, l net.Listener) error {
	var wg wait.Group
	defer wg.Wait()
	stopClose := context.AfterFunc(ctx, func() {
		_ = l.Close()
	})
	defer stopClose()

	t.Logger.WithField("address", l.Addr().String()).Info("Listening for StatsD over TCP")
	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accepting connection: %w", err)
		}
		wg.Start(func() {
			t.handleConn(ctx, conn)
		})
	}
}

func (t *TCPListener) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	stopClose := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stopClose()

	statser := stats.FromContext(ctx)
	logger := t.Logger.WithField("remote", conn.RemoteAddr().String())
	r := bufio.NewReader(conn)
	for {
		if t.ReadTimeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(t.ReadTimeout)); err != nil {
				logger.WithError(err).Debug("Failed to set read deadline")
				return
			}
		}
		line, err := r.ReadBytes('\n')
		if len(line) > 0 {
			t.handleLine(statser, line)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				logger.WithError(err).Debug("Closing connection")
			}
			return
		}
	}
}

func (t *TCPListener) handleLine(statser *stats.Stats, line []byte) {
	line = bytes.TrimRight(line, "\r\n")
	if len(line) == 0 {
		return
	}
	statser.LineReceived(listenerTCP)
	metrics, err := t.Parser.Parse(line)
	if err != nil {
		statser.LineInvalid(listenerTCP)
		t.BadLines.Log(listenerTCP, line, err)
		return
	}
	t.Recorder.Record(metrics)
}
