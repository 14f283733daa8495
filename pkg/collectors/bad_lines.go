// Package collectors receives metrics over the network and records them.
package collectors

import (
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// maxLoggedLine is the longest prefix of an invalid payload written to the log.
const maxLoggedLine = 256

// BadLineLogger logs invalid input, at most perMinute times per minute so a
// misbehaving client cannot flood the log.
type BadLineLogger struct {
	limiter *rate.Limiter
	logger  logrus.FieldLogger
}

// NewBadLineLogger creates a BadLineLogger.  A perMinute of 0 logs every line.
func NewBadLineLogger(logger logrus.FieldLogger, perMinute int) *BadLineLogger {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if perMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
	}
	return &BadLineLogger{
		limiter: limiter,
		logger:  logger,
	}
}

// Log records that payload from listener was discarded because of err.
func (b *BadLineLogger) Log(listener string, payload []byte, err error) {
	if b == nil || !b.limiter.Allow() {
		return
	}
	if len(payload) > maxLoggedLine {
		payload = payload[:maxLoggedLine]
	}
	b.logger.WithError(err).WithFields(logrus.Fields{
		"listener": listener,
		"line":     string(payload),
	}).Warn("Discarding invalid input")
}
