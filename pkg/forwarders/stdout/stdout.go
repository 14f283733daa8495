// Package stdout provides a forwarder printing metrics in a plain text format.
package stdout

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/atlassian/distributor"
)

// ForwarderName is the name of this forwarder.
const ForwarderName = "stdout"

// Client writes one line per entry, in the form
//
//	name value timestamp
//
// with source=token appended when the entry has a source.
type Client struct {
	mu  sync.Mutex
	out io.Writer
	now func() time.Time // Returns current time. Useful for testing.
}

// NewClientFromViper constructs a Client writing to os.Stdout.
func NewClientFromViper(v *viper.Viper, logger logrus.FieldLogger) (distributor.Forwarder, error) {
	return NewClient(os.Stdout), nil
}

// NewClient constructs a Client writing to out.
func NewClient(out io.Writer) *Client {
	return &Client{
		out: out,
		now: time.Now,
	}
}

// ForwardMetrics writes metrics as a single write.
func (c *Client) ForwardMetrics(ctx context.Context, metrics distributor.AggregatedMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	buf := &bytes.Buffer{}
	now := c.now().Unix()
	for _, m := range metrics {
		buf.WriteString(m.Name)
		buf.WriteByte(' ')
		buf.WriteString(strconv.FormatFloat(m.Value, 'f', -1, 64))
		buf.WriteByte(' ')
		buf.WriteString(strconv.FormatInt(now, 10))
		if m.Source != "" {
			buf.WriteString(" source=")
			buf.WriteString(m.Source)
		}
		buf.WriteByte('\n')
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.out.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("[%s] error writing: %w", ForwarderName, err)
	}
	return nil
}

// Name returns the name of the forwarder.
func (c *Client) Name() string {
	return ForwarderName
}
