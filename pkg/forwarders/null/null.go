// Package null provides a forwarder which discards everything.
package null

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/atlassian/distributor"
)

// ForwarderName is the name of this forwarder.
const ForwarderName = "null"

// Client discards metrics.
type Client struct{}

// NewClientFromViper constructs a Client.
func NewClientFromViper(v *viper.Viper, logger logrus.FieldLogger) (distributor.Forwarder, error) {
	return NewClient(), nil
}

// NewClient constructs a Client.
func NewClient() Client {
	return Client{}
}

// ForwardMetrics discards metrics.
func (Client) ForwardMetrics(ctx context.Context, metrics distributor.AggregatedMetrics) error {
	return nil
}

// Name returns the name of the forwarder.
func (Client) Name() string {
	return ForwarderName
}
