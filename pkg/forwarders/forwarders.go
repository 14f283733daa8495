// Package forwarders holds the registry of known forwarders.
package forwarders

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/atlassian/distributor"
	"github.com/atlassian/distributor/pkg/forwarders/datadog"
	"github.com/atlassian/distributor/pkg/forwarders/null"
	"github.com/atlassian/distributor/pkg/forwarders/stdout"
)

// Factory creates a forwarder from its configuration.
type Factory func(v *viper.Viper, logger logrus.FieldLogger) (distributor.Forwarder, error)

// All known forwarders.
var forwarders = map[string]Factory{
	datadog.ForwarderName: datadog.NewClientFromViper,
	null.ForwarderName:    null.NewClientFromViper,
	stdout.ForwarderName:  stdout.NewClientFromViper,
}

// GetForwarder creates an instance of the named forwarder, or nil if
// the name is not known. The error return is only used if the named forwarder
// was known but failed to initialize.
func GetForwarder(name string, v *viper.Viper, logger logrus.FieldLogger) (distributor.Forwarder, error) {
	f, found := forwarders[name]
	if !found {
		return nil, nil
	}
	return f(v, logger)
}

// InitForwarder creates an instance of the named forwarder.
func InitForwarder(name string, v *viper.Viper, logger logrus.FieldLogger) (distributor.Forwarder, error) {
	fwd, err := GetForwarder(name, v, logger)
	if err != nil {
		return nil, fmt.Errorf("could not init forwarder %q: %w", name, err)
	}
	if fwd == nil {
		return nil, fmt.Errorf("unknown forwarder %q", name)
	}
	logger.WithField("forwarder", name).Info("Initialised forwarder")
	return fwd, nil
}

// InitForwarders creates every named forwarder.  Empty names are skipped.
func InitForwarders(names []string, v *viper.Viper, logger logrus.FieldLogger) ([]distributor.Forwarder, error) {
	fwds := make([]distributor.Forwarder, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		fwd, err := InitForwarder(name, v, logger)
		if err != nil {
			return nil, err
		}
		fwds = append(fwds, fwd)
	}
	return fwds, nil
}
