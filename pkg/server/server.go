// Package server assembles the store, the collectors, the flusher and the web
// server into one runnable process.
package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ash2k/stager/wait"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/atlassian/distributor"
	"github.com/atlassian/distributor/pkg/collectors"
	"github.com/atlassian/distributor/pkg/flush"
	"github.com/atlassian/distributor/pkg/forwarders"
	"github.com/atlassian/distributor/pkg/healthcheck"
	"github.com/atlassian/distributor/pkg/parsers/logline"
	"github.com/atlassian/distributor/pkg/parsers/statsd"
	"github.com/atlassian/distributor/pkg/stats"
	"github.com/atlassian/distributor/pkg/store"
	"github.com/atlassian/distributor/pkg/web"
)

// Server encapsulates all of the parameters necessary for starting up
// the server. These can either be set via command line or directly.
type Server struct {
	Forwarders        []distributor.Forwarder
	Readers           logline.Readers
	Flush             flush.Config
	StatsdUDPAddr     string // Empty disables the UDP listener
	StatsdTCPAddr     string // Empty disables the TCP listener
	HTTPAddr          string // Empty disables the web server
	EnableDrain       bool
	EnableProf        bool
	PacketSize        int
	MaxReaders        int
	ConnPerReader     bool
	TCPReadTimeout    time.Duration
	BadLinesPerMinute int
	Logger            logrus.FieldLogger
}

// NewServerFromViper creates a Server from the settings in v.
func NewServerFromViper(v *viper.Viper, logger logrus.FieldLogger) (*Server, error) {
	readers, err := logline.FromNames(v.GetStringSlice(distributor.ParamReaders))
	if err != nil {
		return nil, err
	}
	policy, err := flush.ParsePolicy(v.GetString(distributor.ParamFlushQueuePolicy))
	if err != nil {
		return nil, err
	}
	interval := v.GetDuration(distributor.ParamFlushInterval)
	if interval <= 0 {
		return nil, fmt.Errorf("%s must be positive, got %s", distributor.ParamFlushInterval, interval)
	}
	packetSize := v.GetInt(distributor.ParamPacketSize)
	if packetSize <= 0 {
		return nil, fmt.Errorf("%s must be positive, got %d", distributor.ParamPacketSize, packetSize)
	}
	fwds, err := forwarders.InitForwarders(v.GetStringSlice(distributor.ParamForwarders), v, logger)
	if err != nil {
		return nil, err
	}
	return &Server{
		Forwarders: fwds,
		Readers:    readers,
		Flush: flush.Config{
			Interval:      interval,
			Offset:        v.GetDuration(distributor.ParamFlushOffset),
			Aligned:       v.GetBool(distributor.ParamFlushAligned),
			QueueSize:     v.GetInt(distributor.ParamFlushQueueSize),
			Policy:        policy,
			ForwardEmpty:  v.GetBool(distributor.ParamForwardEmpty),
			MaxForwarders: v.GetInt(distributor.ParamMaxForwarders),
		},
		StatsdUDPAddr:     v.GetString(distributor.ParamStatsdUDPAddr),
		StatsdTCPAddr:     v.GetString(distributor.ParamStatsdTCPAddr),
		HTTPAddr:          v.GetString(distributor.ParamHTTPAddr),
		EnableDrain:       v.GetBool(distributor.ParamEnableDrain),
		EnableProf:        v.GetBool(distributor.ParamEnableProf),
		PacketSize:        packetSize,
		MaxReaders:        v.GetInt(distributor.ParamMaxReaders),
		ConnPerReader:     v.GetBool(distributor.ParamConnPerReader),
		TCPReadTimeout:    v.GetDuration(distributor.ParamTCPReadTimeout),
		BadLinesPerMinute: v.GetInt(distributor.ParamBadLinesPerMinute),
		Logger:            logger,
	}, nil
}

// Run runs the server until context signals done.
func (s *Server) Run(ctx context.Context) error {
	var sf collectors.SocketFactory
	if s.StatsdUDPAddr != "" {
		sf = collectors.NewSocketFactory(s.StatsdUDPAddr, s.ConnPerReader)
	}
	return s.RunWithCustomSocket(ctx, sf)
}

type service struct {
	name string
	run  func(context.Context) error
}

// RunWithCustomSocket runs the server until context signals done or one of
// its listeners fails.  UDP sockets are created using sf, a nil sf disables
// the UDP listener.  The error of the first failed listener is returned,
// otherwise ctx.Err().
func (s *Server) RunWithCustomSocket(ctx context.Context, sf collectors.SocketFactory) error {
	logger := s.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	statser := stats.New()
	ctx = stats.NewContext(ctx, statser)

	st := store.New()
	flusher := flush.NewFlusher(s.Flush, st, s.Forwarders, logger)
	badLines := collectors.NewBadLineLogger(logger, s.BadLinesPerMinute)

	services, err := s.services(logger, sf, st, statser, flusher, badLines)
	if err != nil {
		return err
	}

	// 0. Start runnable forwarders. They outlive the flusher so the queue can drain into them.
	var runnables []distributor.Runnable
	for _, f := range s.Forwarders {
		runnables = distributor.MaybeAppendRunnable(runnables, f)
	}
	var wgForwarders wait.Group
	defer wgForwarders.Wait()
	ctxForwarders, cancelForwarders := context.WithCancel(context.WithoutCancel(ctx)) // Separate context!
	defer cancelForwarders()
	for _, r := range runnables {
		wgForwarders.StartWithContext(ctxForwarders, r)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// 1. Start the Flusher
	var wgFlusher wait.Group
	defer wgFlusher.Wait()
	wgFlusher.StartWithContext(ctx, flusher.Run)

	// 2. Start the listeners, the first one to fail stops the rest
	errs := make(chan error, len(services))
	var wgServices wait.Group
	for _, svc := range services {
		svc := svc
		wgServices.Start(func() {
			err := svc.run(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.WithError(err).WithField("service", svc.name).Error("Service failed")
				err = fmt.Errorf("%s: %w", svc.name, err)
				cancel()
			}
			errs <- err
		})
	}
	logger.WithField("services", len(services)).Info("Server started")

	// 3. Listen until done
	<-ctx.Done()
	wgServices.Wait()
	close(errs)
	for err := range errs {
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}
	return ctx.Err()
}

func (s *Server) services(logger logrus.FieldLogger, sf collectors.SocketFactory, st *store.Store, statser *stats.Stats, flusher *flush.Flusher, badLines *collectors.BadLineLogger) ([]service, error) {
	var services []service
	if sf != nil {
		udp := &collectors.UDPListener{
			SocketFactory: sf,
			PacketSize:    s.PacketSize,
			MaxReaders:    s.MaxReaders,
			ConnPerReader: s.ConnPerReader,
			Parser:        statsd.Parser{},
			Recorder:      st,
			BadLines:      badLines,
			Logger:        logger.WithField("listener", "udp"),
		}
		services = append(services, service{name: "udp", run: udp.Run})
	}
	if s.StatsdTCPAddr != "" {
		tcp := &collectors.TCPListener{
			Addr:        s.StatsdTCPAddr,
			Parser:      statsd.Parser{},
			Recorder:    st,
			ReadTimeout: s.TCPReadTimeout,
			BadLines:    badLines,
			Logger:      logger.WithField("listener", "tcp"),
		}
		services = append(services, service{name: "tcp", run: tcp.Run})
	}
	if s.HTTPAddr != "" {
		healthChecks, deepChecks := flusher.HealthChecks(), []healthcheck.Func(nil)
		for _, f := range s.Forwarders {
			healthChecks, deepChecks = healthcheck.MaybeAppend(healthChecks, deepChecks, f)
		}
		opts := web.Options{
			Address:      s.HTTPAddr,
			Metrics:      statser.Handler(),
			HealthChecks: healthChecks,
			DeepChecks:   deepChecks,
			EnableProf:   s.EnableProf,
		}
		if s.EnableDrain {
			opts.LogDrain = &collectors.LogDrainHandler{
				Parser:   s.Readers,
				Recorder: st,
				BadLines: badLines,
				Logger:   logger.WithField("listener", "http"),
			}
		}
		hs, err := web.NewHTTPServer(logger.WithField("component", "web"), opts)
		if err != nil {
			return nil, err
		}
		services = append(services, service{name: "web", run: hs.Run})
	}
	return services, nil
}
