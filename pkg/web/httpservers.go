// Package web serves the HTTP routes of the distributor: log drain ingestion,
// health checks, internal metrics and profiling.
package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/atlassian/distributor/pkg/healthcheck"
)

// HTTPServer is the optional HTTP surface.
type HTTPServer struct {
	logger  logrus.FieldLogger
	address string
	Router  *mux.Router
}

// Options selects the routes of an HTTPServer.  A nil handler disables its route.
type Options struct {
	Address      string
	LogDrain     http.Handler // POST /logs/drain
	Metrics      http.Handler // GET /metrics
	HealthChecks []healthcheck.Func
	DeepChecks   []healthcheck.Func
	EnableProf   bool
}

type route struct {
	path    string
	handler http.HandlerFunc
	method  string
	name    string
}

var done = struct{}{}

// NewHTTPServer creates the server and its routes.  The healthcheck routes are
// always present.
func NewHTTPServer(logger logrus.FieldLogger, opts Options) (*HTTPServer, error) {
	server := &HTTPServer{
		logger:  logger,
		address: opts.Address,
	}

	hc := &healthChecker{
		logger:       logger,
		healthChecks: opts.HealthChecks,
		deepChecks:   opts.DeepChecks,
	}
	routes := []route{
		{path: "/healthcheck", handler: hc.healthCheck, method: http.MethodGet, name: "healthcheck_get"},
		{path: "/deepcheck", handler: hc.deepCheck, method: http.MethodGet, name: "deepcheck_get"},
	}
	if opts.LogDrain != nil {
		routes = append(routes,
			route{path: "/logs/drain", handler: opts.LogDrain.ServeHTTP, method: http.MethodPost, name: "logdrain_post"},
		)
	}
	if opts.Metrics != nil {
		routes = append(routes,
			route{path: "/metrics", handler: opts.Metrics.ServeHTTP, method: http.MethodGet, name: "metrics_get"},
		)
	}
	if opts.EnableProf {
		profiler := &traceProfiler{duration: profileDuration}
		routes = append(routes,
			route{path: "/memprof", handler: profiler.MemProf, method: http.MethodPost, name: "profmem_post"},
			route{path: "/pprof", handler: profiler.PProf, method: http.MethodPost, name: "profpprof_post"},
			route{path: "/trace", handler: profiler.Trace, method: http.MethodPost, name: "proftrace_post"},
		)
	}

	router, err := createRoutes(routes)
	if err != nil {
		return nil, err
	}
	router.NotFoundHandler = server.logRequest(http.HandlerFunc(server.notFound))
	router.Use(server.logRequest)
	server.Router = router

	logger.WithFields(logrus.Fields{
		"address":          opts.Address,
		"enable-log-drain": opts.LogDrain != nil,
		"enable-metrics":   opts.Metrics != nil,
		"enable-prof":      opts.EnableProf,
	}).Info("Created server")

	return server, nil
}

func (hs *HTTPServer) notFound(w http.ResponseWriter, req *http.Request) {
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte("not found"))
}

func createRoutes(routes []route) (*mux.Router, error) {
	router := mux.NewRouter()

	for _, route := range routes {
		r := router.HandleFunc(route.path, route.handler).Methods(route.method).Name(route.name)
		if err := r.GetError(); err != nil {
			return nil, fmt.Errorf("error creating route %s: %w", route.name, err)
		}
	}

	return router, nil
}

func (hs *HTTPServer) logRequest(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		srcIP, _, err := net.SplitHostPort(req.RemoteAddr)
		if err != nil {
			srcIP = req.RemoteAddr
		}
		logFields := logrus.Fields{
			"srcip": srcIP,
			"path":  req.URL.Path,
		}
		if route := mux.CurrentRoute(req); route == nil {
			logFields["method"] = req.Method
		} else {
			logFields["route"] = route.GetName()
		}
		if source := req.Header.Get("X-Forwarded-For"); source != "" {
			logFields["forwarded_for"] = source
		}

		start := time.Now()
		handler.ServeHTTP(w, req)
		dur := time.Since(start)

		logFields["duration"] = float64(dur) / float64(time.Millisecond)
		hs.logger.WithFields(logFields).Debug("request")
	})
}

// Run listens on the configured address and serves until ctx is done.
func (hs *HTTPServer) Run(ctx context.Context) error {
	l, err := net.Listen("tcp", hs.address)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", hs.address, err)
	}
	return hs.Serve(ctx, l)
}

// Serve serves on l until ctx is done, then shuts down gracefully.  l is
// closed when Serve returns.
func (hs *HTTPServer) Serve(ctx context.Context, l net.Listener) error {
	server := &http.Server{
		Handler:           hs.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	chStopped := make(chan struct{}, 1)
	go hs.waitAndStop(ctx, server, chStopped)

	hs.logger.WithField("address", l.Addr().String()).Info("listening")

	err := server.Serve(l)
	if !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web server failed: %w", err)
	}

	// Wait for graceful shutdown of existing connections
	select {
	case <-chStopped:
		// happy
	case <-time.After(6 * time.Second):
		hs.logger.Info("timeout waiting for webserver to stop")
	}
	return nil
}

// waitAndStop will gracefully shut down the Server when the Context passed is cancelled.  It signals
// on chStopped when it is done.  There is no guarantee that it will actually signal, if the server
// does not shutdown.
func (hs *HTTPServer) waitAndStop(ctx context.Context, server *http.Server, chStopped chan<- struct{}) {
	<-ctx.Done()

	hs.logger.Info("shutting down web server")
	timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(timeoutCtx); err != nil {
		hs.logger.WithError(err).Warn("failed to stop web server")
	}
	chStopped <- done
}
