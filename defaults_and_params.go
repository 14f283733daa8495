package distributor

import (
	"runtime"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// DefaultForwarders is the list of default forwarders' names.
var DefaultForwarders = []string{"stdout"}

// DefaultReaders is the list of log line readers applied to the log drain by default.
var DefaultReaders = []string{"standard", "heroku"}

// DefaultMaxReaders is the default number of UDP socket reading goroutines.
var DefaultMaxReaders = 1

// DefaultMaxForwarders is the default upper bound on forwarders invoked concurrently for one snapshot.
var DefaultMaxForwarders = runtime.NumCPU()

const (
	// DefaultFlushInterval is the default metrics flush interval.
	DefaultFlushInterval = 10 * time.Second
	// DefaultFlushOffset is the default offset used when flush alignment is enabled.
	DefaultFlushOffset = 0
	// DefaultFlushAligned is the default for aligning flushes to the interval.
	DefaultFlushAligned = false
	// DefaultFlushQueueSize is the default number of snapshots buffered between flush and delivery.
	DefaultFlushQueueSize = 16
	// DefaultFlushQueuePolicy is the default overflow policy for the delivery queue.
	DefaultFlushQueuePolicy = "drop-oldest"
	// DefaultForwardEmpty is the default for forwarding flushes with no metrics.
	DefaultForwardEmpty = false
	// DefaultStatsdUDPAddr is the default address on which to listen for StatsD datagrams.
	DefaultStatsdUDPAddr = ":8125"
	// DefaultStatsdTCPAddr is the default address on which to listen for StatsD lines over TCP.
	DefaultStatsdTCPAddr = ""
	// DefaultHTTPAddr is the default address of the web server.
	DefaultHTTPAddr = "127.0.0.1:3000"
	// DefaultPacketSize is the largest datagram accepted by the UDP listener.
	DefaultPacketSize = 1024
	// DefaultConnPerReader is the default for opening one reuseport socket per UDP reader.
	DefaultConnPerReader = false
	// DefaultTCPReadTimeout is the default idle deadline for a TCP connection.
	DefaultTCPReadTimeout = 30 * time.Second
	// DefaultBadLinesPerMinute is the default number of bad lines to allow to log per minute.
	DefaultBadLinesPerMinute = 0
	// DefaultEnableDrain is the default for exposing the log drain route.
	DefaultEnableDrain = true
	// DefaultEnableProf is the default for exposing the profiling routes.
	DefaultEnableProf = false
)

const (
	// ParamForwarders is the name of parameter with forwarders.
	ParamForwarders = "forwarders"
	// ParamReaders is the name of parameter with log line readers.
	ParamReaders = "readers"
	// ParamFlushInterval is the name of parameter with metrics flush interval.
	ParamFlushInterval = "flush-interval"
	// ParamFlushOffset is the name of parameter with the offset for aligned flushes.
	ParamFlushOffset = "flush-offset"
	// ParamFlushAligned is the name of parameter which aligns flushes to the interval.
	ParamFlushAligned = "flush-aligned"
	// ParamFlushQueueSize is the name of parameter with the number of buffered snapshots.
	ParamFlushQueueSize = "flush-queue-size"
	// ParamFlushQueuePolicy is the name of parameter with the delivery queue overflow policy.
	ParamFlushQueuePolicy = "flush-queue-policy"
	// ParamForwardEmpty is the name of parameter which forwards flushes with no metrics.
	ParamForwardEmpty = "forward-empty"
	// ParamMaxForwarders is the name of parameter with number of forwarders invoked concurrently.
	ParamMaxForwarders = "max-forwarders"
	// ParamStatsdUDPAddr is the name of parameter with address on which to listen for StatsD datagrams.
	ParamStatsdUDPAddr = "statsd-udp-addr"
	// ParamStatsdTCPAddr is the name of parameter with address on which to listen for StatsD over TCP.
	ParamStatsdTCPAddr = "statsd-tcp-addr"
	// ParamHTTPAddr is the name of parameter with the address of the web server.
	ParamHTTPAddr = "http-addr"
	// ParamEnableDrain is the name of parameter which exposes the log drain route.
	ParamEnableDrain = "enable-drain"
	// ParamEnableProf is the name of parameter which exposes the profiling routes on the web server.
	ParamEnableProf = "enable-prof"
	// ParamPacketSize is the name of parameter with the largest accepted datagram.
	ParamPacketSize = "packet-size"
	// ParamMaxReaders is the name of parameter with number of UDP socket readers.
	ParamMaxReaders = "max-readers"
	// ParamConnPerReader is the name of parameter which opens one reuseport socket per reader.
	ParamConnPerReader = "conn-per-reader"
	// ParamTCPReadTimeout is the name of parameter with the TCP idle deadline.
	ParamTCPReadTimeout = "tcp-read-timeout"
	// ParamBadLinesPerMinute is the name of the parameter indicating how many bad lines can be logged per minute
	ParamBadLinesPerMinute = "bad-lines-per-minute"
)

// AddFlags adds flags to the specified FlagSet.
func AddFlags(fs *pflag.FlagSet) {
	fs.Duration(ParamFlushInterval, DefaultFlushInterval, "How often to flush metrics to the forwarders")
	fs.Duration(ParamFlushOffset, DefaultFlushOffset, "Offset for flush interval when flush alignment is enabled")
	fs.Bool(ParamFlushAligned, DefaultFlushAligned, "Align flush intervals to the flush interval")
	fs.Int(ParamFlushQueueSize, DefaultFlushQueueSize, "Maximum number of flushed snapshots waiting for delivery")
	fs.String(ParamFlushQueuePolicy, DefaultFlushQueuePolicy, "What to do when the delivery queue is full [drop-oldest, block]")
	fs.Bool(ParamForwardEmpty, DefaultForwardEmpty, "Forward flushes which contain no metrics")
	fs.Int(ParamMaxForwarders, DefaultMaxForwarders, "Maximum number of forwarders invoked concurrently")
	fs.String(ParamStatsdUDPAddr, DefaultStatsdUDPAddr, "Address on which to listen for StatsD datagrams, empty to disable")
	fs.String(ParamStatsdTCPAddr, DefaultStatsdTCPAddr, "Address on which to listen for StatsD over TCP, empty to disable")
	fs.String(ParamHTTPAddr, DefaultHTTPAddr, "Address of the web server, empty to disable")
	fs.Bool(ParamEnableDrain, DefaultEnableDrain, "Expose the log drain ingestion route on the web server")
	fs.Bool(ParamEnableProf, DefaultEnableProf, "Expose the memprof, pprof and trace routes on the web server")
	fs.Int(ParamPacketSize, DefaultPacketSize, "Largest accepted datagram, larger datagrams are discarded")
	fs.Int(ParamMaxReaders, DefaultMaxReaders, "Maximum number of UDP socket readers")
	fs.Bool(ParamConnPerReader, DefaultConnPerReader, "Create a separate reuseport socket for each UDP reader")
	fs.Duration(ParamTCPReadTimeout, DefaultTCPReadTimeout, "Idle deadline for a TCP connection")
	fs.Int(ParamBadLinesPerMinute, DefaultBadLinesPerMinute, "The number of bad lines to allow to log per minute")
	fs.StringSlice(ParamForwarders, DefaultForwarders, "Comma-separated list of forwarders")
	fs.StringSlice(ParamReaders, DefaultReaders, "Comma-separated list of log line readers ["+strings.Join(DefaultReaders, ", ")+"]")
}
