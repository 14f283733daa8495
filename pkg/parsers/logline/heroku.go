package logline

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/atlassian/distributor"
)

var (
	herokuStatusRegexp  = regexp.MustCompile(`(?:^|\s)status=(\d+)`)
	herokuConnectRegexp = regexp.MustCompile(`(?:^|\s)connect=(\d+)ms`)
	herokuServiceRegexp = regexp.MustCompile(`(?:^|\s)service=(\d+)ms`)
	herokuDynoRegexp    = regexp.MustCompile(`(?:^|\s)dyno=([a-zA-Z]+)`)
	herokuHCodeRegexp   = regexp.MustCompile(`code=(H\d+)`)
	herokuRCodeRegexp   = regexp.MustCompile(`Error (R\d+)`)
	herokuLoadRegexp    = regexp.MustCompile(`sample#load_avg_1m=(\d+(?:\.\d+)?)`)
)

// HerokuReader reads the metrics implied by Heroku platform log lines: router
// timings and statuses, router and runtime error codes, and dyno load
// averages.  Lines which don't mention heroku are ignored.
type HerokuReader struct{}

// Read returns the router metrics, then the error code count, then the load average.
func (HerokuReader) Read(line string) []distributor.Metric {
	if !strings.Contains(line, "heroku") {
		return nil
	}
	var metrics []distributor.Metric
	metrics = readRouterStatus(metrics, line)
	metrics = readErrorCode(metrics, line)
	metrics = readLoadAverage(metrics, line)
	return metrics
}

// readRouterStatus requires all of status, connect, service and dyno to be
// present, otherwise it adds nothing.
func readRouterStatus(metrics []distributor.Metric, line string) []distributor.Metric {
	status := herokuStatusRegexp.FindStringSubmatch(line)
	connect := herokuConnectRegexp.FindStringSubmatch(line)
	service := herokuServiceRegexp.FindStringSubmatch(line)
	dyno := herokuDynoRegexp.FindStringSubmatch(line)
	if status == nil || connect == nil || service == nil || dyno == nil {
		return metrics
	}
	code, err := strconv.ParseUint(status[1], 10, 64)
	if err != nil {
		return metrics
	}
	connectMs, errConnect := strconv.ParseFloat(connect[1], 64)
	serviceMs, errService := strconv.ParseFloat(service[1], 64)
	if errConnect != nil || errService != nil {
		return metrics
	}

	dynoType := dyno[1]
	prefix := "dyno." + dynoType + "."
	if !isErrorStatus(code) {
		metrics = append(metrics, distributor.NewMeasure(distributor.Dimension{Name: prefix + "service_time", Source: dynoType}, serviceMs))
	}
	metrics = append(metrics,
		distributor.NewMeasure(distributor.Dimension{Name: prefix + "connect_time", Source: dynoType}, connectMs),
		distributor.NewCount(distributor.Dimension{Name: prefix + "status." + strconv.FormatUint(code, 10), Source: dynoType}, 1),
	)
	return metrics
}

// isErrorStatus is true for client closed requests and server errors, their
// service time says nothing about the dyno.
func isErrorStatus(code uint64) bool {
	return code == 499 || (code >= 500 && code <= 599)
}

// readErrorCode adds at most one count, preferring a router H code to a runtime R code.
func readErrorCode(metrics []distributor.Metric, line string) []distributor.Metric {
	match := herokuHCodeRegexp.FindStringSubmatch(line)
	if match == nil {
		match = herokuRCodeRegexp.FindStringSubmatch(line)
	}
	if match == nil {
		return metrics
	}
	return append(metrics, distributor.NewCount(distributor.NewDimension("heroku.error."+match[1]), 1))
}

// readLoadAverage uses the first segment of source as the dyno type.
func readLoadAverage(metrics []distributor.Metric, line string) []distributor.Metric {
	load := herokuLoadRegexp.FindStringSubmatch(line)
	source := findSource(line)
	if load == nil || source == "" {
		return metrics
	}
	value, err := strconv.ParseFloat(load[1], 64)
	if err != nil {
		return metrics
	}
	dynoType := source
	if idx := strings.IndexByte(source, '.'); idx != -1 {
		dynoType = source[:idx]
	}
	return append(metrics, distributor.NewMeasure(distributor.Dimension{Name: "dyno." + dynoType + ".load_avg_1m", Source: source}, value))
}
