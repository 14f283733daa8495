// Package healthcheck defines the checks served on the healthcheck routes.
package healthcheck

// Func returns a status message, and whether the check is healthy.  Checks
// must not block, downstream dependencies should be reported on via a watchdog
// style, and not by making a roundtrip.
type Func func() (string, Status)

type Status bool

const (
	Healthy   = Status(true)
	Unhealthy = Status(false)
)

// Provider is implemented by components reporting whether they can serve traffic.
type Provider interface {
	HealthChecks() []Func
}

// DeepProvider is implemented by components reporting on their downstream dependencies.
type DeepProvider interface {
	DeepChecks() []Func
}

// MaybeAppend appends the checks of maybeProvider if it provides any.
func MaybeAppend(healthChecks, deepChecks []Func, maybeProvider interface{}) ([]Func, []Func) {
	if p, ok := maybeProvider.(Provider); ok {
		healthChecks = append(healthChecks, p.HealthChecks()...)
	}
	if p, ok := maybeProvider.(DeepProvider); ok {
		deepChecks = append(deepChecks, p.DeepChecks()...)
	}
	return healthChecks, deepChecks
}

// Run runs checks, splitting the reports by outcome.  Both results are non-nil.
func Run(checks []Func) (good []string, bad []string) {
	good = []string{}
	bad = []string{}
	for _, check := range checks {
		report, status := check()
		if status == Healthy {
			good = append(good, report)
		} else {
			bad = append(bad, report)
		}
	}
	return good, bad
}
