package circuit

import "time"

// Health is the verdict state of a destination, as tracked by the
// registry package's Destination and mutated exclusively by the
// healthcheck package's HealthUpdater.
type Health int

const (
	// Unknown means no verdict has been reached yet, or a previously
	// Unhealthy destination has just aged out of its reactivation
	// period and is eligible again without a fresh positive signal.
	Unknown Health = iota
	Healthy
	Unhealthy
)

func (h Health) String() string {
	switch h {
	case Healthy:
		return "healthy"
	case Unhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Verdict is the result of evaluating a policy: a Health state plus, for
// Unhealthy verdicts, how long the destination must stay excluded before
// it is promoted back to Unknown.
type Verdict struct {
	Health             Health
	ReactivationPeriod time.Duration
}

// HealthyVerdict is the verdict policies return when nothing in the
// observed evidence warrants exclusion.
var HealthyVerdict = Verdict{Health: Healthy}
