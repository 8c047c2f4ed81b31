package circuit

import (
	"sync"

	"github.com/sony/gobreaker"
)

// ActiveState is the per-destination bookkeeping an ActivePolicy
// persists across probe ticks. Destinations own one ActiveState for
// their lifetime; it is initialized lazily on first use and never shared
// between destinations.
type ActiveState struct {
	mu      sync.Mutex
	breaker *gobreaker.TwoStepCircuitBreaker
}

type consecutiveFailuresActivePolicy struct{}

// NewConsecutiveFailuresActivePolicy returns the active-probing policy
// that trips to Unhealthy after Settings.Failures consecutive probe
// failures, mirroring skipper's circuit.consecutiveBreaker.
func NewConsecutiveFailuresActivePolicy() ActivePolicy {
	return consecutiveFailuresActivePolicy{}
}

func (consecutiveFailuresActivePolicy) Name() PolicyName { return ConsecutiveFailuresPolicy }

func (p consecutiveFailuresActivePolicy) Evaluate(state *ActiveState, outcome ProbeOutcome, settings Settings) Verdict {
	state.mu.Lock()
	defer state.mu.Unlock()

	if state.breaker == nil {
		state.breaker = newConsecutiveBreaker(settings)
	}

	done, err := state.breaker.Allow()
	if err != nil {
		return Verdict{Health: Unhealthy, ReactivationPeriod: settings.ReactivationPeriod}
	}

	done(!outcome.Failed)

	if state.breaker.State() == gobreaker.StateOpen {
		return Verdict{Health: Unhealthy, ReactivationPeriod: settings.ReactivationPeriod}
	}

	return HealthyVerdict
}

func newConsecutiveBreaker(settings Settings) *gobreaker.TwoStepCircuitBreaker {
	return gobreaker.NewTwoStepCircuitBreaker(gobreaker.Settings{
		MaxRequests: uint32(settings.HalfOpenRequests),
		Timeout:     settings.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return int(c.ConsecutiveFailures) >= settings.Failures
		},
	})
}
