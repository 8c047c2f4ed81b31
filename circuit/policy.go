package circuit

import "time"

// PolicyName identifies a registered active or passive health policy by
// the string an entity's configuration names it with, e.g.
// "ConsecutiveFailures" or "TransportFailureRate".
type PolicyName string

const (
	// ConsecutiveFailuresPolicy trips after N consecutive probe or
	// request failures. It is the active-probing default.
	ConsecutiveFailuresPolicy PolicyName = "ConsecutiveFailures"

	// TransportFailureRatePolicy trips once the observed failure rate
	// over a sliding window reaches a threshold. It is the
	// passive-request default.
	TransportFailureRatePolicy PolicyName = "TransportFailureRate"
)

// ProbeOutcome is one destination's result from a single active probe
// tick, already classified into failed/not-failed by the caller.
type ProbeOutcome struct {
	Failed bool
}

// Settings bundles the tunables either an active or a passive policy
// reads. Not every field applies to every policy; a policy only reads the
// fields it needs.
type Settings struct {
	Failures           int
	RateLimit          float64
	DetectionWindow    time.Duration
	MinimalTotalCount  uint32
	Timeout            time.Duration
	HalfOpenRequests   int
	ReactivationPeriod time.Duration
}

// ActivePolicy turns one destination's probe outcome, plus that
// destination's persisted ActiveState, into a verdict. Implementations
// must be safe for concurrent use across different ActiveState values;
// a single ActivePolicy instance is shared by every destination that
// names it.
type ActivePolicy interface {
	Name() PolicyName
	Evaluate(state *ActiveState, outcome ProbeOutcome, settings Settings) Verdict
}

// PassivePolicy records one request outcome in a destination's sliding
// window and turns the updated window into a verdict for the passive
// request path.
type PassivePolicy interface {
	Name() PolicyName
	Evaluate(counter *SlidingCounter, outcome ProbeOutcome, settings Settings) Verdict
}

// ActivePolicyRegistry resolves policy implementations by name, built
// once from an injected collection, the way skipper's circuit.Registry is
// built once from injected BreakerSettings. Unlike that registry, entries
// here are shared, stateless policy objects; per-destination state lives
// on the destination itself (registry.Destination.ActiveState), not in
// this registry.
type ActivePolicyRegistry struct {
	policies map[PolicyName]ActivePolicy
	fallback PolicyName
}

// NewActivePolicyRegistry builds a registry from the given policies,
// falling back to ConsecutiveFailures for unspecified names.
func NewActivePolicyRegistry(policies ...ActivePolicy) *ActivePolicyRegistry {
	r := &ActivePolicyRegistry{
		policies: make(map[PolicyName]ActivePolicy, len(policies)),
		fallback: ConsecutiveFailuresPolicy,
	}
	for _, p := range policies {
		r.policies[p.Name()] = p
	}
	return r
}

// GetOrDefault resolves name, falling back to ConsecutiveFailures when
// name is empty. It returns ok=false only when an explicitly named policy
// is missing from the registry — this is fatal for the probe batch, the
// caller does not silently substitute the default.
func (r *ActivePolicyRegistry) GetOrDefault(name PolicyName) (ActivePolicy, bool) {
	if name == "" {
		name = r.fallback
	}
	p, ok := r.policies[name]
	return p, ok
}

// PassivePolicyRegistry mirrors ActivePolicyRegistry for the passive
// request path, defaulting to TransportFailureRate.
type PassivePolicyRegistry struct {
	policies map[PolicyName]PassivePolicy
	fallback PolicyName
}

func NewPassivePolicyRegistry(policies ...PassivePolicy) *PassivePolicyRegistry {
	r := &PassivePolicyRegistry{
		policies: make(map[PolicyName]PassivePolicy, len(policies)),
		fallback: TransportFailureRatePolicy,
	}
	for _, p := range policies {
		r.policies[p.Name()] = p
	}
	return r
}

func (r *PassivePolicyRegistry) GetOrDefault(name PolicyName) (PassivePolicy, bool) {
	if name == "" {
		name = r.fallback
	}
	p, ok := r.policies[name]
	return p, ok
}
