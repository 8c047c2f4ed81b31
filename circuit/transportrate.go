package circuit

import "time"

// transportFailureRatePolicy implements the passive verdict rule:
// Unhealthy iff the sliding window's failure rate is at least
// Settings.RateLimit. Evaluate first records the outcome in the sliding
// window (AddNew) and then compares the resulting rate against the
// threshold.
type transportFailureRatePolicy struct{}

// NewTransportFailureRatePolicy returns the passive-request default
// policy.
func NewTransportFailureRatePolicy() PassivePolicy {
	return transportFailureRatePolicy{}
}

func (transportFailureRatePolicy) Name() PolicyName { return TransportFailureRatePolicy }

func (transportFailureRatePolicy) Evaluate(counter *SlidingCounter, outcome ProbeOutcome, settings Settings) Verdict {
	rate := counter.AddNew(outcome.Failed)

	if rate < settings.RateLimit {
		return HealthyVerdict
	}

	reactivation := settings.ReactivationPeriod
	if settings.DetectionWindow > reactivation {
		reactivation = settings.DetectionWindow
	}

	return Verdict{Health: Unhealthy, ReactivationPeriod: reactivation}
}

// EffectiveReactivationPeriod implements the
// "max(cluster.reactivationPeriod, detectionWindowSize)" rule as a
// standalone helper. HealthUpdater.apply calls it unconditionally on
// every Unhealthy verdict, so the floor holds regardless of whether the
// policy that produced the verdict already applied it itself (the
// passive TransportFailureRate policy does; the active
// ConsecutiveFailures policy, which has no detection window of its own,
// does not).
func EffectiveReactivationPeriod(reactivationPeriod, detectionWindow time.Duration) time.Duration {
	if detectionWindow > reactivationPeriod {
		return detectionWindow
	}
	return reactivationPeriod
}
