package circuit

import (
	"testing"
	"time"

	"github.com/skipper-proxy/proxycore/clock"
)

func TestActivePolicyRegistryFallback(t *testing.T) {
	r := NewActivePolicyRegistry(NewConsecutiveFailuresActivePolicy())

	p, ok := r.GetOrDefault("")
	if !ok {
		t.Fatal("expected the fallback policy to resolve")
	}
	if p.Name() != ConsecutiveFailuresPolicy {
		t.Fatalf("expected ConsecutiveFailures fallback, got %v", p.Name())
	}

	if _, ok := r.GetOrDefault("SomethingElse"); ok {
		t.Fatal("expected an unknown explicit policy name to be reported missing")
	}
}

func TestPassivePolicyRegistryFallback(t *testing.T) {
	r := NewPassivePolicyRegistry(NewTransportFailureRatePolicy())

	p, ok := r.GetOrDefault("")
	if !ok || p.Name() != TransportFailureRatePolicy {
		t.Fatal("expected TransportFailureRate fallback")
	}
}

func TestConsecutiveFailuresActivePolicyTrips(t *testing.T) {
	p := NewConsecutiveFailuresActivePolicy()
	state := &ActiveState{}
	settings := Settings{Failures: 3, ReactivationPeriod: time.Minute, Timeout: time.Hour}

	var verdict Verdict
	for i := 0; i < 3; i++ {
		verdict = p.Evaluate(state, ProbeOutcome{Failed: true}, settings)
	}

	if verdict.Health != Unhealthy {
		t.Fatalf("expected Unhealthy after 3 consecutive failures, got %v", verdict.Health)
	}
	if verdict.ReactivationPeriod != time.Minute {
		t.Fatalf("expected reactivation period to propagate, got %v", verdict.ReactivationPeriod)
	}
}

func TestConsecutiveFailuresActivePolicyResetsOnSuccess(t *testing.T) {
	p := NewConsecutiveFailuresActivePolicy()
	state := &ActiveState{}
	settings := Settings{Failures: 3, ReactivationPeriod: time.Minute, Timeout: time.Hour}

	p.Evaluate(state, ProbeOutcome{Failed: true}, settings)
	p.Evaluate(state, ProbeOutcome{Failed: true}, settings)
	v := p.Evaluate(state, ProbeOutcome{Failed: false}, settings)

	if v.Health != Healthy {
		t.Fatalf("expected Healthy verdict after a success resets the streak, got %v", v.Health)
	}

	for i := 0; i < 2; i++ {
		v = p.Evaluate(state, ProbeOutcome{Failed: true}, settings)
	}
	if v.Health != Healthy {
		t.Fatalf("expected two failures after a reset to stay below threshold, got %v", v.Health)
	}
}

func TestTransportFailureRatePolicyTripsAtThreshold(t *testing.T) {
	c := clock.NewManual(0)
	counter := NewSlidingCounter(c, 10*time.Second, 10)
	p := NewTransportFailureRatePolicy()
	settings := Settings{RateLimit: 0.5, DetectionWindow: 10 * time.Second, ReactivationPeriod: 30 * time.Second}

	var v Verdict
	for i := 0; i < 5; i++ {
		v = p.Evaluate(counter, ProbeOutcome{Failed: false}, settings)
	}
	if v.Health != Healthy {
		t.Fatalf("5 successes below minimal total should stay healthy, got %v", v.Health)
	}

	for i := 0; i < 6; i++ {
		v = p.Evaluate(counter, ProbeOutcome{Failed: true}, settings)
	}

	if v.Health != Unhealthy {
		t.Fatalf("expected Unhealthy once 6/11 >= 0.5, got %v", v.Health)
	}
	if v.ReactivationPeriod != 30*time.Second {
		t.Fatalf("expected reactivation = max(30s, 10s) = 30s, got %v", v.ReactivationPeriod)
	}
}

func TestEffectiveReactivationPeriod(t *testing.T) {
	if got := EffectiveReactivationPeriod(10*time.Second, 60*time.Second); got != 60*time.Second {
		t.Fatalf("expected detection window to dominate, got %v", got)
	}
	if got := EffectiveReactivationPeriod(90*time.Second, 60*time.Second); got != 90*time.Second {
		t.Fatalf("expected reactivation period to dominate, got %v", got)
	}
}
