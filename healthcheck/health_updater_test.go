package healthcheck

import (
	"sync"
	"testing"
	"time"

	"github.com/skipper-proxy/proxycore/circuit"
	"github.com/skipper-proxy/proxycore/clock"
	"github.com/skipper-proxy/proxycore/registry"
)

// fakeTimer lets tests fire a HealthUpdater's reactivation callback on
// demand instead of waiting on a real OS timer.
type fakeTimer struct {
	stopped bool
}

func (f *fakeTimer) Stop() bool {
	was := !f.stopped
	f.stopped = true
	return was
}

func newFakeAfterFunc() (timeAfterFunc, func() []func()) {
	var mu sync.Mutex
	var pending []func()
	var timers []*fakeTimer

	after := func(d time.Duration, f func()) timerHandle {
		mu.Lock()
		defer mu.Unlock()
		ft := &fakeTimer{}
		timers = append(timers, ft)
		pending = append(pending, func() {
			if !ft.stopped {
				f()
			}
		})
		return ft
	}

	fireAll := func() []func() {
		mu.Lock()
		defer mu.Unlock()
		out := pending
		pending = nil
		return out
	}

	return after, fireAll
}

func newTestDestination(id string) (*registry.Destination, *registry.Cluster) {
	c := clock.NewManual(0)
	cluster := registry.NewCluster("c1", registry.ClusterConfig{DetectionWindow: 10 * time.Second, MinimalTotalCount: 10}, c)
	return cluster.AddDestination(registry.DestinationID(id), "http://10.0.0.1:80"), cluster
}

func TestHealthUpdaterMarksUnhealthyAndPromotesOnExpiry(t *testing.T) {
	d, cluster := newTestDestination("d1")
	after, fireAll := newFakeAfterFunc()

	u := NewHealthUpdater()
	u.afterFunc = after

	u.SetPassive(cluster, d, circuit.Verdict{Health: circuit.Unhealthy, ReactivationPeriod: 30 * time.Second})
	if d.Health() != circuit.Unhealthy {
		t.Fatalf("expected Unhealthy, got %v", d.Health())
	}
	if d.ReactivationDeadline() == 0 {
		t.Fatal("expected a reactivation deadline to be set")
	}

	for _, fire := range fireAll() {
		fire()
	}

	if d.Health() != circuit.Unknown {
		t.Fatalf("expected promotion to Unknown after the timer fires, got %v", d.Health())
	}
	if d.ReactivationDeadline() != 0 {
		t.Fatal("expected the reactivation deadline to be cleared")
	}
}

func TestHealthUpdaterResetsTimerNotCumulative(t *testing.T) {
	d, cluster := newTestDestination("d1")
	after, fireAll := newFakeAfterFunc()

	u := NewHealthUpdater()
	u.afterFunc = after

	u.SetPassive(cluster, d, circuit.Verdict{Health: circuit.Unhealthy, ReactivationPeriod: 30 * time.Second})
	u.SetPassive(cluster, d, circuit.Verdict{Health: circuit.Unhealthy, ReactivationPeriod: 30 * time.Second})

	pending := fireAll()
	if len(pending) != 2 {
		t.Fatalf("expected both timers to have been armed, got %d", len(pending))
	}

	// Only the second (most recent) timer should still be live; the
	// first was stopped when the second verdict replaced it.
	for _, fire := range pending {
		fire()
	}

	if d.Health() != circuit.Unknown {
		t.Fatalf("expected the surviving timer to promote the destination, got %v", d.Health())
	}
}

func TestHealthUpdaterSetActiveAppliesBatch(t *testing.T) {
	d1, cluster := newTestDestination("d1")
	d2 := cluster.AddDestination("d2", "http://10.0.0.2:80")
	after, _ := newFakeAfterFunc()

	u := NewHealthUpdater()
	u.afterFunc = after

	u.SetActive(cluster, []ActiveVerdict{
		{Destination: d1, Verdict: circuit.Verdict{Health: circuit.Unhealthy, ReactivationPeriod: time.Minute}},
		{Destination: d2, Verdict: circuit.HealthyVerdict},
	})

	if d1.Health() != circuit.Unhealthy {
		t.Fatalf("expected d1 Unhealthy, got %v", d1.Health())
	}
	if d2.Health() != circuit.Healthy {
		t.Fatalf("expected d2 Healthy, got %v", d2.Health())
	}
}

func TestHealthUpdaterStaleTimerFiringDoesNotCancelNewerVerdict(t *testing.T) {
	d, cluster := newTestDestination("d1")
	after, _ := newFakeAfterFunc()

	u := NewHealthUpdater()
	u.afterFunc = after

	u.SetPassive(cluster, d, circuit.Verdict{Health: circuit.Unhealthy, ReactivationPeriod: 30 * time.Second})

	// Capture the generation armed for the first verdict, as if its
	// promote goroutine had already started and was blocked on u.mu.
	key := destinationKey{cluster: cluster.ID, destination: d.ID}
	staleGeneration := u.generations[key]

	// A second Unhealthy verdict arrives and re-arms the timer before the
	// first callback gets the lock.
	u.SetPassive(cluster, d, circuit.Verdict{Health: circuit.Unhealthy, ReactivationPeriod: 30 * time.Second})

	if d.Health() != circuit.Unhealthy {
		t.Fatalf("expected destination to remain Unhealthy across the second verdict, got %v", d.Health())
	}
	deadlineBeforeStalePromote := d.ReactivationDeadline()

	// Simulate the stale callback finally acquiring the lock.
	u.promote(d, key, staleGeneration)

	if d.Health() != circuit.Unhealthy {
		t.Fatalf("expected the stale callback to leave the destination Unhealthy, got %v", d.Health())
	}
	if d.ReactivationDeadline() != deadlineBeforeStalePromote {
		t.Fatal("expected the stale callback to leave the current reactivation deadline untouched")
	}
}
