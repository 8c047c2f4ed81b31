package healthcheck

import (
	"sync"
	"time"

	"github.com/skipper-proxy/proxycore/circuit"
	"github.com/skipper-proxy/proxycore/clock"
	"github.com/skipper-proxy/proxycore/registry"
)

// ActiveVerdict pairs a destination with the verdict an ActiveProber
// batch produced for it.
type ActiveVerdict struct {
	Destination *registry.Destination
	Verdict     circuit.Verdict
}

type timerHandle interface {
	Stop() bool
}

type timeAfterFunc func(d time.Duration, f func()) timerHandle

func defaultAfterFunc(d time.Duration, f func()) timerHandle {
	return time.AfterFunc(d, f)
}

type destinationKey struct {
	cluster     registry.ClusterID
	destination registry.DestinationID
}

// HealthUpdater is the sole writer of Destination.Health. It serializes
// every transition behind a single lock and owns the reactivation timer
// that returns an Unhealthy destination to Unknown once its period
// elapses.
type HealthUpdater struct {
	mu          sync.Mutex
	timers      map[destinationKey]timerHandle
	generations map[destinationKey]uint64
	afterFunc   timeAfterFunc
}

// NewHealthUpdater builds a HealthUpdater backed by real OS timers.
func NewHealthUpdater() *HealthUpdater {
	return &HealthUpdater{
		timers:      make(map[destinationKey]timerHandle),
		generations: make(map[destinationKey]uint64),
		afterFunc:   defaultAfterFunc,
	}
}

// SetPassive applies a PassiveEvaluator verdict to destination.
func (u *HealthUpdater) SetPassive(cluster *registry.Cluster, destination *registry.Destination, verdict circuit.Verdict) {
	u.apply(cluster, destination, verdict)
}

// SetActive applies a batch of ActiveProber verdicts, one per destination
// in the cluster's probe batch.
func (u *HealthUpdater) SetActive(cluster *registry.Cluster, verdicts []ActiveVerdict) {
	for _, v := range verdicts {
		u.apply(cluster, v.Destination, v.Verdict)
	}
}

func (u *HealthUpdater) apply(cluster *registry.Cluster, destination *registry.Destination, verdict circuit.Verdict) {
	key := destinationKey{cluster: cluster.ID, destination: destination.ID}

	u.mu.Lock()
	defer u.mu.Unlock()

	if existing, ok := u.timers[key]; ok {
		existing.Stop()
		delete(u.timers, key)
	}

	if verdict.Health != circuit.Unhealthy {
		destination.SetHealth(verdict.Health)
		destination.SetReactivationDeadline(0)
		return
	}

	destination.SetHealth(circuit.Unhealthy)

	cfg := cluster.Config()
	reactivation := circuit.EffectiveReactivationPeriod(verdict.ReactivationPeriod, cfg.DetectionWindow)

	c := cluster.Clock()
	deadline := c.Now() + clock.Ticks(c, reactivation)
	destination.SetReactivationDeadline(deadline)

	u.generations[key]++
	generation := u.generations[key]

	u.timers[key] = u.afterFunc(reactivation, func() {
		u.promote(destination, key, generation)
	})
}

// promote returns destination to Unknown if it is still Unhealthy when
// its reactivation timer fires. A timer whose generation no longer
// matches the key's current generation was superseded by a later
// Unhealthy verdict that armed its own timer before this one's callback
// got the lock, and must not touch the destination it no longer owns.
func (u *HealthUpdater) promote(destination *registry.Destination, key destinationKey, generation uint64) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.generations[key] != generation {
		return
	}

	delete(u.timers, key)

	if destination.Health() == circuit.Unhealthy {
		destination.SetHealth(circuit.Unknown)
		destination.SetReactivationDeadline(0)
	}
}
