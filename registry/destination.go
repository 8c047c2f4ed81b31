package registry

import (
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/skipper-proxy/proxycore/circuit"
	"github.com/skipper-proxy/proxycore/clock"
)

// Destination is one concrete backend endpoint, identified by
// DestinationID, unique within its owning Cluster.
//
// Destination owns its SlidingCounter and ActiveState directly rather
// than through a weak-keyed side map: the entity's lifetime dominates the
// derived state's lifetime, so there is nothing to leak.
type Destination struct {
	ID      DestinationID
	Address *url.URL

	concurrency int64

	health              atomic.Int32 // circuit.Health
	reactivationDeadline atomic.Int64 // monotonic tick, 0 == none

	counterOnce sync.Once
	counter     *circuit.SlidingCounter
	clock       clock.Clock
	window      time.Duration
	minTotal    uint32

	activeState circuit.ActiveState
}

// NewDestination allocates a destination in the Unknown health state.
// The sliding-window counter is allocated lazily on first passive
// observation (counterOnce), not here; the clock/window/minTotal values
// are captured now so that lazy allocation needs no extra locking path.
func NewDestination(id DestinationID, address string, c clock.Clock, window time.Duration, minTotal uint32) *Destination {
	d := &Destination{
		ID:       id,
		Address:  parseAddress(address),
		clock:    c,
		window:   window,
		minTotal: minTotal,
	}
	d.health.Store(int32(circuit.Unknown))
	return d
}

// Counter returns the destination's SlidingCounter, allocating it on
// first use.
func (d *Destination) Counter() *circuit.SlidingCounter {
	d.counterOnce.Do(func() {
		d.counter = circuit.NewSlidingCounter(d.clock, d.window, d.minTotal)
	})
	return d.counter
}

// ActiveState returns the destination's persisted active-policy state.
func (d *Destination) ActiveState() *circuit.ActiveState {
	return &d.activeState
}

// IncConcurrency/DecConcurrency implement the atomic inc/dec-only
// concurrency gauge. There is no lock: these are plain atomic adds.
func (d *Destination) IncConcurrency() int64 { return atomic.AddInt64(&d.concurrency, 1) }
func (d *Destination) DecConcurrency() int64 { return atomic.AddInt64(&d.concurrency, -1) }
func (d *Destination) Concurrency() int64    { return atomic.LoadInt64(&d.concurrency) }

// Health returns the destination's current health with a single atomic
// load; HealthUpdater is the sole writer.
func (d *Destination) Health() circuit.Health {
	return circuit.Health(d.health.Load())
}

// SetHealth is exported for HealthUpdater's exclusive use: it is the
// sole writer of a destination's health, serialized internally, and no
// other caller should ever invoke this.
func (d *Destination) SetHealth(h circuit.Health) {
	d.health.Store(int32(h))
}

// ReactivationDeadline returns the monotonic tick at which an Unhealthy
// destination becomes eligible again, or 0 if none is set.
func (d *Destination) ReactivationDeadline() int64 {
	return d.reactivationDeadline.Load()
}

// SetReactivationDeadline is exported for HealthUpdater's exclusive use,
// mirroring SetHealth.
func (d *Destination) SetReactivationDeadline(tick int64) {
	d.reactivationDeadline.Store(tick)
}

// Eligible reports whether the destination may currently appear in a
// candidate set: Healthy or Unknown, or Unhealthy but past its
// reactivation deadline (in which case the caller is expected to have
// already been promoted back to Unknown by HealthUpdater's timer — this
// check is a defensive fallback for a reader racing that promotion).
func (d *Destination) Eligible(now int64) bool {
	switch d.Health() {
	case circuit.Unhealthy:
		deadline := d.ReactivationDeadline()
		return deadline != 0 && now >= deadline
	default:
		return true
	}
}

// EvictIfIdle discards the destination's accumulated sliding window once
// it has seen no traffic for ttl, bounding memory the way skipper's
// circuit.Registry evicts idle breakers.
func (d *Destination) EvictIfIdle(ttl time.Duration) {
	if d.counter == nil {
		return
	}
	if d.counter.Idle(ttl) {
		d.counter.Reset()
	}
}
