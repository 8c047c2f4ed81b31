package registry

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/skipper-proxy/proxycore/clock"
)

const defaultFailureRateThreshold = 0.5

// Cluster is a logical group of interchangeable backend destinations,
// identified by a stable ClusterID. Cluster owns its Destinations; other
// components (PassiveEvaluator, ActiveProber, HealthUpdater) are handed
// *Cluster/*Destination pointers per call. HealthUpdater's pending
// reactivation timers and the monitor's scheduled probe callbacks keep
// such a pointer until they fire or are unscheduled.
type Cluster struct {
	ID ClusterID

	mu           sync.RWMutex
	config       ClusterConfig
	destinations map[DestinationID]*Destination

	concurrency int64

	rateLimitCached bool
	cachedRateLimit float64

	clock clock.Clock
}

// NewCluster allocates an empty cluster with the given config snapshot.
func NewCluster(id ClusterID, config ClusterConfig, c clock.Clock) *Cluster {
	return &Cluster{
		ID:           id,
		config:       config,
		destinations: make(map[DestinationID]*Destination),
		clock:        c,
	}
}

// Config returns the cluster's current configuration snapshot.
func (c *Cluster) Config() ClusterConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.config
}

// SetConfig replaces the cluster's configuration snapshot, e.g. on a
// config reload notification. An in-flight reactivation timer computed
// under the old config is not retroactively recomputed.
func (c *Cluster) SetConfig(config ClusterConfig) {
	c.mu.Lock()
	c.config = config
	c.rateLimitCached = false
	c.mu.Unlock()
}

// AddDestination registers a destination under this cluster, allocating
// its derived state (SlidingCounter, ActiveState) lazily on first use.
func (c *Cluster) AddDestination(id DestinationID, address string) *Destination {
	cfg := c.Config()
	d := NewDestination(id, address, c.clock, cfg.DetectionWindow, cfg.MinimalTotalCount)

	c.mu.Lock()
	c.destinations[id] = d
	c.mu.Unlock()
	return d
}

// RemoveDestination drops a destination from the cluster. Its derived
// state is destroyed with it.
func (c *Cluster) RemoveDestination(id DestinationID) {
	c.mu.Lock()
	delete(c.destinations, id)
	c.mu.Unlock()
}

// Destination looks up a destination by id.
func (c *Cluster) Destination(id DestinationID) (*Destination, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.destinations[id]
	return d, ok
}

// Destinations returns a stable snapshot slice of all destinations
// currently registered on the cluster.
func (c *Cluster) Destinations() []*Destination {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Destination, 0, len(c.destinations))
	for _, d := range c.destinations {
		out = append(out, d)
	}
	return out
}

// Clock returns the monotonic time source destinations of this cluster
// were allocated with, for callers (HealthUpdater) that must convert a
// time.Duration into the same tick unit used by ReactivationDeadline.
func (c *Cluster) Clock() clock.Clock { return c.clock }

// IncConcurrency/DecConcurrency implement the cluster-wide concurrency
// gauge: a monotonic inc/dec-only counter, atomic, no lock.
func (c *Cluster) IncConcurrency() int64 { return atomic.AddInt64(&c.concurrency, 1) }
func (c *Cluster) DecConcurrency() int64 { return atomic.AddInt64(&c.concurrency, -1) }
func (c *Cluster) Concurrency() int64    { return atomic.LoadInt64(&c.concurrency) }

// RateLimitMetadataKey is the per-cluster metadata key used for the
// passive failure-rate threshold override.
const RateLimitMetadataKey = "TransportFailureRateHealthPolicy.RateLimit"

// FailureRateThreshold returns the cluster's effective passive rate
// threshold: the parsed "TransportFailureRateHealthPolicy.RateLimit"
// metadata value if present and valid, otherwise the policy default.
// Parsing is invariant-locale (strconv.ParseFloat always uses '.') and
// cached per cluster until SetConfig invalidates the cache; both the
// check and the (re)computation happen under c.mu so a concurrent
// SetConfig can never observe or produce a half-updated cache.
func (c *Cluster) FailureRateThreshold() float64 {
	c.mu.RLock()
	if c.rateLimitCached {
		v := c.cachedRateLimit
		c.mu.RUnlock()
		return v
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rateLimitCached {
		return c.cachedRateLimit
	}

	raw, ok := c.config.Metadata[RateLimitMetadataKey]
	threshold := c.config.FailureRateThreshold
	if threshold == 0 {
		threshold = defaultFailureRateThreshold
	}

	if ok {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil && parsed >= 0 && parsed <= 1 {
			threshold = parsed
		}
	}

	c.cachedRateLimit = threshold
	c.rateLimitCached = true
	return c.cachedRateLimit
}

// PreferredSelection returns the cluster's configured candidate-selection
// algorithm name ("random" if unset), for an upstream load-balancing
// stage to consult. The Forwarder's own safety-net selection never reads
// this — it always picks uniformly at random.
func (c *Cluster) PreferredSelection() string {
	cfg := c.Config()
	if cfg.PreferredSelection == "" {
		return "random"
	}
	return cfg.PreferredSelection
}

// EffectiveReactivationPeriod returns max(cluster.reactivationPeriod,
// detectionWindowSize).
func (c *Cluster) EffectiveReactivationPeriod() time.Duration {
	cfg := c.Config()
	if cfg.DetectionWindow > cfg.ReactivationPeriod {
		return cfg.DetectionWindow
	}
	return cfg.ReactivationPeriod
}
