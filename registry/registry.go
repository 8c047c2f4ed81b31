package registry

import (
	"sync"

	"github.com/skipper-proxy/proxycore/clock"
)

// DestinationRegistry holds cluster -> destinations, mirroring skipper's
// routing.EndpointRegistry: entities are created by the external
// configuration subsystem and observed via add/change/remove
// notifications, allocated on first observation and destroyed with the
// entity.
type DestinationRegistry struct {
	mu       sync.RWMutex
	clusters map[ClusterID]*Cluster
	clock    clock.Clock
}

// NewDestinationRegistry builds an empty registry using the given clock
// for every cluster and destination it allocates.
func NewDestinationRegistry(c clock.Clock) *DestinationRegistry {
	if c == nil {
		c = clock.Real{}
	}
	return &DestinationRegistry{
		clusters: make(map[ClusterID]*Cluster),
		clock:    c,
	}
}

// OnClusterAdded registers a new cluster. Calling it again for an
// existing id replaces the cluster's config and keeps its existing
// destinations, with their derived state, as they are.
func (r *DestinationRegistry) OnClusterAdded(id ClusterID, config ClusterConfig) *Cluster {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.clusters[id]; ok {
		existing.SetConfig(config)
		return existing
	}

	c := NewCluster(id, config, r.clock)
	r.clusters[id] = c
	return c
}

// OnClusterChanged updates an existing cluster's configuration snapshot.
// If the cluster is unknown, it is created (a defensive fallback; the
// external config subsystem is expected to call OnClusterAdded first).
func (r *DestinationRegistry) OnClusterChanged(id ClusterID, config ClusterConfig) *Cluster {
	return r.OnClusterAdded(id, config)
}

// OnClusterRemoved drops a cluster and all of its destinations.
func (r *DestinationRegistry) OnClusterRemoved(id ClusterID) {
	r.mu.Lock()
	delete(r.clusters, id)
	r.mu.Unlock()
}

// Cluster looks up a cluster by id.
func (r *DestinationRegistry) Cluster(id ClusterID) (*Cluster, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clusters[id]
	return c, ok
}

// Clusters returns a stable snapshot of all registered clusters.
func (r *DestinationRegistry) Clusters() []*Cluster {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Cluster, 0, len(r.clusters))
	for _, c := range r.clusters {
		out = append(out, c)
	}
	return out
}
