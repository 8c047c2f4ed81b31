// Package registry holds the destination registry: the Cluster and
// Destination types, their concurrency counters and live health, and the
// DestinationRegistry that an external configuration subsystem populates
// via add/change/remove notifications.
package registry

import (
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/skipper-proxy/proxycore/circuit"
)

// ClusterID identifies a cluster, stable across config reloads.
type ClusterID string

// DestinationID identifies a destination, unique within its cluster.
type DestinationID string

// NewClusterID generates a random ClusterID, for synthetic fixtures
// (tests, local tooling) that don't get one assigned by a config source.
func NewClusterID() ClusterID {
	return ClusterID(uuid.NewString())
}

// NewDestinationID generates a random DestinationID, for synthetic
// fixtures that don't get one assigned by a config source.
func NewDestinationID() DestinationID {
	return DestinationID(uuid.NewString())
}

// ClusterConfig is the configuration snapshot a Cluster carries: health-
// check settings and the failure-rate threshold. The HTTP client handle
// itself is kept by the proxy package's ClusterHandle, not here — this
// package has no opinion on how bytes get sent.
type ClusterConfig struct {
	PassivePolicy         circuit.PolicyName
	ActivePolicy          circuit.PolicyName
	FailureRateThreshold  float64

	DetectionWindow    time.Duration
	MinimalTotalCount  uint32
	ReactivationPeriod time.Duration

	// IdleTTL bounds how long a destination's SlidingCounter keeps its
	// accumulated window after the destination stops seeing traffic,
	// mirroring skipper's breaker registry idle eviction. Zero disables
	// eviction.
	IdleTTL time.Duration

	ActiveEnabled  bool
	ActiveTimeout  time.Duration
	ActiveInterval time.Duration

	ConsecutiveFailureThreshold int
	HalfOpenRequests            int
	BreakerTimeout               time.Duration

	// PreferredSelection names the candidate-selection algorithm an
	// upstream load-balancing stage should use for this cluster
	// ("random", "roundRobin", "consistentHash"); the Forwarder's own
	// safety-net pick ignores this and always selects uniformly at
	// random. Empty means "random".
	PreferredSelection string

	// Metadata carries cluster-level string metadata, e.g. the
	// "TransportFailureRateHealthPolicy.RateLimit" key.
	Metadata map[string]string
}

// parseAddress parses a destination's URI once, when NewDestination
// builds the destination; an unparsable address yields an empty URL.
func parseAddress(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		return &url.URL{}
	}
	return u
}
