package proxy

import (
	"hash/fnv"
	"sync"

	"github.com/skipper-proxy/proxycore/registry"
)

// SelectionAlgorithm names one of the candidate-selection strategies
// generalized from skipper's loadbalancer.Algorithm. Forward's own
// safety-net step always uses Random regardless of a cluster's preferred
// algorithm; the others exist for the upstream load-balancing stage that
// produces availableDestinations to reuse, so primary selection and the
// Forwarder's fallback share one implementation.
type SelectionAlgorithm int

const (
	Random SelectionAlgorithm = iota
	RoundRobin
	ConsistentHash
)

func (a SelectionAlgorithm) String() string {
	switch a {
	case RoundRobin:
		return "roundRobin"
	case ConsistentHash:
		return "consistentHash"
	default:
		return "random"
	}
}

// SelectionPolicy picks one destination from a non-empty candidate slice.
type SelectionPolicy interface {
	Select(candidates []*registry.Destination, key string) *registry.Destination
}

// NewSelectionPolicy builds the named policy. An unrecognized algorithm
// falls back to Random.
func NewSelectionPolicy(algorithm SelectionAlgorithm, rng RNGFactory) SelectionPolicy {
	if rng == nil {
		rng = NewDefaultRNGFactory()
	}
	switch algorithm {
	case RoundRobin:
		return &roundRobinSelection{}
	case ConsistentHash:
		return consistentHashSelection{rng: rng}
	default:
		return randomSelection{rng: rng}
	}
}

// NewSelectionPolicyByName builds the named policy from a
// registry.Cluster.PreferredSelection string ("random", "roundRobin",
// "consistentHash"); an unrecognized or empty name falls back to Random.
func NewSelectionPolicyByName(name string, rng RNGFactory) SelectionPolicy {
	switch name {
	case "roundRobin":
		return NewSelectionPolicy(RoundRobin, rng)
	case "consistentHash":
		return NewSelectionPolicy(ConsistentHash, rng)
	default:
		return NewSelectionPolicy(Random, rng)
	}
}

type randomSelection struct {
	rng RNGFactory
}

func (s randomSelection) Select(candidates []*registry.Destination, key string) *registry.Destination {
	if len(candidates) == 1 {
		return candidates[0]
	}
	return candidates[s.rng.Create().Intn(len(candidates))]
}

type roundRobinSelection struct {
	mu    sync.Mutex
	index int
}

func (s *roundRobinSelection) Select(candidates []*registry.Destination, key string) *registry.Destination {
	if len(candidates) == 1 {
		return candidates[0]
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = (s.index + 1) % len(candidates)
	return candidates[s.index]
}

type consistentHashSelection struct {
	rng RNGFactory
}

func (s consistentHashSelection) Select(candidates []*registry.Destination, key string) *registry.Destination {
	if len(candidates) == 1 {
		return candidates[0]
	}

	h := fnv.New32()
	if _, err := h.Write([]byte(key)); err != nil || key == "" {
		return candidates[s.rng.Create().Intn(len(candidates))]
	}

	choice := int(h.Sum32() % uint32(len(candidates)))
	return candidates[choice]
}
