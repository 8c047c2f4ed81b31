package proxy

import (
	"math/rand"
	"sync"
	"time"
)

// RNGFactory yields a fresh random generator per call. Forwarder asks for
// one per request rather than sharing a single *rand.Rand, so tests can
// inject a deterministic sequence without touching global state.
type RNGFactory interface {
	Create() *rand.Rand
}

// lockedSource adapts a rand.Source64 with a mutex so the shared
// process-wide source backing the default factory can be read
// concurrently by many request goroutines, the same way skipper's
// loadbalancer package guards its shared PRNG source.
type lockedSource struct {
	mu  sync.Mutex
	src rand.Source64
}

func (s *lockedSource) Int63() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Int63()
}

func (s *lockedSource) Uint64() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Uint64()
}

func (s *lockedSource) Seed(seed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.src.Seed(seed)
}

type defaultRNGFactory struct {
	source *lockedSource
}

// NewDefaultRNGFactory returns the production factory: a single
// mutex-guarded source shared across all requests, wrapped in a new
// *rand.Rand on every Create call.
func NewDefaultRNGFactory() RNGFactory {
	return &defaultRNGFactory{
		source: &lockedSource{src: rand.NewSource(time.Now().UnixNano()).(rand.Source64)},
	}
}

func (f *defaultRNGFactory) Create() *rand.Rand {
	return rand.New(f.source)
}

// staticRNGFactory always returns the same *rand.Rand, letting tests
// inject an exact sequence (e.g. rand.New(rand.NewSource(1))).
type staticRNGFactory struct {
	r *rand.Rand
}

// NewStaticRNGFactory wraps r so every Create call returns it unchanged.
func NewStaticRNGFactory(r *rand.Rand) RNGFactory {
	return &staticRNGFactory{r: r}
}

func (f *staticRNGFactory) Create() *rand.Rand { return f.r }
