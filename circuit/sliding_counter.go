package circuit

import (
	"sync"
	"time"

	"github.com/skipper-proxy/proxycore/clock"
)

// HistoryRecord is one sealed one-second bucket of observed outcomes.
type HistoryRecord struct {
	RecordedAt int64
	Total      uint32
	Failed     uint32
}

// accumulator is the bucket currently being filled; it is sealed into a
// HistoryRecord once a full tick period has elapsed.
type accumulator struct {
	createdAt int64
	total     uint32
	failed    uint32
}

// SlidingCounter is the per-destination windowed failed/total request
// counter. Every method takes the counter's own lock for its whole
// duration, so a single AddNew update is never interleaved with another
// call on the same counter. Each destination has its own counter and
// lock; there is no cluster-wide lock on this path.
type SlidingCounter struct {
	mu sync.Mutex

	clock  clock.Clock
	window time.Duration

	minimalTotalCount uint32

	records []HistoryRecord
	acc     accumulator

	totalCount  uint64
	failedCount uint64

	lastObservedAt int64
	hasObserved    bool
}

// NewSlidingCounter builds an empty counter. detectionWindow bounds how
// long a sealed record is kept; minimalTotalCount is the evidence
// threshold below which AddNew reports a rate of zero.
func NewSlidingCounter(c clock.Clock, detectionWindow time.Duration, minimalTotalCount uint32) *SlidingCounter {
	return &SlidingCounter{
		clock:             c,
		window:            detectionWindow,
		minimalTotalCount: minimalTotalCount,
	}
}

// AddNew records one completed request outcome and returns the failure
// rate observed over the sliding window after the update is applied.
func (s *SlidingCounter) AddNew(failed bool) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	freq := s.clock.Frequency()
	s.lastObservedAt = now
	s.hasObserved = true

	if s.acc.createdAt == 0 {
		s.acc.createdAt = now + freq
	}

	if now >= s.acc.createdAt {
		s.seal(now, freq)
	}

	s.acc.total++
	s.totalCount++
	if failed {
		s.acc.failed++
		s.failedCount++
	}

	s.evict(now)

	if s.totalCount < uint64(s.minimalTotalCount) || s.totalCount == 0 {
		return 0.0
	}

	return float64(s.failedCount) / float64(s.totalCount)
}

// seal closes the currently-accumulating bucket into a HistoryRecord and
// opens a fresh one. Sealing caps queue growth at one record per second
// regardless of request rate. The record is stamped with the tick its
// bucket was opened at (the time of its first observation), so evict
// ages it by how old its observations are.
func (s *SlidingCounter) seal(now, freq int64) {
	s.records = append(s.records, HistoryRecord{
		RecordedAt: s.acc.createdAt - freq,
		Total:      s.acc.total,
		Failed:     s.acc.failed,
	})
	s.acc = accumulator{createdAt: now + freq}
}

// evict drops head records that have aged out of the window, subtracting
// their contribution from the running aggregate.
func (s *SlidingCounter) evict(now int64) {
	windowTicks := clock.Ticks(s.clock, s.window)

	i := 0
	for ; i < len(s.records); i++ {
		if now-s.records[i].RecordedAt <= windowTicks {
			break
		}
		s.totalCount -= uint64(s.records[i].Total)
		s.failedCount -= uint64(s.records[i].Failed)
	}

	if i > 0 {
		s.records = append(s.records[:0], s.records[i:]...)
	}
}

// Rate returns the current failure rate without recording a new
// observation, applying the same minimal-evidence gate as AddNew.
func (s *SlidingCounter) Rate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.totalCount < uint64(s.minimalTotalCount) || s.totalCount == 0 {
		return 0.0
	}
	return float64(s.failedCount) / float64(s.totalCount)
}

// Idle reports whether the counter has seen no observation for longer
// than ttl. Used by registry.Destination to proactively discard a stale
// window, bounding memory the way a breaker registry bounds its map of
// tracked entries.
func (s *SlidingCounter) Idle(ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasObserved {
		return false
	}
	return s.clock.Now()-s.lastObservedAt > clock.Ticks(s.clock, ttl)
}

// Reset discards all accumulated history, used when a destination's
// sliding window is evicted for being idle.
func (s *SlidingCounter) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
	s.acc = accumulator{}
	s.totalCount = 0
	s.failedCount = 0
	s.hasObserved = false
}

// Snapshot returns the current aggregate counts, for tests and metrics.
func (s *SlidingCounter) Snapshot() (total, failed uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalCount, s.failedCount
}
