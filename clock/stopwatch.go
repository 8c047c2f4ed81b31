package clock

import "time"

// StopWatch accumulates wall-clock elapsed time across possibly multiple
// Start/Stop spans, for latency logging (e.g. probe round-trip time) where
// a human-readable duration is wanted rather than a tick count from Clock.
type StopWatch struct {
	started time.Time
	elapsed time.Duration
}

// NewStopWatch returns a stopped StopWatch with zero elapsed time.
func NewStopWatch() *StopWatch {
	return &StopWatch{}
}

func (s *StopWatch) Start() {
	if s.started.IsZero() {
		s.started = time.Now()
	}
}

func (s *StopWatch) Stop() {
	if !s.started.IsZero() {
		s.elapsed += time.Since(s.started)
		s.started = time.Time{}
	}
}

func (s *StopWatch) Reset() {
	s.started = time.Time{}
	s.elapsed = 0
}

func (s *StopWatch) Elapsed() time.Duration {
	return s.elapsed
}
