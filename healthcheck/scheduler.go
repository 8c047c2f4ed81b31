package healthcheck

import (
	"sync"
	"time"
)

// schedulerEntry is one entity's periodic callback registration.
type schedulerEntry struct {
	period   time.Duration
	callback func()
	timer    timerHandle
	active   bool
}

// Scheduler fires a callback per entity at a configurable period, the
// way skipper's loadbalancer package drives its active health check
// ticker, generalized to one independent timer per entity rather than a
// single shared ticker.
//
// No callback fires before Start is called. A period change set via
// ChangePeriod takes effect on the fire after the one already pending.
// Unschedule removes future fires but never interrupts a callback
// already running.
type Scheduler struct {
	mu        sync.Mutex
	entries   map[string]*schedulerEntry
	started   bool
	afterFunc timeAfterFunc
}

// NewScheduler builds a Scheduler backed by real OS timers.
func NewScheduler() *Scheduler {
	return &Scheduler{
		entries:   make(map[string]*schedulerEntry),
		afterFunc: defaultAfterFunc,
	}
}

// Schedule registers entity with the given period. If Start has already
// run, the first timer is armed immediately.
func (s *Scheduler) Schedule(entity string, period time.Duration, callback func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[entity] = &schedulerEntry{period: period, callback: callback, active: true}
	if s.started {
		s.arm(entity)
	}
}

// ChangePeriod updates entity's period. It takes effect starting with the
// fire after the currently pending one.
func (s *Scheduler) ChangePeriod(entity string, period time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[entity]; ok {
		e.period = period
	}
}

// Unschedule stops entity's future fires. A callback already executing
// when this is called runs to completion.
func (s *Scheduler) Unschedule(entity string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[entity]
	if !ok {
		return
	}
	e.active = false
	if e.timer != nil {
		e.timer.Stop()
	}
	delete(s.entries, entity)
}

// Start arms every currently registered entity's first timer. Entities
// scheduled after Start are armed immediately by Schedule itself.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.started = true
	for entity := range s.entries {
		s.arm(entity)
	}
}

// arm must be called with s.mu held.
func (s *Scheduler) arm(entity string) {
	e, ok := s.entries[entity]
	if !ok || !e.active {
		return
	}
	e.timer = s.afterFunc(e.period, func() { s.fire(entity) })
}

func (s *Scheduler) fire(entity string) {
	s.mu.Lock()
	e, ok := s.entries[entity]
	if !ok || !e.active {
		s.mu.Unlock()
		return
	}
	cb := e.callback
	s.mu.Unlock()

	cb()

	s.mu.Lock()
	s.arm(entity)
	s.mu.Unlock()
}
