package healthcheck

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manualTimerHandle stands in for *time.Timer: tests call fire directly
// to run the armed callback. Stop only records that it was called; it
// does not guard fire, so a stopped handle's callback still runs when
// fired.
type manualTimerHandle struct {
	fire    func()
	stopped bool
}

func (h *manualTimerHandle) Stop() bool {
	was := !h.stopped
	h.stopped = true
	return was
}

func TestSchedulerNoFireBeforeStart(t *testing.T) {
	s := NewScheduler()
	fired := 0
	s.Schedule("c1", time.Hour, func() { fired++ })

	assert.Equal(t, 0, fired, "expected no fire before Start")
}

func TestSchedulerFiresAfterStart(t *testing.T) {
	s := NewScheduler()

	var mu sync.Mutex
	var handle *manualTimerHandle
	s.afterFunc = func(d time.Duration, f func()) timerHandle {
		mu.Lock()
		defer mu.Unlock()
		handle = &manualTimerHandle{fire: f}
		return handle
	}

	fired := 0
	s.Schedule("c1", time.Hour, func() { fired++ })
	s.Start()

	mu.Lock()
	h := handle
	mu.Unlock()
	h.fire()

	require.Equal(t, 1, fired, "expected exactly one fire")
}

func TestSchedulerRearmsAfterFire(t *testing.T) {
	s := NewScheduler()

	var mu sync.Mutex
	var armCount int
	var latest *manualTimerHandle
	s.afterFunc = func(d time.Duration, f func()) timerHandle {
		mu.Lock()
		defer mu.Unlock()
		armCount++
		latest = &manualTimerHandle{fire: f}
		return latest
	}

	s.Schedule("c1", time.Hour, func() {})
	s.Start()

	mu.Lock()
	h := latest
	mu.Unlock()
	h.fire()

	mu.Lock()
	count := armCount
	mu.Unlock()
	require.Equal(t, 2, count, "expected the timer to rearm itself after firing")
}

func TestSchedulerUnscheduleStopsFutureFires(t *testing.T) {
	s := NewScheduler()

	var mu sync.Mutex
	var handle *manualTimerHandle
	s.afterFunc = func(d time.Duration, f func()) timerHandle {
		mu.Lock()
		defer mu.Unlock()
		handle = &manualTimerHandle{fire: f}
		return handle
	}

	fired := 0
	s.Schedule("c1", time.Hour, func() { fired++ })
	s.Start()
	s.Unschedule("c1")

	mu.Lock()
	h := handle
	mu.Unlock()
	h.fire()

	assert.Equal(t, 0, fired, "expected unschedule to prevent the already-armed timer's callback")
}

func TestSchedulerChangePeriodTakesEffectNextFire(t *testing.T) {
	s := NewScheduler()

	var mu sync.Mutex
	var periods []time.Duration
	s.afterFunc = func(d time.Duration, f func()) timerHandle {
		mu.Lock()
		periods = append(periods, d)
		mu.Unlock()
		return &manualTimerHandle{fire: f}
	}

	s.Schedule("c1", time.Hour, func() {})
	s.Start()
	s.ChangePeriod("c1", time.Minute)

	mu.Lock()
	first := periods[0]
	mu.Unlock()
	require.Equal(t, time.Hour, first, "expected the already-armed timer to keep its original period")

	s.fire("c1")

	mu.Lock()
	second := periods[1]
	mu.Unlock()
	assert.Equal(t, time.Minute, second, "expected the rearmed timer to pick up the new period")
}
