package app

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// TickFunc receives one tick per second plus an immediate tick on start.
type TickFunc func(remaining, total int)

// ExpireFunc fires exactly once when remaining reaches zero.
type ExpireFunc func()

// PhaseTimer is the sole source of truth for remaining/total time of the
// active phase. Pausing freezes remaining; resuming continues from the frozen
// value regardless of how long the pause lasted in wall-clock terms.
type PhaseTimer struct {
	clock    clockwork.Clock
	onTick   TickFunc
	onExpire ExpireFunc

	mu        sync.Mutex
	total     int
	remaining int
	paused    bool
	stop      chan struct{} // identity doubles as a generation marker
}

func NewPhaseTimer(clock clockwork.Clock, onTick TickFunc, onExpire ExpireFunc) *PhaseTimer {
	return &PhaseTimer{clock: clock, onTick: onTick, onExpire: onExpire}
}

// Start resets remaining=total, emits an immediate tick, then ticks once per
// second. Any previous run is discarded.
func (t *PhaseTimer) Start(total int) {
	if total <= 0 {
		t.mu.Lock()
		t.total = 0
		t.remaining = 0
		t.paused = false
		t.stop = nil
		t.mu.Unlock()

		go func() {
			t.onTick(0, 0)
			t.onExpire()
		}()
		return
	}

	t.mu.Lock()
	t.total = total
	t.remaining = total
	t.paused = false
	stop := make(chan struct{})
	t.stop = stop
	t.mu.Unlock()

	// the immediate tick runs off the caller's stack so a caller holding its
	// own lock inside the tick callback cannot deadlock
	go func() {
		t.onTick(total, total)
		t.run(stop)
	}()
}

// Pause freezes remaining and stops ticking without resetting it.
func (t *PhaseTimer) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop == nil || t.paused {
		return
	}
	t.paused = true
	close(t.stop)
	t.stop = nil
}

// Resume restarts ticking from the frozen remaining value. It never derives
// remaining from wall-clock elapsed time.
func (t *PhaseTimer) Resume() {
	t.mu.Lock()
	if !t.paused || t.remaining <= 0 {
		t.mu.Unlock()
		return
	}
	t.paused = false
	stop := make(chan struct{})
	t.stop = stop
	t.mu.Unlock()

	go t.run(stop)
}

// Cancel stops ticking and discards the timer.
func (t *PhaseTimer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
	t.paused = false
	t.remaining = 0
	t.total = 0
}

// Snapshot returns the current remaining/total/paused view for resync bursts.
func (t *PhaseTimer) Snapshot() (remaining, total int, paused bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining, t.total, t.paused
}

func (t *PhaseTimer) run(stop chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-t.clock.After(time.Second):
			t.mu.Lock()
			if t.stop != stop {
				// paused or cancelled while this tick was in flight
				t.mu.Unlock()
				return
			}
			t.remaining--
			remaining, total := t.remaining, t.total
			expired := remaining <= 0
			if expired {
				t.stop = nil
			}
			t.mu.Unlock()

			t.onTick(remaining, total)
			if expired {
				t.onExpire()
				return
			}
		}
	}
}
