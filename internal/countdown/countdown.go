// README: Single-shot acceptance countdown bound to an absolute deadline.
package countdown

import (
	"sync"
	"time"
)

// NoTimer is the remaining-seconds value reported while no countdown runs.
// Distinct from 0, which means a running countdown has reached its deadline.
const NoTimer = -1

// Timer ticks once per second toward a deadline and fires the expire
// callback exactly once when the deadline passes. Start cancels any prior
// run, so at most one tick source exists at a time.
type Timer struct {
	mu        sync.Mutex
	remaining int
	gen       int
	stop      chan struct{}

	tick     time.Duration
	onTick   func(remaining int)
	onExpire func()
}

func New(onTick func(int), onExpire func()) *Timer {
	return &Timer{
		remaining: NoTimer,
		tick:      time.Second,
		onTick:    onTick,
		onExpire:  onExpire,
	}
}

// Start arms the countdown toward deadline, cancelling any running one
// first. A deadline already in the past expires immediately.
func (t *Timer) Start(deadline time.Time) {
	t.mu.Lock()
	t.cancelLocked()

	// whole ticks left, rounded up: max(0, window - elapsed)
	remaining := int((time.Until(deadline) + t.tick - 1) / t.tick)
	if remaining < 0 {
		remaining = 0
	}
	t.remaining = remaining
	if remaining == 0 {
		t.remaining = NoTimer
		t.mu.Unlock()
		if t.onTick != nil {
			t.onTick(0)
		}
		if t.onExpire != nil {
			t.onExpire()
		}
		return
	}

	t.gen++
	gen := t.gen
	stop := make(chan struct{})
	t.stop = stop
	t.mu.Unlock()

	if t.onTick != nil {
		t.onTick(remaining)
	}
	go t.run(gen, stop)
}

func (t *Timer) run(gen int, stop chan struct{}) {
	ticker := time.NewTicker(t.tick)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			t.mu.Lock()
			if t.gen != gen || t.remaining == NoTimer {
				t.mu.Unlock()
				return
			}
			t.remaining--
			remaining := t.remaining
			expired := remaining <= 0
			if expired {
				t.remaining = NoTimer
				t.stop = nil
			}
			t.mu.Unlock()

			if t.onTick != nil {
				t.onTick(remaining)
			}
			if expired {
				if t.onExpire != nil {
					t.onExpire()
				}
				return
			}
		}
	}
}

// Cancel stops the countdown and resets remaining to the NoTimer sentinel.
// Safe to call when nothing runs.
func (t *Timer) Cancel() {
	t.mu.Lock()
	t.cancelLocked()
	t.mu.Unlock()
	if t.onTick != nil {
		t.onTick(NoTimer)
	}
}

func (t *Timer) cancelLocked() {
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
	t.gen++
	t.remaining = NoTimer
}

// Remaining returns the current whole seconds left, or NoTimer.
func (t *Timer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}
