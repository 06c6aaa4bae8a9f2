package engine

import (
	"sync"
	"time"
)

// TimerState enumerates the countdown's lifecycle.
type TimerState string

const (
	TimerNotStarted TimerState = "NOT_STARTED"
	TimerRunning    TimerState = "RUNNING"
	TimerExpired    TimerState = "EXPIRED"
)

// Timer is a one-shot countdown. It ticks once per wall-clock second while
// running and invokes the expiry callback exactly once when the remaining
// time reaches zero. Stop halts ticking without firing the callback; the
// callback can never fire more than once per Timer regardless of how often
// Start and Stop are called.
type Timer struct {
	mu        sync.Mutex
	state     TimerState
	remaining int
	fired     bool
	onExpire  func()
	stopCh    chan struct{}
}

// NewTimer creates a timer in the NotStarted state. onExpire may be nil.
func NewTimer(onExpire func()) *Timer {
	return &Timer{state: TimerNotStarted, onExpire: onExpire}
}

// Start begins the countdown from durationSeconds. Starting a running or
// expired timer is a no-op.
func (t *Timer) Start(durationSeconds int) {
	t.mu.Lock()
	if t.state != TimerNotStarted || t.fired {
		t.mu.Unlock()
		return
	}
	t.remaining = durationSeconds
	t.state = TimerRunning
	t.stopCh = make(chan struct{})
	stop := t.stopCh
	t.mu.Unlock()

	if durationSeconds <= 0 {
		// Degenerate duration expires on the next tick boundary.
		go t.Tick()
		return
	}

	go t.run(stop)
}

func (t *Timer) run(stop chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !t.Tick() {
				return
			}
		}
	}
}

// Tick decrements the remaining time by one second. When it reaches zero the
// timer transitions to Expired and fires the expiry callback, exactly once.
// Returns false once the timer is no longer running. Exposed so the countdown
// arithmetic is testable without waiting on the wall clock.
func (t *Timer) Tick() bool {
	t.mu.Lock()
	if t.state != TimerRunning {
		t.mu.Unlock()
		return false
	}
	if t.remaining > 0 {
		t.remaining--
	}
	if t.remaining > 0 {
		t.mu.Unlock()
		return true
	}

	t.state = TimerExpired
	fire := !t.fired
	t.fired = true
	cb := t.onExpire
	t.mu.Unlock()

	if fire && cb != nil {
		cb()
	}
	return false
}

// Stop halts the countdown. No ticks or callbacks fire after Stop returns.
// Safe to call in any state, any number of times.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == TimerRunning {
		close(t.stopCh)
	}
	t.state = TimerNotStarted
	// fired stays latched so a later Start can never re-arm the callback.
}

// State returns the timer's current state.
func (t *Timer) State() TimerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Remaining returns the seconds left on the countdown. Never negative.
func (t *Timer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.remaining < 0 {
		return 0
	}
	return t.remaining
}
