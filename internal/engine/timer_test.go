package engine

import (
	"sync/atomic"
	"testing"
)

func TestTimerCountsDownToZero(t *testing.T) {
	var fired atomic.Int32
	tm := NewTimer(func() { fired.Add(1) })

	tm.Start(3)
	tm.Stop() // detach the wall clock; drive ticks by hand
	if r := tm.Remaining(); r != 3 {
		t.Fatalf("remaining = %d, want 3", r)
	}

	// Stop halts ticking entirely.
	if tm.Tick() {
		t.Fatal("tick after Stop should report not running")
	}
	if got := fired.Load(); got != 0 {
		t.Fatalf("expiry fired %d times after Stop, want 0", got)
	}
}

func TestTimerExpiryFiresExactlyOnce(t *testing.T) {
	var fired atomic.Int32
	tm := &Timer{state: TimerRunning, remaining: 2, onExpire: func() { fired.Add(1) }}

	if !tm.Tick() { // 2 → 1
		t.Fatal("timer should still be running")
	}
	if tm.Remaining() != 1 {
		t.Fatalf("remaining = %d, want 1", tm.Remaining())
	}

	if tm.Tick() { // 1 → 0, expires
		t.Fatal("timer should have expired")
	}
	if tm.State() != TimerExpired {
		t.Fatalf("state = %s, want %s", tm.State(), TimerExpired)
	}
	if tm.Remaining() != 0 {
		t.Fatalf("remaining = %d, want 0", tm.Remaining())
	}

	// Idempotent expiry: further ticks never re-fire the callback.
	tm.Tick()
	tm.Tick()
	if got := fired.Load(); got != 1 {
		t.Fatalf("expiry fired %d times, want exactly 1", got)
	}
}

func TestTimerRemainingNeverNegative(t *testing.T) {
	tm := &Timer{state: TimerRunning, remaining: 1}
	tm.Tick()
	tm.Tick()
	tm.Tick()
	if r := tm.Remaining(); r != 0 {
		t.Fatalf("remaining = %d, want 0", r)
	}
}

func TestTimerRestartCannotRearmExpiry(t *testing.T) {
	var fired atomic.Int32
	tm := &Timer{state: TimerRunning, remaining: 1, onExpire: func() { fired.Add(1) }}

	tm.Tick() // expires, fires once
	tm.Stop()
	tm.Start(5) // latched: must not run again
	tm.Tick()
	tm.Tick()

	if got := fired.Load(); got != 1 {
		t.Fatalf("expiry fired %d times across restart, want 1", got)
	}
}

func TestTimerStopIsIdempotent(t *testing.T) {
	tm := NewTimer(nil)
	tm.Start(10)
	tm.Stop()
	tm.Stop()
	tm.Stop()
	if tm.State() != TimerNotStarted {
		t.Fatalf("state = %s, want %s", tm.State(), TimerNotStarted)
	}
}
