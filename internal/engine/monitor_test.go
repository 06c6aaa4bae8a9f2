package engine

import "testing"

func TestMonitorWarnsBelowThreshold(t *testing.T) {
	m := NewViolationMonitor(10)

	for i := 1; i <= 9; i++ {
		v := m.Record()
		if v.Escalate {
			t.Fatalf("event %d escalated below threshold", i)
		}
		if v.Count != i {
			t.Fatalf("count = %d, want %d", v.Count, i)
		}
		if v.Remaining != 10-i {
			t.Fatalf("remaining = %d, want %d", v.Remaining, 10-i)
		}
	}
}

func TestMonitorEscalatesAtThresholdWithoutWarning(t *testing.T) {
	m := NewViolationMonitor(10)
	for i := 0; i < 9; i++ {
		m.Record()
	}

	v := m.Record() // 10th event
	if !v.Escalate {
		t.Fatal("10th event must escalate")
	}
	if v.Count != 10 {
		t.Fatalf("count = %d, want 10", v.Count)
	}

	// Escalation latches: an 11th event neither warns nor escalates again.
	v = m.Record()
	if v.Escalate {
		t.Fatal("escalation must fire only once")
	}
	if m.Count() != 10 {
		t.Fatalf("count advanced past escalation: %d", m.Count())
	}
}

func TestMonitorDetachDropsEvents(t *testing.T) {
	m := NewViolationMonitor(10)
	m.Record()
	m.Detach()

	v := m.Record()
	if v.Escalate || v.Count != 1 {
		t.Fatalf("detached monitor still reacting: %+v", v)
	}
}

func TestMonitorRestoreSeedsCount(t *testing.T) {
	m := NewViolationMonitor(10)
	m.Restore(9)

	v := m.Record()
	if !v.Escalate {
		t.Fatal("event on top of a restored count of 9 must escalate")
	}
	if v.Count != 10 {
		t.Fatalf("count = %d, want 10", v.Count)
	}

	m = NewViolationMonitor(10)
	m.Restore(-3)
	if m.Count() != 0 {
		t.Fatalf("negative restore: count = %d, want 0", m.Count())
	}
}

func TestMonitorDefaultThreshold(t *testing.T) {
	m := NewViolationMonitor(0)
	if m.Threshold() != DefaultViolationThreshold {
		t.Fatalf("threshold = %d, want %d", m.Threshold(), DefaultViolationThreshold)
	}
}
