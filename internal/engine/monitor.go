package engine

// DefaultViolationThreshold is the number of focus-loss events that forces
// submission of the session.
const DefaultViolationThreshold = 10

// ViolationVerdict is the outcome of recording a single focus-loss event.
// When Escalate is true the session must be force-submitted and no warning is
// shown; otherwise Count and Remaining feed the candidate-facing warning.
type ViolationVerdict struct {
	Count     int
	Remaining int
	Escalate  bool
}

// ViolationMonitor counts window focus-loss events. It is passive: callers
// feed it events, it never polls. Escalation latches — once the threshold is
// reached no further verdicts escalate or warn.
type ViolationMonitor struct {
	count     int
	threshold int
	detached  bool
	escalated bool
}

// NewViolationMonitor creates a monitor with the given threshold. A
// non-positive threshold falls back to DefaultViolationThreshold.
func NewViolationMonitor(threshold int) *ViolationMonitor {
	if threshold <= 0 {
		threshold = DefaultViolationThreshold
	}
	return &ViolationMonitor{threshold: threshold}
}

// Record registers one focus-loss event and returns the verdict. Events on a
// detached or already-escalated monitor are ignored.
func (m *ViolationMonitor) Record() ViolationVerdict {
	if m.detached || m.escalated {
		return ViolationVerdict{Count: m.count, Remaining: m.remaining()}
	}

	m.count++
	if m.count >= m.threshold {
		m.escalated = true
		return ViolationVerdict{Count: m.count, Escalate: true}
	}
	return ViolationVerdict{Count: m.count, Remaining: m.remaining()}
}

func (m *ViolationMonitor) remaining() int {
	r := m.threshold - m.count
	if r < 0 {
		return 0
	}
	return r
}

// Count returns the number of recorded violations.
func (m *ViolationMonitor) Count() int {
	return m.count
}

// Threshold returns the escalation threshold.
func (m *ViolationMonitor) Threshold() int {
	return m.threshold
}

// Detach stops the monitor from reacting to further events. Called once the
// session is submitted.
func (m *ViolationMonitor) Detach() {
	m.detached = true
}

// Restore seeds the monitor with an event count accumulated before the
// monitor was created, as when a session is rebuilt after a reconnect. The
// next Record call escalates if the restored count already sits at or above
// the threshold.
func (m *ViolationMonitor) Restore(count int) {
	if count < 0 {
		count = 0
	}
	m.count = count
}
