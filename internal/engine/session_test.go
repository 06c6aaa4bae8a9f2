package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// recordingSink counts saves and can be told to fail.
type recordingSink struct {
	mu    sync.Mutex
	saves []*Result
	fail  error
}

func (s *recordingSink) SaveResult(_ context.Context, res *Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.saves = append(s.saves, res)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saves)
}

func newTestSession(t *testing.T, cb Callbacks) (*Session, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	sess := NewSession(twoQuestionDefinition(), 42, sink, cb)
	return sess, sink
}

func TestSessionStartRequiresIdentity(t *testing.T) {
	sink := &recordingSink{}
	sess := NewSession(twoQuestionDefinition(), 0, sink, Callbacks{})

	if err := sess.Start(); !errors.Is(err, ErrNoIdentity) {
		t.Fatalf("err = %v, want ErrNoIdentity", err)
	}
	if sess.Stage() != StageInstructions {
		t.Fatalf("stage = %s, want %s", sess.Stage(), StageInstructions)
	}
}

func TestSessionLifecycle(t *testing.T) {
	sess, sink := newTestSession(t, Callbacks{})

	if sess.Stage() != StageInstructions {
		t.Fatalf("initial stage = %s", sess.Stage())
	}
	if err := sess.SetAnswer(0, 0, ChoiceAnswer(2)); !errors.Is(err, ErrNotInProgress) {
		t.Fatalf("mutation before start: err = %v, want ErrNotInProgress", err)
	}

	if err := sess.Start(); err != nil {
		t.Fatal(err)
	}
	defer sess.Submit(true)

	if sess.Stage() != StageInProgress {
		t.Fatalf("stage = %s, want %s", sess.Stage(), StageInProgress)
	}
	if sess.StartedAt().IsZero() {
		t.Fatal("startedAt not recorded")
	}
	if s, q := sess.Position(); s != 0 || q != 0 {
		t.Fatalf("cursor = (%d,%d), want (0,0)", s, q)
	}

	// Double start is rejected.
	if err := sess.Start(); err == nil {
		t.Fatal("second Start should fail")
	}

	if err := sess.SetAnswer(0, 0, ChoiceAnswer(2)); err != nil {
		t.Fatal(err)
	}
	sess.Next()
	if err := sess.SetAnswer(0, 1, ChoiceAnswer(0)); err != nil {
		t.Fatal(err)
	}
	if !sess.IsLastQuestion() {
		t.Fatal("expected last question")
	}
	if sess.AnsweredCount() != 2 {
		t.Fatalf("answered = %d, want 2", sess.AnsweredCount())
	}

	outcome := sess.Submit(false)
	if !outcome.Submitted {
		t.Fatalf("submit outcome = %+v", outcome)
	}
	if outcome.Result.Score != 2 || !outcome.Result.Passed {
		t.Fatalf("result = %+v", outcome.Result)
	}
	if outcome.Result.CandidateID != 42 {
		t.Fatalf("candidate = %d, want 42", outcome.Result.CandidateID)
	}
	if sess.Stage() != StageSubmitted {
		t.Fatalf("stage = %s, want %s", sess.Stage(), StageSubmitted)
	}
	if sink.count() != 1 {
		t.Fatalf("sink saves = %d, want 1", sink.count())
	}
	if sess.SubmittedAt().IsZero() {
		t.Fatal("submittedAt not recorded")
	}
}

func TestSessionReviewGateSoftBlock(t *testing.T) {
	sess, sink := newTestSession(t, Callbacks{})
	if err := sess.Start(); err != nil {
		t.Fatal(err)
	}

	// Answer question 0, flag question 1 for review without answering it.
	if err := sess.SetAnswer(0, 0, ChoiceAnswer(2)); err != nil {
		t.Fatal(err)
	}
	if err := sess.ToggleMarkForReview(0, 1); err != nil {
		t.Fatal(err)
	}

	outcome := sess.Submit(false)
	if outcome.Submitted {
		t.Fatal("soft block expected")
	}
	if len(outcome.UnansweredReview) != 1 {
		t.Fatalf("unanswered review = %+v", outcome.UnansweredReview)
	}
	if ref := outcome.UnansweredReview[0]; ref.SectionIndex != 0 || ref.QuestionIndex != 1 {
		t.Fatalf("flagged question = %+v, want (0,1)", ref)
	}
	// Cursor jumped to the first flagged question; stage unchanged.
	if s, q := sess.Position(); s != 0 || q != 1 {
		t.Fatalf("cursor = (%d,%d), want (0,1)", s, q)
	}
	if sess.Stage() != StageInProgress {
		t.Fatalf("stage = %s, want still %s", sess.Stage(), StageInProgress)
	}
	if sink.count() != 0 {
		t.Fatal("nothing should have been persisted")
	}

	// Force proceeds regardless.
	outcome = sess.Submit(true)
	if !outcome.Submitted {
		t.Fatalf("forced submit outcome = %+v", outcome)
	}
	if sink.count() != 1 {
		t.Fatalf("sink saves = %d, want 1", sink.count())
	}
}

func TestSessionSubmitAtMostOnce(t *testing.T) {
	sess, sink := newTestSession(t, Callbacks{})
	if err := sess.Start(); err != nil {
		t.Fatal(err)
	}

	// Candidate submit, a racing timer expiry, and repeat submits all funnel
	// through the same guard.
	var wg sync.WaitGroup
	var submitted atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if sess.Submit(true).Submitted {
				submitted.Add(1)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		sess.handleExpiry()
	}()
	wg.Wait()

	if got := submitted.Load(); got != 1 {
		t.Fatalf("submitted %d times, want exactly 1", got)
	}
	if sink.count() != 1 {
		t.Fatalf("sink saves = %d, want exactly 1", sink.count())
	}
}

func TestSessionViolationEscalation(t *testing.T) {
	var warnings []int
	var forcedTrigger SubmitTrigger
	var forced atomic.Int32

	var sess *Session
	sess, sink := newTestSession(t, Callbacks{
		OnWarning: func(count, remaining int) {
			warnings = append(warnings, count)
			if count+remaining != DefaultViolationThreshold {
				// Warning arithmetic must stay consistent with the threshold.
				panic("count + remaining mismatch")
			}
		},
		OnForcedSubmit: func(trigger SubmitTrigger, outcome SubmitOutcome) {
			forcedTrigger = trigger
			forced.Add(1)
		},
	})
	if err := sess.Start(); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 10; i++ {
		sess.RecordFocusLoss()
	}

	if len(warnings) != 9 {
		t.Fatalf("warnings = %d, want 9 (threshold event must not warn)", len(warnings))
	}
	if forced.Load() != 1 {
		t.Fatalf("forced submits = %d, want 1", forced.Load())
	}
	if forcedTrigger != TriggerViolationLimit {
		t.Fatalf("trigger = %s, want %s", forcedTrigger, TriggerViolationLimit)
	}
	if sess.Stage() != StageSubmitted {
		t.Fatalf("stage = %s, want %s", sess.Stage(), StageSubmitted)
	}
	if sink.count() != 1 {
		t.Fatalf("sink saves = %d, want 1", sink.count())
	}
	if got := sink.saves[0].ViolationCount; got != 10 {
		t.Fatalf("recorded violations = %d, want 10", got)
	}

	// An 11th event after submission is ignored entirely.
	sess.RecordFocusLoss()
	if len(warnings) != 9 || forced.Load() != 1 {
		t.Fatal("monitor still active after submission")
	}
}

func TestSessionPersistFailureStillEndsSession(t *testing.T) {
	sink := &recordingSink{fail: errors.New("network down")}
	sess := NewSession(twoQuestionDefinition(), 7, sink, Callbacks{})
	if err := sess.Start(); err != nil {
		t.Fatal(err)
	}

	outcome := sess.Submit(true)
	if !outcome.Submitted {
		t.Fatal("session must end even when persistence fails")
	}
	if outcome.PersistErr == nil {
		t.Fatal("persistence error must surface")
	}
	if sess.Stage() != StageSubmitted {
		t.Fatalf("stage = %s, want %s", sess.Stage(), StageSubmitted)
	}

	// The payload is retained for retry and resubmitted without recomputation.
	pending := sess.PendingResult()
	if pending == nil {
		t.Fatal("pending result not retained")
	}

	sink.mu.Lock()
	sink.fail = nil
	sink.mu.Unlock()

	if err := sess.RetryPersist(context.Background()); err != nil {
		t.Fatal(err)
	}
	if sess.PendingResult() != nil {
		t.Fatal("pending result should clear after successful retry")
	}
	if sink.count() != 1 || sink.saves[0] != pending {
		t.Fatal("retry must resubmit the retained payload")
	}
}

func TestSessionTimeRemainingMonotonic(t *testing.T) {
	sess, _ := newTestSession(t, Callbacks{})
	if err := sess.Start(); err != nil {
		t.Fatal(err)
	}
	defer sess.Submit(true)

	start := sess.TimeRemaining()
	if start != 30*60 {
		t.Fatalf("initial remaining = %d, want %d", start, 30*60)
	}

	last := start
	for i := 0; i < 5; i++ {
		sess.timer.Tick()
		cur := sess.TimeRemaining()
		if cur > last {
			t.Fatalf("time remaining increased: %d → %d", last, cur)
		}
		last = cur
	}
}

func TestSessionResumeRestoresClockAndViolations(t *testing.T) {
	var forced atomic.Int32
	sess, _ := newTestSession(t, Callbacks{
		OnForcedSubmit: func(trigger SubmitTrigger, outcome SubmitOutcome) {
			forced.Add(1)
		},
	})

	startedAt := time.Now().Add(-10 * time.Minute)
	if err := sess.Resume(startedAt, 120, 3); err != nil {
		t.Fatal(err)
	}
	defer sess.Submit(true)

	if sess.Stage() != StageInProgress {
		t.Fatalf("stage = %s, want %s", sess.Stage(), StageInProgress)
	}
	if !sess.StartedAt().Equal(startedAt) {
		t.Fatalf("startedAt = %v, want %v", sess.StartedAt(), startedAt)
	}
	if got := sess.TimeRemaining(); got != 120 {
		t.Fatalf("remaining = %d, want 120", got)
	}

	// Resume is an alternate entry point, not a re-entry.
	if err := sess.Resume(startedAt, 120, 3); err == nil {
		t.Fatal("second Resume should fail")
	}
	if err := sess.Start(); err == nil {
		t.Fatal("Start after Resume should fail")
	}

	// 3 prior violations plus 7 fresh ones crosses the threshold.
	for i := 0; i < 7; i++ {
		sess.RecordFocusLoss()
	}
	if forced.Load() != 1 {
		t.Fatalf("forced submits = %d, want 1", forced.Load())
	}
}

func TestSessionDetachFreezesWithoutSubmitting(t *testing.T) {
	sess, sink := newTestSession(t, Callbacks{})
	if err := sess.Start(); err != nil {
		t.Fatal(err)
	}
	if err := sess.SetAnswer(0, 0, ChoiceAnswer(2)); err != nil {
		t.Fatal(err)
	}

	sess.Detach()

	if sess.Stage() != StageInProgress {
		t.Fatalf("stage = %s, want still %s", sess.Stage(), StageInProgress)
	}
	if sink.count() != 0 {
		t.Fatal("detach must not persist anything")
	}

	remaining := sess.TimeRemaining()
	if sess.timer.Tick() {
		t.Fatal("timer still running after detach")
	}
	if sess.TimeRemaining() != remaining {
		t.Fatal("clock moved after detach")
	}
	sess.RecordFocusLoss()
	if sess.Stage() != StageInProgress {
		t.Fatal("detached session reacted to a focus loss")
	}
}

func TestSessionNavigationIgnoredAfterSubmit(t *testing.T) {
	sess, _ := newTestSession(t, Callbacks{})
	if err := sess.Start(); err != nil {
		t.Fatal(err)
	}
	sess.Next()
	sess.Submit(true)

	s0, q0 := sess.Position()
	sess.Next()
	sess.Previous()
	sess.MoveTo(0, 0)
	if s, q := sess.Position(); s != s0 || q != q0 {
		t.Fatal("cursor moved after submission")
	}
	if err := sess.SetAnswer(0, 0, ChoiceAnswer(1)); !errors.Is(err, ErrNotInProgress) {
		t.Fatalf("err = %v, want ErrNotInProgress", err)
	}
}
