package engine

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Stage is the session's top-level state. Transitions are strictly linear:
// Instructions → InProgress → Submitted, and Submitted is terminal.
type Stage string

const (
	StageInstructions Stage = "INSTRUCTIONS"
	StageInProgress   Stage = "IN_PROGRESS"
	StageSubmitted    Stage = "SUBMITTED"
)

// SubmitTrigger identifies which path finalized the session.
type SubmitTrigger string

const (
	TriggerCandidate      SubmitTrigger = "candidate"
	TriggerTimerExpiry    SubmitTrigger = "timer_expiry"
	TriggerViolationLimit SubmitTrigger = "violation_limit"
)

// Session errors.
var (
	// ErrNoIdentity means Start was called without an authenticated
	// candidate. The UI should never reach the instructions stage without
	// identity, so this indicates an integration bug.
	ErrNoIdentity = errors.New("session has no candidate identity")
	// ErrNotInProgress guards mutations outside the InProgress stage.
	ErrNotInProgress = errors.New("session is not in progress")
)

// ResultSink is the external persistence collaborator. A failed save never
// aborts the in-memory session; the error is surfaced through SubmitOutcome
// and the result is retained for retry.
type ResultSink interface {
	SaveResult(ctx context.Context, res *Result) error
}

// QuestionRef points at one question by both position and ID.
type QuestionRef struct {
	SectionIndex  int `json:"section_index"`
	QuestionIndex int `json:"question_index"`
}

// SubmitOutcome reports what a Submit call did.
//
// Exactly one of three shapes comes back: Submitted=true with the Result
// (and possibly PersistErr), Submitted=false with UnansweredReview populated
// (the soft review gate), or Submitted=false with neither (the call was a
// no-op because the session was already submitted or never started).
type SubmitOutcome struct {
	Submitted        bool          `json:"submitted"`
	Result           *Result       `json:"result,omitempty"`
	UnansweredReview []QuestionRef `json:"unanswered_review,omitempty"`
	PersistErr       error         `json:"-"`
}

// Callbacks let the owner of the session observe asynchronous transitions.
// They are invoked without the session lock held, so they may call back into
// the session. Either field may be nil.
type Callbacks struct {
	// OnWarning fires on a focus-loss event below the violation threshold.
	OnWarning func(count, remaining int)
	// OnForcedSubmit fires when the timer or the violation monitor ends the
	// session.
	OnForcedSubmit func(trigger SubmitTrigger, outcome SubmitOutcome)
}

// Session drives one candidate through one test attempt: answer storage,
// navigation, the countdown, violation tracking, and exactly-once submission.
// Construct a fresh Session per attempt and discard it at teardown.
//
// All entry points serialize on the session mutex, which is what guarantees
// at-most-once finalization when the timer, the monitor, and the candidate
// race to submit.
type Session struct {
	mu sync.Mutex

	def         *TestDefinition
	candidateID int
	sink        ResultSink
	cb          Callbacks

	stage   Stage
	answers *AnswerStore
	cursor  *Cursor
	timer   *Timer
	monitor *ViolationMonitor

	startedAt   time.Time
	submittedAt time.Time
	pending     *Result // retained when the sink write fails
}

// NewSession builds a session in the Instructions stage.
func NewSession(def *TestDefinition, candidateID int, sink ResultSink, cb Callbacks) *Session {
	s := &Session{
		def:         def,
		candidateID: candidateID,
		sink:        sink,
		cb:          cb,
		stage:       StageInstructions,
		answers:     NewAnswerStore(),
		cursor:      newCursor(def),
		monitor:     NewViolationMonitor(DefaultViolationThreshold),
	}
	s.timer = NewTimer(s.handleExpiry)
	return s
}

// Start moves the session from Instructions to InProgress: records the start
// time, resets the cursor, and starts the countdown. Requires an
// authenticated candidate identity.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.candidateID == 0 {
		return ErrNoIdentity
	}
	if s.stage != StageInstructions {
		return ErrNotInProgress
	}

	s.stage = StageInProgress
	s.startedAt = time.Now()
	s.cursor.Reset()
	s.timer.Start(s.def.DurationMinutes * 60)
	return nil
}

// Resume moves the session from Instructions to InProgress using state
// carried over from an earlier connection: the original start time, the
// seconds left on the countdown, and the violation count accumulated so far.
// Answers and review marks are restored separately through SetAnswer and
// ToggleMarkForReview once the session is in progress.
func (s *Session) Resume(startedAt time.Time, remainingSeconds, violations int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.candidateID == 0 {
		return ErrNoIdentity
	}
	if s.stage != StageInstructions {
		return ErrNotInProgress
	}

	s.stage = StageInProgress
	s.startedAt = startedAt
	s.monitor.Restore(violations)
	s.cursor.Reset()
	s.timer.Start(remainingSeconds)
	return nil
}

// Detach stops the countdown and the violation monitor without finalizing
// the session. Called when the owning connection goes away; a later
// reconnect builds a fresh Session and resumes from persisted attempt state.
func (s *Session) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stage != StageInProgress {
		return
	}
	s.timer.Stop()
	s.monitor.Detach()
}

// SetAnswer stores the candidate's answer for the question at the given
// position. A nil answer clears the selection.
func (s *Session) SetAnswer(section, question int, ans *Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stage != StageInProgress {
		return ErrNotInProgress
	}
	q := s.def.QuestionAt(section, question)
	if q == nil {
		return nil // bounded palette; ignore like navigation does
	}
	s.answers.SetAnswer(s.def.Sections[section].ID, q.ID, ans)
	return nil
}

// ToggleMarkForReview flips the review flag on the question at the given
// position.
func (s *Session) ToggleMarkForReview(section, question int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stage != StageInProgress {
		return ErrNotInProgress
	}
	q := s.def.QuestionAt(section, question)
	if q == nil {
		return nil
	}
	s.answers.ToggleMarkForReview(s.def.Sections[section].ID, q.ID)
	return nil
}

// Next advances the cursor one question.
func (s *Session) Next() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stage == StageInProgress {
		s.cursor.Next()
	}
}

// Previous moves the cursor back one question.
func (s *Session) Previous() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stage == StageInProgress {
		s.cursor.Previous()
	}
}

// MoveTo jumps the cursor to an absolute position; out-of-range requests are
// ignored.
func (s *Session) MoveTo(section, question int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stage == StageInProgress {
		s.cursor.MoveTo(section, question)
	}
}

// RecordFocusLoss registers one tab-switch/focus-loss event. Below the
// threshold it raises the warning callback; at the threshold it force-submits
// the session. Events outside InProgress are dropped.
func (s *Session) RecordFocusLoss() {
	s.mu.Lock()
	if s.stage != StageInProgress {
		s.mu.Unlock()
		return
	}

	verdict := s.monitor.Record()
	if verdict.Escalate {
		outcome := s.submitLocked(true)
		s.mu.Unlock()
		if outcome.Submitted && s.cb.OnForcedSubmit != nil {
			s.cb.OnForcedSubmit(TriggerViolationLimit, outcome)
		}
		return
	}
	s.mu.Unlock()

	if s.cb.OnWarning != nil {
		s.cb.OnWarning(verdict.Count, verdict.Remaining)
	}
}

// Submit finalizes the session. Without force, questions that are marked for
// review but unanswered soft-block the submission: the cursor jumps to the
// first one and the outcome lists them all, leaving the stage untouched.
// With force (or when no such questions exist) the session transitions to
// Submitted, the result is computed and handed to the sink, and any further
// Submit call is a no-op.
func (s *Session) Submit(force bool) SubmitOutcome {
	s.mu.Lock()
	outcome := s.submitLocked(force)
	s.mu.Unlock()
	return outcome
}

// handleExpiry is the timer's expiry callback; it always force-submits.
func (s *Session) handleExpiry() {
	s.mu.Lock()
	outcome := s.submitLocked(true)
	s.mu.Unlock()

	if outcome.Submitted && s.cb.OnForcedSubmit != nil {
		s.cb.OnForcedSubmit(TriggerTimerExpiry, outcome)
	}
}

// submitLocked is the single finalization path. Callers hold s.mu — the
// stage check and flip happen under one critical section, which is the
// re-entrancy guard preventing double submission.
func (s *Session) submitLocked(force bool) SubmitOutcome {
	if s.stage != StageInProgress {
		return SubmitOutcome{}
	}

	if !force {
		if refs := s.unansweredReviewLocked(); len(refs) > 0 {
			s.cursor.MoveTo(refs[0].SectionIndex, refs[0].QuestionIndex)
			return SubmitOutcome{UnansweredReview: refs}
		}
	}

	// Stop the countdown and detach the monitor before anything else so no
	// further tick or focus event can re-enter submission.
	s.timer.Stop()
	s.monitor.Detach()

	s.stage = StageSubmitted
	s.submittedAt = time.Now()

	res := Score(s.def, s.answers)
	res.CandidateID = s.candidateID
	res.ViolationCount = s.monitor.Count()
	res.StartedAt = s.startedAt
	res.EndedAt = s.submittedAt
	if !s.startedAt.IsZero() {
		res.TimeSpentSeconds = int(s.submittedAt.Sub(s.startedAt) / time.Second)
	}

	outcome := SubmitOutcome{Submitted: true, Result: res}
	if err := s.sink.SaveResult(context.Background(), res); err != nil {
		// The session still ends; keep the payload so a retry can resubmit
		// without recomputation.
		s.pending = res
		outcome.PersistErr = err
	}
	return outcome
}

// unansweredReviewLocked lists questions flagged for review that have no
// answer, in definition order.
func (s *Session) unansweredReviewLocked() []QuestionRef {
	var refs []QuestionRef
	for si := range s.def.Sections {
		sec := &s.def.Sections[si]
		for qi := range sec.Questions {
			st := s.answers.GetState(sec.ID, sec.Questions[qi].ID)
			if st.MarkedForReview && st.Answer == nil {
				refs = append(refs, QuestionRef{SectionIndex: si, QuestionIndex: qi})
			}
		}
	}
	return refs
}

// RetryPersist re-sends a result retained after a failed sink write. No-op
// when nothing is pending.
func (s *Session) RetryPersist(ctx context.Context) error {
	s.mu.Lock()
	res := s.pending
	s.mu.Unlock()
	if res == nil {
		return nil
	}

	if err := s.sink.SaveResult(ctx, res); err != nil {
		return err
	}

	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()
	return nil
}

// PendingResult returns the result retained after a failed persistence write,
// or nil.
func (s *Session) PendingResult() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Stage returns the session's current stage.
func (s *Session) Stage() Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage
}

// Position returns the cursor's (section, question) indices.
func (s *Session) Position() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor.Position()
}

// CurrentSection returns the section under the cursor, or nil for an empty
// definition.
func (s *Session) CurrentSection() *Section {
	s.mu.Lock()
	defer s.mu.Unlock()
	si, _ := s.cursor.Position()
	if si < 0 || si >= s.def.SectionCount() {
		return nil
	}
	return &s.def.Sections[si]
}

// CurrentQuestion returns the question under the cursor, or nil for an empty
// definition.
func (s *Session) CurrentQuestion() *Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.def.QuestionAt(s.cursor.Position())
}

// QuestionState returns the stored answer state for the question at the given
// position. Questions never interacted with return the zero default.
func (s *Session) QuestionState(section, question int) AnswerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.def.QuestionAt(section, question)
	if q == nil {
		return AnswerState{}
	}
	return s.answers.GetState(s.def.Sections[section].ID, q.ID)
}

// IsLastQuestion reports whether the cursor is on the final question.
func (s *Session) IsLastQuestion() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor.IsLastQuestion()
}

// TimeRemaining returns the countdown's remaining seconds.
func (s *Session) TimeRemaining() int {
	return s.timer.Remaining()
}

// ViolationCount returns the number of recorded focus-loss events.
func (s *Session) ViolationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.monitor.Count()
}

// AnsweredCount returns how many questions currently have answers.
func (s *Session) AnsweredCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answers.CountAnswered()
}

// MarkedForReviewCount returns how many questions carry the review flag.
func (s *Session) MarkedForReviewCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answers.CountMarkedForReview()
}

// StartedAt returns when the session entered InProgress.
func (s *Session) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startedAt
}

// SubmittedAt returns when the session was finalized, or the zero time.
func (s *Session) SubmittedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submittedAt
}
