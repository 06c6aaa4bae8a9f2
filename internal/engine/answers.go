package engine

import (
	"github.com/google/uuid"
)

// AnswerKind distinguishes option-index answers from free-text answers.
type AnswerKind string

const (
	AnswerChoice AnswerKind = "choice"
	AnswerText   AnswerKind = "text"
)

// Answer is a tagged union: either a selected option index or a free-text value.
type Answer struct {
	Kind        AnswerKind `json:"kind"`
	OptionIndex int        `json:"option_index,omitempty"`
	Value       string     `json:"value,omitempty"`
}

// ChoiceAnswer builds an option-index answer.
func ChoiceAnswer(optionIndex int) *Answer {
	return &Answer{Kind: AnswerChoice, OptionIndex: optionIndex}
}

// TextAnswer builds a free-text answer.
func TextAnswer(value string) *Answer {
	return &Answer{Kind: AnswerText, Value: value}
}

// AnswerState is the per-question mutable state. A nil Answer means the
// question is unanswered.
type AnswerState struct {
	Answer          *Answer `json:"answer"`
	MarkedForReview bool    `json:"marked_for_review"`
	Skipped         bool    `json:"skipped"`
}

type answerKey struct {
	sectionID  uuid.UUID
	questionID uuid.UUID
}

// AnswerStore holds AnswerState entries keyed by (section, question).
// Entries are created lazily on first interaction and live for the whole
// session. The store performs no external persistence.
type AnswerStore struct {
	states map[answerKey]*AnswerState
}

// NewAnswerStore creates an empty store.
func NewAnswerStore() *AnswerStore {
	return &AnswerStore{states: make(map[answerKey]*AnswerState)}
}

func (s *AnswerStore) upsert(sectionID, questionID uuid.UUID) *AnswerState {
	key := answerKey{sectionID: sectionID, questionID: questionID}
	st, ok := s.states[key]
	if !ok {
		st = &AnswerState{}
		s.states[key] = st
	}
	return st
}

// SetAnswer records the candidate's answer for a question. A nil answer
// clears the selection and flags the question as skipped; a non-nil answer
// clears the skipped flag. MarkedForReview is left untouched.
func (s *AnswerStore) SetAnswer(sectionID, questionID uuid.UUID, ans *Answer) {
	st := s.upsert(sectionID, questionID)
	st.Answer = ans
	st.Skipped = ans == nil
}

// ToggleMarkForReview flips the review flag, creating a default entry if the
// question has not been touched yet.
func (s *AnswerStore) ToggleMarkForReview(sectionID, questionID uuid.UUID) {
	st := s.upsert(sectionID, questionID)
	st.MarkedForReview = !st.MarkedForReview
}

// GetState returns a copy of the stored state, or the zero default for
// questions with no entry yet. Callers never see a nil state.
func (s *AnswerStore) GetState(sectionID, questionID uuid.UUID) AnswerState {
	if st, ok := s.states[answerKey{sectionID: sectionID, questionID: questionID}]; ok {
		return *st
	}
	return AnswerState{}
}

// CountAnswered returns how many questions have a non-nil answer.
func (s *AnswerStore) CountAnswered() int {
	n := 0
	for _, st := range s.states {
		if st.Answer != nil {
			n++
		}
	}
	return n
}

// CountMarkedForReview returns how many questions carry the review flag.
func (s *AnswerStore) CountMarkedForReview() int {
	n := 0
	for _, st := range s.states {
		if st.MarkedForReview {
			n++
		}
	}
	return n
}
