package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TestResult is the persisted, write-once outcome of a completed attempt.
type TestResult struct {
	ID               uuid.UUID `json:"id"`
	TestID           uuid.UUID `json:"test_id"`
	CandidateID      int       `json:"candidate_id"`
	Score            int       `json:"score"`
	TotalMarks       int       `json:"total_marks"`
	Percentage       int       `json:"percentage"`
	CorrectAnswers   int       `json:"correct_answers"`
	IncorrectAnswers int       `json:"incorrect_answers"`
	Passed           bool      `json:"passed"`
	TimeSpentSeconds int       `json:"time_spent_seconds"`
	ViolationCount   int       `json:"violation_count"`
	StartedAt        time.Time `json:"started_at"`
	EndedAt          time.Time `json:"ended_at"`
	CreatedAt        time.Time `json:"created_at"`
}

// TestResponse is one row of a result's per-question audit trail.
type TestResponse struct {
	ID         uuid.UUID       `json:"id"`
	ResultID   uuid.UUID       `json:"result_id"`
	SectionID  uuid.UUID       `json:"section_id"`
	QuestionID uuid.UUID       `json:"question_id"`
	Answer     json.RawMessage `json:"answer"`
	Answered   bool            `json:"answered"`
	IsCorrect  bool            `json:"is_correct"`
	Points     int             `json:"points"`
}
