package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates test attempt states.
type AttemptStatus string

const (
	AttemptStatusInProgress AttemptStatus = "IN_PROGRESS"
	AttemptStatusCompleted  AttemptStatus = "COMPLETED"
)

// TestAttempt represents one candidate's attempt at one test.
type TestAttempt struct {
	ID             uuid.UUID     `json:"id"`
	TestID         uuid.UUID     `json:"test_id"`
	CandidateID    int           `json:"candidate_id"`
	StartedAt      time.Time     `json:"started_at"`
	FinishedAt     *time.Time    `json:"finished_at,omitempty"`
	Status         AttemptStatus `json:"status"`
	Score          *int          `json:"score,omitempty"`
	Percentage     *int          `json:"percentage,omitempty"`
	Passed         *bool         `json:"passed,omitempty"`
	ViolationCount int           `json:"violation_count"`
}

// JoinTestRequest is the payload for a candidate joining a test.
type JoinTestRequest struct {
	EntryToken string `json:"entry_token" binding:"required,min=4,max=20"`
}

// AttemptState is the reload-recovery snapshot for an in-progress attempt:
// autosaved answers plus the authoritative remaining time.
type AttemptState struct {
	TestID           uuid.UUID         `json:"test_id"`
	CandidateID      int               `json:"candidate_id"`
	AutosavedAnswers map[string]string `json:"autosaved_answers"`
	RemainingSeconds int               `json:"remaining_seconds"`
}
