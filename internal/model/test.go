package model

import (
	"time"

	"github.com/google/uuid"
)

// TestStatus enumerates the lifecycle states of a test definition.
type TestStatus string

const (
	TestStatusDraft     TestStatus = "DRAFT"
	TestStatusPublished TestStatus = "PUBLISHED"
	TestStatusArchived  TestStatus = "ARCHIVED"
)

// QuestionType enumerates the supported question formats.
type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionTypeFreeText       QuestionType = "FREE_TEXT"
)

// Test represents a timed, multi-section assessment.
type Test struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	AuthorID        int        `json:"author_id"`
	DurationMinutes int        `json:"duration_minutes"`
	PassingScore    int        `json:"passing_score"`
	EntryToken      string     `json:"entry_token,omitempty"`
	ScheduledStart  *time.Time `json:"scheduled_start,omitempty"`
	ScheduledEnd    *time.Time `json:"scheduled_end,omitempty"`
	Status          TestStatus `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TestSection is an ordered group of questions inside a test.
type TestSection struct {
	ID          uuid.UUID      `json:"id"`
	TestID      uuid.UUID      `json:"test_id"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	OrderNum    int            `json:"order_num"`
	Questions   []TestQuestion `json:"questions,omitempty"`
}

// TestQuestion is a single question. For MULTIPLE_CHOICE, CorrectOption
// indexes into Options; for FREE_TEXT, CorrectText holds the expected answer.
type TestQuestion struct {
	ID            uuid.UUID    `json:"id"`
	SectionID     uuid.UUID    `json:"section_id"`
	Prompt        string       `json:"prompt"`
	QuestionType  QuestionType `json:"question_type"`
	Options       []string     `json:"options"`
	CorrectOption int          `json:"correct_option"`
	CorrectText   string       `json:"correct_text,omitempty"`
	Points        int          `json:"points"`
	OrderNum      int          `json:"order_num"`
}

// CreateTestRequest is the payload for creating a new test.
type CreateTestRequest struct {
	Title           string     `json:"title" binding:"required,min=3,max=255"`
	Description     string     `json:"description" binding:"omitempty,max=2000"`
	DurationMinutes int        `json:"duration_minutes" binding:"required,min=1,max=480"`
	PassingScore    int        `json:"passing_score" binding:"min=0,max=100"`
	EntryToken      string     `json:"entry_token" binding:"omitempty,min=4,max=20"`
	ScheduledStart  *time.Time `json:"scheduled_start" binding:"omitempty"`
	ScheduledEnd    *time.Time `json:"scheduled_end" binding:"omitempty,gtfield=ScheduledStart"`
}

// UpdateTestRequest is the payload for updating an existing draft test.
type UpdateTestRequest struct {
	Title           string     `json:"title" binding:"omitempty,min=3,max=255"`
	Description     string     `json:"description" binding:"omitempty,max=2000"`
	DurationMinutes int        `json:"duration_minutes" binding:"omitempty,min=1,max=480"`
	PassingScore    *int       `json:"passing_score" binding:"omitempty,min=0,max=100"`
	EntryToken      string     `json:"entry_token" binding:"omitempty,min=4,max=20"`
	ScheduledStart  *time.Time `json:"scheduled_start" binding:"omitempty"`
	ScheduledEnd    *time.Time `json:"scheduled_end" binding:"omitempty,gtfield=ScheduledStart"`
}

// QuestionInput is one question inside a ReplaceSectionsRequest.
type QuestionInput struct {
	Prompt        string   `json:"prompt" binding:"required,min=1,max=2000"`
	QuestionType  string   `json:"question_type" binding:"required,oneof=MULTIPLE_CHOICE FREE_TEXT"`
	Options       []string `json:"options" binding:"omitempty,max=10,dive,max=500"`
	CorrectOption int      `json:"correct_option" binding:"min=0"`
	CorrectText   string   `json:"correct_text" binding:"omitempty,max=500"`
	Points        int      `json:"points" binding:"min=0,max=100"`
}

// SectionInput is one section inside a ReplaceSectionsRequest.
type SectionInput struct {
	Title       string          `json:"title" binding:"required,min=1,max=255"`
	Description string          `json:"description" binding:"omitempty,max=2000"`
	Questions   []QuestionInput `json:"questions" binding:"dive"`
}

// ReplaceSectionsRequest bulk-replaces a draft test's sections and questions.
type ReplaceSectionsRequest struct {
	Sections []SectionInput `json:"sections" binding:"dive"`
}

// TestPayload is the Redis-cached, candidate-facing view of a published test.
// It carries no grading keys.
type TestPayload struct {
	TestID          uuid.UUID            `json:"test_id"`
	Title           string               `json:"title"`
	Description     string               `json:"description,omitempty"`
	DurationMinutes int                  `json:"duration_minutes"`
	PassingScore    int                  `json:"passing_score"`
	Sections        []SectionForTaker    `json:"sections"`
}

// SectionForTaker is a section without grading keys.
type SectionForTaker struct {
	ID          uuid.UUID          `json:"id"`
	Title       string             `json:"title"`
	Description string             `json:"description,omitempty"`
	Questions   []QuestionForTaker `json:"questions"`
}

// QuestionForTaker is a question without its answer key.
type QuestionForTaker struct {
	ID           uuid.UUID    `json:"id"`
	Prompt       string       `json:"prompt"`
	QuestionType QuestionType `json:"question_type"`
	Options      []string     `json:"options"`
	Points       int          `json:"points"`
}
