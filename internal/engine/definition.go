package engine

import (
	"github.com/google/uuid"
)

// QuestionKind enumerates the supported question formats.
type QuestionKind string

const (
	QuestionMultipleChoice QuestionKind = "MULTIPLE_CHOICE"
	QuestionFreeText       QuestionKind = "FREE_TEXT"
)

// TestDefinition is the immutable description of a test, loaded once when a
// session is created. Sections and questions keep their definition order.
type TestDefinition struct {
	ID              uuid.UUID
	Title           string
	Description     string
	DurationMinutes int
	PassingScore    int // percentage 0–100
	Sections        []Section
}

// Section groups an ordered run of questions.
type Section struct {
	ID          uuid.UUID
	Title       string
	Description string
	Questions   []Question
}

// Question holds the prompt, its options, and the grading key.
// For MULTIPLE_CHOICE, CorrectOption indexes into Options.
// For FREE_TEXT, CorrectText is the expected answer.
type Question struct {
	ID            uuid.UUID
	Prompt        string
	Kind          QuestionKind
	Options       []string
	CorrectOption int
	CorrectText   string
	Points        int
}

// Weight returns the question's point value, defaulting to 1.
func (q *Question) Weight() int {
	if q.Points <= 0 {
		return 1
	}
	return q.Points
}

// SectionCount returns the number of sections.
func (d *TestDefinition) SectionCount() int {
	return len(d.Sections)
}

// QuestionCount returns the number of questions in the given section,
// or 0 if the section index is out of range.
func (d *TestDefinition) QuestionCount(section int) int {
	if section < 0 || section >= len(d.Sections) {
		return 0
	}
	return len(d.Sections[section].Questions)
}

// QuestionAt returns the question at (section, question), or nil when either
// index is out of range.
func (d *TestDefinition) QuestionAt(section, question int) *Question {
	if section < 0 || section >= len(d.Sections) {
		return nil
	}
	qs := d.Sections[section].Questions
	if question < 0 || question >= len(qs) {
		return nil
	}
	return &qs[question]
}

// TotalQuestions counts every question across all sections.
func (d *TestDefinition) TotalQuestions() int {
	total := 0
	for i := range d.Sections {
		total += len(d.Sections[i].Questions)
	}
	return total
}
