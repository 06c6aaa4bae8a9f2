package engine

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// QuestionResponse is one row of the auditable per-question response list,
// emitted in definition order.
type QuestionResponse struct {
	SectionID  uuid.UUID `json:"section_id"`
	QuestionID uuid.UUID `json:"question_id"`
	Answer     *Answer   `json:"answer"`
	Answered   bool      `json:"answered"`
	IsCorrect  bool      `json:"is_correct"`
	Points     int       `json:"points"`
}

// Result is the write-once outcome of a session. Scoring fields are filled by
// Score; the session fills in attempt metadata before handing the result to
// the persistence sink.
type Result struct {
	TestID           uuid.UUID          `json:"test_id"`
	CandidateID      int                `json:"candidate_id"`
	Score            int                `json:"score"`
	TotalMarks       int                `json:"total_marks"`
	Percentage       int                `json:"percentage"`
	CorrectAnswers   int                `json:"correct_answers"`
	IncorrectAnswers int                `json:"incorrect_answers"`
	Passed           bool               `json:"passed"`
	Responses        []QuestionResponse `json:"responses"`
	TimeSpentSeconds int                `json:"time_spent_seconds"`
	ViolationCount   int                `json:"violation_count"`
	StartedAt        time.Time          `json:"started_at"`
	EndedAt          time.Time          `json:"ended_at"`
}

// Score grades the final answer snapshot against the definition. It is a pure
// function: the same definition and store always produce an identical Result.
// Unanswered questions contribute to TotalMarks only — they are neither
// correct nor incorrect.
func Score(def *TestDefinition, answers *AnswerStore) *Result {
	res := &Result{
		TestID:    def.ID,
		Responses: make([]QuestionResponse, 0, def.TotalQuestions()),
	}

	for si := range def.Sections {
		sec := &def.Sections[si]
		for qi := range sec.Questions {
			q := &sec.Questions[qi]
			weight := q.Weight()
			res.TotalMarks += weight

			state := answers.GetState(sec.ID, q.ID)
			resp := QuestionResponse{
				SectionID:  sec.ID,
				QuestionID: q.ID,
				Answer:     state.Answer,
				Answered:   state.Answer != nil,
				Points:     weight,
			}

			if state.Answer != nil {
				if answerMatches(q, state.Answer) {
					resp.IsCorrect = true
					res.Score += weight
					res.CorrectAnswers++
				} else {
					res.IncorrectAnswers++
				}
			}

			res.Responses = append(res.Responses, resp)
		}
	}

	if res.TotalMarks > 0 {
		res.Percentage = int(math.Round(100 * float64(res.Score) / float64(res.TotalMarks)))
	}
	res.Passed = res.Percentage >= def.PassingScore

	return res
}

// answerMatches dispatches on the answer's kind so a free-text value can
// never accidentally compare equal to an option index.
func answerMatches(q *Question, ans *Answer) bool {
	switch q.Kind {
	case QuestionFreeText:
		return ans.Kind == AnswerText &&
			strings.EqualFold(strings.TrimSpace(ans.Value), strings.TrimSpace(q.CorrectText))
	default:
		return ans.Kind == AnswerChoice && ans.OptionIndex == q.CorrectOption
	}
}
