package engine

import (
	"reflect"
	"testing"

	"github.com/google/uuid"
)

// twoQuestionDefinition builds the canonical scoring fixture: one section,
// two single-point multiple-choice questions with correct options 2 and 0.
func twoQuestionDefinition() *TestDefinition {
	return &TestDefinition{
		ID:              uuid.New(),
		Title:           "Aptitude Screening",
		DurationMinutes: 30,
		PassingScore:    60,
		Sections: []Section{
			{
				ID:    uuid.New(),
				Title: "General",
				Questions: []Question{
					{
						ID:            uuid.New(),
						Prompt:        "Pick the third option",
						Kind:          QuestionMultipleChoice,
						Options:       []string{"a", "b", "c", "d"},
						CorrectOption: 2,
					},
					{
						ID:            uuid.New(),
						Prompt:        "Pick the first option",
						Kind:          QuestionMultipleChoice,
						Options:       []string{"a", "b", "c", "d"},
						CorrectOption: 0,
					},
				},
			},
		},
	}
}

func TestScorePerfect(t *testing.T) {
	def := twoQuestionDefinition()
	sec := def.Sections[0]

	store := NewAnswerStore()
	store.SetAnswer(sec.ID, sec.Questions[0].ID, ChoiceAnswer(2))
	store.SetAnswer(sec.ID, sec.Questions[1].ID, ChoiceAnswer(0))

	res := Score(def, store)

	if res.Score != 2 || res.TotalMarks != 2 {
		t.Fatalf("score = %d/%d, want 2/2", res.Score, res.TotalMarks)
	}
	if res.Percentage != 100 {
		t.Fatalf("percentage = %d, want 100", res.Percentage)
	}
	if !res.Passed {
		t.Fatal("expected passed")
	}
	if res.CorrectAnswers != 2 || res.IncorrectAnswers != 0 {
		t.Fatalf("correct/incorrect = %d/%d, want 2/0", res.CorrectAnswers, res.IncorrectAnswers)
	}
}

func TestScorePartialUnanswered(t *testing.T) {
	def := twoQuestionDefinition()
	sec := def.Sections[0]

	store := NewAnswerStore()
	store.SetAnswer(sec.ID, sec.Questions[0].ID, ChoiceAnswer(2))
	// Second question left unanswered.

	res := Score(def, store)

	if res.Score != 1 || res.TotalMarks != 2 {
		t.Fatalf("score = %d/%d, want 1/2", res.Score, res.TotalMarks)
	}
	if res.Percentage != 50 {
		t.Fatalf("percentage = %d, want 50", res.Percentage)
	}
	// Unanswered is neither correct nor incorrect.
	if res.CorrectAnswers != 1 || res.IncorrectAnswers != 0 {
		t.Fatalf("correct/incorrect = %d/%d, want 1/0", res.CorrectAnswers, res.IncorrectAnswers)
	}
	if len(res.Responses) != 2 {
		t.Fatalf("responses = %d, want 2", len(res.Responses))
	}
	if res.Responses[1].Answered {
		t.Fatal("second response should be unanswered")
	}
}

func TestScoreWrongAnswerCountsIncorrect(t *testing.T) {
	def := twoQuestionDefinition()
	sec := def.Sections[0]

	store := NewAnswerStore()
	store.SetAnswer(sec.ID, sec.Questions[0].ID, ChoiceAnswer(1))

	res := Score(def, store)

	if res.Score != 0 || res.IncorrectAnswers != 1 || res.CorrectAnswers != 0 {
		t.Fatalf("got score=%d correct=%d incorrect=%d", res.Score, res.CorrectAnswers, res.IncorrectAnswers)
	}
}

func TestScoreFreeTextCaseInsensitive(t *testing.T) {
	secID := uuid.New()
	qID := uuid.New()
	def := &TestDefinition{
		ID:           uuid.New(),
		PassingScore: 50,
		Sections: []Section{{
			ID: secID,
			Questions: []Question{{
				ID:          qID,
				Kind:        QuestionFreeText,
				CorrectText: "goroutine",
				Points:      2,
			}},
		}},
	}

	store := NewAnswerStore()
	store.SetAnswer(secID, qID, TextAnswer("  Goroutine "))

	res := Score(def, store)
	if res.Score != 2 || !res.Passed {
		t.Fatalf("score = %d passed = %v, want 2 true", res.Score, res.Passed)
	}

	// A choice answer must never match a free-text key.
	store.SetAnswer(secID, qID, ChoiceAnswer(0))
	res = Score(def, store)
	if res.Score != 0 {
		t.Fatalf("choice answer on free-text question scored %d, want 0", res.Score)
	}
}

func TestScoreEmptyDefinition(t *testing.T) {
	def := &TestDefinition{ID: uuid.New(), PassingScore: 50}
	res := Score(def, NewAnswerStore())

	if res.Score != 0 || res.TotalMarks != 0 || res.Percentage != 0 {
		t.Fatalf("empty test scored %d/%d (%d%%), want 0/0 (0%%)", res.Score, res.TotalMarks, res.Percentage)
	}
	if res.Passed {
		t.Fatal("0%% must not pass a 50%% threshold")
	}
}

func TestScoreDeterministic(t *testing.T) {
	def := twoQuestionDefinition()
	sec := def.Sections[0]

	store := NewAnswerStore()
	store.SetAnswer(sec.ID, sec.Questions[0].ID, ChoiceAnswer(2))
	store.SetAnswer(sec.ID, sec.Questions[1].ID, ChoiceAnswer(3))
	store.ToggleMarkForReview(sec.ID, sec.Questions[1].ID)

	first := Score(def, store)
	second := Score(def, store)

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("scoring is not deterministic:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestScorePointsDefaultToOne(t *testing.T) {
	def := twoQuestionDefinition()
	// Points left at zero in the fixture; both questions should weigh 1.
	res := Score(def, NewAnswerStore())
	if res.TotalMarks != 2 {
		t.Fatalf("total marks = %d, want 2", res.TotalMarks)
	}
}
