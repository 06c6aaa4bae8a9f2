package engine

import (
	"testing"

	"github.com/google/uuid"
)

func TestAnswerStoreDefaultState(t *testing.T) {
	store := NewAnswerStore()

	st := store.GetState(uuid.New(), uuid.New())
	if st.Answer != nil || st.MarkedForReview || st.Skipped {
		t.Fatalf("default state = %+v, want zero value", st)
	}
}

func TestAnswerStoreSetAndClear(t *testing.T) {
	store := NewAnswerStore()
	secID, qID := uuid.New(), uuid.New()

	store.SetAnswer(secID, qID, ChoiceAnswer(2))
	st := store.GetState(secID, qID)
	if st.Answer == nil || st.Answer.OptionIndex != 2 {
		t.Fatalf("answer = %+v, want option 2", st.Answer)
	}
	if st.Skipped {
		t.Fatal("answered question must not be skipped")
	}

	// Clearing records a skip.
	store.SetAnswer(secID, qID, nil)
	st = store.GetState(secID, qID)
	if st.Answer != nil || !st.Skipped {
		t.Fatalf("cleared state = %+v, want nil answer + skipped", st)
	}
}

func TestAnswerStoreSetAnswerPreservesReviewFlag(t *testing.T) {
	store := NewAnswerStore()
	secID, qID := uuid.New(), uuid.New()

	store.ToggleMarkForReview(secID, qID)
	store.SetAnswer(secID, qID, ChoiceAnswer(0))

	st := store.GetState(secID, qID)
	if !st.MarkedForReview {
		t.Fatal("SetAnswer must not clear the review flag")
	}
}

func TestAnswerStoreToggleCreatesDefaultEntry(t *testing.T) {
	store := NewAnswerStore()
	secID, qID := uuid.New(), uuid.New()

	store.ToggleMarkForReview(secID, qID)
	st := store.GetState(secID, qID)
	if !st.MarkedForReview || st.Answer != nil || st.Skipped {
		t.Fatalf("state after toggle = %+v", st)
	}

	store.ToggleMarkForReview(secID, qID)
	if store.GetState(secID, qID).MarkedForReview {
		t.Fatal("second toggle must clear the flag")
	}
}

func TestAnswerStoreCounts(t *testing.T) {
	store := NewAnswerStore()
	secID := uuid.New()
	q1, q2, q3 := uuid.New(), uuid.New(), uuid.New()

	store.SetAnswer(secID, q1, ChoiceAnswer(0))
	store.SetAnswer(secID, q2, TextAnswer("channels"))
	store.ToggleMarkForReview(secID, q2)
	store.ToggleMarkForReview(secID, q3)

	if n := store.CountAnswered(); n != 2 {
		t.Fatalf("answered = %d, want 2", n)
	}
	if n := store.CountMarkedForReview(); n != 2 {
		t.Fatalf("marked = %d, want 2", n)
	}

	store.SetAnswer(secID, q1, nil)
	if n := store.CountAnswered(); n != 1 {
		t.Fatalf("answered after clear = %d, want 1", n)
	}
}
