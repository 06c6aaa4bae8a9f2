package engine

import (
	"testing"

	"github.com/google/uuid"
)

// unevenDefinition: three sections with 2, 1, and 3 questions.
func unevenDefinition() *TestDefinition {
	mk := func(n int) []Question {
		qs := make([]Question, n)
		for i := range qs {
			qs[i] = Question{ID: uuid.New(), Kind: QuestionMultipleChoice, Options: []string{"a", "b"}}
		}
		return qs
	}
	return &TestDefinition{
		ID: uuid.New(),
		Sections: []Section{
			{ID: uuid.New(), Questions: mk(2)},
			{ID: uuid.New(), Questions: mk(1)},
			{ID: uuid.New(), Questions: mk(3)},
		},
	}
}

func assertPos(t *testing.T, c *Cursor, section, question int) {
	t.Helper()
	s, q := c.Position()
	if s != section || q != question {
		t.Fatalf("position = (%d,%d), want (%d,%d)", s, q, section, question)
	}
}

func TestCursorNextCrossesSections(t *testing.T) {
	c := newCursor(unevenDefinition())

	assertPos(t, c, 0, 0)
	c.Next()
	assertPos(t, c, 0, 1)
	c.Next() // into section 1
	assertPos(t, c, 1, 0)
	c.Next() // into section 2
	assertPos(t, c, 2, 0)
	c.Next()
	c.Next()
	assertPos(t, c, 2, 2)

	if !c.IsLastQuestion() {
		t.Fatal("expected last question")
	}

	// Next at the very end is a no-op.
	c.Next()
	assertPos(t, c, 2, 2)
}

func TestCursorPreviousCrossesSections(t *testing.T) {
	c := newCursor(unevenDefinition())
	c.MoveTo(2, 0)

	c.Previous() // back into section 1
	assertPos(t, c, 1, 0)
	c.Previous() // back into section 0, last question
	assertPos(t, c, 0, 1)
	c.Previous()
	assertPos(t, c, 0, 0)

	// Previous at the origin is a no-op.
	c.Previous()
	assertPos(t, c, 0, 0)
}

func TestCursorMoveToIgnoresOutOfRange(t *testing.T) {
	c := newCursor(unevenDefinition())
	c.MoveTo(2, 1)
	assertPos(t, c, 2, 1)

	for _, req := range [][2]int{{-1, 0}, {3, 0}, {0, 2}, {1, 1}, {0, -1}} {
		c.MoveTo(req[0], req[1])
		assertPos(t, c, 2, 1) // unchanged
	}
}

func TestCursorBoundsInvariant(t *testing.T) {
	def := unevenDefinition()
	c := newCursor(def)

	// A long arbitrary walk must never leave the definition's bounds.
	moves := []func(){
		c.Next, c.Next, c.Previous, func() { c.MoveTo(1, 0) },
		c.Previous, c.Next, c.Next, c.Next, c.Next, c.Next, c.Next,
		func() { c.MoveTo(99, 99) }, c.Previous, c.Previous, c.Previous,
		c.Previous, c.Previous, c.Previous,
	}
	for i, mv := range moves {
		mv()
		s, q := c.Position()
		if s < 0 || s >= def.SectionCount() || q < 0 || q >= def.QuestionCount(s) {
			t.Fatalf("move %d left cursor out of bounds at (%d,%d)", i, s, q)
		}
	}
}

func TestCursorEmptyDefinition(t *testing.T) {
	c := newCursor(&TestDefinition{ID: uuid.New()})

	c.Next()
	c.Previous()
	c.MoveTo(0, 0)
	assertPos(t, c, 0, 0)

	if !c.IsLastQuestion() {
		t.Fatal("an empty test is already at its last question")
	}
}
