package engine

// Cursor tracks the candidate's position inside a TestDefinition. Every
// mutation keeps the indices inside the definition's bounds; invalid requests
// are ignored rather than rejected, since they can only come from a bounded
// question palette.
type Cursor struct {
	def      *TestDefinition
	section  int
	question int
}

func newCursor(def *TestDefinition) *Cursor {
	return &Cursor{def: def}
}

// Position returns the current (section, question) indices.
func (c *Cursor) Position() (int, int) {
	return c.section, c.question
}

// Reset moves the cursor back to the first question of the first section.
func (c *Cursor) Reset() {
	c.section, c.question = 0, 0
}

// Next advances to the following question, crossing into the next section
// when the current one is exhausted. At the last question it does nothing;
// callers detect that via IsLastQuestion and route to submission instead.
func (c *Cursor) Next() {
	if c.question < c.def.QuestionCount(c.section)-1 {
		c.question++
		return
	}
	if c.section < c.def.SectionCount()-1 {
		c.section++
		c.question = 0
	}
}

// Previous moves back one question, crossing section boundaries into the
// last question of the previous section. At (0, 0) it does nothing.
func (c *Cursor) Previous() {
	if c.question > 0 {
		c.question--
		return
	}
	if c.section > 0 {
		c.section--
		if n := c.def.QuestionCount(c.section); n > 0 {
			c.question = n - 1
		} else {
			c.question = 0
		}
	}
}

// MoveTo jumps to an absolute position. Out-of-range requests are silently
// ignored.
func (c *Cursor) MoveTo(section, question int) {
	if section < 0 || section >= c.def.SectionCount() {
		return
	}
	if question < 0 || question >= c.def.QuestionCount(section) {
		return
	}
	c.section = section
	c.question = question
}

// IsLastQuestion reports whether the cursor sits on the final question of the
// final section. An empty definition is treated as already at the end.
func (c *Cursor) IsLastQuestion() bool {
	if c.def.SectionCount() == 0 {
		return true
	}
	return c.section == c.def.SectionCount()-1 &&
		c.question >= c.def.QuestionCount(c.section)-1
}
