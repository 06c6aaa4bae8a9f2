package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionStart     Action = "start"
	ActionAnswer    Action = "answer"
	ActionClear     Action = "clear"
	ActionMark      Action = "mark"
	ActionNext      Action = "next"
	ActionPrevious  Action = "previous"
	ActionGoto      Action = "goto"
	ActionFocusLost Action = "focus_lost"
	ActionSubmit    Action = "submit"
	ActionPing      Action = "ping"
)

// AnswerKind mirrors the two answer shapes for the answer action.
const (
	AnswerKindChoice = "choice"
	AnswerKindText   = "text"
)

// ClientMessage is the single request shape. Which fields matter depends
// on Action; unused fields are left at their zero values.
type ClientMessage struct {
	Action   Action `json:"action"`
	Section  int    `json:"section"`
	Question int    `json:"question"`
	Kind     string `json:"kind,omitempty"`
	Option   int    `json:"option"`
	Value    string `json:"value,omitempty"`
	Force    bool   `json:"force,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventStarted        Event = "started"
	EventState          Event = "state"
	EventSaved          Event = "saved"
	EventWarning        Event = "warning"
	EventReviewRequired Event = "review_required"
	EventSubmitted      Event = "submitted"
	EventAutoSubmitted  Event = "auto_submitted"
	EventError          Event = "error"
	EventPong           Event = "pong"
)

// SessionState is the snapshot sent after every mutating action.
type SessionState struct {
	Event            Event  `json:"event"`
	Stage            string `json:"stage"`
	Section          int    `json:"section"`
	Question         int    `json:"question"`
	IsLast           bool   `json:"is_last"`
	RemainingSeconds int    `json:"remaining_seconds"`
	AnsweredCount    int    `json:"answered_count"`
	MarkedCount      int    `json:"marked_count"`
	ViolationCount   int    `json:"violation_count"`
}

// SavedResponse acknowledges an answer, clear, or mark action.
type SavedResponse struct {
	Event    Event `json:"event"`
	Section  int   `json:"section"`
	Question int   `json:"question"`
	Marked   bool  `json:"marked,omitempty"`
}

// WarningResponse reports a focus-loss violation below the limit.
type WarningResponse struct {
	Event     Event `json:"event"`
	Count     int   `json:"count"`
	Remaining int   `json:"remaining"`
}

// UnansweredRef points at a question that still needs attention.
type UnansweredRef struct {
	Section  int `json:"section"`
	Question int `json:"question"`
}

// ReviewRequiredResponse is sent when a non-forced submit finds unanswered questions.
type ReviewRequiredResponse struct {
	Event      Event           `json:"event"`
	Unanswered []UnansweredRef `json:"unanswered"`
}

// ResultSummary is the outcome delivered on submitted and auto_submitted events.
type ResultSummary struct {
	Score            int  `json:"score"`
	TotalMarks       int  `json:"total_marks"`
	Percentage       int  `json:"percentage"`
	CorrectAnswers   int  `json:"correct_answers"`
	IncorrectAnswers int  `json:"incorrect_answers"`
	Passed           bool `json:"passed"`
	TimeSpentSeconds int  `json:"time_spent_seconds"`
	ViolationCount   int  `json:"violation_count"`
}

// SubmittedResponse finishes a session. Trigger is "candidate", "timer_expiry",
// or "violation_limit".
type SubmittedResponse struct {
	Event   Event         `json:"event"`
	Trigger string        `json:"trigger"`
	Result  ResultSummary `json:"result"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
