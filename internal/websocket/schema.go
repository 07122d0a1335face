package websocket

import "encoding/json"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	// ActionAcknowledge confirms the integrity notice and arms proctoring.
	ActionAcknowledge Action = "acknowledge"
	// ActionSignal forwards one raw platform signal for classification.
	ActionSignal Action = "signal"
	// ActionAnswer records one answer edit.
	ActionAnswer Action = "answer"
	// ActionReview asks to move from answering to the confirmation step.
	ActionReview Action = "review"
	// ActionConfirm finalizes the submission.
	ActionConfirm Action = "confirm"
	// ActionCancel returns from the confirmation step to answering.
	ActionCancel Action = "cancel"
	ActionPing   Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// SignalRequest carries one raw platform signal from the browser.
type SignalRequest struct {
	Action  Action `json:"action"`
	Kind    string `json:"kind"`
	Details string `json:"details,omitempty"`
}

// AnswerRequest records one answer edit. Answer is the raw JSON value
// whose shape depends on the question type.
type AnswerRequest struct {
	Action     Action          `json:"action"`
	QuestionID string          `json:"question_id"`
	Answer     json.RawMessage `json:"answer"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	// EventPhase announces every phase transition, including the initial one.
	EventPhase Event = "phase"
	// EventViolation reports a classified violation back to the reporting client.
	EventViolation Event = "violation"
	// EventSubmitted delivers the graded result after a successful submit.
	EventSubmitted Event = "submitted"
	// EventEnforceView asks the client to re-enter the enforced fullscreen view.
	EventEnforceView Event = "enforce_view"
	EventError       Event = "error"
	EventPong        Event = "pong"
)

// PhaseEvent announces a phase transition with the remaining time.
type PhaseEvent struct {
	Event            Event  `json:"event"`
	Phase            string `json:"phase"`
	RemainingSeconds int64  `json:"remaining_seconds"`
}

// ViolationEvent reports a classified violation. Suppress tells the
// client to cancel the browser default for the triggering signal; Count
// is the running total for this proctoring cycle.
type ViolationEvent struct {
	Event    Event  `json:"event"`
	Type     string `json:"type"`
	Count    int    `json:"count"`
	Suppress bool   `json:"suppress"`
}

// SubmittedEvent delivers the graded result. Auto indicates the deadline
// submitted on the student's behalf.
type SubmittedEvent struct {
	Event             Event   `json:"event"`
	AttemptID         string  `json:"attempt_id"`
	Status            string  `json:"status"`
	TotalScore        float64 `json:"total_score"`
	Percentage        float64 `json:"percentage"`
	Passed            bool    `json:"passed"`
	NeedsManualReview bool    `json:"needs_manual_review"`
	Auto              bool    `json:"auto"`
}

// EnforceViewEvent asks the client to request the enforced view again.
type EnforceViewEvent struct {
	Event Event `json:"event"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
