package session

// Phase is the controller's own state for one proctored attempt. Exactly
// one exam and one attempt are bound to a session for its entire life; a
// new exam means a new session.
type Phase string

const (
	PhaseAwaitingAcknowledgement Phase = "awaiting_acknowledgement"
	PhaseProctoringArmed         Phase = "proctoring_armed"
	PhaseAnswering               Phase = "answering"
	PhaseConfirming              Phase = "confirming"
	PhaseSubmitted               Phase = "submitted"
)

// Terminal reports whether no further transitions are possible.
func (p Phase) Terminal() bool {
	return p == PhaseSubmitted
}
