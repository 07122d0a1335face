package session

import "errors"

// Sentinel errors for session callers. Handlers map these to API error
// codes; the session itself never panics on a bad call.
var (
	ErrInvalidTransition = errors.New("transition not allowed in current phase")
	ErrNotAnswering      = errors.New("answers can only be edited while answering")
	ErrUnknownQuestion   = errors.New("question is not part of this exam")
	ErrAlreadySeeded     = errors.New("answer store already seeded")
	ErrSeedAfterEdit     = errors.New("cannot seed after answers were edited")
	ErrAlreadySubmitted  = errors.New("attempt already submitted")
	ErrSubmitInFlight    = errors.New("submission already in flight")
	ErrSessionClosed     = errors.New("session is closed")
)
