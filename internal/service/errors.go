package service

import "errors"

// Domain errors surfaced to handlers for API error code mapping.
var (
	ErrExamNotFound       = errors.New("exam not found")
	ErrExamNotOpen        = errors.New("exam window has not opened yet")
	ErrExamClosed         = errors.New("exam window has closed")
	ErrMaxAttemptsReached = errors.New("maximum attempts reached")
	ErrNoOpenAttempt      = errors.New("no open attempt for this exam")
	ErrAttemptFinished    = errors.New("attempt is already finished")
	ErrResultUnavailable  = errors.New("no result available for this exam")
)
