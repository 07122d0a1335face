package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates the lifecycle states of an attempt.
type AttemptStatus string

const (
	AttemptStatusInProgress AttemptStatus = "in_progress"
	AttemptStatusSubmitted  AttemptStatus = "submitted"
	AttemptStatusGraded     AttemptStatus = "graded"
)

// AttemptAnswer is one explicitly answered question. Answer is the raw
// JSON value whose shape depends on the question type.
type AttemptAnswer struct {
	QuestionID string          `json:"question_id"`
	Answer     json.RawMessage `json:"answer"`
}

// Attempt is one student's instance of taking one exam. At most one open
// attempt exists per exam-student pair; the server is the durable owner,
// the session holds an in-memory working copy until submit.
type Attempt struct {
	ID                uuid.UUID       `json:"id"`
	ExamID            uuid.UUID       `json:"exam_id"`
	StudentID         int             `json:"student_id"`
	Status            AttemptStatus   `json:"status"`
	Answers           []AttemptAnswer `json:"answers"`
	StartedAt         time.Time       `json:"started_at"`
	SubmittedAt       *time.Time      `json:"submitted_at,omitempty"`
	TotalScore        *float64        `json:"total_score,omitempty"`
	Percentage        *float64        `json:"percentage,omitempty"`
	NeedsManualReview bool            `json:"needs_manual_review"`
}

// AttemptResult is the server-graded outcome of a submitted attempt.
// Passed is derived from the exam's passing score at formatting time.
type AttemptResult struct {
	AttemptID         uuid.UUID     `json:"attempt_id"`
	Status            AttemptStatus `json:"status"`
	TotalScore        float64       `json:"total_score"`
	Percentage        float64       `json:"percentage"`
	Passed            bool          `json:"passed"`
	NeedsManualReview bool          `json:"needs_manual_review"`
}

// StartAttemptResponse is returned when a student starts or resumes an
// attempt: the sanitized exam plus the attempt working state.
type StartAttemptResponse struct {
	Exam    ExamForStudent `json:"exam"`
	Attempt Attempt        `json:"attempt"`
}

// SubmitAttemptRequest is the payload finalizing an attempt over REST.
type SubmitAttemptRequest struct {
	Answers []AttemptAnswer `json:"answers" binding:"required,dive"`
}
