package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamStatus enumerates the publication states of an exam.
type ExamStatus string

const (
	ExamStatusDraft     ExamStatus = "DRAFT"
	ExamStatusPublished ExamStatus = "PUBLISHED"
	ExamStatusArchived  ExamStatus = "ARCHIVED"
)

// ExamSettings is the scheduling and grading policy of an exam. EndTime is
// the absolute submission deadline for every attempt; remaining time is
// always derived from it, never from a stored duration.
type ExamSettings struct {
	StartTime        time.Time `json:"start_time"`
	EndTime          time.Time `json:"end_time"`
	ShuffleQuestions bool      `json:"shuffle_questions"`
	ShowResults      bool      `json:"show_results"`
	MaxAttempts      int       `json:"max_attempts"`
	PassingScore     float64   `json:"passing_score"`
}

// Exam is an immutable exam definition. Questions and settings never change
// while attempts are open against it.
type Exam struct {
	ID          uuid.UUID    `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Questions   []Question   `json:"questions"`
	TotalPoints float64      `json:"total_points"`
	Settings    ExamSettings `json:"settings"`
	Status      ExamStatus   `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// QuestionIDs returns the identifiers of all questions in declared order.
func (e *Exam) QuestionIDs() []string {
	ids := make([]string, len(e.Questions))
	for i := range e.Questions {
		ids[i] = e.Questions[i].ID
	}
	return ids
}

// ExamForStudent is the exam payload sent to a student taking the exam.
// Answer keys are stripped; question order may be shuffled per settings.
type ExamForStudent struct {
	ID          uuid.UUID            `json:"id"`
	Title       string               `json:"title"`
	TotalPoints float64              `json:"total_points"`
	Settings    ExamSettings         `json:"settings"`
	Questions   []QuestionForStudent `json:"questions"`
}

// ExamOverview is an exam as listed for a student outside an active
// session, overlaid with their attempt state if one exists.
type ExamOverview struct {
	ID            uuid.UUID      `json:"id"`
	Title         string         `json:"title"`
	Description   string         `json:"description,omitempty"`
	QuestionCount int            `json:"question_count"`
	TotalPoints   float64        `json:"total_points"`
	Settings      ExamSettings   `json:"settings"`
	MyAttempt     *AttemptResult `json:"my_attempt,omitempty"`
}
