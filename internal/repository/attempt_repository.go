package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zookocamp/proctor-backend/internal/model"
)

// AttemptSummary is an attempt joined with its student for staff review.
type AttemptSummary struct {
	AttemptID         uuid.UUID           `json:"attempt_id"`
	StudentID         int                 `json:"student_id"`
	StudentName       string              `json:"student_name"`
	StudentEmail      string              `json:"student_email"`
	Status            model.AttemptStatus `json:"status"`
	TotalScore        *float64            `json:"total_score"`
	Percentage        *float64            `json:"percentage"`
	NeedsManualReview bool                `json:"needs_manual_review"`
	ViolationCount    int                 `json:"violation_count"`
	StartedAt         time.Time           `json:"started_at"`
	SubmittedAt       *time.Time          `json:"submitted_at"`
}

// AttemptRepository handles attempt data access. Working answers live in
// attempt_answers, one row per explicitly answered question, upserted by
// the autosave worker and replaced with the final snapshot at submit.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// GetOpen retrieves the student's in-progress attempt for an exam, with
// its persisted answers. Returns pgx.ErrNoRows if none exists.
func (r *AttemptRepository) GetOpen(ctx context.Context, examID uuid.UUID, studentID int) (*model.Attempt, error) {
	a := &model.Attempt{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, exam_id, student_id, status, started_at, submitted_at, total_score, percentage, needs_manual_review
		 FROM attempts
		 WHERE exam_id = $1 AND student_id = $2 AND status = $3`,
		examID, studentID, model.AttemptStatusInProgress,
	).Scan(&a.ID, &a.ExamID, &a.StudentID, &a.Status, &a.StartedAt, &a.SubmittedAt, &a.TotalScore, &a.Percentage, &a.NeedsManualReview)
	if err != nil {
		return nil, err
	}

	answers, err := r.GetAnswers(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	a.Answers = answers
	return a, nil
}

// GetLatest retrieves the student's most recent attempt for an exam in
// any status, without answers.
func (r *AttemptRepository) GetLatest(ctx context.Context, examID uuid.UUID, studentID int) (*model.Attempt, error) {
	a := &model.Attempt{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, exam_id, student_id, status, started_at, submitted_at, total_score, percentage, needs_manual_review
		 FROM attempts
		 WHERE exam_id = $1 AND student_id = $2
		 ORDER BY started_at DESC
		 LIMIT 1`, examID, studentID,
	).Scan(&a.ID, &a.ExamID, &a.StudentID, &a.Status, &a.StartedAt, &a.SubmittedAt, &a.TotalScore, &a.Percentage, &a.NeedsManualReview)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Create inserts a new in-progress attempt. The partial unique index on
// (exam_id, student_id) for in-progress rows makes concurrent starts
// collapse to one attempt; the loser gets pgx.ErrNoRows.
func (r *AttemptRepository) Create(ctx context.Context, a *model.Attempt) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO attempts (exam_id, student_id, status)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (exam_id, student_id) WHERE status = 'in_progress' DO NOTHING
		 RETURNING id, started_at`,
		a.ExamID, a.StudentID, model.AttemptStatusInProgress,
	).Scan(&a.ID, &a.StartedAt)
}

// CountFinished counts the student's submitted or graded attempts for an
// exam, for max-attempts enforcement.
func (r *AttemptRepository) CountFinished(ctx context.Context, examID uuid.UUID, studentID int) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM attempts
		 WHERE exam_id = $1 AND student_id = $2 AND status <> $3`,
		examID, studentID, model.AttemptStatusInProgress,
	).Scan(&n)
	return n, err
}

// GetAnswers loads the persisted working answers of an attempt.
func (r *AttemptRepository) GetAnswers(ctx context.Context, attemptID uuid.UUID) ([]model.AttemptAnswer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT question_id, answer FROM attempt_answers
		 WHERE attempt_id = $1
		 ORDER BY question_id`, attemptID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []model.AttemptAnswer
	for rows.Next() {
		var a model.AttemptAnswer
		var raw []byte
		if err := rows.Scan(&a.QuestionID, &raw); err != nil {
			return nil, err
		}
		a.Answer = json.RawMessage(raw)
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// Finalize stores the submission snapshot and grading outcome in one
// transaction. The snapshot replaces whatever the autosave pipeline had
// persisted so the graded answers are exactly what was submitted.
func (r *AttemptRepository) Finalize(ctx context.Context, attemptID uuid.UUID, answers []model.AttemptAnswer, status model.AttemptStatus, score, percentage float64, needsReview bool) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM attempt_answers WHERE attempt_id = $1`, attemptID); err != nil {
		return err
	}
	for _, a := range answers {
		if _, err := tx.Exec(ctx,
			`INSERT INTO attempt_answers (attempt_id, question_id, answer)
			 VALUES ($1, $2, $3::jsonb)`,
			attemptID, a.QuestionID, []byte(a.Answer)); err != nil {
			return err
		}
	}

	ct, err := tx.Exec(ctx,
		`UPDATE attempts
		 SET status = $1, total_score = $2, percentage = $3, needs_manual_review = $4, submitted_at = NOW()
		 WHERE id = $5 AND status = $6`,
		status, score, percentage, needsReview, attemptID, model.AttemptStatusInProgress)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	return tx.Commit(ctx)
}

// ListByExam retrieves all attempts for an exam with student identity and
// violation counts, newest first.
func (r *AttemptRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]AttemptSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.id, a.student_id, u.name, u.email,
		        a.status, a.total_score, a.percentage, a.needs_manual_review,
		        (SELECT COUNT(*) FROM violations v WHERE v.exam_id = a.exam_id AND v.student_id = a.student_id),
		        a.started_at, a.submitted_at
		 FROM attempts a
		 JOIN users u ON a.student_id = u.id
		 WHERE a.exam_id = $1
		 ORDER BY a.started_at DESC`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AttemptSummary
	for rows.Next() {
		var s AttemptSummary
		if err := rows.Scan(
			&s.AttemptID, &s.StudentID, &s.StudentName, &s.StudentEmail,
			&s.Status, &s.TotalScore, &s.Percentage, &s.NeedsManualReview,
			&s.ViolationCount, &s.StartedAt, &s.SubmittedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
