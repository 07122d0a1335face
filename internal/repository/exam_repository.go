package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zookocamp/proctor-backend/internal/model"
)

// ExamRepository handles exam definition data access. Questions and
// settings live as jsonb documents: the definition is immutable external
// content from the server's point of view and is only ever read whole.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

// GetByID retrieves a full exam definition including questions.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	e := &model.Exam{}
	var questions, settings []byte

	err := r.pool.QueryRow(ctx,
		`SELECT id, title, description, questions, total_points, settings, status, created_at, updated_at
		 FROM exams
		 WHERE id = $1`, id,
	).Scan(&e.ID, &e.Title, &e.Description, &questions, &e.TotalPoints, &settings, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(questions, &e.Questions); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	if err := json.Unmarshal(settings, &e.Settings); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	return e, nil
}

// ListPublished retrieves all published exams, newest window first.
func (r *ExamRepository) ListPublished(ctx context.Context) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, description, questions, total_points, settings, status, created_at, updated_at
		 FROM exams
		 WHERE status = $1
		 ORDER BY settings->>'start_time' DESC`, model.ExamStatusPublished,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		var e model.Exam
		var questions, settings []byte
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, &questions, &e.TotalPoints, &settings, &e.Status, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(questions, &e.Questions); err != nil {
			return nil, fmt.Errorf("decode questions: %w", err)
		}
		if err := json.Unmarshal(settings, &e.Settings); err != nil {
			return nil, fmt.Errorf("decode settings: %w", err)
		}
		exams = append(exams, e)
	}
	return exams, rows.Err()
}
