package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zookocamp/proctor-backend/internal/model"
)

// StoredViolation is one durable violation row as served to staff.
type StoredViolation struct {
	ID         int64               `json:"id"`
	ExamID     uuid.UUID           `json:"exam_id"`
	StudentID  int                 `json:"student_id"`
	Type       model.ViolationType `json:"type"`
	Details    string              `json:"details,omitempty"`
	OccurredAt time.Time           `json:"occurred_at"`
}

// ViolationRepository reads the durable violation history. Writes go
// through the violation worker, which batch-inserts from the Redis queue.
type ViolationRepository struct {
	pool *pgxpool.Pool
}

// NewViolationRepository creates a new ViolationRepository.
func NewViolationRepository(pool *pgxpool.Pool) *ViolationRepository {
	return &ViolationRepository{pool: pool}
}

// ListByExamAndStudent retrieves a student's violation history for one
// exam, oldest first.
func (r *ViolationRepository) ListByExamAndStudent(ctx context.Context, examID uuid.UUID, studentID int) ([]StoredViolation, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, student_id, type, details, occurred_at
		 FROM violations
		 WHERE exam_id = $1 AND student_id = $2
		 ORDER BY occurred_at ASC`, examID, studentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredViolation
	for rows.Next() {
		var v StoredViolation
		if err := rows.Scan(&v.ID, &v.ExamID, &v.StudentID, &v.Type, &v.Details, &v.OccurredAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
