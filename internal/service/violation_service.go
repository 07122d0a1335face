package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/zookocamp/proctor-backend/internal/config"
	"github.com/zookocamp/proctor-backend/internal/model"
	"github.com/zookocamp/proctor-backend/internal/repository"
)

// ViolationPayload is one violation queued for database persistence.
type ViolationPayload struct {
	ExamID     uuid.UUID           `json:"exam_id"`
	StudentID  int                 `json:"student_id"`
	Type       model.ViolationType `json:"type"`
	Details    string              `json:"details,omitempty"`
	OccurredAt time.Time           `json:"occurred_at"`
}

// ViolationService records proctoring violations. Writes go through a
// Redis queue drained by the persistence worker so reporting never sits
// on a database round trip.
type ViolationService struct {
	violationRepo *repository.ViolationRepository
	rdb           *redis.Client
	log           zerolog.Logger
}

// NewViolationService creates a new ViolationService.
func NewViolationService(violationRepo *repository.ViolationRepository, rdb *redis.Client, log zerolog.Logger) *ViolationService {
	return &ViolationService{
		violationRepo: violationRepo,
		rdb:           rdb,
		log:           log.With().Str("component", "violation_service").Logger(),
	}
}

// Record queues one violation for persistence.
func (s *ViolationService) Record(ctx context.Context, examID uuid.UUID, studentID int, rec model.ViolationRecord) error {
	payload, err := json.Marshal(ViolationPayload{
		ExamID:     examID,
		StudentID:  studentID,
		Type:       rec.Type,
		Details:    rec.Details,
		OccurredAt: rec.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("marshal violation: %w", err)
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistViolationsQueue, payload).Err(); err != nil {
		return fmt.Errorf("queue violation: %w", err)
	}
	return nil
}

// ListForStudent retrieves the persisted violations of one student on one
// exam, for staff review.
func (s *ViolationService) ListForStudent(ctx context.Context, examID uuid.UUID, studentID int) ([]repository.StoredViolation, error) {
	return s.violationRepo.ListByExamAndStudent(ctx, examID, studentID)
}

// BoundReporter is a ViolationService fixed to one exam and student. It
// satisfies the monitor's reporter contract for a single session.
type BoundReporter struct {
	service   *ViolationService
	examID    uuid.UUID
	studentID int
}

// ReporterFor binds the service to one session's identity.
func (s *ViolationService) ReporterFor(examID uuid.UUID, studentID int) *BoundReporter {
	return &BoundReporter{service: s, examID: examID, studentID: studentID}
}

// Report queues the violation under the bound identity.
func (r *BoundReporter) Report(ctx context.Context, rec model.ViolationRecord) error {
	return r.service.Record(ctx, r.examID, r.studentID, rec)
}
