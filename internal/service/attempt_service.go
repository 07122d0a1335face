package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/zookocamp/proctor-backend/internal/config"
	"github.com/zookocamp/proctor-backend/internal/model"
	"github.com/zookocamp/proctor-backend/internal/repository"
)

// AttemptService owns the attempt lifecycle: starting or resuming,
// autosaving working answers through Redis, grading and finalizing at
// submit, and presenting results.
type AttemptService struct {
	examService *ExamService
	attemptRepo *repository.AttemptRepository
	rdb         *redis.Client
	log         zerolog.Logger
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(examService *ExamService, attemptRepo *repository.AttemptRepository, rdb *redis.Client, log zerolog.Logger) *AttemptService {
	return &AttemptService{
		examService: examService,
		attemptRepo: attemptRepo,
		rdb:         rdb,
		log:         log.With().Str("component", "attempt_service").Logger(),
	}
}

// Start opens a new attempt or resumes the student's in-progress one.
// The exam must be inside its window and the student under the attempt
// limit. Resumed attempts carry their previously saved answers.
func (s *AttemptService) Start(ctx context.Context, examID uuid.UUID, studentID int) (*model.Exam, *model.Attempt, error) {
	exam, err := s.examService.GetExam(ctx, examID)
	if err != nil {
		return nil, nil, err
	}
	if exam.Status != model.ExamStatusPublished {
		return nil, nil, ErrExamNotFound
	}

	now := time.Now()
	if now.Before(exam.Settings.StartTime) {
		return nil, nil, ErrExamNotOpen
	}
	if !now.Before(exam.Settings.EndTime) {
		return nil, nil, ErrExamClosed
	}

	// Resume before counting: an open attempt never burns a new slot.
	attempt, err := s.attemptRepo.GetOpen(ctx, examID, studentID)
	if err == nil {
		s.overlayCachedAnswers(ctx, attempt)
		return exam, attempt, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, fmt.Errorf("get open attempt: %w", err)
	}

	if exam.Settings.MaxAttempts > 0 {
		finished, err := s.attemptRepo.CountFinished(ctx, examID, studentID)
		if err != nil {
			return nil, nil, fmt.Errorf("count attempts: %w", err)
		}
		if finished >= exam.Settings.MaxAttempts {
			return nil, nil, ErrMaxAttemptsReached
		}
	}

	attempt = &model.Attempt{
		ExamID:    examID,
		StudentID: studentID,
		Status:    model.AttemptStatusInProgress,
	}
	if err := s.attemptRepo.Create(ctx, attempt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Lost a concurrent start: the other request's row wins.
			attempt, err = s.attemptRepo.GetOpen(ctx, examID, studentID)
			if err != nil {
				return nil, nil, fmt.Errorf("resume after conflict: %w", err)
			}
			s.overlayCachedAnswers(ctx, attempt)
			return exam, attempt, nil
		}
		return nil, nil, fmt.Errorf("create attempt: %w", err)
	}
	return exam, attempt, nil
}

// GetOpen resumes the student's in-progress attempt, or returns
// ErrNoOpenAttempt.
func (s *AttemptService) GetOpen(ctx context.Context, examID uuid.UUID, studentID int) (*model.Attempt, error) {
	attempt, err := s.attemptRepo.GetOpen(ctx, examID, studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoOpenAttempt
		}
		return nil, fmt.Errorf("get open attempt: %w", err)
	}
	s.overlayCachedAnswers(ctx, attempt)
	return attempt, nil
}

// overlayCachedAnswers merges the Redis answers mirror over the attempt's
// persisted rows. The mirror holds the freshest copy: SaveAnswer writes it
// synchronously while the autosave worker drains the same edit to Postgres
// behind it, so a reload between the two must read the mirror or lose the
// edit. A mirror read failure falls back to the persisted rows alone.
func (s *AttemptService) overlayCachedAnswers(ctx context.Context, attempt *model.Attempt) {
	key := config.CacheKey.StudentAnswersKey(attempt.ExamID.String(), attempt.StudentID)
	cached, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		s.log.Warn().Err(err).Str("attempt_id", attempt.ID.String()).Msg("Failed to read answers mirror")
		return
	}
	attempt.Answers = mergeCachedAnswers(attempt.Answers, cached)
}

// mergeCachedAnswers overlays mirror entries onto persisted answers:
// replacing values the worker already landed, appending edits it has not.
func mergeCachedAnswers(persisted []model.AttemptAnswer, cached map[string]string) []model.AttemptAnswer {
	if len(cached) == 0 {
		return persisted
	}
	merged := make([]model.AttemptAnswer, len(persisted), len(persisted)+len(cached))
	copy(merged, persisted)
	index := make(map[string]int, len(merged))
	for i := range merged {
		index[merged[i].QuestionID] = i
	}
	for questionID, raw := range cached {
		if i, ok := index[questionID]; ok {
			merged[i].Answer = json.RawMessage(raw)
			continue
		}
		merged = append(merged, model.AttemptAnswer{
			QuestionID: questionID,
			Answer:     json.RawMessage(raw),
		})
	}
	return merged
}

// autosavePayload is one answer edit queued for database persistence.
type autosavePayload struct {
	AttemptID  uuid.UUID       `json:"attempt_id"`
	QuestionID string          `json:"question_id"`
	Answer     json.RawMessage `json:"answer"`
}

// SaveAnswer mirrors one answer edit into Redis and queues it for the
// autosave worker. Losing an edit here is recoverable, the submission
// snapshot is still authoritative, so failures are logged, not returned.
func (s *AttemptService) SaveAnswer(ctx context.Context, attempt *model.Attempt, questionID string, answer json.RawMessage) {
	key := config.CacheKey.StudentAnswersKey(attempt.ExamID.String(), attempt.StudentID)
	if err := s.rdb.HSet(ctx, key, questionID, []byte(answer)).Err(); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", attempt.ID.String()).Msg("Failed to mirror answer to cache")
	}

	payload, err := json.Marshal(autosavePayload{
		AttemptID:  attempt.ID,
		QuestionID: questionID,
		Answer:     answer,
	})
	if err != nil {
		return
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, payload).Err(); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", attempt.ID.String()).Msg("Failed to queue answer for persistence")
	}
}

// SubmitAttempt grades the answer snapshot and finalizes the attempt. It
// is the durable half of session submission; the in-memory session
// guarantees it is called at most once per session, and the status guard
// in Finalize makes a duplicate across sessions return ErrAttemptFinished.
func (s *AttemptService) SubmitAttempt(ctx context.Context, examID uuid.UUID, studentID int, answers []model.AttemptAnswer) (*model.AttemptResult, error) {
	exam, err := s.examService.GetExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	attempt, err := s.attemptRepo.GetOpen(ctx, examID, studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptFinished
		}
		return nil, fmt.Errorf("get open attempt: %w", err)
	}

	grade := Grade(exam, answers)
	status := model.AttemptStatusGraded
	if grade.NeedsManualReview {
		status = model.AttemptStatusSubmitted
	}

	err = s.attemptRepo.Finalize(ctx, attempt.ID, answers, status, grade.TotalScore, grade.Percentage, grade.NeedsManualReview)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptFinished
		}
		return nil, fmt.Errorf("finalize attempt: %w", err)
	}

	// The working mirror is finished with.
	_ = s.rdb.Del(ctx, config.CacheKey.StudentAnswersKey(examID.String(), studentID)).Err()

	s.log.Info().
		Str("attempt_id", attempt.ID.String()).
		Int("student_id", studentID).
		Float64("score", grade.TotalScore).
		Bool("needs_review", grade.NeedsManualReview).
		Msg("Attempt finalized")

	return &model.AttemptResult{
		AttemptID:         attempt.ID,
		Status:            status,
		TotalScore:        grade.TotalScore,
		Percentage:        grade.Percentage,
		Passed:            grade.Percentage >= exam.Settings.PassingScore,
		NeedsManualReview: grade.NeedsManualReview,
	}, nil
}

// ListByExam returns all attempts on an exam for staff review.
func (s *AttemptService) ListByExam(ctx context.Context, examID uuid.UUID) ([]repository.AttemptSummary, error) {
	return s.attemptRepo.ListByExam(ctx, examID)
}

// Result returns the graded outcome of the student's latest finished
// attempt, honoring the exam's show_results setting.
func (s *AttemptService) Result(ctx context.Context, examID uuid.UUID, studentID int) (*model.AttemptResult, error) {
	exam, err := s.examService.GetExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if !exam.Settings.ShowResults {
		return nil, ErrResultUnavailable
	}

	attempt, err := s.attemptRepo.GetLatest(ctx, examID, studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrResultUnavailable
		}
		return nil, fmt.Errorf("latest attempt: %w", err)
	}
	if attempt.Status == model.AttemptStatusInProgress {
		return nil, ErrResultUnavailable
	}

	return FormatResult(exam, attempt), nil
}

// FormatResult shapes a finished attempt as a result, deriving the pass
// flag from the exam's passing score.
func FormatResult(exam *model.Exam, attempt *model.Attempt) *model.AttemptResult {
	res := &model.AttemptResult{
		AttemptID:         attempt.ID,
		Status:            attempt.Status,
		NeedsManualReview: attempt.NeedsManualReview,
	}
	if attempt.TotalScore != nil {
		res.TotalScore = *attempt.TotalScore
	}
	if attempt.Percentage != nil {
		res.Percentage = *attempt.Percentage
	}
	res.Passed = res.Percentage >= exam.Settings.PassingScore
	return res
}
