package service

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/zookocamp/proctor-backend/internal/config"
	"github.com/zookocamp/proctor-backend/internal/model"
	"github.com/zookocamp/proctor-backend/internal/repository"
)

// ExamService serves exam definitions and their student-facing views.
type ExamService struct {
	examRepo    *repository.ExamRepository
	attemptRepo *repository.AttemptRepository
	rdb         *redis.Client
	log         zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(examRepo *repository.ExamRepository, attemptRepo *repository.AttemptRepository, rdb *redis.Client, log zerolog.Logger) *ExamService {
	return &ExamService{
		examRepo:    examRepo,
		attemptRepo: attemptRepo,
		rdb:         rdb,
		log:         log.With().Str("component", "exam_service").Logger(),
	}
}

// GetExam retrieves a full exam definition, Redis cache first with a
// PostgreSQL fallback that self-heals the cache.
func (s *ExamService) GetExam(ctx context.Context, examID uuid.UUID) (*model.Exam, error) {
	key := config.CacheKey.ExamPayloadKey(examID.String())

	raw, err := s.rdb.Get(ctx, key).Result()
	if err == nil {
		var exam model.Exam
		if jsonErr := json.Unmarshal([]byte(raw), &exam); jsonErr == nil {
			return &exam, nil
		}
		// Corrupt cache entry: fall through to the database.
		s.log.Warn().Str("exam_id", examID.String()).Msg("Discarding corrupt exam cache entry")
	} else if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("exam cache: %w", err)
	}

	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}

	if data, jsonErr := json.Marshal(exam); jsonErr == nil {
		_ = s.rdb.Set(ctx, key, data, 0).Err()
	}
	return exam, nil
}

// PrewarmCache loads all published exams into Redis before the server
// accepts traffic, avoiding lazy-load races under a thundering herd at
// exam start time.
func (s *ExamService) PrewarmCache(ctx context.Context) error {
	exams, err := s.examRepo.ListPublished(ctx)
	if err != nil {
		return fmt.Errorf("list published: %w", err)
	}
	for i := range exams {
		data, err := json.Marshal(&exams[i])
		if err != nil {
			continue
		}
		key := config.CacheKey.ExamPayloadKey(exams[i].ID.String())
		if err := s.rdb.Set(ctx, key, data, 0).Err(); err != nil {
			return fmt.Errorf("prewarm %s: %w", exams[i].ID, err)
		}
	}
	s.log.Info().Int("count", len(exams)).Msg("Exam cache prewarmed")
	return nil
}

// ListForStudent returns published exams overlaid with the student's
// latest attempt result, the way the exam list screen shows them.
func (s *ExamService) ListForStudent(ctx context.Context, studentID int) ([]model.ExamOverview, error) {
	exams, err := s.examRepo.ListPublished(ctx)
	if err != nil {
		return nil, fmt.Errorf("list published: %w", err)
	}

	out := make([]model.ExamOverview, 0, len(exams))
	for i := range exams {
		e := &exams[i]
		ov := model.ExamOverview{
			ID:            e.ID,
			Title:         e.Title,
			Description:   e.Description,
			QuestionCount: len(e.Questions),
			TotalPoints:   e.TotalPoints,
			Settings:      e.Settings,
		}

		attempt, err := s.attemptRepo.GetLatest(ctx, e.ID, studentID)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("latest attempt: %w", err)
		}
		if attempt != nil && attempt.Status != model.AttemptStatusInProgress {
			ov.MyAttempt = FormatResult(e, attempt)
		}

		out = append(out, ov)
	}
	return out, nil
}

// ForStudent builds the sanitized exam payload for one attempt: answer
// keys stripped, question order shuffled per settings. The shuffle is
// seeded from the attempt ID so a reload sees the same order.
func ForStudent(exam *model.Exam, attemptID uuid.UUID) model.ExamForStudent {
	rng := rand.New(rand.NewSource(attemptSeed(attemptID)))

	order := make([]int, len(exam.Questions))
	for i := range order {
		order[i] = i
	}
	if exam.Settings.ShuffleQuestions {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	questions := make([]model.QuestionForStudent, 0, len(exam.Questions))
	for _, idx := range order {
		questions = append(questions, sanitizeQuestion(&exam.Questions[idx], rng))
	}

	return model.ExamForStudent{
		ID:          exam.ID,
		Title:       exam.Title,
		TotalPoints: exam.TotalPoints,
		Settings:    exam.Settings,
		Questions:   questions,
	}
}

// sanitizeQuestion strips the answer key from a question. Pair rights and
// block order are shuffled so the payload never carries the solution.
func sanitizeQuestion(q *model.Question, rng *rand.Rand) model.QuestionForStudent {
	out := model.QuestionForStudent{
		ID:           q.ID,
		Type:         q.Type,
		Prompt:       q.Prompt,
		Points:       q.Points,
		Language:     q.Language,
		CodeTemplate: q.CodeTemplate,
		Hint:         q.Hint,
		Instruction:  q.Instruction,
	}

	switch q.Type {
	case model.QuestionTypeSingleChoice:
		out.Options = q.Options
	case model.QuestionTypeFillBlank:
		out.BlankText = q.BlankText
		out.BlankCount = len(q.BlankAnswers)
	case model.QuestionTypeMatchPairs:
		lefts := make([]string, len(q.Pairs))
		rights := make([]string, len(q.Pairs))
		for i, p := range q.Pairs {
			lefts[i] = p.Left
			rights[i] = p.Right
		}
		rng.Shuffle(len(rights), func(i, j int) { rights[i], rights[j] = rights[j], rights[i] })
		out.PairLefts = lefts
		out.PairRights = rights
	case model.QuestionTypeOrderedBlocks:
		blocks := make([]string, len(q.Blocks))
		copy(blocks, q.Blocks)
		rng.Shuffle(len(blocks), func(i, j int) { blocks[i], blocks[j] = blocks[j], blocks[i] })
		out.Blocks = blocks
	}
	return out
}

// attemptSeed derives a deterministic shuffle seed from an attempt ID.
func attemptSeed(id uuid.UUID) int64 {
	return int64(binary.BigEndian.Uint64(id[:8]))
}
