package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/zookocamp/proctor-backend/internal/model"
	"github.com/zookocamp/proctor-backend/internal/proctor"
)

// Gateway finalizes an attempt against the attempt store. The session
// guarantees it is called at most once per session.
type Gateway interface {
	SubmitAttempt(ctx context.Context, examID uuid.UUID, studentID int, answers []model.AttemptAnswer) (*model.AttemptResult, error)
}

// Config assembles one session. Exam and Attempt are bound for the
// session's whole lifetime.
type Config struct {
	Exam      *model.Exam
	Attempt   *model.Attempt
	StudentID int
	Gateway   Gateway
	Monitor   *proctor.Monitor

	// TickInterval defaults to one second.
	TickInterval time.Duration
	// Now may be nil for wall clock.
	Now func() time.Time

	Logger zerolog.Logger

	// OnPhaseChange and OnSubmitted are invoked outside the session lock;
	// either may be nil.
	OnPhaseChange func(Phase)
	OnSubmitted   func(*model.AttemptResult)
}

// Session is the state machine governing one student's proctored attempt
// from rules acknowledgement to submission. All state is explicit and
// per-instance; nothing is shared across sessions.
type Session struct {
	exam    *model.Exam
	attempt *model.Attempt
	student int
	gateway Gateway
	monitor *proctor.Monitor
	now     func() time.Time
	tick    time.Duration
	log     zerolog.Logger

	onPhaseChange func(Phase)
	onSubmitted   func(*model.AttemptResult)

	mu             sync.Mutex
	phase          Phase
	store          *AnswerStore
	timer          *DeadlineTimer
	submitInFlight bool
	submitted      bool
	result         *model.AttemptResult
	closed         bool
}

// New creates a session in AwaitingAcknowledgement. A resumed attempt's
// persisted answers seed the store before any edit is possible; the
// proctoring rules still have to be re-acknowledged, because a new
// session also means the enforced viewing state was torn down.
func New(cfg Config) (*Session, error) {
	s := &Session{
		exam:          cfg.Exam,
		attempt:       cfg.Attempt,
		student:       cfg.StudentID,
		gateway:       cfg.Gateway,
		monitor:       cfg.Monitor,
		now:           cfg.Now,
		tick:          cfg.TickInterval,
		log:           cfg.Logger.With().Str("component", "exam_session").Str("exam_id", cfg.Exam.ID.String()).Int("student_id", cfg.StudentID).Logger(),
		onPhaseChange: cfg.OnPhaseChange,
		onSubmitted:   cfg.OnSubmitted,
		phase:         PhaseAwaitingAcknowledgement,
		store:         NewAnswerStore(cfg.Exam.QuestionIDs()),
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.tick <= 0 {
		s.tick = time.Second
	}
	if len(cfg.Attempt.Answers) > 0 {
		if err := s.store.Seed(cfg.Attempt.Answers); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Attempt returns the attempt bound to this session.
func (s *Session) Attempt() *model.Attempt {
	return s.attempt
}

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Remaining returns the time left until the exam deadline.
func (s *Session) Remaining() time.Duration {
	r := s.exam.Settings.EndTime.Sub(s.now())
	if r < 0 {
		return 0
	}
	return r
}

// ViolationCount returns the violations detected in this session.
func (s *Session) ViolationCount() int {
	if s.monitor == nil {
		return 0
	}
	return s.monitor.Count()
}

// Result returns the graded result once submitted, nil before.
func (s *Session) Result() *model.AttemptResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Acknowledge accepts the proctoring terms. The monitor is armed and the
// deadline timer started against the exam's fixed end time; since the
// exam content is already loaded server-side the session moves straight
// on to Answering.
func (s *Session) Acknowledge() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.phase != PhaseAwaitingAcknowledgement {
		s.mu.Unlock()
		return ErrInvalidTransition
	}
	s.phase = PhaseProctoringArmed
	s.timer = NewDeadlineTimer(s.exam.Settings.EndTime, s.tick, s.now, s.forceSubmit)
	s.mu.Unlock()

	s.emitPhase(PhaseProctoringArmed)
	if s.monitor != nil {
		s.monitor.Arm()
	}

	s.mu.Lock()
	if s.closed || s.phase != PhaseProctoringArmed {
		// Force submit won the race while arming.
		s.mu.Unlock()
		return nil
	}
	s.phase = PhaseAnswering
	timer := s.timer
	s.mu.Unlock()

	s.emitPhase(PhaseAnswering)
	timer.Start()
	return nil
}

// SetAnswer records the student's answer for a question, replacing any
// previous value. Only valid while Answering.
func (s *Session) SetAnswer(questionID string, answer json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseAnswering {
		return ErrNotAnswering
	}
	return s.store.Set(questionID, answer)
}

// Answer returns the working answer for a question.
func (s *Session) Answer(questionID string) (json.RawMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Get(questionID)
}

// AnsweredCount returns how many questions have an explicit answer.
func (s *Session) AnsweredCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Len()
}

// RequestSubmit moves from Answering to Confirming for final review.
func (s *Session) RequestSubmit() error {
	return s.transition(PhaseAnswering, PhaseConfirming)
}

// CancelSubmit returns from Confirming to Answering.
func (s *Session) CancelSubmit() error {
	return s.transition(PhaseConfirming, PhaseAnswering)
}

// ConfirmSubmit finalizes the attempt from Confirming. On gateway failure
// the session stays in Confirming with answers intact so the student can
// retry. If the timer already submitted, the stored result is returned
// and no second submission happens.
func (s *Session) ConfirmSubmit(ctx context.Context) (*model.AttemptResult, error) {
	s.mu.Lock()
	if s.submitted {
		res := s.result
		s.mu.Unlock()
		return res, nil
	}
	if s.phase != PhaseConfirming {
		s.mu.Unlock()
		return nil, ErrInvalidTransition
	}
	s.mu.Unlock()
	return s.submit(ctx)
}

// Close tears the session down without submitting: timer stopped, monitor
// disarmed, enforced viewing state released. Used when the student
// navigates away or the connection drops.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	timer := s.timer
	s.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	if s.monitor != nil {
		s.monitor.Disarm()
	}
}

// forceSubmit is the timer expiry path. It bypasses Confirming and goes
// straight to Submitted; a failure is logged and leaves the session in
// its prior phase for a manual retry.
func (s *Session) forceSubmit() {
	s.mu.Lock()
	if s.submitted || s.closed {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.log.Info().Msg("Deadline reached, forcing submission")
	if _, err := s.submit(context.Background()); err != nil {
		s.log.Error().Err(err).Msg("Forced submission failed")
	}
}

// submit issues the gateway call at most once per session. The in-flight
// flag makes the timer-expiry and manual-confirm paths mutually
// exclusive: whichever comes second observes the guard and no-ops.
func (s *Session) submit(ctx context.Context) (*model.AttemptResult, error) {
	s.mu.Lock()
	if s.submitted {
		res := s.result
		s.mu.Unlock()
		return res, nil
	}
	if s.submitInFlight {
		s.mu.Unlock()
		return nil, ErrSubmitInFlight
	}
	s.submitInFlight = true
	answers := s.store.Snapshot()
	s.mu.Unlock()

	res, err := s.gateway.SubmitAttempt(ctx, s.exam.ID, s.student, answers)

	s.mu.Lock()
	s.submitInFlight = false
	if err != nil {
		// Recoverable: phase unchanged, answers preserved.
		s.mu.Unlock()
		return nil, err
	}
	s.submitted = true
	s.result = res
	s.phase = PhaseSubmitted
	timer := s.timer
	s.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	if s.monitor != nil {
		s.monitor.Disarm()
	}
	s.emitPhase(PhaseSubmitted)
	if s.onSubmitted != nil {
		s.onSubmitted(res)
	}
	s.log.Info().Float64("percentage", res.Percentage).Bool("passed", res.Passed).Msg("Attempt submitted")
	return res, nil
}

func (s *Session) transition(from, to Phase) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.phase.Terminal() {
		s.mu.Unlock()
		return ErrAlreadySubmitted
	}
	if s.phase != from {
		s.mu.Unlock()
		return ErrInvalidTransition
	}
	s.phase = to
	s.mu.Unlock()

	s.emitPhase(to)
	return nil
}

func (s *Session) emitPhase(p Phase) {
	if s.onPhaseChange != nil {
		s.onPhaseChange(p)
	}
}
