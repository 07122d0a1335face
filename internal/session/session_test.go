package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/zookocamp/proctor-backend/internal/model"
)

// stubGateway records submissions and can be told to fail.
type stubGateway struct {
	mu      sync.Mutex
	calls   int
	answers []model.AttemptAnswer
	fail    error
	result  *model.AttemptResult
}

func (g *stubGateway) SubmitAttempt(_ context.Context, _ uuid.UUID, _ int, answers []model.AttemptAnswer) (*model.AttemptResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.fail != nil {
		return nil, g.fail
	}
	g.answers = answers
	if g.result != nil {
		return g.result, nil
	}
	return &model.AttemptResult{Status: model.AttemptStatusGraded, Percentage: 80, Passed: true}, nil
}

func (g *stubGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func testExam(end time.Time) *model.Exam {
	return &model.Exam{
		ID:    uuid.New(),
		Title: "Algorithms Midterm",
		Questions: []model.Question{
			{ID: "q1", Type: model.QuestionTypeSingleChoice, Points: 1, CorrectOption: 2},
			{ID: "q2", Type: model.QuestionTypeSingleChoice, Points: 1, CorrectOption: 0},
			{ID: "q3", Type: model.QuestionTypeCodeChallenge, Points: 3},
		},
		TotalPoints: 5,
		Settings:    model.ExamSettings{EndTime: end, PassingScore: 60},
		Status:      model.ExamStatusPublished,
	}
}

func newTestSession(t *testing.T, gw *stubGateway, clock *fakeClock, end time.Time, answers []model.AttemptAnswer) *Session {
	t.Helper()
	exam := testExam(end)
	s, err := New(Config{
		Exam:         exam,
		Attempt:      &model.Attempt{ID: uuid.New(), ExamID: exam.ID, StudentID: 7, Answers: answers},
		StudentID:    7,
		Gateway:      gw,
		TickInterval: 5 * time.Millisecond,
		Now:          clock.Now,
		Logger:       zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestSessionHappyPath(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := newFakeClock(base)
	gw := &stubGateway{}
	s := newTestSession(t, gw, clock, base.Add(time.Hour), nil)
	defer s.Close()

	if s.Phase() != PhaseAwaitingAcknowledgement {
		t.Fatalf("initial phase: %v", s.Phase())
	}

	if err := s.Acknowledge(); err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	if s.Phase() != PhaseAnswering {
		t.Fatalf("after acknowledge: %v, want answering", s.Phase())
	}

	if err := s.SetAnswer("q1", raw(`2`)); err != nil {
		t.Fatalf("SetAnswer: %v", err)
	}

	if err := s.RequestSubmit(); err != nil {
		t.Fatalf("RequestSubmit: %v", err)
	}
	if s.Phase() != PhaseConfirming {
		t.Fatalf("after review request: %v, want confirming", s.Phase())
	}

	res, err := s.ConfirmSubmit(context.Background())
	if err != nil {
		t.Fatalf("ConfirmSubmit: %v", err)
	}
	if !res.Passed {
		t.Error("expected passing result")
	}
	if s.Phase() != PhaseSubmitted {
		t.Fatalf("after confirm: %v, want submitted", s.Phase())
	}
	if gw.callCount() != 1 {
		t.Fatalf("gateway calls: %d, want 1", gw.callCount())
	}
	if len(gw.answers) != 1 || gw.answers[0].QuestionID != "q1" {
		t.Errorf("submitted snapshot: %+v", gw.answers)
	}
}

func TestSessionRejectsInvalidTransitions(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := newFakeClock(base)
	s := newTestSession(t, &stubGateway{}, clock, base.Add(time.Hour), nil)
	defer s.Close()

	// Nothing but Acknowledge is valid before the notice is accepted.
	if err := s.SetAnswer("q1", raw(`1`)); !errors.Is(err, ErrNotAnswering) {
		t.Errorf("SetAnswer before acknowledge: %v", err)
	}
	if err := s.RequestSubmit(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("RequestSubmit before acknowledge: %v", err)
	}
	if err := s.CancelSubmit(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("CancelSubmit before acknowledge: %v", err)
	}
	if _, err := s.ConfirmSubmit(context.Background()); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("ConfirmSubmit before acknowledge: %v", err)
	}

	if err := s.Acknowledge(); err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	if err := s.Acknowledge(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("double Acknowledge: %v", err)
	}
	if _, err := s.ConfirmSubmit(context.Background()); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("ConfirmSubmit while answering: %v", err)
	}
}

func TestSessionCancelReturnsToAnswering(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := newFakeClock(base)
	gw := &stubGateway{}
	s := newTestSession(t, gw, clock, base.Add(time.Hour), nil)
	defer s.Close()

	if err := s.Acknowledge(); err != nil {
		t.Fatal(err)
	}
	if err := s.SetAnswer("q1", raw(`2`)); err != nil {
		t.Fatal(err)
	}
	if err := s.RequestSubmit(); err != nil {
		t.Fatal(err)
	}

	// Answers are frozen while confirming.
	if err := s.SetAnswer("q2", raw(`0`)); !errors.Is(err, ErrNotAnswering) {
		t.Errorf("SetAnswer while confirming: %v", err)
	}

	if err := s.CancelSubmit(); err != nil {
		t.Fatalf("CancelSubmit: %v", err)
	}
	if s.Phase() != PhaseAnswering {
		t.Fatalf("after cancel: %v, want answering", s.Phase())
	}

	// Edits resume, the earlier answer survives.
	if err := s.SetAnswer("q2", raw(`0`)); err != nil {
		t.Fatalf("SetAnswer after cancel: %v", err)
	}
	if got, _ := s.Answer("q1"); string(got) != `2` {
		t.Errorf("q1 answer after cancel: %s", got)
	}
	if gw.callCount() != 0 {
		t.Error("cancel must not submit")
	}
}

func TestSessionConfirmIdempotent(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := newFakeClock(base)
	gw := &stubGateway{}
	s := newTestSession(t, gw, clock, base.Add(time.Hour), nil)
	defer s.Close()

	if err := s.Acknowledge(); err != nil {
		t.Fatal(err)
	}
	if err := s.RequestSubmit(); err != nil {
		t.Fatal(err)
	}

	first, err := s.ConfirmSubmit(context.Background())
	if err != nil {
		t.Fatalf("first confirm: %v", err)
	}
	second, err := s.ConfirmSubmit(context.Background())
	if err != nil {
		t.Fatalf("second confirm: %v", err)
	}
	if first != second {
		t.Error("repeated confirm must return the stored result")
	}
	if gw.callCount() != 1 {
		t.Fatalf("gateway calls: %d, want 1", gw.callCount())
	}
}

func TestSessionSubmitFailureIsRecoverable(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := newFakeClock(base)
	gw := &stubGateway{fail: errors.New("store unavailable")}
	s := newTestSession(t, gw, clock, base.Add(time.Hour), nil)
	defer s.Close()

	if err := s.Acknowledge(); err != nil {
		t.Fatal(err)
	}
	if err := s.SetAnswer("q1", raw(`2`)); err != nil {
		t.Fatal(err)
	}
	if err := s.RequestSubmit(); err != nil {
		t.Fatal(err)
	}

	if _, err := s.ConfirmSubmit(context.Background()); err == nil {
		t.Fatal("expected gateway error")
	}

	// Still confirming, answers intact, retry succeeds.
	if s.Phase() != PhaseConfirming {
		t.Fatalf("after failed submit: %v, want confirming", s.Phase())
	}
	gw.mu.Lock()
	gw.fail = nil
	gw.mu.Unlock()

	if _, err := s.ConfirmSubmit(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(gw.answers) != 1 || gw.answers[0].QuestionID != "q1" {
		t.Errorf("retried snapshot: %+v", gw.answers)
	}
}

func TestSessionDeadlineForcesSubmission(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := newFakeClock(base)
	gw := &stubGateway{}

	var phases []Phase
	var mu sync.Mutex
	exam := testExam(base.Add(50 * time.Millisecond))
	submitted := make(chan struct{})
	s, err := New(Config{
		Exam:         exam,
		Attempt:      &model.Attempt{ID: uuid.New(), ExamID: exam.ID, StudentID: 7},
		StudentID:    7,
		Gateway:      gw,
		TickInterval: 5 * time.Millisecond,
		Now:          clock.Now,
		Logger:       zerolog.Nop(),
		OnPhaseChange: func(p Phase) {
			mu.Lock()
			phases = append(phases, p)
			mu.Unlock()
		},
		OnSubmitted: func(*model.AttemptResult) { close(submitted) },
	})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.Acknowledge(); err != nil {
		t.Fatal(err)
	}
	if err := s.SetAnswer("q1", raw(`2`)); err != nil {
		t.Fatal(err)
	}

	clock.Advance(time.Hour)

	select {
	case <-submitted:
	case <-time.After(2 * time.Second):
		t.Fatal("deadline did not force submission")
	}

	if s.Phase() != PhaseSubmitted {
		t.Fatalf("phase after expiry: %v", s.Phase())
	}
	// The forced path goes straight to Submitted, never through Confirming.
	mu.Lock()
	for _, p := range phases {
		if p == PhaseConfirming {
			t.Error("forced submission passed through confirming")
		}
	}
	mu.Unlock()

	// A late manual confirm settles on the stored result without a second
	// gateway call.
	res, err := s.ConfirmSubmit(context.Background())
	if err != nil {
		t.Fatalf("confirm after forced submit: %v", err)
	}
	if res == nil || gw.callCount() != 1 {
		t.Fatalf("duplicate submission: calls=%d", gw.callCount())
	}
}

func TestSessionResumeSeedsAnswers(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := newFakeClock(base)
	gw := &stubGateway{}
	s := newTestSession(t, gw, clock, base.Add(time.Hour), []model.AttemptAnswer{
		{QuestionID: "q2", Answer: raw(`0`)},
	})
	defer s.Close()

	if got, ok := s.Answer("q2"); !ok || string(got) != `0` {
		t.Fatalf("seeded answer: %s ok=%v", got, ok)
	}
	if s.AnsweredCount() != 1 {
		t.Errorf("AnsweredCount: %d", s.AnsweredCount())
	}
}

func TestSessionClosedRejectsEverything(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := newFakeClock(base)
	gw := &stubGateway{}
	s := newTestSession(t, gw, clock, base.Add(time.Hour), nil)

	s.Close()
	s.Close() // safe to repeat

	if err := s.Acknowledge(); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Acknowledge after close: %v", err)
	}
	if err := s.RequestSubmit(); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("RequestSubmit after close: %v", err)
	}
	if gw.callCount() != 0 {
		t.Error("close must not submit")
	}
}

func TestSessionSubmittedIsTerminal(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := newFakeClock(base)
	gw := &stubGateway{}
	s := newTestSession(t, gw, clock, base.Add(time.Hour), nil)
	defer s.Close()

	if PhaseAnswering.Terminal() || PhaseConfirming.Terminal() {
		t.Fatal("only submitted may be terminal")
	}
	if !PhaseSubmitted.Terminal() {
		t.Fatal("submitted must be terminal")
	}

	if err := s.Acknowledge(); err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	if err := s.RequestSubmit(); err != nil {
		t.Fatalf("RequestSubmit: %v", err)
	}
	if _, err := s.ConfirmSubmit(context.Background()); err != nil {
		t.Fatalf("ConfirmSubmit: %v", err)
	}

	if err := s.RequestSubmit(); !errors.Is(err, ErrAlreadySubmitted) {
		t.Errorf("RequestSubmit after submit: %v, want ErrAlreadySubmitted", err)
	}
	if err := s.CancelSubmit(); !errors.Is(err, ErrAlreadySubmitted) {
		t.Errorf("CancelSubmit after submit: %v, want ErrAlreadySubmitted", err)
	}
}

func TestSessionRemaining(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := newFakeClock(base)
	s := newTestSession(t, &stubGateway{}, clock, base.Add(30*time.Minute), nil)
	defer s.Close()

	if got := s.Remaining(); got != 30*time.Minute {
		t.Errorf("Remaining at start: %v, want 30m", got)
	}

	clock.Advance(20 * time.Minute)
	if got := s.Remaining(); got != 10*time.Minute {
		t.Errorf("Remaining after advance: %v, want 10m", got)
	}

	clock.Advance(time.Hour)
	if got := s.Remaining(); got != 0 {
		t.Errorf("Remaining past deadline: %v, want 0", got)
	}
}
