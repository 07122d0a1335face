package session

import (
	"encoding/json"

	"github.com/zookocamp/proctor-backend/internal/model"
)

// AnswerStore holds the working answer for each question of one attempt.
// Edits are last-write-wins per question; questions outside the exam
// definition are rejected so the store can never hold a stray entry.
type AnswerStore struct {
	order  []string
	known  map[string]struct{}
	values map[string]json.RawMessage
	seeded bool
	edited bool
}

// NewAnswerStore creates an empty store over the exam's question set.
// questionIDs fixes snapshot order; it is the exam's declared order, not
// the (possibly shuffled) display order.
func NewAnswerStore(questionIDs []string) *AnswerStore {
	known := make(map[string]struct{}, len(questionIDs))
	for _, id := range questionIDs {
		known[id] = struct{}{}
	}
	return &AnswerStore{
		order:  questionIDs,
		known:  known,
		values: make(map[string]json.RawMessage),
	}
}

// Seed bulk-loads answers from a resumed attempt. It is valid exactly
// once, before any edit; answers for questions no longer in the exam are
// dropped rather than stored.
func (s *AnswerStore) Seed(initial []model.AttemptAnswer) error {
	if s.seeded {
		return ErrAlreadySeeded
	}
	if s.edited {
		return ErrSeedAfterEdit
	}
	s.seeded = true
	for _, a := range initial {
		if _, ok := s.known[a.QuestionID]; !ok {
			continue
		}
		s.values[a.QuestionID] = a.Answer
	}
	return nil
}

// Set replaces the stored answer for a question.
func (s *AnswerStore) Set(questionID string, answer json.RawMessage) error {
	if _, ok := s.known[questionID]; !ok {
		return ErrUnknownQuestion
	}
	s.edited = true
	s.values[questionID] = answer
	return nil
}

// Get returns the current answer for a question, or ok=false if it has
// not been explicitly answered.
func (s *AnswerStore) Get(questionID string) (json.RawMessage, bool) {
	v, ok := s.values[questionID]
	return v, ok
}

// Len returns how many questions have an explicit answer.
func (s *AnswerStore) Len() int {
	return len(s.values)
}

// Snapshot produces the submission payload: only explicitly answered
// questions, in the exam's declared question order regardless of the
// order the student answered in. Unanswered questions are omitted, not
// sent as null.
func (s *AnswerStore) Snapshot() []model.AttemptAnswer {
	out := make([]model.AttemptAnswer, 0, len(s.values))
	for _, id := range s.order {
		if v, ok := s.values[id]; ok {
			out = append(out, model.AttemptAnswer{QuestionID: id, Answer: v})
		}
	}
	return out
}
