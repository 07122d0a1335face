package service

import (
	"encoding/json"
	"strings"

	"github.com/zookocamp/proctor-backend/internal/model"
)

// GradeResult is the outcome of auto-grading one attempt.
type GradeResult struct {
	TotalScore        float64
	Percentage        float64
	NeedsManualReview bool
}

// Grade auto-grades an attempt against the exam's answer keys. Composite
// types score all-or-nothing. code_challenge answers earn zero here and
// flag the attempt for manual review instead.
func Grade(exam *model.Exam, answers []model.AttemptAnswer) GradeResult {
	byQuestion := make(map[string]json.RawMessage, len(answers))
	for _, a := range answers {
		byQuestion[a.QuestionID] = a.Answer
	}

	var res GradeResult
	for i := range exam.Questions {
		q := &exam.Questions[i]
		raw, ok := byQuestion[q.ID]
		if !ok {
			continue
		}
		if q.Type == model.QuestionTypeCodeChallenge {
			var code string
			if json.Unmarshal(raw, &code) == nil && strings.TrimSpace(code) != "" {
				res.NeedsManualReview = true
			}
			continue
		}
		if gradeQuestion(q, raw) {
			res.TotalScore += q.Points
		}
	}

	if exam.TotalPoints > 0 {
		res.Percentage = res.TotalScore / exam.TotalPoints * 100
	}
	return res
}

func gradeQuestion(q *model.Question, raw json.RawMessage) bool {
	switch q.Type {
	case model.QuestionTypeSingleChoice:
		var idx int
		if err := json.Unmarshal(raw, &idx); err != nil {
			return false
		}
		return idx == q.CorrectOption

	case model.QuestionTypeFillBlank:
		var got []string
		if err := json.Unmarshal(raw, &got); err != nil {
			return false
		}
		if len(got) != len(q.BlankAnswers) {
			return false
		}
		for i, want := range q.BlankAnswers {
			if !equalFold(got[i], want) {
				return false
			}
		}
		return true

	case model.QuestionTypeMatchPairs:
		var got []model.Pair
		if err := json.Unmarshal(raw, &got); err != nil {
			return false
		}
		if len(got) != len(q.Pairs) {
			return false
		}
		want := make(map[string]string, len(q.Pairs))
		for _, p := range q.Pairs {
			want[p.Left] = p.Right
		}
		seen := make(map[string]bool, len(got))
		for _, p := range got {
			if seen[p.Left] || want[p.Left] != p.Right {
				return false
			}
			seen[p.Left] = true
		}
		return true

	case model.QuestionTypeOrderedBlocks:
		var got []string
		if err := json.Unmarshal(raw, &got); err != nil {
			return false
		}
		if len(got) != len(q.Blocks) {
			return false
		}
		for i, want := range q.Blocks {
			if got[i] != want {
				return false
			}
		}
		return true
	}
	return false
}

// equalFold compares blank answers ignoring case and surrounding space.
func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
