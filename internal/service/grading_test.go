package service

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/zookocamp/proctor-backend/internal/model"
)

func raw(s string) json.RawMessage {
	return json.RawMessage(s)
}

func gradingExam() *model.Exam {
	return &model.Exam{
		ID: uuid.New(),
		Questions: []model.Question{
			{ID: "mc", Type: model.QuestionTypeSingleChoice, Points: 2, CorrectOption: 1},
			{ID: "fb", Type: model.QuestionTypeFillBlank, Points: 2, BlankAnswers: []string{"stack", "queue"}},
			{ID: "mp", Type: model.QuestionTypeMatchPairs, Points: 3, Pairs: []model.Pair{
				{Left: "TCP", Right: "stream"},
				{Left: "UDP", Right: "datagram"},
			}},
			{ID: "ob", Type: model.QuestionTypeOrderedBlocks, Points: 3, Blocks: []string{"read", "sort", "write"}},
			{ID: "cc", Type: model.QuestionTypeCodeChallenge, Points: 5},
		},
		TotalPoints: 15,
		Settings:    model.ExamSettings{PassingScore: 60},
	}
}

func TestGradeSingleChoice(t *testing.T) {
	exam := gradingExam()

	res := Grade(exam, []model.AttemptAnswer{{QuestionID: "mc", Answer: raw(`1`)}})
	if res.TotalScore != 2 {
		t.Errorf("correct option: score %v, want 2", res.TotalScore)
	}

	res = Grade(exam, []model.AttemptAnswer{{QuestionID: "mc", Answer: raw(`0`)}})
	if res.TotalScore != 0 {
		t.Errorf("wrong option: score %v, want 0", res.TotalScore)
	}

	// Malformed answer value scores zero rather than erroring.
	res = Grade(exam, []model.AttemptAnswer{{QuestionID: "mc", Answer: raw(`"x"`)}})
	if res.TotalScore != 0 {
		t.Errorf("malformed answer: score %v, want 0", res.TotalScore)
	}
}

func TestGradeFillBlank(t *testing.T) {
	exam := gradingExam()

	tests := []struct {
		name   string
		answer string
		want   float64
	}{
		{"exact", `["stack","queue"]`, 2},
		{"case and space insensitive", `[" Stack ","QUEUE"]`, 2},
		{"one blank wrong", `["stack","heap"]`, 0},
		{"missing blank", `["stack"]`, 0},
		{"order matters", `["queue","stack"]`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Grade(exam, []model.AttemptAnswer{{QuestionID: "fb", Answer: raw(tt.answer)}})
			if res.TotalScore != tt.want {
				t.Errorf("score %v, want %v", res.TotalScore, tt.want)
			}
		})
	}
}

func TestGradeMatchPairs(t *testing.T) {
	exam := gradingExam()

	tests := []struct {
		name   string
		answer string
		want   float64
	}{
		{"all matched", `[{"left":"TCP","right":"stream"},{"left":"UDP","right":"datagram"}]`, 3},
		{"row order free", `[{"left":"UDP","right":"datagram"},{"left":"TCP","right":"stream"}]`, 3},
		{"one mismatch", `[{"left":"TCP","right":"datagram"},{"left":"UDP","right":"stream"}]`, 0},
		{"duplicate left", `[{"left":"TCP","right":"stream"},{"left":"TCP","right":"stream"}]`, 0},
		{"incomplete", `[{"left":"TCP","right":"stream"}]`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Grade(exam, []model.AttemptAnswer{{QuestionID: "mp", Answer: raw(tt.answer)}})
			if res.TotalScore != tt.want {
				t.Errorf("score %v, want %v", res.TotalScore, tt.want)
			}
		})
	}
}

func TestGradeOrderedBlocks(t *testing.T) {
	exam := gradingExam()

	res := Grade(exam, []model.AttemptAnswer{{QuestionID: "ob", Answer: raw(`["read","sort","write"]`)}})
	if res.TotalScore != 3 {
		t.Errorf("canonical order: score %v, want 3", res.TotalScore)
	}

	res = Grade(exam, []model.AttemptAnswer{{QuestionID: "ob", Answer: raw(`["sort","read","write"]`)}})
	if res.TotalScore != 0 {
		t.Errorf("wrong order: score %v, want 0", res.TotalScore)
	}
}

func TestGradeCodeChallengeNeedsReview(t *testing.T) {
	exam := gradingExam()

	res := Grade(exam, []model.AttemptAnswer{{QuestionID: "cc", Answer: raw(`"func main() {}"`)}})
	if res.TotalScore != 0 {
		t.Errorf("code challenge auto score: %v, want 0", res.TotalScore)
	}
	if !res.NeedsManualReview {
		t.Error("non-empty code answer must flag manual review")
	}

	// Whitespace-only code does not hold up grading.
	res = Grade(exam, []model.AttemptAnswer{{QuestionID: "cc", Answer: raw(`"  "`)}})
	if res.NeedsManualReview {
		t.Error("blank code answer flagged for review")
	}
}

func TestGradePercentageAndUnanswered(t *testing.T) {
	exam := gradingExam()

	res := Grade(exam, []model.AttemptAnswer{
		{QuestionID: "mc", Answer: raw(`1`)},
		{QuestionID: "ob", Answer: raw(`["read","sort","write"]`)},
	})
	if res.TotalScore != 5 {
		t.Fatalf("score %v, want 5", res.TotalScore)
	}
	wantPct := 5.0 / 15.0 * 100
	if res.Percentage != wantPct {
		t.Errorf("percentage %v, want %v", res.Percentage, wantPct)
	}

	// Unknown question IDs in the snapshot are ignored.
	res = Grade(exam, []model.AttemptAnswer{{QuestionID: "ghost", Answer: raw(`1`)}})
	if res.TotalScore != 0 || res.NeedsManualReview {
		t.Errorf("ghost answer graded: %+v", res)
	}
}

func TestFormatResultPassBoundary(t *testing.T) {
	exam := gradingExam()
	score := 9.0

	attempt := func(pct float64) *model.Attempt {
		return &model.Attempt{
			ID:         uuid.New(),
			Status:     model.AttemptStatusGraded,
			TotalScore: &score,
			Percentage: &pct,
		}
	}

	// Reaching the passing score exactly is a pass.
	if res := FormatResult(exam, attempt(60)); !res.Passed {
		t.Error("60% against passing score 60 must pass")
	}
	if res := FormatResult(exam, attempt(59.9)); res.Passed {
		t.Error("59.9% against passing score 60 must fail")
	}
	if res := FormatResult(exam, attempt(100)); !res.Passed {
		t.Error("100% must pass")
	}
}

func TestForStudentStripsAnswerKeys(t *testing.T) {
	exam := gradingExam()
	exam.Settings.ShuffleQuestions = true
	attemptID := uuid.New()

	view := ForStudent(exam, attemptID)
	if len(view.Questions) != len(exam.Questions) {
		t.Fatalf("question count: %d, want %d", len(view.Questions), len(exam.Questions))
	}

	for _, q := range view.Questions {
		switch q.Type {
		case model.QuestionTypeFillBlank:
			if q.BlankCount != 2 {
				t.Errorf("blank count: %d, want 2", q.BlankCount)
			}
		case model.QuestionTypeMatchPairs:
			if len(q.PairLefts) != 2 || len(q.PairRights) != 2 {
				t.Errorf("pair columns: %d/%d, want 2/2", len(q.PairLefts), len(q.PairRights))
			}
		}
	}

	// Serialized payload must not contain any key material.
	data, err := json.Marshal(view)
	if err != nil {
		t.Fatal(err)
	}
	for _, leak := range []string{"correct_option", "blank_answers", "\"pairs\""} {
		if strings.Contains(string(data), leak) {
			t.Errorf("payload leaks %s", leak)
		}
	}

	// The same attempt always sees the same order.
	again := ForStudent(exam, attemptID)
	for i := range view.Questions {
		if view.Questions[i].ID != again.Questions[i].ID {
			t.Fatal("shuffle is not stable per attempt")
		}
	}
}
