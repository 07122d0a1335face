package service

import (
	"encoding/json"
	"testing"

	"github.com/zookocamp/proctor-backend/internal/model"
)

func TestMergeCachedAnswersMirrorWins(t *testing.T) {
	persisted := []model.AttemptAnswer{
		{QuestionID: "q1", Answer: raw(`1`)},
		{QuestionID: "q2", Answer: raw(`["old"]`)},
	}
	cached := map[string]string{
		"q2": `["fresh"]`, // edit the worker already landed, then changed again
		"q3": `2`,         // edit still queued, absent from the database
	}

	merged := mergeCachedAnswers(persisted, cached)

	if len(merged) != 3 {
		t.Fatalf("merged length = %d, want 3", len(merged))
	}
	byID := make(map[string]json.RawMessage, len(merged))
	for _, a := range merged {
		byID[a.QuestionID] = a.Answer
	}
	if got := string(byID["q1"]); got != `1` {
		t.Errorf("q1 = %s, want untouched persisted value", got)
	}
	if got := string(byID["q2"]); got != `["fresh"]` {
		t.Errorf("q2 = %s, want the mirror value", got)
	}
	if got := string(byID["q3"]); got != `2` {
		t.Errorf("q3 = %s, want the queued-only edit", got)
	}
}

func TestMergeCachedAnswersEmptyMirror(t *testing.T) {
	persisted := []model.AttemptAnswer{{QuestionID: "q1", Answer: raw(`1`)}}

	merged := mergeCachedAnswers(persisted, nil)
	if len(merged) != 1 || string(merged[0].Answer) != `1` {
		t.Fatalf("merged = %v, want persisted answers unchanged", merged)
	}

	if got := mergeCachedAnswers(nil, map[string]string{"q1": `1`}); len(got) != 1 {
		t.Fatalf("merge onto empty persisted = %v, want one entry", got)
	}
}

func TestMergeCachedAnswersDoesNotMutateInput(t *testing.T) {
	persisted := []model.AttemptAnswer{{QuestionID: "q1", Answer: raw(`1`)}}

	mergeCachedAnswers(persisted, map[string]string{"q1": `2`, "q2": `3`})

	if string(persisted[0].Answer) != `1` {
		t.Errorf("persisted slice mutated: q1 = %s", persisted[0].Answer)
	}
}
