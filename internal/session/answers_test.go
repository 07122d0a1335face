package session

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/zookocamp/proctor-backend/internal/model"
)

func raw(s string) json.RawMessage {
	return json.RawMessage(s)
}

func TestAnswerStoreSetAndGet(t *testing.T) {
	store := NewAnswerStore([]string{"q1", "q2", "q3"})

	if err := store.Set("q2", raw(`1`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Set("q2", raw(`3`)); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}

	got, ok := store.Get("q2")
	if !ok {
		t.Fatal("Get: expected answer for q2")
	}
	if string(got) != `3` {
		t.Errorf("Get: got %s, want 3 (last write wins)", got)
	}

	if _, ok := store.Get("q1"); ok {
		t.Error("Get: q1 should have no answer")
	}
	if store.Len() != 1 {
		t.Errorf("Len: got %d, want 1", store.Len())
	}
}

func TestAnswerStoreRejectsUnknownQuestion(t *testing.T) {
	store := NewAnswerStore([]string{"q1"})

	err := store.Set("nope", raw(`1`))
	if !errors.Is(err, ErrUnknownQuestion) {
		t.Fatalf("Set unknown: got %v, want ErrUnknownQuestion", err)
	}
	if store.Len() != 0 {
		t.Error("rejected edit must not be stored")
	}
}

func TestAnswerStoreSeed(t *testing.T) {
	store := NewAnswerStore([]string{"q1", "q2"})

	err := store.Seed([]model.AttemptAnswer{
		{QuestionID: "q1", Answer: raw(`0`)},
		{QuestionID: "gone", Answer: raw(`"stale"`)},
	})
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}

	if _, ok := store.Get("q1"); !ok {
		t.Error("seeded answer for q1 missing")
	}
	if store.Len() != 1 {
		t.Errorf("Len: got %d, want 1 (answer for removed question dropped)", store.Len())
	}

	if err := store.Seed(nil); !errors.Is(err, ErrAlreadySeeded) {
		t.Errorf("second Seed: got %v, want ErrAlreadySeeded", err)
	}
}

func TestAnswerStoreSeedAfterEdit(t *testing.T) {
	store := NewAnswerStore([]string{"q1"})

	if err := store.Set("q1", raw(`2`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Seed(nil); !errors.Is(err, ErrSeedAfterEdit) {
		t.Errorf("Seed after edit: got %v, want ErrSeedAfterEdit", err)
	}
}

func TestAnswerStoreSnapshotOrder(t *testing.T) {
	store := NewAnswerStore([]string{"q1", "q2", "q3", "q4"})

	// Answer out of declared order, leave q3 untouched.
	for _, id := range []string{"q4", "q1", "q2"} {
		if err := store.Set(id, raw(`"`+id+`"`)); err != nil {
			t.Fatalf("Set %s: %v", id, err)
		}
	}

	snap := store.Snapshot()
	want := []string{"q1", "q2", "q4"}
	if len(snap) != len(want) {
		t.Fatalf("Snapshot: got %d entries, want %d", len(snap), len(want))
	}
	for i, id := range want {
		if snap[i].QuestionID != id {
			t.Errorf("Snapshot[%d]: got %s, want %s", i, snap[i].QuestionID, id)
		}
	}
}

func TestAnswerStoreSnapshotOmitsUnanswered(t *testing.T) {
	store := NewAnswerStore([]string{"q1", "q2"})

	if snap := store.Snapshot(); len(snap) != 0 {
		t.Fatalf("empty store snapshot: got %d entries, want 0", len(snap))
	}
}
