package nova

import (
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *TranscriptStore {
	t.Helper()
	store, err := NewTranscriptStore(filepath.Join(t.TempDir(), "transcript.db"))
	if err != nil {
		t.Fatalf("NewTranscriptStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestTranscriptAppendAndRead(t *testing.T) {
	store := newTestStore(t)

	session, err := store.BeginSession("test the transcript")
	if err != nil {
		t.Fatalf("BeginSession: %v", err)
	}

	call := ToolInvocation{ID: "call_1", Name: "Clock", Args: map[string]any{}}
	turns := []Turn{
		TextTurn(RoleUser, "what time is it"),
		CallTurn("Checking.", call),
		ResultTurn(call, "noon"),
		TextTurn(RoleModel, "It is noon."),
	}
	for _, turn := range turns {
		if err := store.AppendTurn(session, turn); err != nil {
			t.Fatalf("AppendTurn: %v", err)
		}
	}

	got, err := store.Turns(session)
	if err != nil {
		t.Fatalf("Turns: %v", err)
	}
	if len(got) != len(turns) {
		t.Fatalf("turns = %d, want %d", len(got), len(turns))
	}
	for i := range turns {
		if got[i].Role != turns[i].Role {
			t.Errorf("turn %d role = %v, want %v", i, got[i].Role, turns[i].Role)
		}
	}

	// Tool call survives the round trip.
	if c := got[1].Segments[len(got[1].Segments)-1].Call; c == nil || c.Name != "Clock" {
		t.Errorf("call segment lost: %+v", got[1])
	}
}

func TestTranscriptDeleteLastTurn(t *testing.T) {
	store := newTestStore(t)

	session, err := store.BeginSession("")
	if err != nil {
		t.Fatal(err)
	}

	if err := store.AppendTurn(session, TextTurn(RoleUser, "keep")); err != nil {
		t.Fatal(err)
	}
	if err := store.AppendTurn(session, TextTurn(RoleUser, "drop")); err != nil {
		t.Fatal(err)
	}

	if err := store.DeleteLastTurn(session); err != nil {
		t.Fatalf("DeleteLastTurn: %v", err)
	}

	got, err := store.Turns(session)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Segments[0].Text != "keep" {
		t.Errorf("turns = %+v, want only the first", got)
	}

	// Deleting from an empty session is a no-op.
	if err := store.DeleteLastTurn(session); err != nil {
		t.Fatal(err)
	}
	if err := store.DeleteLastTurn(session); err != nil {
		t.Fatal(err)
	}
}

func TestTranscriptSessionsAreIsolated(t *testing.T) {
	store := newTestStore(t)

	a, _ := store.BeginSession("a")
	b, _ := store.BeginSession("b")

	if err := store.AppendTurn(a, TextTurn(RoleUser, "for a")); err != nil {
		t.Fatal(err)
	}
	if err := store.AppendTurn(b, TextTurn(RoleUser, "for b")); err != nil {
		t.Fatal(err)
	}
	if err := store.DeleteLastTurn(a); err != nil {
		t.Fatal(err)
	}

	got, err := store.Turns(b)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Segments[0].Text != "for b" {
		t.Errorf("session b turns = %+v", got)
	}
}
