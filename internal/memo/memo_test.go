package memo

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSetGetDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memos.json")
	s := Open(path)

	if _, ok := s.Get("display.width"); ok {
		t.Fatal("empty store should have no keys")
	}

	if err := s.Set("display.width", "100"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok := s.Get("display.width")
	if !ok || v != "100" {
		t.Fatalf("Get = %q, %v; want 100, true", v, ok)
	}

	if err := s.Delete("display.width"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := s.Get("display.width"); ok {
		t.Fatal("key should be gone after Delete")
	}
	// Deleting again is a no-op.
	if err := s.Delete("display.width"); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
}

func TestPersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memos.json")

	s := Open(path)
	if err := s.Set("theme", "dark"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Pin("auth"); err != nil {
		t.Fatalf("Pin: %v", err)
	}
	if err := s.Mute("decision_abc123"); err != nil {
		t.Fatalf("Mute: %v", err)
	}

	re := Open(path)
	if v, ok := re.Get("theme"); !ok || v != "dark" {
		t.Fatalf("reopened Get = %q, %v", v, ok)
	}
	if got := re.Pinned(); len(got) != 1 || got[0] != "auth" {
		t.Fatalf("reopened Pinned = %v", got)
	}
	if !re.IsMuted("decision_abc123") {
		t.Fatal("mute should survive reopen")
	}
}

func TestPinUnpinIdempotent(t *testing.T) {
	s := Open(filepath.Join(t.TempDir(), "memos.json"))

	for i := 0; i < 3; i++ {
		if err := s.Pin("storage"); err != nil {
			t.Fatalf("Pin: %v", err)
		}
	}
	if got := s.Pinned(); len(got) != 1 {
		t.Fatalf("Pinned = %v, want one entry", got)
	}

	if err := s.Unpin("storage"); err != nil {
		t.Fatalf("Unpin: %v", err)
	}
	if err := s.Unpin("storage"); err != nil {
		t.Fatalf("second Unpin: %v", err)
	}
	if got := s.Pinned(); len(got) != 0 {
		t.Fatalf("Pinned after Unpin = %v", got)
	}
}

func TestCorruptFileStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memos.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	s := Open(path)
	if got := s.All(); len(got) != 0 {
		t.Fatalf("corrupt file should load empty, got %v", got)
	}
	// The store still works and the next save replaces the corrupt file.
	if err := s.Set("k", "v"); err != nil {
		t.Fatalf("Set over corrupt file: %v", err)
	}
	if v, ok := Open(path).Get("k"); !ok || v != "v" {
		t.Fatalf("reopen after repair = %q, %v", v, ok)
	}
}
