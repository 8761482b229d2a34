package idgen

import (
	"testing"
	"time"
)

func TestNewEventIDDeterministic(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	payload := []byte(`{"what":"preserve intent"}`)

	a := NewEventID(at, "PURPOSE_DECLARED", payload, 0)
	b := NewEventID(at, "PURPOSE_DECLARED", payload, 0)
	if a != b {
		t.Fatalf("same inputs produced different ids: %s vs %s", a, b)
	}
	if len(a) != len("ev_")+EventIDLength {
		t.Fatalf("id %q has unexpected length", a)
	}
}

func TestNewEventIDVariesByInput(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	payload := []byte(`{"x":1}`)
	base := NewEventID(at, "ENDORSED", payload, 0)

	tests := map[string]string{
		"different type":      NewEventID(at, "DEPRECATED", payload, 0),
		"different timestamp": NewEventID(at.Add(time.Nanosecond), "ENDORSED", payload, 0),
		"different payload":   NewEventID(at, "ENDORSED", []byte(`{"x":2}`), 0),
		"different nonce":     NewEventID(at, "ENDORSED", payload, 1),
	}
	for name, id := range tests {
		if id == base {
			t.Errorf("%s: id did not change", name)
		}
	}
}

func TestNodeIDCarriesTypePrefix(t *testing.T) {
	id := NodeID("decision", "ev_0123456789")
	if want := "decision_"; len(id) != len(want)+NodeIDLength || id[:len(want)] != want {
		t.Fatalf("NodeID = %q, want %q + %d chars", id, want, NodeIDLength)
	}

	other := NodeID("constraint", "ev_0123456789")
	if other == id {
		t.Error("different node types from the same event must not share an id")
	}
}

func TestEncodeBase36Padding(t *testing.T) {
	got := EncodeBase36([]byte{0, 0, 1}, 5)
	if got != "00001" {
		t.Errorf("EncodeBase36 small value = %q, want 00001", got)
	}
	if len(EncodeBase36([]byte{0xff, 0xff, 0xff, 0xff, 0xff}, 4)) != 4 {
		t.Error("EncodeBase36 must truncate to requested length")
	}
}
