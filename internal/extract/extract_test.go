package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/babelhq/babel/internal/llm"
)

func TestHeuristicFindsDecisionConstraintQuestion(t *testing.T) {
	text := "We decided to store events as JSONL. The cache must never be treated as truth. Should sync be automatic? Lunch was good."

	h := NewHeuristicExtractor()
	proposals, err := h.Extract(context.Background(), text, "ev_123", "")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(proposals) != 3 {
		t.Fatalf("got %d proposals, want 3: %+v", len(proposals), proposals)
	}

	byType := map[string]Proposal{}
	for _, p := range proposals {
		byType[p.ArtifactType] = p
		if p.SourceID != "ev_123" {
			t.Errorf("SourceID = %q, want ev_123", p.SourceID)
		}
		if p.Rationale == "" {
			t.Errorf("proposal %q has empty rationale", p.Content)
		}
		if p.Confidence <= 0 || p.Confidence > 1 {
			t.Errorf("proposal %q confidence %v out of range", p.Content, p.Confidence)
		}
	}
	if _, ok := byType["decision"]; !ok {
		t.Error("missing decision proposal")
	}
	if _, ok := byType["constraint"]; !ok {
		t.Error("missing constraint proposal")
	}
	if q, ok := byType["question"]; !ok {
		t.Error("missing question proposal")
	} else if !strings.Contains(q.Content, "sync") {
		t.Errorf("question content = %q", q.Content)
	}
}

func TestHeuristicExplicitPrefixOutranksVerbCue(t *testing.T) {
	h := NewHeuristicExtractor()
	proposals, err := h.Extract(context.Background(), "Decision: we chose sqlite for the cache.", "ev_1", "")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(proposals) != 1 {
		t.Fatalf("got %d proposals, want 1", len(proposals))
	}
	if proposals[0].Confidence != 0.9 {
		t.Errorf("confidence = %v, want 0.9 for explicit prefix", proposals[0].Confidence)
	}
	if proposals[0].Rationale != "matched decision prefix" {
		t.Errorf("rationale = %q", proposals[0].Rationale)
	}
}

func TestHeuristicSkipsKnownArtifactsAndDuplicates(t *testing.T) {
	text := "We decided to use sqlite. We decided to use sqlite. We decided to ship fridays."
	known := "- we decided to use sqlite."

	h := NewHeuristicExtractor()
	proposals, err := h.Extract(context.Background(), text, "ev_2", known)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(proposals) != 1 {
		t.Fatalf("got %d proposals, want 1: %+v", len(proposals), proposals)
	}
	if !strings.Contains(proposals[0].Content, "fridays") {
		t.Errorf("surviving proposal = %q", proposals[0].Content)
	}
}

func TestLLMExtractorParsesAndFiltersReply(t *testing.T) {
	reply := `[
		{"type": "decision", "content": "use sqlite for the projection cache", "confidence": 0.8, "rationale": "we chose sqlite"},
		{"type": "Constraint", "content": "journals are append-only", "confidence": 1.7},
		{"type": "haiku", "content": "not a real type", "confidence": 0.9},
		{"type": "decision", "content": "", "confidence": 0.9}
	]`
	mock := llm.NewMock(reply)

	e := NewLLMExtractor(mock)
	proposals, err := e.Extract(context.Background(), "meeting notes", "ev_9", "KNOWN: none")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(proposals) != 2 {
		t.Fatalf("got %d proposals, want 2: %+v", len(proposals), proposals)
	}
	if proposals[0].ArtifactType != "decision" || proposals[0].Confidence != 0.8 {
		t.Errorf("first = %+v", proposals[0])
	}
	if proposals[1].ArtifactType != "constraint" {
		t.Errorf("type not lowercased: %+v", proposals[1])
	}
	if proposals[1].Confidence != 1.0 {
		t.Errorf("confidence not clamped: %v", proposals[1].Confidence)
	}

	calls := mock.Calls()
	if len(calls) != 1 {
		t.Fatalf("provider calls = %d, want 1", len(calls))
	}
	if !strings.Contains(calls[0].User, "KNOWN ARTIFACTS:") || !strings.Contains(calls[0].User, "meeting notes") {
		t.Errorf("prompt missing sections: %q", calls[0].User)
	}
}

func TestLLMExtractorAcceptsFencedObjectReply(t *testing.T) {
	reply := "```json\n{\"proposals\": [{\"type\": \"requirement\", \"content\": \"status must work offline\"}]}\n```"
	e := NewLLMExtractor(llm.NewMock(reply))

	proposals, err := e.Extract(context.Background(), "notes", "ev_10", "")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(proposals) != 1 {
		t.Fatalf("got %d proposals, want 1", len(proposals))
	}
	if proposals[0].Confidence != 0.5 {
		t.Errorf("missing confidence should default to 0.5, got %v", proposals[0].Confidence)
	}
}

func TestParseProposalsRejectsGarbage(t *testing.T) {
	if _, err := parseProposals("the model rambled instead", "ev_1"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestProposalPayloadMapping(t *testing.T) {
	p := Proposal{
		SourceID:     "ev_42",
		ArtifactType: "constraint",
		Content:      "no direct graph writes",
		Confidence:   0.7,
		Rationale:    "stated twice",
	}
	pl := p.Payload()
	if pl.ArtifactType != "constraint" || pl.Summary != "no direct graph writes" {
		t.Errorf("payload = %+v", pl)
	}
	if pl.Confidence != 0.7 || pl.SourceID != "ev_42" || pl.Rationale != "stated twice" {
		t.Errorf("payload metadata = %+v", pl)
	}
}

// scriptedExtractor fails for configured source ids and echoes otherwise.
type scriptedExtractor struct {
	fail map[string]error
}

func (s *scriptedExtractor) Name() string { return "scripted" }

func (s *scriptedExtractor) Extract(ctx context.Context, text, sourceID, artifactContext string) ([]Proposal, error) {
	if err := s.fail[sourceID]; err != nil {
		return nil, err
	}
	return []Proposal{{SourceID: sourceID, ArtifactType: "decision", Content: text, Confidence: 0.5}}, nil
}

func TestQueuePersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extract_queue.json")

	q, err := OpenQueue(path)
	if err != nil {
		t.Fatalf("OpenQueue: %v", err)
	}
	if err := q.Enqueue("first note", "ev_1", ""); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := q.Enqueue("second note", "ev_2", "ctx"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	reopened, err := OpenQueue(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	items := reopened.Items()
	if len(items) != 2 {
		t.Fatalf("reopened Len = %d, want 2", len(items))
	}
	if items[0].Text != "first note" || items[1].SourceID != "ev_2" {
		t.Errorf("items out of order: %+v", items)
	}
	if items[0].ID == "" || items[0].ID == items[1].ID {
		t.Errorf("item ids not unique: %q %q", items[0].ID, items[1].ID)
	}
}

func TestQueueDrainKeepsFailedItemAndTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extract_queue.json")
	q, err := OpenQueue(path)
	if err != nil {
		t.Fatalf("OpenQueue: %v", err)
	}
	for i, src := range []string{"ev_a", "ev_b", "ev_c"} {
		if err := q.Enqueue("note "+src, src, ""); err != nil {
			t.Fatalf("Enqueue %d: %v", i, err)
		}
	}

	boom := errors.New("provider down")
	ex := &scriptedExtractor{fail: map[string]error{"ev_b": boom}}

	proposals, err := q.Drain(context.Background(), ex)
	if !errors.Is(err, boom) {
		t.Fatalf("Drain err = %v, want boom", err)
	}
	if len(proposals) != 1 || proposals[0].SourceID != "ev_a" {
		t.Fatalf("proposals = %+v, want the one from ev_a", proposals)
	}

	reopened, err := OpenQueue(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	items := reopened.Items()
	if len(items) != 2 || items[0].SourceID != "ev_b" || items[1].SourceID != "ev_c" {
		t.Fatalf("queue after failed drain = %+v", items)
	}

	ex.fail = nil
	proposals, err = reopened.Drain(context.Background(), ex)
	if err != nil {
		t.Fatalf("second Drain: %v", err)
	}
	if len(proposals) != 2 {
		t.Fatalf("second drain proposals = %d, want 2", len(proposals))
	}
	if reopened.Len() != 0 {
		t.Errorf("queue not empty after successful drain: %d", reopened.Len())
	}
}

func TestOpenQueueToleratesCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extract_queue.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	q, err := OpenQueue(path)
	if err != nil {
		t.Fatalf("OpenQueue on corrupt file: %v", err)
	}
	if q.Len() != 0 {
		t.Errorf("corrupt queue should open empty, got %d", q.Len())
	}
}
