package resolver

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/babelhq/babel/internal/graph"
	"github.com/babelhq/babel/internal/idgen"
	"github.com/babelhq/babel/internal/types"
)

var testBase = time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)

func ev(seq int, typ types.EventType, payload any) *types.Event {
	return &types.Event{
		ID:        fmt.Sprintf("ev_r%09d", seq),
		Type:      typ,
		Data:      types.MustMarshal(payload),
		CreatedAt: testBase.Add(time.Duration(seq) * time.Second),
		Scope:     types.ScopeShared,
	}
}

func soleNode(t *testing.T, g *graph.Graph, typ types.NodeType) *types.Node {
	t.Helper()
	nodes := g.NodesByType(typ)
	if len(nodes) != 1 {
		t.Fatalf("NodesByType(%s) = %d nodes, want 1", typ, len(nodes))
	}
	return nodes[0]
}

// testGraph projects a small but representative graph: a purpose, a decision
// confirmed from a proposal (both carry the same summary), and two open
// questions sharing the question_ id prefix.
func testGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()
	p := graph.NewProjector(g, nil)
	apply := func(e *types.Event) {
		t.Helper()
		if _, err := p.Apply(e); err != nil {
			t.Fatalf("Apply(%s): %v", e.Type, err)
		}
	}

	apply(ev(1, types.EventPurposeDeclared, &types.PurposeDeclaredPayload{What: "resilient ingest pipeline"}))
	apply(ev(2, types.EventStructureProposed, &types.StructureProposedPayload{
		ArtifactType: "decision",
		Summary:      "use a write-ahead journal",
		Why:          "crash recovery without replaying the network",
	}))
	proposal := soleNode(t, g, types.NodeProposal)
	apply(ev(3, types.EventArtifactConfirmed, &types.ArtifactConfirmedPayload{
		ProposalID:   proposal.ID,
		ArtifactType: "decision",
	}))
	apply(ev(4, types.EventQuestionRaised, &types.QuestionRaisedPayload{Question: "should retries use exponential backoff"}))
	apply(ev(5, types.EventQuestionRaised, &types.QuestionRaisedPayload{Question: "how large can the sqlite cache grow"}))
	return g
}

func TestResolveExactID(t *testing.T) {
	g := testGraph(t)
	decision := soleNode(t, g, types.NodeDecision)

	r := Resolve(decision.ID, g)
	if r.Status != StatusResolved {
		t.Fatalf("Resolve(%q) status = %s, want resolved", decision.ID, r.Status)
	}
	if n := r.Node(); n == nil || n.ID != decision.ID {
		t.Errorf("Node() = %+v, want %s", n, decision.ID)
	}
	if r.Matches[0].Score != 1.0 {
		t.Errorf("exact match score = %v, want 1.0", r.Matches[0].Score)
	}
}

func TestResolveShortCode(t *testing.T) {
	g := testGraph(t)
	decision := soleNode(t, g, types.NodeDecision)
	code := idgen.Encode(decision.ID)

	r := Resolve(code, g)
	if r.Status != StatusResolved {
		t.Fatalf("Resolve(%q) status = %s, want resolved", code, r.Status)
	}
	if n := r.Node(); n == nil || n.ID != decision.ID {
		t.Errorf("Node() = %+v, want %s", n, decision.ID)
	}

	// Codes are case-insensitive on input.
	r = Resolve(strings.ToLower(code), g)
	if r.Status != StatusResolved || r.Node().ID != decision.ID {
		t.Errorf("Resolve(%q) = %s, want resolved to %s", strings.ToLower(code), r.Status, decision.ID)
	}
}

func TestResolveIDPrefix(t *testing.T) {
	g := testGraph(t)
	decision := soleNode(t, g, types.NodeDecision)

	prefix := decision.ID[:len(decision.ID)-3]
	r := Resolve(prefix, g)
	if r.Status != StatusResolved {
		t.Fatalf("Resolve(%q) status = %s, want resolved", prefix, r.Status)
	}
	if r.Node().ID != decision.ID {
		t.Errorf("Node().ID = %s, want %s", r.Node().ID, decision.ID)
	}

	// Both questions share the type prefix; that is reported, not guessed.
	r = Resolve("question_", g)
	if r.Status != StatusAmbiguous {
		t.Fatalf("Resolve(question_) status = %s, want ambiguous", r.Status)
	}
	if len(r.Matches) != 2 {
		t.Fatalf("Resolve(question_) matches = %d, want 2", len(r.Matches))
	}
	if r.Node() != nil {
		t.Error("Node() should be nil for ambiguous results")
	}
}

func TestResolveFuzzyText(t *testing.T) {
	g := testGraph(t)

	r := Resolve("exponential backoff", g)
	if r.Status != StatusResolved {
		t.Fatalf("Resolve(exponential backoff) status = %s, want resolved", r.Status)
	}
	n := r.Node()
	if n.Type != types.NodeQuestion || !strings.Contains(n.Content.Summary, "backoff") {
		t.Errorf("resolved to %s %q, want the backoff question", n.Type, n.Content.Summary)
	}
}

func TestResolveFuzzyAmbiguous(t *testing.T) {
	g := testGraph(t)

	// The decision inherited its proposal's summary, so free text matching
	// that summary cannot pick between them.
	r := Resolve("write-ahead journal", g)
	if r.Status != StatusAmbiguous {
		t.Fatalf("Resolve(write-ahead journal) status = %s, want ambiguous", r.Status)
	}
	if len(r.Matches) != 2 {
		t.Fatalf("matches = %v, want the proposal and the decision", r.IDs())
	}
	seen := map[types.NodeType]bool{}
	for _, m := range r.Matches {
		seen[m.Node.Type] = true
	}
	if !seen[types.NodeProposal] || !seen[types.NodeDecision] {
		t.Errorf("matches = %v, want one proposal and one decision", r.IDs())
	}
}

func TestResolveNone(t *testing.T) {
	g := testGraph(t)

	for _, input := range []string{"quantum chromodynamics", "", "   "} {
		r := Resolve(input, g)
		if r.Status != StatusNone {
			t.Errorf("Resolve(%q) status = %s, want none", input, r.Status)
		}
		if len(r.Matches) != 0 {
			t.Errorf("Resolve(%q) matches = %v, want none", input, r.IDs())
		}
	}

	if r := Resolve("anything", nil); r.Status != StatusNone {
		t.Errorf("Resolve on nil graph = %s, want none", r.Status)
	}
}
