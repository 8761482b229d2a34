package graph

import (
	"fmt"
	"testing"
	"time"

	"github.com/babelhq/babel/internal/types"
)

var testBase = time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)

// ev builds a projectable event with a deterministic id and timestamp.
func ev(seq int, typ types.EventType, payload any) *types.Event {
	return &types.Event{
		ID:        fmt.Sprintf("ev_t%09d", seq),
		Type:      typ,
		Data:      types.MustMarshal(payload),
		CreatedAt: testBase.Add(time.Duration(seq) * time.Second),
		Scope:     types.ScopeShared,
	}
}

func mustApply(t *testing.T, p *Projector, events ...*types.Event) []*Delta {
	t.Helper()
	deltas := make([]*Delta, 0, len(events))
	for _, e := range events {
		d, err := p.Apply(e)
		if err != nil {
			t.Fatalf("Apply(%s) error = %v", e.Type, err)
		}
		deltas = append(deltas, d)
	}
	return deltas
}

func soleNode(t *testing.T, g *Graph, typ types.NodeType) *types.Node {
	t.Helper()
	nodes := g.NodesByType(typ)
	if len(nodes) != 1 {
		t.Fatalf("NodesByType(%s) = %d nodes, want 1", typ, len(nodes))
	}
	return nodes[0]
}

func TestProjectBootstrap(t *testing.T) {
	p := NewProjector(New(), nil)
	mustApply(t, p,
		ev(1, types.EventProjectCreated, &types.ProjectCreatedPayload{Name: "checkout", Need: "faster payment flow"}),
		ev(2, types.EventPurposeDeclared, &types.PurposeDeclaredPayload{What: "cut checkout latency", Why: "cart abandonment"}),
	)
	g := p.Graph()

	project := soleNode(t, g, types.NodeProject)
	if project.Content.Summary != "checkout" {
		t.Errorf("project summary = %q", project.Content.Summary)
	}
	purpose := soleNode(t, g, types.NodePurpose)
	if purpose.Content.Detail.Why != "cart abandonment" {
		t.Errorf("purpose why = %q", purpose.Content.Detail.Why)
	}
	active := g.ActivePurpose()
	if active == nil || active.ID != purpose.ID {
		t.Fatalf("ActivePurpose() = %+v, want %s", active, purpose.ID)
	}
}

func TestConfirmationPromotesProposal(t *testing.T) {
	p := NewProjector(New(), nil)
	mustApply(t, p,
		ev(1, types.EventPurposeDeclared, &types.PurposeDeclaredPayload{What: "resilient ingest"}),
		ev(2, types.EventStructureProposed, &types.StructureProposedPayload{
			ArtifactType: "decision",
			Summary:      "use a write-ahead journal",
			Why:          "crash recovery without replaying the network",
			Confidence:   0.8,
		}),
	)
	g := p.Graph()
	proposal := soleNode(t, g, types.NodeProposal)
	purpose := soleNode(t, g, types.NodePurpose)

	mustApply(t, p, ev(3, types.EventArtifactConfirmed, &types.ArtifactConfirmedPayload{
		ProposalID:   proposal.ID,
		ArtifactType: "decision",
	}))

	decision := soleNode(t, g, types.NodeDecision)
	if decision.Content.Summary != "use a write-ahead journal" {
		t.Errorf("decision did not inherit proposal summary: %q", decision.Content.Summary)
	}
	if decision.Content.Detail.Why != "crash recovery without replaying the network" {
		t.Errorf("decision did not inherit proposal why: %q", decision.Content.Detail.Why)
	}

	if got := g.Node(proposal.ID); got.Status != types.StatusSuperseded {
		t.Errorf("proposal status = %s, want superseded", got.Status)
	}

	edges := g.Edges(decision.ID, types.DirOut)
	var informs, supersedes bool
	for _, e := range edges {
		switch {
		case e.Relation == types.RelInforms && e.TargetID == purpose.ID:
			informs = true
		case e.Relation == types.RelSupersedes && e.TargetID == proposal.ID:
			supersedes = true
		}
	}
	if !informs {
		t.Error("confirmed artifact is missing its informs edge to the active purpose")
	}
	if !supersedes {
		t.Error("confirmed artifact is missing its supersedes edge to the proposal")
	}
}

func TestDirectConfirmationWithoutProposal(t *testing.T) {
	p := NewProjector(New(), nil)
	mustApply(t, p, ev(1, types.EventArtifactConfirmed, &types.ArtifactConfirmedPayload{
		ArtifactType: "constraint",
		Summary:      "p99 under 200ms",
	}))
	g := p.Graph()
	c := soleNode(t, g, types.NodeConstraint)
	if c.Content.Summary != "p99 under 200ms" {
		t.Errorf("constraint summary = %q", c.Content.Summary)
	}
	// No purpose declared yet, so no informs edge and no tension either.
	if edges := g.Edges(c.ID, types.DirBoth); len(edges) != 0 {
		t.Errorf("standalone confirmation grew edges: %+v", edges)
	}
}

func TestProjectionIsDeterministic(t *testing.T) {
	events := []*types.Event{
		ev(1, types.EventProjectCreated, &types.ProjectCreatedPayload{Name: "babel"}),
		ev(2, types.EventPurposeDeclared, &types.PurposeDeclaredPayload{What: "keep intent"}),
		ev(3, types.EventStructureProposed, &types.StructureProposedPayload{ArtifactType: "decision", Summary: "jsonl journals"}),
		ev(4, types.EventQuestionRaised, &types.QuestionRaisedPayload{Question: "what about windows paths?"}),
		ev(5, types.EventMemoCaptured, &types.MemoCapturedPayload{Text: "check flock on nfs", Topics: []string{"storage"}}),
		ev(6, types.EventTopicDeclared, &types.TopicDeclaredPayload{Topic: "Storage", Description: "durability concerns"}),
	}

	build := func() *Graph {
		p := NewProjector(New(), nil)
		if err := p.Rebuild(events); err != nil {
			t.Fatalf("Rebuild() error = %v", err)
		}
		return p.Graph()
	}
	g1, g2 := build(), build()

	n1, n2 := g1.Nodes(), g2.Nodes()
	if len(n1) != len(n2) {
		t.Fatalf("replays disagree on node count: %d vs %d", len(n1), len(n2))
	}
	for i := range n1 {
		if *n1[i] != *n2[i] {
			t.Errorf("node %d differs between replays:\n  %+v\n  %+v", i, n1[i], n2[i])
		}
	}
	s1, s2 := g1.Stats(), g2.Stats()
	if s1.Edges != s2.Edges {
		t.Errorf("replays disagree on edge count: %d vs %d", s1.Edges, s2.Edges)
	}
}

func TestTopicNodesConvergeByName(t *testing.T) {
	p := NewProjector(New(), nil)
	mustApply(t, p,
		ev(1, types.EventMemoCaptured, &types.MemoCapturedPayload{Text: "slow joins", Topics: []string{"Database"}}),
		ev(2, types.EventTopicDeclared, &types.TopicDeclaredPayload{Topic: "database", Description: "postgres tuning"}),
		ev(3, types.EventMemoCaptured, &types.MemoCapturedPayload{Text: "index bloat", Topics: []string{"DATABASE"}}),
	)
	g := p.Graph()

	topic := soleNode(t, g, types.NodeTopic)
	if topic.Content.Detail.What != "postgres tuning" {
		t.Errorf("declaration did not backfill topic description: %q", topic.Content.Detail.What)
	}
	if in := g.Edges(topic.ID, types.DirIn); len(in) != 2 {
		t.Errorf("topic has %d inbound edges, want 2 memos", len(in))
	}
}

func TestLinkIdempotentUnderReplay(t *testing.T) {
	p := NewProjector(New(), nil)
	mustApply(t, p,
		ev(1, types.EventArtifactConfirmed, &types.ArtifactConfirmedPayload{ArtifactType: "decision", Summary: "a"}),
		ev(2, types.EventArtifactConfirmed, &types.ArtifactConfirmedPayload{ArtifactType: "constraint", Summary: "b"}),
	)
	g := p.Graph()
	a := soleNode(t, g, types.NodeDecision)
	b := soleNode(t, g, types.NodeConstraint)

	link := func(seq int) *types.Event {
		return ev(seq, types.EventLinkCreated, &types.LinkCreatedPayload{
			SourceID: a.ID, TargetID: b.ID, Relation: types.RelSupports,
		})
	}
	deltas := mustApply(t, p, link(3), link(4))
	if len(deltas[0].EdgesAdded) != 1 {
		t.Fatalf("first link delta = %+v, want one edge", deltas[0])
	}
	if !deltas[1].Empty() {
		t.Errorf("second identical link should be a no-op, delta = %+v", deltas[1])
	}
	if got := len(g.Edges(a.ID, types.DirOut)); got != 1 {
		t.Errorf("edge count = %d, want 1", got)
	}
}

func TestApplySameEventTwiceIsNoOp(t *testing.T) {
	p := NewProjector(New(), nil)
	e := ev(1, types.EventPurposeDeclared, &types.PurposeDeclaredPayload{What: "once"})
	mustApply(t, p, e)
	d, err := p.Apply(e)
	if err != nil {
		t.Fatal(err)
	}
	if !d.Empty() {
		t.Errorf("re-applying the same event produced delta %+v", d)
	}
	if got := len(p.Graph().NodesByType(types.NodePurpose)); got != 1 {
		t.Errorf("purpose count = %d, want 1", got)
	}
}

func TestNewPurposeSupersedesOld(t *testing.T) {
	p := NewProjector(New(), nil)
	mustApply(t, p,
		ev(1, types.EventPurposeDeclared, &types.PurposeDeclaredPayload{What: "v1 goal"}),
		ev(2, types.EventPurposeDeclared, &types.PurposeDeclaredPayload{What: "v2 goal"}),
	)
	g := p.Graph()

	purposes := g.NodesByType(types.NodePurpose)
	if len(purposes) != 2 {
		t.Fatalf("purpose count = %d, want both kept", len(purposes))
	}
	old, cur := purposes[0], purposes[1]
	if old.Status != types.StatusSuperseded {
		t.Errorf("old purpose status = %s, want superseded", old.Status)
	}
	if cur.Status != types.StatusActive {
		t.Errorf("new purpose status = %s, want active", cur.Status)
	}
	if active := g.ActivePurpose(); active.ID != cur.ID {
		t.Errorf("ActivePurpose() = %s, want %s", active.ID, cur.ID)
	}
	edges := g.Edges(cur.ID, types.DirOut)
	if len(edges) != 1 || edges[0].Relation != types.RelSupersedes || edges[0].TargetID != old.ID {
		t.Errorf("supersedes edge missing, got %+v", edges)
	}
}

func TestDeprecationPreservesHistory(t *testing.T) {
	p := NewProjector(New(), nil)
	mustApply(t, p, ev(1, types.EventArtifactConfirmed, &types.ArtifactConfirmedPayload{
		ArtifactType: "decision", Summary: "use rest",
	}))
	g := p.Graph()
	old := soleNode(t, g, types.NodeDecision)

	mustApply(t, p, ev(2, types.EventDeprecated, &types.DeprecatedPayload{
		TargetID: old.ID, Reason: "grpc won",
	}))
	got := g.Node(old.ID)
	if got == nil {
		t.Fatal("deprecated node was removed from the graph")
	}
	if got.Status != types.StatusDeprecated {
		t.Errorf("status = %s, want deprecated", got.Status)
	}
	if got.Content.Summary != "use rest" {
		t.Errorf("content changed on deprecation: %q", got.Content.Summary)
	}
}

func TestDeprecationWithSuccessor(t *testing.T) {
	p := NewProjector(New(), nil)
	mustApply(t, p,
		ev(1, types.EventArtifactConfirmed, &types.ArtifactConfirmedPayload{ArtifactType: "decision", Summary: "use rest"}),
		ev(2, types.EventArtifactConfirmed, &types.ArtifactConfirmedPayload{ArtifactType: "decision", Summary: "use grpc"}),
	)
	g := p.Graph()
	decisions := g.NodesByType(types.NodeDecision)
	old, succ := decisions[0], decisions[1]

	mustApply(t, p, ev(3, types.EventDeprecated, &types.DeprecatedPayload{
		TargetID: old.ID, SupersededBy: succ.ID,
	}))

	if got := g.Node(old.ID); got.Status != types.StatusSuperseded {
		t.Errorf("status = %s, want superseded", got.Status)
	}
	edges := g.Edges(succ.ID, types.DirOut)
	found := false
	for _, e := range edges {
		if e.Relation == types.RelSupersedes && e.TargetID == old.ID {
			found = true
		}
	}
	if !found {
		t.Errorf("successor missing supersedes edge, got %+v", edges)
	}
}

func TestQuestionLifecycle(t *testing.T) {
	p := NewProjector(New(), nil)
	mustApply(t, p, ev(1, types.EventQuestionRaised, &types.QuestionRaisedPayload{
		Question: "retry or fail fast?",
	}))
	g := p.Graph()
	q := soleNode(t, g, types.NodeQuestion)
	if q.Status != types.StatusActive {
		t.Fatalf("new question status = %s", q.Status)
	}

	mustApply(t, p, ev(2, types.EventQuestionResolved, &types.QuestionResolvedPayload{
		QuestionID: q.ID, Resolution: "retry with backoff, fail after 3",
	}))
	got := g.Node(q.ID)
	if got.Status != types.StatusResolved {
		t.Errorf("resolved question status = %s", got.Status)
	}
	if got.Content.Detail.Why != "retry with backoff, fail after 3" {
		t.Errorf("resolution text not recorded: %q", got.Content.Detail.Why)
	}
}

func TestChallengeCreatesTensionEdge(t *testing.T) {
	p := NewProjector(New(), nil)
	mustApply(t, p, ev(1, types.EventArtifactConfirmed, &types.ArtifactConfirmedPayload{
		ArtifactType: "decision", Summary: "cache everything",
	}))
	g := p.Graph()
	target := soleNode(t, g, types.NodeDecision)

	deltas := mustApply(t, p, ev(2, types.EventChallengeRaised, &types.ChallengeRaisedPayload{
		TargetID: target.ID, Challenge: "cache invalidation is unsolved here",
	}))
	if len(deltas[0].Tensions) != 1 {
		t.Fatalf("challenge delta tensions = %v, want 1", deltas[0].Tensions)
	}
	tension := soleNode(t, g, types.NodeTension)
	edges := g.Edges(tension.ID, types.DirOut)
	if len(edges) != 1 || edges[0].Relation != types.RelChallenges || edges[0].TargetID != target.ID {
		t.Errorf("challenges edge wrong: %+v", edges)
	}
}

func TestDanglingReferenceBecomesTension(t *testing.T) {
	p := NewProjector(New(), nil)
	deltas := mustApply(t, p, ev(1, types.EventLinkCreated, &types.LinkCreatedPayload{
		SourceID: "decision_missing1", TargetID: "decision_missing2", Relation: types.RelSupports,
	}))
	g := p.Graph()

	if len(deltas[0].Tensions) != 1 {
		t.Fatalf("dangling link delta = %+v, want one tension", deltas[0])
	}
	if got := g.Stats().Edges; got != 0 {
		t.Errorf("dangling link created %d edges", got)
	}
	soleNode(t, g, types.NodeTension)
}

func TestValidationBits(t *testing.T) {
	p := NewProjector(New(), nil)
	mustApply(t, p, ev(1, types.EventArtifactConfirmed, &types.ArtifactConfirmedPayload{
		ArtifactType: "principle", Summary: "prefer boring tech",
	}))
	g := p.Graph()
	n := soleNode(t, g, types.NodePrinciple)
	if n.Consensus || n.Evidence {
		t.Fatalf("fresh artifact already validated: %+v", n)
	}

	mustApply(t, p,
		ev(2, types.EventEndorsed, &types.EndorsedPayload{TargetID: n.ID}),
		ev(3, types.EventEvidenceAttached, &types.EvidenceAttachedPayload{TargetID: n.ID, Evidence: "incident 42 postmortem"}),
	)
	got := g.Node(n.ID)
	if !got.Consensus {
		t.Error("endorsement did not set consensus")
	}
	if !got.Evidence {
		t.Error("evidence attachment did not set evidence")
	}
}

func TestCommitCapturedLinksArtifacts(t *testing.T) {
	p := NewProjector(New(), nil)
	mustApply(t, p, ev(1, types.EventArtifactConfirmed, &types.ArtifactConfirmedPayload{
		ArtifactType: "decision", Summary: "switch to ulid",
	}))
	g := p.Graph()
	dec := soleNode(t, g, types.NodeDecision)

	mustApply(t, p, ev(2, types.EventCommitCaptured, &types.CommitCapturedPayload{
		Hash:        "deadbeefcafe0123",
		Message:     "ids: switch task ids to ulid\n\nlonger body here",
		Author:      "ada",
		ArtifactIDs: []string{dec.ID},
	}))

	commit := soleNode(t, g, types.NodeCommit)
	if commit.Content.Summary != "deadbeefcafe ids: switch task ids to ulid" {
		t.Errorf("commit summary = %q", commit.Content.Summary)
	}
	edges := g.Edges(commit.ID, types.DirIn)
	if len(edges) != 1 || edges[0].Relation != types.RelLinksToCommit || edges[0].SourceID != dec.ID {
		t.Errorf("links_to_commit edge wrong: %+v", edges)
	}
}

func TestUnknownEventTypeIsInvisible(t *testing.T) {
	p := NewProjector(New(), nil)
	d, err := p.Apply(&types.Event{
		ID:        "ev_future0001",
		Type:      types.EventType("HOLOGRAM_RENDERED"),
		Data:      []byte(`{"anything":true}`),
		CreatedAt: testBase,
		Scope:     types.ScopeShared,
	})
	if err != nil {
		t.Fatalf("unknown event type must not error, got %v", err)
	}
	if !d.Empty() {
		t.Errorf("unknown event type changed the graph: %+v", d)
	}
}

func TestNeighborsDepthAndRelationFilter(t *testing.T) {
	p := NewProjector(New(), nil)
	mustApply(t, p,
		ev(1, types.EventPurposeDeclared, &types.PurposeDeclaredPayload{What: "goal"}),
		ev(2, types.EventArtifactConfirmed, &types.ArtifactConfirmedPayload{ArtifactType: "decision", Summary: "d1"}),
		ev(3, types.EventArtifactConfirmed, &types.ArtifactConfirmedPayload{ArtifactType: "constraint", Summary: "c1"}),
	)
	g := p.Graph()
	purpose := soleNode(t, g, types.NodePurpose)
	dec := soleNode(t, g, types.NodeDecision)
	con := soleNode(t, g, types.NodeConstraint)

	mustApply(t, p, ev(4, types.EventLinkCreated, &types.LinkCreatedPayload{
		SourceID: con.ID, TargetID: dec.ID, Relation: types.RelSupports,
	}))

	// Depth 1 from the purpose reaches its informers only.
	hop1 := g.Neighbors(purpose.ID, nil, 1)
	if len(hop1) != 2 {
		t.Fatalf("depth-1 neighbors = %d, want 2 (both artifacts inform)", len(hop1))
	}

	// Relation filter: supports only, from the decision.
	supports := g.Neighbors(dec.ID, []types.Relation{types.RelSupports}, 1)
	if len(supports) != 1 || supports[0].ID != con.ID {
		t.Errorf("supports neighbors = %+v, want only %s", supports, con.ID)
	}
}
