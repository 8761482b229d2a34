package graph

import (
	"fmt"
	"strings"
	"time"

	"github.com/babelhq/babel/internal/idgen"
	"github.com/babelhq/babel/internal/types"
)

// StatusChange records one node lifecycle transition inside a delta.
type StatusChange struct {
	NodeID string           `json:"node_id"`
	From   types.NodeStatus `json:"from"`
	To     types.NodeStatus `json:"to"`
}

// Delta is what one event did to the graph. Watch mode prints these; the
// cache persists them.
type Delta struct {
	EventID       string          `json:"event_id"`
	NodesAdded    []string        `json:"nodes_added,omitempty"`
	EdgesAdded    []types.EdgeKey `json:"edges_added,omitempty"`
	StatusChanges []StatusChange  `json:"status_changes,omitempty"`
	NodesUpdated  []string        `json:"nodes_updated,omitempty"`
	Tensions      []string        `json:"tensions,omitempty"`
}

// Empty reports whether the event changed nothing (duplicate replay, unknown
// type, idempotent link).
func (d *Delta) Empty() bool {
	return len(d.NodesAdded) == 0 && len(d.EdgesAdded) == 0 &&
		len(d.StatusChanges) == 0 && len(d.NodesUpdated) == 0
}

// Projector folds events into a Graph. The fold is deterministic: the same
// event sequence always produces the same graph, so every replica that has
// synced the same journals sees the same projection. Conflicts never stop the
// fold; they become tension nodes and the next event proceeds.
type Projector struct {
	g     *Graph
	cache *Cache

	// tensionSeq disambiguates multiple tensions minted by one event so
	// their derived ids stay deterministic.
	tensionSeq map[string]int
}

// NewProjector creates a projector over g. cache may be nil (pure in-memory
// projection, used by tests and by rebuild-before-swap).
func NewProjector(g *Graph, cache *Cache) *Projector {
	return &Projector{g: g, cache: cache, tensionSeq: make(map[string]int)}
}

// Graph returns the projection target.
func (p *Projector) Graph() *Graph { return p.g }

// Apply folds one event into the graph and returns the delta. Applying the
// same event twice is a no-op. The only errors are cache write failures; bad
// payloads and dangling references degrade to tension nodes.
func (p *Projector) Apply(ev *types.Event) (*Delta, error) {
	p.g.mu.Lock()
	d := &Delta{EventID: ev.ID}
	if !p.g.applied[ev.ID] {
		p.g.applied[ev.ID] = true
		p.applyLocked(ev, d)
	}
	p.g.mu.Unlock()

	if p.cache != nil && !d.Empty() {
		if err := p.cache.persist(p.g, d); err != nil {
			return d, fmt.Errorf("persist projection of %s: %w", ev.ID, err)
		}
	}
	return d, nil
}

// Rebuild discards all derived state and folds the full event sequence. The
// caller supplies events in canonical replay order.
func (p *Projector) Rebuild(events []*types.Event) error {
	p.g.mu.Lock()
	p.g.reset()
	p.tensionSeq = make(map[string]int)
	for _, ev := range events {
		if p.g.applied[ev.ID] {
			continue
		}
		p.g.applied[ev.ID] = true
		p.applyLocked(ev, &Delta{EventID: ev.ID})
	}
	p.g.mu.Unlock()

	if p.cache != nil {
		if err := p.cache.Rewrite(p.g, len(events), lastID(events)); err != nil {
			return fmt.Errorf("rewrite projection cache: %w", err)
		}
	}
	return nil
}

func lastID(events []*types.Event) string {
	if len(events) == 0 {
		return ""
	}
	return events[len(events)-1].ID
}

// RecordTension mints a tension node for damage found outside projection:
// a quarantined duplicate id with a diverging payload, or a corrupt journal
// line. seed disambiguates tensions from the same source; the derived id is
// stable across rebuilds so replicas converge on the same node.
func (p *Projector) RecordTension(seed string, scope types.Scope, at time.Time, summary, detail string) (string, error) {
	ev := &types.Event{ID: seed, Scope: scope, CreatedAt: at.UTC()}
	d := &Delta{EventID: seed}

	p.g.mu.Lock()
	p.tension(ev, d, summary, detail, "")
	p.g.mu.Unlock()

	if p.cache != nil && !d.Empty() {
		if err := p.cache.persist(p.g, d); err != nil {
			return "", fmt.Errorf("persist tension for %s: %w", seed, err)
		}
	}
	if len(d.Tensions) == 0 {
		return "", nil
	}
	return d.Tensions[0], nil
}

// applyLocked dispatches one event to its projection rule. Caller holds g.mu.
func (p *Projector) applyLocked(ev *types.Event, d *Delta) {
	payload, err := types.DecodePayload(ev)
	if err != nil {
		p.tension(ev, d, fmt.Sprintf("undecodable %s payload", ev.Type), err.Error(), "")
		return
	}

	switch pl := payload.(type) {
	case *types.ProjectCreatedPayload:
		p.applyProjectCreated(ev, pl, d)
	case *types.PurposeDeclaredPayload:
		p.applyPurposeDeclared(ev, pl, d)
	case *types.StructureProposedPayload:
		p.applyStructureProposed(ev, pl, d)
	case *types.ArtifactConfirmedPayload:
		p.applyArtifactConfirmed(ev, pl, d)
	case *types.QuestionRaisedPayload:
		p.applyQuestionRaised(ev, pl, d)
	case *types.QuestionResolvedPayload:
		p.applyQuestionResolved(ev, pl, d)
	case *types.ChallengeRaisedPayload:
		p.applyChallengeRaised(ev, pl, d)
	case *types.EndorsedPayload:
		p.applyValidationBit(ev, pl.TargetID, d, func(n *types.Node) { n.Consensus = true })
	case *types.EvidenceAttachedPayload:
		p.applyValidationBit(ev, pl.TargetID, d, func(n *types.Node) { n.Evidence = true })
	case *types.DeprecatedPayload:
		p.applyDeprecated(ev, pl, d)
	case *types.LinkCreatedPayload:
		p.applyLinkCreated(ev, pl, d)
	case *types.CommitCapturedPayload:
		p.applyCommitCaptured(ev, pl, d)
	case *types.MemoCapturedPayload:
		p.applyMemoCaptured(ev, pl, d)
	case *types.TopicDeclaredPayload:
		p.applyTopicDeclared(ev, pl, d)
	default:
		// Unknown event type: carried in the log, invisible in the graph.
	}
}

// newNode inserts a node derived from ev, handling id collisions. A collision
// between two distinct events is a projection conflict and becomes a tension;
// the earlier node wins.
func (p *Projector) newNode(ev *types.Event, d *Delta, n *types.Node) bool {
	if existing, ok := p.g.nodes[n.ID]; ok {
		if existing.OriginEventID == n.OriginEventID {
			return false
		}
		p.tension(ev, d,
			fmt.Sprintf("node id collision on %s", n.ID),
			fmt.Sprintf("events %s and %s both derive node %s; keeping the earlier one", existing.OriginEventID, n.OriginEventID, n.ID),
			n.ID)
		return false
	}
	p.g.addNode(n)
	d.NodesAdded = append(d.NodesAdded, n.ID)
	return true
}

// newEdge inserts an edge, recording it in the delta unless it already
// existed (idempotent replay of the same link).
func (p *Projector) newEdge(ev *types.Event, d *Delta, source, target string, rel types.Relation) {
	e := &types.Edge{SourceID: source, TargetID: target, Relation: rel, OriginEventID: ev.ID}
	if p.g.addEdge(e) {
		d.EdgesAdded = append(d.EdgesAdded, e.Key())
	}
}

// tension mints a tension node for a projection conflict. Ids are derived
// from the offending event plus a per-event sequence so a replay regenerates
// the same tensions.
func (p *Projector) tension(ev *types.Event, d *Delta, summary, detail, targetID string) {
	seq := p.tensionSeq[ev.ID]
	p.tensionSeq[ev.ID] = seq + 1
	seed := ev.ID
	if seq > 0 {
		seed = fmt.Sprintf("%s#%d", ev.ID, seq)
	}
	id := idgen.NodeID(string(types.NodeTension), seed)
	n := &types.Node{
		ID:            id,
		Type:          types.NodeTension,
		Content:       types.NodeContent{Summary: summary, Detail: types.NodeDetail{What: detail}},
		OriginEventID: ev.ID,
		Scope:         ev.Scope,
		Status:        types.StatusActive,
		CreatedAt:     ev.CreatedAt,
		UpdatedAt:     ev.CreatedAt,
	}
	if _, exists := p.g.nodes[id]; !exists {
		p.g.addNode(n)
		d.NodesAdded = append(d.NodesAdded, id)
		d.Tensions = append(d.Tensions, id)
	}
	if targetID != "" {
		if _, ok := p.g.nodes[targetID]; ok {
			p.newEdge(ev, d, id, targetID, types.RelChallenges)
		}
	}
}

// markStatus transitions a node's lifecycle status.
func (p *Projector) markStatus(ev *types.Event, d *Delta, n *types.Node, to types.NodeStatus) {
	if n.Status == to {
		return
	}
	d.StatusChanges = append(d.StatusChanges, StatusChange{NodeID: n.ID, From: n.Status, To: to})
	n.Status = to
	n.UpdatedAt = ev.CreatedAt
}

func (p *Projector) applyProjectCreated(ev *types.Event, pl *types.ProjectCreatedPayload, d *Delta) {
	id := idgen.NodeID(string(types.NodeProject), ev.ID)
	n := &types.Node{
		ID:            id,
		Type:          types.NodeProject,
		Content:       types.NodeContent{Summary: pl.Name, Detail: types.NodeDetail{What: pl.Need}},
		OriginEventID: ev.ID,
		Scope:         ev.Scope,
		Status:        types.StatusActive,
		CreatedAt:     ev.CreatedAt,
		UpdatedAt:     ev.CreatedAt,
	}
	if p.newNode(ev, d, n) {
		p.g.activeProject = id
	}
}

func (p *Projector) applyPurposeDeclared(ev *types.Event, pl *types.PurposeDeclaredPayload, d *Delta) {
	id := idgen.NodeID(string(types.NodePurpose), ev.ID)
	n := &types.Node{
		ID:            id,
		Type:          types.NodePurpose,
		Content:       types.NodeContent{Summary: pl.What, Detail: types.NodeDetail{What: pl.What, Why: pl.Why}},
		OriginEventID: ev.ID,
		Scope:         ev.Scope,
		Status:        types.StatusActive,
		CreatedAt:     ev.CreatedAt,
		UpdatedAt:     ev.CreatedAt,
	}
	if !p.newNode(ev, d, n) {
		return
	}
	// A new purpose supersedes the previous one; the old node stays for
	// history and the supersedes edge records the handoff.
	if prev := p.g.activePurpose; prev != "" && prev != id {
		if old, ok := p.g.nodes[prev]; ok {
			p.markStatus(ev, d, old, types.StatusSuperseded)
			p.newEdge(ev, d, id, prev, types.RelSupersedes)
		}
	}
	p.g.activePurpose = id
}

func (p *Projector) applyStructureProposed(ev *types.Event, pl *types.StructureProposedPayload, d *Delta) {
	id := idgen.NodeID(string(types.NodeProposal), ev.ID)
	n := &types.Node{
		ID:   id,
		Type: types.NodeProposal,
		Content: types.NodeContent{
			Summary: pl.Summary,
			Detail:  types.NodeDetail{What: pl.What, Why: pl.Why},
			Domain:  pl.Domain,
		},
		OriginEventID: ev.ID,
		Scope:         ev.Scope,
		Status:        types.StatusActive,
		CreatedAt:     ev.CreatedAt,
		UpdatedAt:     ev.CreatedAt,
	}
	p.newNode(ev, d, n)
}

func (p *Projector) applyArtifactConfirmed(ev *types.Event, pl *types.ArtifactConfirmedPayload, d *Delta) {
	at, err := types.ArtifactType(pl.ArtifactType)
	if err != nil {
		p.tension(ev, d, fmt.Sprintf("confirmation with invalid artifact type %q", pl.ArtifactType), err.Error(), "")
		return
	}

	content := types.NodeContent{
		Summary: pl.Summary,
		Detail:  types.NodeDetail{What: pl.What, Why: pl.Why},
		Domain:  pl.Domain,
	}

	// Inherit from the proposal whatever the confirmation left blank.
	var proposal *types.Node
	if pl.ProposalID != "" {
		prop, ok := p.g.nodes[pl.ProposalID]
		if !ok || prop.Type != types.NodeProposal {
			p.tension(ev, d,
				fmt.Sprintf("confirmation references missing proposal %s", pl.ProposalID),
				"the artifact is projected standalone", "")
		} else {
			proposal = prop
			if content.Summary == "" {
				content.Summary = prop.Content.Summary
			}
			if content.Detail.What == "" {
				content.Detail.What = prop.Content.Detail.What
			}
			if content.Detail.Why == "" {
				content.Detail.Why = prop.Content.Detail.Why
			}
			if content.Domain == "" {
				content.Domain = prop.Content.Domain
			}
		}
	}

	id := idgen.NodeID(string(at), ev.ID)
	n := &types.Node{
		ID:            id,
		Type:          at,
		Content:       content,
		OriginEventID: ev.ID,
		Scope:         ev.Scope,
		Status:        types.StatusActive,
		CreatedAt:     ev.CreatedAt,
		UpdatedAt:     ev.CreatedAt,
	}
	if !p.newNode(ev, d, n) {
		return
	}

	if proposal != nil {
		p.markStatus(ev, d, proposal, types.StatusSuperseded)
		p.newEdge(ev, d, id, proposal.ID, types.RelSupersedes)
	}

	// New artifacts inform the purpose they were confirmed under.
	purposeID := pl.PurposeID
	if purposeID == "" {
		purposeID = p.g.activePurpose
	}
	if purposeID != "" && purposeID != id {
		if _, ok := p.g.nodes[purposeID]; ok {
			p.newEdge(ev, d, id, purposeID, types.RelInforms)
		} else {
			p.tension(ev, d,
				fmt.Sprintf("confirmation references missing purpose %s", purposeID),
				"artifact projected without an informs edge", "")
		}
	}
}

func (p *Projector) applyQuestionRaised(ev *types.Event, pl *types.QuestionRaisedPayload, d *Delta) {
	id := idgen.NodeID(string(types.NodeQuestion), ev.ID)
	n := &types.Node{
		ID:   id,
		Type: types.NodeQuestion,
		Content: types.NodeContent{
			Summary: pl.Question,
			Detail:  types.NodeDetail{What: pl.Context},
		},
		OriginEventID: ev.ID,
		Scope:         ev.Scope,
		Status:        types.StatusActive,
		CreatedAt:     ev.CreatedAt,
		UpdatedAt:     ev.CreatedAt,
	}
	if !p.newNode(ev, d, n) {
		return
	}
	if pl.TargetID != "" {
		if _, ok := p.g.nodes[pl.TargetID]; ok {
			p.newEdge(ev, d, id, pl.TargetID, types.RelAppliesTo)
		} else {
			p.tension(ev, d,
				fmt.Sprintf("question anchored to missing node %s", pl.TargetID),
				"question projected without an applies_to edge", "")
		}
	}
}

func (p *Projector) applyQuestionResolved(ev *types.Event, pl *types.QuestionResolvedPayload, d *Delta) {
	q, ok := p.g.nodes[pl.QuestionID]
	if !ok || q.Type != types.NodeQuestion {
		p.tension(ev, d,
			fmt.Sprintf("resolution references missing question %s", pl.QuestionID),
			pl.Resolution, "")
		return
	}
	p.markStatus(ev, d, q, types.StatusResolved)
	if pl.Resolution != "" && q.Content.Detail.Why == "" {
		q.Content.Detail.Why = pl.Resolution
		q.UpdatedAt = ev.CreatedAt
	}
	d.NodesUpdated = append(d.NodesUpdated, q.ID)
}

func (p *Projector) applyChallengeRaised(ev *types.Event, pl *types.ChallengeRaisedPayload, d *Delta) {
	id := idgen.NodeID(string(types.NodeTension), ev.ID)
	n := &types.Node{
		ID:   id,
		Type: types.NodeTension,
		Content: types.NodeContent{
			Summary: pl.Challenge,
			Detail:  types.NodeDetail{What: pl.Severity},
		},
		OriginEventID: ev.ID,
		Scope:         ev.Scope,
		Status:        types.StatusActive,
		CreatedAt:     ev.CreatedAt,
		UpdatedAt:     ev.CreatedAt,
	}
	p.tensionSeq[ev.ID]++
	if !p.newNode(ev, d, n) {
		return
	}
	d.Tensions = append(d.Tensions, id)
	if pl.TargetID != "" {
		if _, ok := p.g.nodes[pl.TargetID]; ok {
			p.newEdge(ev, d, id, pl.TargetID, types.RelChallenges)
		}
	}
}

func (p *Projector) applyValidationBit(ev *types.Event, targetID string, d *Delta, set func(*types.Node)) {
	n, ok := p.g.nodes[targetID]
	if !ok {
		p.tension(ev, d,
			fmt.Sprintf("%s references missing node %s", ev.Type, targetID),
			"", "")
		return
	}
	set(n)
	n.UpdatedAt = ev.CreatedAt
	d.NodesUpdated = append(d.NodesUpdated, n.ID)
}

func (p *Projector) applyDeprecated(ev *types.Event, pl *types.DeprecatedPayload, d *Delta) {
	n, ok := p.g.nodes[pl.TargetID]
	if !ok {
		p.tension(ev, d,
			fmt.Sprintf("deprecation references missing node %s", pl.TargetID),
			pl.Reason, "")
		return
	}
	if pl.SupersededBy != "" {
		if succ, ok := p.g.nodes[pl.SupersededBy]; ok {
			p.markStatus(ev, d, n, types.StatusSuperseded)
			p.newEdge(ev, d, succ.ID, n.ID, types.RelSupersedes)
			return
		}
		p.tension(ev, d,
			fmt.Sprintf("deprecation names missing successor %s", pl.SupersededBy),
			"target deprecated without a supersedes edge", n.ID)
	}
	p.markStatus(ev, d, n, types.StatusDeprecated)
}

func (p *Projector) applyLinkCreated(ev *types.Event, pl *types.LinkCreatedPayload, d *Delta) {
	if !pl.Relation.IsValid() {
		p.tension(ev, d, fmt.Sprintf("link with unknown relation %q", pl.Relation), "", "")
		return
	}
	if _, ok := p.g.nodes[pl.SourceID]; !ok {
		p.tension(ev, d, fmt.Sprintf("link from missing node %s", pl.SourceID), "", "")
		return
	}
	if _, ok := p.g.nodes[pl.TargetID]; !ok {
		p.tension(ev, d, fmt.Sprintf("link to missing node %s", pl.TargetID), "", pl.SourceID)
		return
	}
	p.newEdge(ev, d, pl.SourceID, pl.TargetID, pl.Relation)
}

func (p *Projector) applyCommitCaptured(ev *types.Event, pl *types.CommitCapturedPayload, d *Delta) {
	subject := pl.Message
	if i := strings.IndexByte(subject, '\n'); i >= 0 {
		subject = subject[:i]
	}
	short := pl.Hash
	if len(short) > 12 {
		short = short[:12]
	}
	summary := strings.TrimSpace(short + " " + subject)

	id := idgen.NodeID(string(types.NodeCommit), ev.ID)
	n := &types.Node{
		ID:   id,
		Type: types.NodeCommit,
		Content: types.NodeContent{
			Summary: summary,
			Detail:  types.NodeDetail{What: pl.Message, Why: pl.Author},
		},
		OriginEventID: ev.ID,
		Scope:         ev.Scope,
		Status:        types.StatusActive,
		CreatedAt:     ev.CreatedAt,
		UpdatedAt:     ev.CreatedAt,
	}
	if !p.newNode(ev, d, n) {
		return
	}
	for _, aid := range pl.ArtifactIDs {
		if _, ok := p.g.nodes[aid]; ok {
			p.newEdge(ev, d, aid, id, types.RelLinksToCommit)
		} else {
			p.tension(ev, d,
				fmt.Sprintf("commit %s references missing artifact %s", short, aid),
				"", id)
		}
	}
}

func (p *Projector) applyMemoCaptured(ev *types.Event, pl *types.MemoCapturedPayload, d *Delta) {
	summary := pl.Text
	if i := strings.IndexByte(summary, '\n'); i >= 0 {
		summary = summary[:i]
	}
	id := idgen.NodeID(string(types.NodeMemo), ev.ID)
	n := &types.Node{
		ID:   id,
		Type: types.NodeMemo,
		Content: types.NodeContent{
			Summary: summary,
			Detail:  types.NodeDetail{What: pl.Text},
		},
		OriginEventID: ev.ID,
		Scope:         ev.Scope,
		Status:        types.StatusActive,
		CreatedAt:     ev.CreatedAt,
		UpdatedAt:     ev.CreatedAt,
	}
	if !p.newNode(ev, d, n) {
		return
	}
	for _, topic := range pl.Topics {
		tid := p.ensureTopic(ev, d, topic, "")
		if tid != "" {
			p.newEdge(ev, d, id, tid, types.RelAppliesTo)
		}
	}
}

func (p *Projector) applyTopicDeclared(ev *types.Event, pl *types.TopicDeclaredPayload, d *Delta) {
	p.ensureTopic(ev, d, pl.Topic, pl.Description)
}

// ensureTopic creates or refreshes a topic node. Topic ids derive from the
// normalized topic name, not the event, so every event that mentions "auth"
// converges on the same node across scopes and replicas.
func (p *Projector) ensureTopic(ev *types.Event, d *Delta, topic, description string) string {
	slug := strings.ToLower(strings.TrimSpace(topic))
	if slug == "" {
		return ""
	}
	id := idgen.NodeID(string(types.NodeTopic), slug)
	if n, ok := p.g.nodes[id]; ok {
		if description != "" && n.Content.Detail.What == "" {
			n.Content.Detail.What = description
			n.UpdatedAt = ev.CreatedAt
			d.NodesUpdated = append(d.NodesUpdated, id)
		}
		return id
	}
	n := &types.Node{
		ID:   id,
		Type: types.NodeTopic,
		Content: types.NodeContent{
			Summary: slug,
			Detail:  types.NodeDetail{What: description},
		},
		OriginEventID: ev.ID,
		Scope:         ev.Scope,
		Status:        types.StatusActive,
		CreatedAt:     ev.CreatedAt,
		UpdatedAt:     ev.CreatedAt,
	}
	p.g.addNode(n)
	d.NodesAdded = append(d.NodesAdded, id)
	return id
}
