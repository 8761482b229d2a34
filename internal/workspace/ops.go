package workspace

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/babelhq/babel/internal/eventlog"
	"github.com/babelhq/babel/internal/extract"
	"github.com/babelhq/babel/internal/graph"
	"github.com/babelhq/babel/internal/idgen"
	"github.com/babelhq/babel/internal/orchestrator"
	"github.com/babelhq/babel/internal/refs"
	"github.com/babelhq/babel/internal/resolver"
	"github.com/babelhq/babel/internal/types"
)

// ErrAlreadyInitialized is returned by Init when the project has one.
var ErrAlreadyInitialized = fmt.Errorf("workspace: project already initialized")

// artifactContextCap bounds how many existing artifacts are rendered into the
// extractor's context.
const artifactContextCap = 20

// InitReport describes what Init created.
type InitReport struct {
	ProjectEventID string
	PurposeEventID string
	ProjectNodeID  string
	PurposeNodeID  string
}

// Init seeds a fresh project: PROJECT_CREATED, then PURPOSE_DECLARED when a
// purpose is given. Both land in the shared journal; a project belongs to the
// team.
func (ws *Workspace) Init(ctx context.Context, name, need, purpose string) (*InitReport, error) {
	if len(ws.Graph.NodesByType(types.NodeProject)) > 0 {
		return nil, ErrAlreadyInitialized
	}
	if name == "" {
		name = filepath.Base(ws.Root)
	}

	rep := &InitReport{}
	id, err := ws.Append(ctx, &types.Event{
		Type:  types.EventProjectCreated,
		Scope: types.ScopeShared,
		Data:  types.MustMarshal(&types.ProjectCreatedPayload{Name: name, Need: need}),
	})
	if err != nil {
		return nil, err
	}
	rep.ProjectEventID = id
	rep.ProjectNodeID = idgen.NodeID(string(types.NodeProject), id)

	if purpose != "" {
		pid, err := ws.Append(ctx, &types.Event{
			Type:      types.EventPurposeDeclared,
			Scope:     types.ScopeShared,
			ParentIDs: []string{id},
			Data:      types.MustMarshal(&types.PurposeDeclaredPayload{What: purpose, Why: need}),
		})
		if err != nil {
			return nil, err
		}
		rep.PurposeEventID = pid
		rep.PurposeNodeID = idgen.NodeID(string(types.NodePurpose), pid)
	}
	return rep, nil
}

// CaptureOptions selects what a capture becomes.
type CaptureOptions struct {
	Text  string
	Scope types.Scope // defaults to shared

	// Type short-circuits extraction: the text is confirmed directly as this
	// artifact type (decision, constraint, principle, requirement, purpose).
	Type   string
	Why    string
	Domain string

	// Memo captures a personal note instead of running extraction. Memos
	// default to local scope.
	Memo   bool
	Topics []string
}

// ProposalRef points at a projected proposal node awaiting confirmation.
type ProposalRef struct {
	NodeID   string
	EventID  string
	Code     string
	Proposal extract.Proposal
}

// CaptureOutcome reports what a capture appended.
type CaptureOutcome struct {
	// SourceEventID is the event holding the raw text (memo or capture).
	SourceEventID string

	// ArtifactNodeID is set for direct typed captures.
	ArtifactNodeID string

	// Proposals lists extractor output awaiting confirmation, and Extractor
	// names what produced it.
	Proposals []ProposalRef
	Extractor string

	// Queued is true when the text was also parked for a later LLM pass.
	Queued bool
}

// Capture records free text. Typed captures confirm immediately; memos
// journal a note; everything else runs the extractor and journals its
// proposals for later confirmation. The raw text is always journaled first,
// so no words are lost even when extraction finds nothing.
func (ws *Workspace) Capture(ctx context.Context, opts CaptureOptions) (*CaptureOutcome, error) {
	text := strings.TrimSpace(opts.Text)
	if text == "" {
		return nil, fmt.Errorf("workspace: nothing to capture")
	}
	scope := opts.Scope
	if scope == "" {
		scope = types.ScopeShared
		if opts.Memo {
			scope = types.ScopeLocal
		}
	}

	if opts.Memo {
		id, err := ws.Append(ctx, &types.Event{
			Type:  types.EventMemoCaptured,
			Scope: scope,
			Data:  types.MustMarshal(&types.MemoCapturedPayload{Text: text, Topics: opts.Topics}),
		})
		if err != nil {
			return nil, err
		}
		return &CaptureOutcome{SourceEventID: id}, nil
	}

	if opts.Type != "" {
		at, err := types.ArtifactType(opts.Type)
		if err != nil {
			return nil, err
		}
		id, err := ws.Append(ctx, &types.Event{
			Type:  types.EventArtifactConfirmed,
			Scope: scope,
			Data: types.MustMarshal(&types.ArtifactConfirmedPayload{
				ArtifactType: string(at),
				Summary:      text,
				Why:          opts.Why,
				Domain:       opts.Domain,
			}),
		})
		if err != nil {
			return nil, err
		}
		return &CaptureOutcome{
			SourceEventID:  id,
			ArtifactNodeID: idgen.NodeID(string(at), id),
		}, nil
	}

	// Untyped capture: journal the raw text, then propose structure.
	sourceID, err := ws.Append(ctx, &types.Event{
		Type:  types.EventMemoCaptured,
		Scope: scope,
		Data:  types.MustMarshal(&types.MemoCapturedPayload{Text: text, Topics: opts.Topics}),
	})
	if err != nil {
		return nil, err
	}

	out := &CaptureOutcome{SourceEventID: sourceID}
	artifactCtx := ws.artifactContext()

	// When an LLM is configured but unreachable, park the text for the next
	// online pass and still extract heuristically so the user sees something.
	if ws.Provider != nil && !ws.Provider.IsAvailable(ctx) && ws.Queue != nil {
		if err := ws.Queue.Enqueue(text, sourceID, artifactCtx); err == nil {
			out.Queued = true
		}
	}

	ex := ws.Extractor(ctx)
	out.Extractor = ex.Name()
	proposals, err := ex.Extract(ctx, text, sourceID, artifactCtx)
	if err != nil {
		return out, fmt.Errorf("workspace: extract: %w", err)
	}

	for _, p := range proposals {
		ref, err := ws.propose(ctx, p, scope, sourceID)
		if err != nil {
			return out, err
		}
		out.Proposals = append(out.Proposals, ref)
	}
	return out, nil
}

// propose journals one STRUCTURE_PROPOSED event and returns the handle the
// confirm flow needs.
func (ws *Workspace) propose(ctx context.Context, p extract.Proposal, scope types.Scope, sourceID string) (ProposalRef, error) {
	pl := p.Payload()
	if pl.SourceID == "" {
		pl.SourceID = sourceID
	}
	id, err := ws.Append(ctx, &types.Event{
		Type:      types.EventStructureProposed,
		Scope:     scope,
		ParentIDs: []string{sourceID},
		Data:      types.MustMarshal(pl),
	})
	if err != nil {
		return ProposalRef{}, err
	}
	nodeID := idgen.NodeID(string(types.NodeProposal), id)
	return ProposalRef{
		NodeID:   nodeID,
		EventID:  id,
		Code:     idgen.Encode(nodeID),
		Proposal: p,
	}, nil
}

// ReExtract runs structure extraction again over a previously captured text,
// journaling fresh proposals. The reference may be an event id or anything
// the resolver accepts; it must lead to a MEMO_CAPTURED event.
func (ws *Workspace) ReExtract(ctx context.Context, ref string) (*CaptureOutcome, error) {
	ev, err := ws.Event(ctx, ref)
	if err != nil {
		n, rerr := ws.Resolve(ref)
		if rerr != nil {
			return nil, rerr
		}
		if ev, err = ws.Event(ctx, n.OriginEventID); err != nil {
			return nil, err
		}
	}
	if ev.Type != types.EventMemoCaptured {
		return nil, fmt.Errorf("workspace: %s is a %s event, not captured text", ev.ID, ev.Type)
	}
	payload, err := types.DecodePayload(ev)
	if err != nil {
		return nil, err
	}
	memo, ok := payload.(*types.MemoCapturedPayload)
	if !ok || strings.TrimSpace(memo.Text) == "" {
		return nil, fmt.Errorf("workspace: %s carries no text to extract from", ev.ID)
	}

	out := &CaptureOutcome{SourceEventID: ev.ID}
	artifactCtx := ws.artifactContext()
	if ws.Provider != nil && !ws.Provider.IsAvailable(ctx) && ws.Queue != nil {
		if err := ws.Queue.Enqueue(memo.Text, ev.ID, artifactCtx); err == nil {
			out.Queued = true
		}
	}

	ex := ws.Extractor(ctx)
	out.Extractor = ex.Name()
	proposals, err := ex.Extract(ctx, memo.Text, ev.ID, artifactCtx)
	if err != nil {
		return out, fmt.Errorf("workspace: extract: %w", err)
	}
	for _, p := range proposals {
		pref, err := ws.propose(ctx, p, ev.Scope, ev.ID)
		if err != nil {
			return out, err
		}
		out.Proposals = append(out.Proposals, pref)
	}
	return out, nil
}

// Confirm promotes a proposal into an artifact. overrideType replaces the
// proposal's own artifact type when non-empty. Returns the artifact node id.
func (ws *Workspace) Confirm(ctx context.Context, proposalRef, overrideType string) (string, error) {
	n, err := ws.Resolve(proposalRef)
	if err != nil {
		return "", err
	}
	if n.Type != types.NodeProposal {
		return "", fmt.Errorf("workspace: %s is a %s, not a proposal", n.ID, n.Type)
	}
	if n.Status != types.StatusActive {
		return "", fmt.Errorf("workspace: proposal %s is already %s", n.ID, n.Status)
	}

	at := overrideType
	if at == "" {
		if origin, _ := ws.Event(ctx, n.OriginEventID); origin != nil {
			if payload, err := types.DecodePayload(origin); err == nil {
				if sp, ok := payload.(*types.StructureProposedPayload); ok {
					at = sp.ArtifactType
				}
			}
		}
	}

	// Question proposals confirm into raised questions, not artifacts.
	if at == string(types.NodeQuestion) {
		return ws.confirmQuestion(ctx, n)
	}

	typed, err := types.ArtifactType(at)
	if err != nil {
		return "", err
	}

	id, err := ws.Append(ctx, &types.Event{
		Type:      types.EventArtifactConfirmed,
		Scope:     n.Scope,
		ParentIDs: []string{n.OriginEventID},
		Data: types.MustMarshal(&types.ArtifactConfirmedPayload{
			ProposalID:   n.ID,
			ArtifactType: string(typed),
		}),
	})
	if err != nil {
		return "", err
	}
	return idgen.NodeID(string(typed), id), nil
}

// confirmQuestion raises the proposal's text as a question and supersedes the
// proposal with the new question node.
func (ws *Workspace) confirmQuestion(ctx context.Context, proposal *types.Node) (string, error) {
	id, err := ws.Append(ctx, &types.Event{
		Type:      types.EventQuestionRaised,
		Scope:     proposal.Scope,
		ParentIDs: []string{proposal.OriginEventID},
		Data:      types.MustMarshal(&types.QuestionRaisedPayload{Question: proposal.Content.Summary}),
	})
	if err != nil {
		return "", err
	}
	questionID := idgen.NodeID(string(types.NodeQuestion), id)
	_, err = ws.Append(ctx, &types.Event{
		Type:      types.EventDeprecated,
		Scope:     proposal.Scope,
		ParentIDs: []string{id},
		Data: types.MustMarshal(&types.DeprecatedPayload{
			TargetID:     proposal.ID,
			SupersededBy: questionID,
		}),
	})
	if err != nil {
		return "", err
	}
	return questionID, nil
}

// Reject deprecates a proposal so it stops surfacing, without deleting
// anything.
func (ws *Workspace) Reject(ctx context.Context, proposalRef, reason string) error {
	n, err := ws.Resolve(proposalRef)
	if err != nil {
		return err
	}
	_, err = ws.Append(ctx, &types.Event{
		Type:      types.EventDeprecated,
		Scope:     n.Scope,
		ParentIDs: []string{n.OriginEventID},
		Data:      types.MustMarshal(&types.DeprecatedPayload{TargetID: n.ID, Reason: reason}),
	})
	return err
}

// Endorse marks consensus on a node. The projector flips its consensus bit.
func (ws *Workspace) Endorse(ctx context.Context, ref, comment string) error {
	n, err := ws.Resolve(ref)
	if err != nil {
		return err
	}
	_, err = ws.Append(ctx, &types.Event{
		Type:      types.EventEndorsed,
		Scope:     n.Scope,
		ParentIDs: []string{n.OriginEventID},
		Data:      types.MustMarshal(&types.EndorsedPayload{TargetID: n.ID, Comment: comment}),
	})
	return err
}

// AttachEvidence records supporting material on a node and sets its evidence
// bit.
func (ws *Workspace) AttachEvidence(ctx context.Context, ref, evidence, source string) error {
	if strings.TrimSpace(evidence) == "" {
		return fmt.Errorf("workspace: evidence text is required")
	}
	n, err := ws.Resolve(ref)
	if err != nil {
		return err
	}
	_, err = ws.Append(ctx, &types.Event{
		Type:      types.EventEvidenceAttached,
		Scope:     n.Scope,
		ParentIDs: []string{n.OriginEventID},
		Data: types.MustMarshal(&types.EvidenceAttachedPayload{
			TargetID: n.ID,
			Evidence: evidence,
			Source:   source,
		}),
	})
	return err
}

// ResolveQuestion closes an open question with its resolution.
func (ws *Workspace) ResolveQuestion(ctx context.Context, ref, resolution string) error {
	n, err := ws.Resolve(ref)
	if err != nil {
		return err
	}
	if n.Type != types.NodeQuestion {
		return fmt.Errorf("workspace: %s is a %s, not a question", n.ID, n.Type)
	}
	if n.Status != types.StatusActive {
		return fmt.Errorf("workspace: question %s is already %s", n.ID, n.Status)
	}
	_, err = ws.Append(ctx, &types.Event{
		Type:      types.EventQuestionResolved,
		Scope:     n.Scope,
		ParentIDs: []string{n.OriginEventID},
		Data: types.MustMarshal(&types.QuestionResolvedPayload{
			QuestionID: n.ID,
			Resolution: resolution,
		}),
	})
	return err
}

// Challenge records a tension against an existing node. The disagreement
// becomes part of the graph; nothing is edited or removed. Returns the
// tension node id.
func (ws *Workspace) Challenge(ctx context.Context, ref, challenge, severity string) (string, error) {
	if strings.TrimSpace(challenge) == "" {
		return "", fmt.Errorf("workspace: challenge text is required")
	}
	n, err := ws.Resolve(ref)
	if err != nil {
		return "", err
	}
	id, err := ws.Append(ctx, &types.Event{
		Type:      types.EventChallengeRaised,
		Scope:     n.Scope,
		ParentIDs: []string{n.OriginEventID},
		Data: types.MustMarshal(&types.ChallengeRaisedPayload{
			TargetID:  n.ID,
			Challenge: challenge,
			Severity:  severity,
		}),
	})
	if err != nil {
		return "", err
	}
	return idgen.NodeID(string(types.NodeTension), id), nil
}

// Link asserts a typed edge between two existing nodes. The edge is shared
// only when both ends are: a shared event naming a local node would project
// a tension on every other clone.
func (ws *Workspace) Link(ctx context.Context, fromRef, toRef string, rel types.Relation) error {
	if !rel.IsValid() {
		return fmt.Errorf("workspace: unknown relation %q", rel)
	}
	from, err := ws.Resolve(fromRef)
	if err != nil {
		return err
	}
	to, err := ws.Resolve(toRef)
	if err != nil {
		return err
	}
	scope := types.ScopeShared
	if from.Scope == types.ScopeLocal || to.Scope == types.ScopeLocal {
		scope = types.ScopeLocal
	}
	_, err = ws.Append(ctx, &types.Event{
		Type:      types.EventLinkCreated,
		Scope:     scope,
		ParentIDs: []string{from.OriginEventID},
		Data: types.MustMarshal(&types.LinkCreatedPayload{
			SourceID: from.ID,
			TargetID: to.ID,
			Relation: rel,
		}),
	})
	return err
}

// CaptureCommit journals a VCS commit and links it to the referenced
// artifacts. Each reference must resolve unambiguously. An empty author
// falls back to the workspace actor.
func (ws *Workspace) CaptureCommit(ctx context.Context, hash, message, author string, artifactRefs []string) (string, error) {
	if hash == "" {
		return "", fmt.Errorf("workspace: commit hash is required")
	}
	if author == "" {
		author = ws.Actor
	}
	ids := make([]string, 0, len(artifactRefs))
	for _, ref := range artifactRefs {
		n, err := ws.Resolve(ref)
		if err != nil {
			return "", err
		}
		ids = append(ids, n.ID)
	}
	return ws.Append(ctx, &types.Event{
		Type:  types.EventCommitCaptured,
		Scope: types.ScopeShared,
		Data: types.MustMarshal(&types.CommitCapturedPayload{
			Hash:        hash,
			Message:     message,
			Author:      author,
			ArtifactIDs: ids,
		}),
	})
}

// DeclareTopic journals a shared TOPIC_DECLARED event. Topic nodes converge
// by normalized name, so declaring "Auth" and tagging memos with "auth" land
// on the same node; a description backfills bare topics created by tagging.
// Returns the topic node id.
func (ws *Workspace) DeclareTopic(ctx context.Context, topic, description string) (string, error) {
	slug := strings.ToLower(strings.TrimSpace(topic))
	if slug == "" {
		return "", fmt.Errorf("workspace: topic name is required")
	}
	_, err := ws.Append(ctx, &types.Event{
		Type:  types.EventTopicDeclared,
		Scope: types.ScopeShared,
		Data: types.MustMarshal(&types.TopicDeclaredPayload{
			Topic:       slug,
			Description: description,
		}),
	})
	if err != nil {
		return "", err
	}
	return idgen.NodeID(string(types.NodeTopic), slug), nil
}

// Resolve runs the reference ladder (exact id, short code, id prefix, fuzzy
// text) and fails loudly on ambiguity.
func (ws *Workspace) Resolve(ref string) (*types.Node, error) {
	res := resolver.Resolve(ref, ws.Graph)
	if n := res.Node(); n != nil {
		return n, nil
	}
	return nil, ws.resolveError(ref, res)
}

// resolveError turns a failed resolution into the error users see, listing
// candidates on ambiguity.
func (ws *Workspace) resolveError(input string, res resolver.Result) error {
	if res.Status == resolver.StatusAmbiguous {
		var names []string
		for _, m := range res.Matches {
			names = append(names, fmt.Sprintf("%s (%s)", m.Node.ID, m.Node.Content.Summary))
		}
		return fmt.Errorf("workspace: %q is ambiguous between: %s", input, strings.Join(names, "; "))
	}
	return fmt.Errorf("workspace: nothing matches %q; try 'babel status' to list artifacts", input)
}

// WhyReport is everything the why command renders about one node.
type WhyReport struct {
	Resolution resolver.Result
	Node       *types.Node
	Code       string
	Origin     *types.Event
	Parents    []*types.Event
	Out        []*types.Edge
	In         []*types.Edge
	Related    []*types.Node
}

// Resolved reports whether the reference landed on a node.
func (r *WhyReport) Resolved() bool { return r.Node != nil }

// Why answers "why is this here": the node a reference resolves to, the event
// that created it, that event's causal parents, its edges, and the neighbors
// within depth hops. Ambiguity comes back in the report for the caller to
// show; it is never auto-picked.
func (ws *Workspace) Why(ctx context.Context, ref string, depth int) (*WhyReport, error) {
	if depth < 1 {
		depth = 2
	}
	rep := &WhyReport{Resolution: resolver.Resolve(ref, ws.Graph)}
	n := rep.Resolution.Node()
	if n == nil {
		return rep, nil
	}

	rep.Node = n
	rep.Code = idgen.Encode(n.ID)
	rep.Out = ws.Graph.Edges(n.ID, types.DirOut)
	rep.In = ws.Graph.Edges(n.ID, types.DirIn)
	rep.Related = ws.Graph.Neighbors(n.ID, nil, depth)

	if origin, err := ws.Event(ctx, n.OriginEventID); err == nil && origin != nil {
		rep.Origin = origin
		for _, pid := range origin.ParentIDs {
			if parent, err := ws.Event(ctx, pid); err == nil && parent != nil {
				rep.Parents = append(rep.Parents, parent)
			}
		}
	}
	return rep, nil
}

// StatusReport is the project health snapshot behind the status command.
type StatusReport struct {
	Root    string
	Project *types.Node
	Purpose *types.Node

	SharedEvents int
	LocalEvents  int
	Conflicts    int
	CorruptLines int

	Graph graph.Stats

	OpenQuestions  []*types.Node
	ActiveTensions []*types.Node
	Pending        []*types.Node
	PinnedTopics   []string

	SymbolFiles  int
	SymbolCount  int
	ExtractQueue int

	Provider string
	Parallel bool
	Tasks    orchestrator.Summary
}

// Status assembles the snapshot. Pure reads; safe at any time.
func (ws *Workspace) Status(ctx context.Context) (*StatusReport, error) {
	rep := &StatusReport{
		Root:         ws.Root,
		SharedEvents: ws.Log.Count(types.ScopeShared),
		LocalEvents:  ws.Log.Count(types.ScopeLocal),
		Conflicts:    len(ws.Log.Conflicts()),
		Graph:        ws.Graph.Stats(),
		Parallel:     ws.Orch.Enabled(),
		Tasks:        ws.Orch.Summary(),
	}
	for _, lines := range ws.Log.CorruptLines() {
		rep.CorruptLines += len(lines)
	}

	if projects := ws.Graph.NodesByType(types.NodeProject); len(projects) > 0 {
		rep.Project = projects[0]
	}
	rep.Purpose = ws.Graph.ActivePurpose()

	// Muted nodes stay in the graph but stop surfacing here; muting is a
	// local preference, not history.
	surface := func(n *types.Node) bool {
		return n.Status == types.StatusActive && !ws.Memos.IsMuted(n.ID)
	}
	for _, n := range ws.Graph.NodesByType(types.NodeQuestion) {
		if surface(n) {
			rep.OpenQuestions = append(rep.OpenQuestions, n)
		}
	}
	for _, n := range ws.Graph.NodesByType(types.NodeTension) {
		if surface(n) {
			rep.ActiveTensions = append(rep.ActiveTensions, n)
		}
	}
	for _, n := range ws.Graph.NodesByType(types.NodeProposal) {
		if surface(n) {
			rep.Pending = append(rep.Pending, n)
		}
	}
	rep.PinnedTopics = ws.Memos.Pinned()

	rep.SymbolFiles, rep.SymbolCount = ws.Symbols.Counts()
	if ws.Queue != nil {
		rep.ExtractQueue = ws.Queue.Len()
	}
	if ws.Provider != nil {
		rep.Provider = ws.Provider.Name()
	}
	return rep, nil
}

// EventFilter narrows what History returns. An empty scope means both
// journals; Limit keeps the most recent N after the other filters.
type EventFilter struct {
	Scope types.Scope
	Since time.Time
	Types []types.EventType
	Limit int
}

// History returns journaled events in canonical replay order, filtered.
func (ws *Workspace) History(filter EventFilter) ([]*types.Event, error) {
	events, err := ws.Log.Merged()
	if err != nil {
		return nil, err
	}
	want := make(map[types.EventType]bool, len(filter.Types))
	for _, t := range filter.Types {
		want[t] = true
	}
	var out []*types.Event
	for _, ev := range events {
		if filter.Scope != "" && ev.Scope != filter.Scope {
			continue
		}
		if !filter.Since.IsZero() && ev.CreatedAt.Before(filter.Since) {
			continue
		}
		if len(want) > 0 && !want[ev.Type] {
			continue
		}
		out = append(out, ev)
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[len(out)-filter.Limit:]
	}
	return out, nil
}

// SearchResult pairs a scored ref-index hit with its hydrated event.
type SearchResult struct {
	EventID string
	Score   float64
	Event   *types.Event
}

// Search runs a token query over the ref index and hydrates the hits under
// the budget. Partial hydration is reported, never silent.
func (ws *Workspace) Search(ctx context.Context, query string, budget refs.TokenBudget) ([]SearchResult, bool, error) {
	matches := ws.Refs.Search(query)
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.EventID
	}
	loaded, err := ws.Loader.Load(ctx, ids, budget)
	if err != nil {
		return nil, false, err
	}
	byID := make(map[string]*types.Event, len(loaded.Events))
	for _, ev := range loaded.Events {
		byID[ev.ID] = ev
	}
	var out []SearchResult
	for _, m := range matches {
		ev, ok := byID[m.EventID]
		if !ok {
			continue
		}
		out = append(out, SearchResult{EventID: m.EventID, Score: m.Score, Event: ev})
	}
	return out, loaded.Complete, nil
}

// SyncOutcome is the sync report plus what the workspace did about it.
type SyncOutcome struct {
	Report       *eventlog.SyncReport
	TensionNodes []string
	DrainedQueue int
	NewProposals []ProposalRef
	GraphRebuilt bool
}

// Sync re-reads the journals (after a pull or merge), rebuilds the projection
// and ref index, projects quarantined conflicts and corrupt lines as
// tensions, and drains the extract queue when a provider is reachable.
func (ws *Workspace) Sync(ctx context.Context) (*SyncOutcome, error) {
	report, err := ws.Log.Sync(ctx)
	if err != nil {
		return nil, err
	}
	out := &SyncOutcome{Report: report}

	ws.applyMu.Lock()
	events, err := ws.Log.Merged()
	if err != nil {
		ws.applyMu.Unlock()
		return out, err
	}
	ws.events = make(map[string]*types.Event, len(events))
	ws.Refs.Reset()
	for _, ev := range events {
		ws.events[ev.ID] = ev
		ws.Refs.Add(ev)
	}
	err = ws.Projector.Rebuild(events)
	ws.applyMu.Unlock()
	if err != nil {
		return out, err
	}
	out.GraphRebuilt = true
	out.TensionNodes = ws.recordDamage()

	if ws.Queue != nil && ws.Queue.Len() > 0 && ws.Provider != nil && ws.Provider.IsAvailable(ctx) {
		proposals, derr := ws.Queue.Drain(ctx, extract.NewLLMExtractor(ws.Provider))
		if derr == nil {
			out.DrainedQueue = len(proposals)
			for _, p := range proposals {
				ref, perr := ws.propose(ctx, p, types.ScopeShared, p.SourceID)
				if perr != nil {
					return out, perr
				}
				out.NewProposals = append(out.NewProposals, ref)
			}
		}
	}
	return out, nil
}

// WatchJournal runs Sync whenever the shared journal changes on disk,
// debounced. fn receives each outcome; errors included. Close stops it.
func (ws *Workspace) WatchJournal(ctx context.Context, fn func(*SyncOutcome, error)) error {
	w, err := ws.Log.Watch(ws.Settings.WatchDebounce, func() {
		fn(ws.Sync(ctx))
	})
	if err != nil {
		return err
	}
	ws.watcher = w
	return nil
}

// artifactContext renders active artifacts for the extractor so it avoids
// proposing what already exists. Capped; newest first.
func (ws *Workspace) artifactContext() string {
	var active []*types.Node
	for _, t := range []types.NodeType{
		types.NodePurpose, types.NodeDecision, types.NodeConstraint,
		types.NodePrinciple, types.NodeRequirement,
	} {
		for _, n := range ws.Graph.NodesByType(t) {
			if n.Status == types.StatusActive {
				active = append(active, n)
			}
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].CreatedAt.After(active[j].CreatedAt) })
	if len(active) > artifactContextCap {
		active = active[:artifactContextCap]
	}
	var b strings.Builder
	for _, n := range active {
		fmt.Fprintf(&b, "- [%s] %s\n", n.Type, n.Content.Summary)
	}
	return b.String()
}
