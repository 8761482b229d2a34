package types

import (
	"fmt"
	"time"
)

// NodeType classifies projected nodes. Artifact types (decision, constraint,
// principle, requirement, purpose) are the confirmed reasoning nodes; the rest
// are structural.
type NodeType string

const (
	NodeProject     NodeType = "project"
	NodePurpose     NodeType = "purpose"
	NodeProposal    NodeType = "proposal"
	NodeDecision    NodeType = "decision"
	NodeConstraint  NodeType = "constraint"
	NodePrinciple   NodeType = "principle"
	NodeRequirement NodeType = "requirement"
	NodeTension     NodeType = "tension"
	NodeQuestion    NodeType = "question"
	NodeMemo        NodeType = "memo"
	NodeTopic       NodeType = "topic"
	NodeSymbol      NodeType = "symbol"
	NodeCommit      NodeType = "commit"
)

// IsArtifact reports whether the node type is a confirmed reasoning artifact.
func (t NodeType) IsArtifact() bool {
	switch t {
	case NodePurpose, NodeDecision, NodeConstraint, NodePrinciple, NodeRequirement:
		return true
	}
	return false
}

// ArtifactType parses a user- or extractor-supplied artifact type name.
func ArtifactType(s string) (NodeType, error) {
	switch NodeType(s) {
	case NodeDecision, NodeConstraint, NodePrinciple, NodeRequirement, NodePurpose:
		return NodeType(s), nil
	}
	return "", fmt.Errorf("invalid artifact type %q (want decision, constraint, principle, requirement, or purpose)", s)
}

// NodeStatus is the only mutable aspect of a node. Deprecation and
// supersession are status transitions, never deletions.
type NodeStatus string

const (
	StatusActive     NodeStatus = "active"
	StatusSuperseded NodeStatus = "superseded"
	StatusDeprecated NodeStatus = "deprecated"
	StatusResolved   NodeStatus = "resolved"
)

// NodeDetail carries the two questions every artifact should answer.
type NodeDetail struct {
	What string `json:"what,omitempty"`
	Why  string `json:"why,omitempty"`
}

// NodeContent is the structured payload of a node.
type NodeContent struct {
	Summary string     `json:"summary"`
	Detail  NodeDetail `json:"detail,omitempty"`
	Domain  string     `json:"domain,omitempty"`
}

// Node is a derived entity: it exists iff at least one confirming event
// projects it, and its identity is derived from that event.
type Node struct {
	ID            string      `json:"id"`
	Type          NodeType    `json:"type"`
	Content       NodeContent `json:"content"`
	OriginEventID string      `json:"origin_event_id"`
	Scope         Scope       `json:"scope"`
	Status        NodeStatus  `json:"status"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`

	// Validation bits, set by ENDORSED / EVIDENCE_ATTACHED.
	Consensus bool `json:"consensus,omitempty"`
	Evidence  bool `json:"evidence,omitempty"`
}

// Clone returns a copy safe to hand to concurrent readers.
func (n *Node) Clone() *Node {
	out := *n
	return &out
}

// Relation labels a directed edge between nodes.
type Relation string

const (
	RelSupports      Relation = "supports"
	RelInforms       Relation = "informs"
	RelChallenges    Relation = "challenges"
	RelResolves      Relation = "resolves"
	RelSupersedes    Relation = "supersedes"
	RelAppliesTo     Relation = "applies_to"
	RelLinksToCommit Relation = "links_to_commit"
)

// IsValid reports whether the relation is one babel projects.
func (r Relation) IsValid() bool {
	switch r {
	case RelSupports, RelInforms, RelChallenges, RelResolves, RelSupersedes, RelAppliesTo, RelLinksToCommit:
		return true
	}
	return false
}

// Edge is a directed, set-valued link: at most one edge exists per
// (source, target, relation) regardless of how many events assert it.
type Edge struct {
	SourceID      string   `json:"source_id"`
	TargetID      string   `json:"target_id"`
	Relation      Relation `json:"relation"`
	OriginEventID string   `json:"origin_event_id"`
}

// Key returns the identity triple that makes edges idempotent.
func (e Edge) Key() EdgeKey {
	return EdgeKey{Source: e.SourceID, Target: e.TargetID, Relation: e.Relation}
}

// EdgeKey is the set identity of an edge.
type EdgeKey struct {
	Source   string
	Target   string
	Relation Relation
}

// Direction selects which edges of a node a query walks.
type Direction int

const (
	DirOut Direction = iota
	DirIn
	DirBoth
)
