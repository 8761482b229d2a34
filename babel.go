// Package babel provides a minimal public API for embedding babel in other tools.
//
// Most integrations should shell out to the babel CLI or read the .babel/
// journals directly; the JSONL format is the stable contract. This package
// exports only the essential types and the Open function needed for Go
// programs that want to drive a workspace programmatically.
package babel

import (
	"context"

	"github.com/babelhq/babel/internal/types"
	"github.com/babelhq/babel/internal/workspace"
)

// Core types for working with the intent graph.
type (
	Node     = types.Node
	Edge     = types.Edge
	Event    = types.Event
	NodeType = types.NodeType
	Scope    = types.Scope
	Relation = types.Relation
)

// Scope constants.
const (
	ScopeShared = types.ScopeShared
	ScopeLocal  = types.ScopeLocal
)

// Node type constants for the artifact kinds most callers filter on.
const (
	NodeDecision    = types.NodeDecision
	NodeConstraint  = types.NodeConstraint
	NodePrinciple   = types.NodePrinciple
	NodeRequirement = types.NodeRequirement
	NodePurpose     = types.NodePurpose
	NodeQuestion    = types.NodeQuestion
	NodeTension     = types.NodeTension
	NodeProposal    = types.NodeProposal
)

// Workspace is an open babel project: journals, graph, and indexes.
type Workspace = workspace.Workspace

// Options controls how Open prepares the workspace.
type Options = workspace.Options

// CaptureOptions selects what a capture becomes.
type CaptureOptions = workspace.CaptureOptions

// Open loads the workspace rooted at dir or its nearest ancestor holding a
// .babel directory. Callers own the returned workspace and must Close it.
func Open(ctx context.Context, dir string, opts Options) (*Workspace, error) {
	return workspace.Open(ctx, dir, opts)
}
