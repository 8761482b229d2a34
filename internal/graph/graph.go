// Package graph holds the derived knowledge graph: the deterministic fold of
// the event journals into nodes and edges, the queries commands read, and the
// sqlite cache that makes reopening a large project cheap. Nothing in here is
// source of truth; drop graph.db and the next open rebuilds it from the log.
package graph

import (
	"sort"
	"sync"

	"github.com/babelhq/babel/internal/types"
)

// Graph is the in-memory projection. One writer (the projector) mutates it;
// any number of readers may query concurrently.
type Graph struct {
	mu    sync.RWMutex
	nodes map[string]*types.Node
	edges map[types.EdgeKey]*types.Edge

	// adjacency by node id, maintained on edge insert
	out map[string][]types.EdgeKey
	in  map[string][]types.EdgeKey

	// applied guards against double-projecting an event during overlapping
	// replays (open + watcher sync racing).
	applied map[string]bool

	activeProject string
	activePurpose string
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes:   make(map[string]*types.Node),
		edges:   make(map[types.EdgeKey]*types.Edge),
		out:     make(map[string][]types.EdgeKey),
		in:      make(map[string][]types.EdgeKey),
		applied: make(map[string]bool),
	}
}

// Node returns a copy of the node, or nil when absent.
func (g *Graph) Node(id string) *types.Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	if !ok {
		return nil
	}
	return n.Clone()
}

// NodeIDs returns every node id, sorted. The resolver decodes short codes
// against this set.
func (g *Graph) NodeIDs() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Nodes returns every node, sorted by id for deterministic iteration.
func (g *Graph) Nodes() []*types.Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*types.Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// NodesByType returns nodes of one type, sorted by creation time then id.
func (g *Graph) NodesByType(t types.NodeType) []*types.Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []*types.Node
	for _, n := range g.nodes {
		if n.Type == t {
			out = append(out, n.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Edges returns the edges touching a node in the given direction, sorted by
// (source, target, relation).
func (g *Graph) Edges(id string, dir types.Direction) []*types.Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var keys []types.EdgeKey
	switch dir {
	case types.DirOut:
		keys = g.out[id]
	case types.DirIn:
		keys = g.in[id]
	case types.DirBoth:
		keys = append(append([]types.EdgeKey(nil), g.out[id]...), g.in[id]...)
	}

	out := make([]*types.Edge, 0, len(keys))
	for _, k := range keys {
		if e, ok := g.edges[k]; ok {
			c := *e
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SourceID != out[j].SourceID {
			return out[i].SourceID < out[j].SourceID
		}
		if out[i].TargetID != out[j].TargetID {
			return out[i].TargetID < out[j].TargetID
		}
		return out[i].Relation < out[j].Relation
	})
	return out
}

// Neighbors walks edges (optionally filtered by relation) out to depth hops
// from id and returns the reached nodes, excluding the start. Breadth-first,
// so the nearest occurrence of a node decides when it is visited.
func (g *Graph) Neighbors(id string, relations []types.Relation, depth int) []*types.Node {
	if depth < 1 {
		depth = 1
	}
	want := make(map[types.Relation]bool, len(relations))
	for _, r := range relations {
		want[r] = true
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	visited := map[string]bool{id: true}
	frontier := []string{id}
	var reached []string

	for hop := 0; hop < depth && len(frontier) > 0; hop++ {
		var next []string
		for _, cur := range frontier {
			for _, k := range append(append([]types.EdgeKey(nil), g.out[cur]...), g.in[cur]...) {
				if len(want) > 0 && !want[k.Relation] {
					continue
				}
				other := k.Target
				if other == cur {
					other = k.Source
				}
				if visited[other] {
					continue
				}
				visited[other] = true
				next = append(next, other)
				reached = append(reached, other)
			}
		}
		frontier = next
	}

	sort.Strings(reached)
	out := make([]*types.Node, 0, len(reached))
	for _, nid := range reached {
		if n, ok := g.nodes[nid]; ok {
			out = append(out, n.Clone())
		}
	}
	return out
}

// ActivePurpose returns the current purpose node, or nil before one is
// declared.
func (g *Graph) ActivePurpose() *types.Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.activePurpose == "" {
		return nil
	}
	n, ok := g.nodes[g.activePurpose]
	if !ok {
		return nil
	}
	return n.Clone()
}

// Stats summarizes the graph for status output.
type Stats struct {
	Nodes   int                      `json:"nodes"`
	Edges   int                      `json:"edges"`
	ByType  map[types.NodeType]int   `json:"by_type"`
	ByState map[types.NodeStatus]int `json:"by_status"`
}

// Stats counts nodes and edges by type and status.
func (g *Graph) Stats() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s := Stats{
		Nodes:   len(g.nodes),
		Edges:   len(g.edges),
		ByType:  make(map[types.NodeType]int),
		ByState: make(map[types.NodeStatus]int),
	}
	for _, n := range g.nodes {
		s.ByType[n.Type]++
		s.ByState[n.Status]++
	}
	return s
}

// MarkApplied records event ids as already folded. Used after loading the
// graph from cache so a later incremental apply skips them.
func (g *Graph) MarkApplied(eventIDs ...string) {
	g.mu.Lock()
	for _, id := range eventIDs {
		g.applied[id] = true
	}
	g.mu.Unlock()
}

// reset drops all derived state. Caller must hold g.mu.
func (g *Graph) reset() {
	g.nodes = make(map[string]*types.Node)
	g.edges = make(map[types.EdgeKey]*types.Edge)
	g.out = make(map[string][]types.EdgeKey)
	g.in = make(map[string][]types.EdgeKey)
	g.applied = make(map[string]bool)
	g.activeProject = ""
	g.activePurpose = ""
}

// addNode inserts a node. Caller must hold g.mu and have checked for id
// conflicts; the projector owns that policy.
func (g *Graph) addNode(n *types.Node) {
	g.nodes[n.ID] = n
}

// addEdge inserts an edge if its (source, target, relation) key is new.
// Returns false for the idempotent duplicate case. Caller must hold g.mu.
func (g *Graph) addEdge(e *types.Edge) bool {
	k := e.Key()
	if _, exists := g.edges[k]; exists {
		return false
	}
	g.edges[k] = e
	g.out[e.SourceID] = append(g.out[e.SourceID], k)
	g.in[e.TargetID] = append(g.in[e.TargetID], k)
	return true
}
