// Package resolver turns user-supplied references into graph nodes. A
// reference can be a full node id (decision_8a3f2k1p), an AA-BB short code, a
// unique id prefix, or free text matched against node summaries. The ladder
// tries them in that order and stops at the first rung that produces
// candidates; ambiguity is always reported back, never resolved by guessing.
package resolver

import (
	"sort"
	"strings"

	"github.com/babelhq/babel/internal/graph"
	"github.com/babelhq/babel/internal/idgen"
	"github.com/babelhq/babel/internal/refs"
	"github.com/babelhq/babel/internal/types"
)

// Status classifies a resolution outcome.
type Status string

const (
	StatusResolved  Status = "resolved"
	StatusAmbiguous Status = "ambiguous"
	StatusNone      Status = "none"
)

// Fuzzy matching bounds. A node needs at least fuzzyThreshold to be a
// candidate, and the best candidate must beat the runner-up by fuzzyMargin
// to resolve outright.
const (
	fuzzyThreshold = 0.5
	fuzzyMargin    = 0.25
	maxMatches     = 8
)

// Match pairs a candidate node with its match score.
type Match struct {
	Node  *types.Node
	Score float64
}

// Result is the outcome of one resolution attempt. Matches is sorted best
// first and is non-empty for resolved and ambiguous results.
type Result struct {
	Status  Status
	Input   string
	Matches []Match
}

// Node returns the resolved node, or nil unless Status is resolved.
func (r Result) Node() *types.Node {
	if r.Status != StatusResolved || len(r.Matches) == 0 {
		return nil
	}
	return r.Matches[0].Node
}

// IDs returns the candidate node ids best first.
func (r Result) IDs() []string {
	out := make([]string, len(r.Matches))
	for i, m := range r.Matches {
		out[i] = m.Node.ID
	}
	return out
}

// Resolve runs the reference ladder against the graph.
func Resolve(input string, g *graph.Graph) Result {
	input = strings.TrimSpace(input)
	if input == "" || g == nil {
		return Result{Status: StatusNone, Input: input}
	}

	// Rung 1: exact node id.
	if n := g.Node(input); n != nil {
		return resolved(input, n)
	}

	// Rung 2: AA-BB short code against the known id set.
	if idgen.IsCode(input) {
		if id, ok := idgen.Decode(input, g.NodeIDs()); ok {
			if n := g.Node(id); n != nil {
				return resolved(input, n)
			}
		}
	}

	// Rung 3: unique id prefix. Only inputs shaped like an id fragment
	// (type_hash) qualify; bare words fall through to fuzzy matching.
	if strings.Contains(input, "_") {
		if r, ok := byIDPrefix(input, g); ok {
			return r
		}
	}

	// Rung 4: token-scored fuzzy match against node summaries.
	return byFuzzyScore(input, g)
}

func resolved(input string, n *types.Node) Result {
	return Result{
		Status:  StatusResolved,
		Input:   input,
		Matches: []Match{{Node: n, Score: 1.0}},
	}
}

// byIDPrefix matches input as a case-insensitive prefix of node ids. A unique
// hit resolves; multiple hits are ambiguous and reported as they stand.
func byIDPrefix(input string, g *graph.Graph) (Result, bool) {
	prefix := strings.ToLower(input)
	var matches []Match
	for _, id := range g.NodeIDs() {
		if strings.HasPrefix(strings.ToLower(id), prefix) {
			matches = append(matches, Match{Node: g.Node(id), Score: 1.0})
		}
	}
	switch len(matches) {
	case 0:
		return Result{}, false
	case 1:
		return Result{Status: StatusResolved, Input: input, Matches: matches}, true
	}
	sortMatches(matches)
	return Result{Status: StatusAmbiguous, Input: input, Matches: capMatches(matches)}, true
}

// byFuzzyScore rates every node summary against the input tokens. Each query
// token contributes its best hit across the summary tokens; the node score is
// the average, so partial phrases degrade smoothly instead of dropping out.
func byFuzzyScore(input string, g *graph.Graph) Result {
	queryTokens := refs.Tokenize(input)
	if len(queryTokens) == 0 {
		return Result{Status: StatusNone, Input: input}
	}

	var matches []Match
	for _, n := range g.Nodes() {
		score := scoreSummary(queryTokens, n.Content.Summary)
		if score >= fuzzyThreshold {
			matches = append(matches, Match{Node: n, Score: score})
		}
	}
	if len(matches) == 0 {
		return Result{Status: StatusNone, Input: input}
	}

	sortMatches(matches)
	if len(matches) == 1 || matches[0].Score-matches[1].Score >= fuzzyMargin {
		return Result{Status: StatusResolved, Input: input, Matches: capMatches(matches)}
	}
	return Result{Status: StatusAmbiguous, Input: input, Matches: capMatches(matches)}
}

func scoreSummary(queryTokens []string, summary string) float64 {
	summaryTokens := refs.Tokenize(summary)
	if len(summaryTokens) == 0 {
		return 0
	}
	total := 0.0
	for _, qt := range queryTokens {
		best := 0.0
		for _, st := range summaryTokens {
			if s := refs.Score(qt, st); s > best {
				best = s
			}
		}
		total += best
	}
	return total / float64(len(queryTokens))
}

// sortMatches orders best score first, then oldest node, then id. The id
// tiebreak keeps results stable when scores and timestamps collide.
func sortMatches(matches []Match) {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if !matches[i].Node.CreatedAt.Equal(matches[j].Node.CreatedAt) {
			return matches[i].Node.CreatedAt.Before(matches[j].Node.CreatedAt)
		}
		return matches[i].Node.ID < matches[j].Node.ID
	})
}

func capMatches(matches []Match) []Match {
	if len(matches) > maxMatches {
		return matches[:maxMatches]
	}
	return matches
}
