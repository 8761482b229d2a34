package refs

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/babelhq/babel/internal/types"
)

// Index is the inverted ref index: normalized token -> events carrying it.
// Indexing is incremental on append and rebuilt alongside the graph during
// replay. Lookups by exact token are map hits; fuzzy queries walk the token
// set, which stays small enough that this has never been the slow part.
type Index struct {
	mu     sync.RWMutex
	tokens map[string][]types.Ref
	events map[string]bool
}

// NewIndex returns an empty ref index.
func NewIndex() *Index {
	return &Index{
		tokens: make(map[string][]types.Ref),
		events: make(map[string]bool),
	}
}

// Add indexes one event. Every string value in the payload is tokenized; a
// token's weight grows with repeated occurrences inside the same event but a
// (token, event) pair is stored once. Re-adding an already indexed event is a
// no-op, which keeps replay idempotent.
func (ix *Index) Add(ev *types.Event) {
	if ev == nil || ev.ID == "" {
		return
	}
	counts := tokenCounts(ev)
	if len(counts) == 0 {
		return
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.events[ev.ID] {
		return
	}
	ix.events[ev.ID] = true
	for token, n := range counts {
		ix.tokens[token] = append(ix.tokens[token], types.Ref{
			Token:   token,
			EventID: ev.ID,
			Weight:  float64(n),
		})
	}
}

// Reset drops everything; replay starts from an empty index.
func (ix *Index) Reset() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.tokens = make(map[string][]types.Ref)
	ix.events = make(map[string]bool)
}

// Refs returns the refs for one exact normalized token.
func (ix *Index) Refs(token string) []types.Ref {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	refs := ix.tokens[token]
	out := make([]types.Ref, len(refs))
	copy(out, refs)
	return out
}

// TokenCount returns the number of distinct tokens indexed.
func (ix *Index) TokenCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.tokens)
}

// EventCount returns the number of events indexed.
func (ix *Index) EventCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.events)
}

// Match is one event's aggregate relevance to a query.
type Match struct {
	EventID string
	Score   float64
}

// Search tokenizes the query and ranks events by the summed match score of
// their tokens: exact token hits count full weight, substring hits half.
// Results come back sorted by score descending, id ascending for stability.
func (ix *Index) Search(query string) []Match {
	qtokens := Tokenize(query)
	if len(qtokens) == 0 {
		return nil
	}

	ix.mu.RLock()
	scores := make(map[string]float64)
	for _, q := range qtokens {
		for token, refs := range ix.tokens {
			s := Score(q, token)
			if s == 0 {
				continue
			}
			for _, ref := range refs {
				scores[ref.EventID] += s * ref.Weight
			}
		}
	}
	ix.mu.RUnlock()

	out := make([]Match, 0, len(scores))
	for id, score := range scores {
		out = append(out, Match{EventID: id, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].EventID < out[j].EventID
	})
	return out
}

// tokenCounts tokenizes every string value in the event payload, recursing
// through nested objects and arrays. Keys are skipped: the payload schema is
// ours, only the captured text is topical.
func tokenCounts(ev *types.Event) map[string]int {
	if len(ev.Data) == 0 {
		return nil
	}
	var doc any
	if err := json.Unmarshal(ev.Data, &doc); err != nil {
		return nil
	}
	counts := make(map[string]int)
	walkStrings(doc, func(s string) {
		for _, t := range Tokenize(s) {
			counts[t]++
		}
	})
	return counts
}

func walkStrings(v any, fn func(string)) {
	switch t := v.(type) {
	case string:
		fn(t)
	case map[string]any:
		for _, vv := range t {
			walkStrings(vv, fn)
		}
	case []any:
		for _, vv := range t {
			walkStrings(vv, fn)
		}
	}
}
