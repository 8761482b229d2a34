package refs

import (
	"context"

	"github.com/babelhq/babel/internal/types"
)

// bytesPerToken is the usual LLM accounting approximation. The budget speaks
// tokens because downstream consumers do; the loader measures bytes.
const bytesPerToken = 4

// TokenBudget bounds how much event text a Load may hydrate. Zero means
// unbounded. The budget is advisory in the sense that the caller picks it
// freely, but the loader never exceeds it.
type TokenBudget int

// Bytes converts the budget into its byte allowance.
func (b TokenBudget) Bytes() int {
	return int(b) * bytesPerToken
}

// LoadResult carries the hydrated events and whether the budget held them all.
type LoadResult struct {
	Events []*types.Event

	// Complete is false when the budget cut the load short. Callers surface
	// this so a truncated answer is never mistaken for the whole story.
	Complete bool

	// TokensUsed is the loaded size in budget units, rounded up.
	TokensUsed int
}

// EventSource hydrates events by id; the event log satisfies this.
type EventSource interface {
	Event(ctx context.Context, id string) (*types.Event, error)
}

// Loader hydrates events on demand under a token budget.
type Loader struct {
	source EventSource
}

// NewLoader returns a Loader reading from source.
func NewLoader(source EventSource) *Loader {
	return &Loader{source: source}
}

// Load hydrates ids in order until the budget is spent. An event that would
// push past the budget is not loaded, not truncated: partial payloads are
// worse than missing ones. Lookup misses are skipped; the ref index can be
// momentarily ahead of a journal reader.
func (l *Loader) Load(ctx context.Context, ids []string, budget TokenBudget) (*LoadResult, error) {
	res := &LoadResult{Complete: true}
	limit := budget.Bytes()
	used := 0

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		ev, err := l.source.Event(ctx, id)
		if err != nil {
			return res, err
		}
		if ev == nil {
			continue
		}
		size := eventSize(ev)
		if limit > 0 && used+size > limit {
			res.Complete = false
			break
		}
		used += size
		res.Events = append(res.Events, ev)
	}

	res.TokensUsed = (used + bytesPerToken - 1) / bytesPerToken
	return res, nil
}

// eventSize is the budget-relevant size of an event: its payload plus a small
// fixed envelope for id, type and timestamp.
func eventSize(ev *types.Event) int {
	const envelope = 64
	return len(ev.Data) + envelope
}
