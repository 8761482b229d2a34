package refs

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/babelhq/babel/internal/types"
)

func indexedEvent(id string, payload string) *types.Event {
	return &types.Event{
		ID:    id,
		Type:  types.EventMemoCaptured,
		Scope: types.ScopeShared,
		Data:  json.RawMessage(payload),
	}
}

func TestSearchRanksByTokenOverlap(t *testing.T) {
	ix := NewIndex()
	ix.Add(indexedEvent("ev_full", `{"text":"user profile auth flow"}`))
	ix.Add(indexedEvent("ev_partial", `{"text":"profile picture upload"}`))
	ix.Add(indexedEvent("ev_unrelated", `{"text":"sqlite cache eviction"}`))

	matches := ix.Search("UserProfile")
	if len(matches) < 2 {
		t.Fatalf("Search() = %v, want at least the two profile events", matches)
	}
	if matches[0].EventID != "ev_full" {
		t.Errorf("top match = %s, want ev_full (carries both query tokens)", matches[0].EventID)
	}
	if matches[1].EventID != "ev_partial" {
		t.Errorf("second match = %s, want ev_partial", matches[1].EventID)
	}
	for _, m := range matches {
		if m.EventID == "ev_unrelated" {
			t.Errorf("unrelated event matched with score %v", m.Score)
		}
	}
}

func TestSearchSubstringScoresBelowExact(t *testing.T) {
	ix := NewIndex()
	ix.Add(indexedEvent("ev_exact", `{"text":"auth"}`))
	ix.Add(indexedEvent("ev_substr", `{"text":"authentication"}`))

	matches := ix.Search("auth")
	if len(matches) != 2 {
		t.Fatalf("Search() = %v, want 2 matches", matches)
	}
	if matches[0].EventID != "ev_exact" || matches[0].Score <= matches[1].Score {
		t.Errorf("exact hit must outrank substring hit: %v", matches)
	}
}

func TestAddIsIdempotentPerEvent(t *testing.T) {
	ix := NewIndex()
	ev := indexedEvent("ev_once", `{"text":"cache"}`)
	ix.Add(ev)
	ix.Add(ev)

	refs := ix.Refs("cache")
	if len(refs) != 1 {
		t.Fatalf("Refs(cache) = %v, want one ref after double Add", refs)
	}
}

func TestRepeatedTokenRaisesWeight(t *testing.T) {
	ix := NewIndex()
	ix.Add(indexedEvent("ev_heavy", `{"a":"cache","b":"cache layer","c":"cache"}`))
	ix.Add(indexedEvent("ev_light", `{"a":"cache"}`))

	matches := ix.Search("cache")
	if len(matches) != 2 || matches[0].EventID != "ev_heavy" {
		t.Fatalf("Search(cache) = %v, want ev_heavy first", matches)
	}
}

func TestResetEmptiesIndex(t *testing.T) {
	ix := NewIndex()
	ix.Add(indexedEvent("ev_1", `{"text":"something"}`))
	ix.Reset()
	if ix.TokenCount() != 0 || ix.EventCount() != 0 {
		t.Error("Reset() left entries behind")
	}
	if got := ix.Search("something"); len(got) != 0 {
		t.Errorf("Search() after Reset = %v, want none", got)
	}
}

// mapSource serves events from a map, standing in for the journal.
type mapSource map[string]*types.Event

func (m mapSource) Event(_ context.Context, id string) (*types.Event, error) {
	return m[id], nil
}

func TestLoaderHonorsBudget(t *testing.T) {
	src := mapSource{}
	var ids []string
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("ev_%02d", i)
		src[id] = indexedEvent(id, `{"text":"0123456789012345678901234567890123456789"}`)
		ids = append(ids, id)
	}

	perEvent := eventSize(src[ids[0]])
	budget := TokenBudget((perEvent * 3) / bytesPerToken) // room for three events

	res, err := NewLoader(src).Load(context.Background(), ids, budget)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Events) != 3 {
		t.Fatalf("loaded %d events, want 3", len(res.Events))
	}
	if res.Complete {
		t.Error("Complete = true for a truncated load")
	}
	if res.TokensUsed > int(budget) {
		t.Errorf("TokensUsed %d exceeds budget %d", res.TokensUsed, budget)
	}
	for i, ev := range res.Events {
		if ev.ID != ids[i] {
			t.Errorf("load order broken at %d: %s", i, ev.ID)
		}
	}
}

func TestLoaderZeroBudgetIsUnbounded(t *testing.T) {
	src := mapSource{"ev_a": indexedEvent("ev_a", `{"x":"y"}`)}
	res, err := NewLoader(src).Load(context.Background(), []string{"ev_a", "ev_missing"}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Events) != 1 || !res.Complete {
		t.Errorf("Load() = %+v, want the one known event and Complete", res)
	}
}
