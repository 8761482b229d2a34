package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"
)

func testResult(id string) *TaskResult {
	return &TaskResult{TaskID: id, State: StateCompleted}
}

func TestAggregatorBatchesByCount(t *testing.T) {
	var mu sync.Mutex
	var batches [][]string

	agg := NewAggregator(context.Background(), func(_ context.Context, batch []*TaskResult) error {
		ids := make([]string, len(batch))
		for i, r := range batch {
			ids[i] = r.TaskID
		}
		mu.Lock()
		batches = append(batches, ids)
		mu.Unlock()
		return nil
	}, WithBatchSize(3))

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		agg.Push(testResult(id))
	}
	agg.Close()

	if len(batches) != 2 {
		t.Fatalf("batches = %v, want a full batch and the close flush", batches)
	}
	if len(batches[0]) != 3 {
		t.Errorf("first batch = %v, want 3 results", batches[0])
	}
	if len(batches[1]) != 2 {
		t.Errorf("close flush = %v, want the 2 leftovers", batches[1])
	}
	// Arrival order is preserved through the single consumer.
	want := []string{"a", "b", "c", "d", "e"}
	var got []string
	for _, b := range batches {
		got = append(got, b...)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("order[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestAggregatorFlushInterval(t *testing.T) {
	flushed := make(chan int, 4)
	agg := NewAggregator(context.Background(), func(_ context.Context, batch []*TaskResult) error {
		flushed <- len(batch)
		return nil
	}, WithBatchSize(100), WithFlushInterval(15*time.Millisecond))
	defer agg.Close()

	agg.Push(testResult("early"))
	select {
	case n := <-flushed:
		if n != 1 {
			t.Errorf("interval flush = %d results, want 1", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("interval flush never happened")
	}
}

func TestAggregatorPushAfterCloseIsDropped(t *testing.T) {
	var got int
	agg := NewAggregator(context.Background(), func(_ context.Context, batch []*TaskResult) error {
		got += len(batch)
		return nil
	})
	agg.Push(testResult("kept"))
	agg.Close()
	agg.Push(testResult("dropped")) // must not panic
	if got != 1 {
		t.Errorf("sink received %d results, want 1", got)
	}
}
