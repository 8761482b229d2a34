package orchestrator

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func queued(pri Priority, label string) *pending {
	t := NewTask(KindIO, func(context.Context) (any, error) { return label, nil })
	t.ID = label
	t.Priority = pri
	return &pending{task: t, fut: newFuture()}
}

func TestSchedulerPriorityOrdering(t *testing.T) {
	s := NewScheduler()

	// Interleave submissions across priorities; dispatch must come back
	// strictly critical, high, normal, background, FIFO inside each level.
	submits := []struct {
		pri   Priority
		label string
	}{
		{PriorityNormal, "n1"},
		{PriorityBackground, "b1"},
		{PriorityCritical, "c1"},
		{PriorityHigh, "h1"},
		{PriorityNormal, "n2"},
		{PriorityCritical, "c2"},
		{PriorityBackground, "b2"},
		{PriorityHigh, "h2"},
	}
	for _, sub := range submits {
		if err := s.Submit(queued(sub.pri, sub.label)); err != nil {
			t.Fatalf("Submit(%s) error = %v", sub.label, err)
		}
	}

	want := []string{"c1", "c2", "h1", "h2", "n1", "n2", "b1", "b2"}
	for i, w := range want {
		p, ok := s.GetNowait()
		if !ok {
			t.Fatalf("GetNowait() empty at %d, want %s", i, w)
		}
		if p.task.ID != w {
			t.Errorf("dispatch[%d] = %s, want %s", i, p.task.ID, w)
		}
	}
	if _, ok := s.GetNowait(); ok {
		t.Error("scheduler should be empty")
	}
}

func TestSchedulerGetBlocksUntilSubmit(t *testing.T) {
	s := NewScheduler()

	got := make(chan string, 1)
	go func() {
		p, ok := s.Get()
		if !ok {
			got <- "<closed>"
			return
		}
		got <- p.task.ID
	}()

	// Give the getter a moment to park on the condvar.
	time.Sleep(20 * time.Millisecond)
	if err := s.Submit(queued(PriorityNormal, "wake")); err != nil {
		t.Fatal(err)
	}

	select {
	case id := <-got:
		if id != "wake" {
			t.Errorf("Get() = %s, want wake", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Get() never woke up")
	}
}

func TestSchedulerBatchIsAtomicForOrdering(t *testing.T) {
	s := NewScheduler()

	// A batch holding a high-priority item after a normal one: any getter
	// woken by the batch must still see the high item first.
	batch := []*pending{
		queued(PriorityNormal, "n1"),
		queued(PriorityHigh, "h1"),
	}
	if err := s.SubmitBatch(batch); err != nil {
		t.Fatal(err)
	}
	p, _ := s.GetNowait()
	if p.task.ID != "h1" {
		t.Errorf("first dispatch after batch = %s, want h1", p.task.ID)
	}
}

func TestSchedulerPeekDoesNotRemove(t *testing.T) {
	s := NewScheduler()
	if _, ok := s.Peek(); ok {
		t.Fatal("Peek() on empty scheduler returned a task")
	}
	if err := s.Submit(queued(PriorityNormal, "only")); err != nil {
		t.Fatal(err)
	}
	pk, ok := s.Peek()
	if !ok || pk.ID != "only" {
		t.Fatalf("Peek() = %v, %v", pk, ok)
	}
	if got := s.Len(PriorityNormal); got != 1 {
		t.Errorf("Len() after Peek = %d, want 1", got)
	}
	p, _ := s.GetNowait()
	if p.task.ID != "only" {
		t.Errorf("Get after Peek = %s", p.task.ID)
	}
}

func TestSchedulerDrainReturnsHighestFirst(t *testing.T) {
	s := NewScheduler()
	for _, x := range []struct {
		pri   Priority
		label string
	}{{PriorityBackground, "b"}, {PriorityCritical, "c"}, {PriorityNormal, "n"}} {
		if err := s.Submit(queued(x.pri, x.label)); err != nil {
			t.Fatal(err)
		}
	}
	drained := s.Drain()
	if len(drained) != 3 {
		t.Fatalf("Drain() = %d items, want 3", len(drained))
	}
	want := []string{"c", "n", "b"}
	for i, p := range drained {
		if p.task.ID != want[i] {
			t.Errorf("drained[%d] = %s, want %s", i, p.task.ID, want[i])
		}
	}
	if s.TotalLen() != 0 {
		t.Errorf("TotalLen() after Drain = %d", s.TotalLen())
	}
}

func TestSchedulerCloseWakesGettersAndDrainsTail(t *testing.T) {
	s := NewScheduler()
	if err := s.Submit(queued(PriorityNormal, "tail")); err != nil {
		t.Fatal(err)
	}
	s.Close()

	// Queued work is still handed out after close.
	p, ok := s.Get()
	if !ok || p.task.ID != "tail" {
		t.Fatalf("Get() after close = %v, %v, want tail", p, ok)
	}
	// Then getters see closed-and-empty.
	if _, ok := s.Get(); ok {
		t.Error("Get() on closed empty scheduler returned an item")
	}
	if err := s.Submit(queued(PriorityNormal, "late")); err != ErrSchedulerClosed {
		t.Errorf("Submit() after close error = %v, want ErrSchedulerClosed", err)
	}
}

func TestSchedulerConcurrentGetters(t *testing.T) {
	s := NewScheduler()
	const n = 50

	results := make(chan string, n)
	for i := 0; i < 4; i++ {
		go func() {
			for {
				p, ok := s.Get()
				if !ok {
					return
				}
				results <- p.task.ID
			}
		}()
	}

	batch := make([]*pending, n)
	for i := range batch {
		batch[i] = queued(PriorityNormal, fmt.Sprintf("t%02d", i))
	}
	if err := s.SubmitBatch(batch); err != nil {
		t.Fatal(err)
	}

	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		select {
		case id := <-results:
			if seen[id] {
				t.Fatalf("task %s dispatched twice", id)
			}
			seen[id] = true
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d of %d tasks dispatched", i, n)
		}
	}
	s.Close()
}
