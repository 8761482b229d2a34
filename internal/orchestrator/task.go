// Package orchestrator routes heterogeneous work through typed worker pools
// under priority and rate constraints. I/O-bound work (file reads, grep,
// subprocess, network, LLM calls) and CPU-bound work (parsing, hashing,
// similarity) run on separate pools fed by priority schedulers; results flow
// through a single-consumer aggregator so the event log keeps exactly one
// writer no matter how many tasks complete in parallel.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// Priority orders tasks at dispatch time. A lower value always dispatches
// before a higher one; within one level, FIFO.
type Priority int

const (
	PriorityCritical Priority = iota
	PriorityHigh
	PriorityNormal
	PriorityBackground
	numPriorities
)

func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityBackground:
		return "background"
	}
	return fmt.Sprintf("priority(%d)", int(p))
}

// Kind selects the pool a task runs on.
type Kind string

const (
	// KindIO is for work that blocks on files, subprocesses, the network,
	// or an LLM. Many IO workers share the pool; blocked workers do not
	// stall the rest.
	KindIO Kind = "io"
	// KindCPU is for compute-heavy work: AST parsing, hashing, scoring.
	// The pool is sized to the machine so it never oversubscribes cores.
	KindCPU Kind = "cpu"
)

// Task is one unit of work. Fn receives a context that is cancelled at the
// task's timeout or at orchestrator shutdown; a well-behaved Fn returns
// promptly once that context is done. CPU tasks should close over plain
// values, not live handles, so their results stay serializable.
type Task struct {
	ID        string
	Kind      Kind
	Priority  Priority
	Fn        func(ctx context.Context) (any, error)
	Timeout   time.Duration
	IsLLMCall bool
	Retries   int
	CreatedAt time.Time
}

// NewTask builds a normal-priority task with a fresh ulid.
func NewTask(kind Kind, fn func(ctx context.Context) (any, error)) *Task {
	return &Task{
		ID:        ulid.Make().String(),
		Kind:      kind,
		Priority:  PriorityNormal,
		Fn:        fn,
		CreatedAt: time.Now().UTC(),
	}
}

// TaskState is the terminal state of a task.
type TaskState string

const (
	StateCompleted TaskState = "completed"
	StateFailed    TaskState = "failed"
	StateCancelled TaskState = "cancelled"
)

// TaskResult is the outcome handed to futures and the aggregator. Err holds
// the live error for callers in-process; Error mirrors it as text so results
// survive JSON encoding.
type TaskResult struct {
	TaskID   string        `json:"task_id"`
	Kind     Kind          `json:"kind"`
	Priority Priority      `json:"priority"`
	State    TaskState     `json:"state"`
	Value    any           `json:"value,omitempty"`
	Err      error         `json:"-"`
	Error    string        `json:"error,omitempty"`
	Attempts int           `json:"attempts"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
}

// Failed reports whether the task ended in failure or cancellation.
func (r *TaskResult) Failed() bool {
	return r.State != StateCompleted
}

// Future is the caller's handle on an in-flight task. It completes exactly
// once.
type Future struct {
	done chan struct{}
	res  *TaskResult
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// completedFuture wraps an already-finished result, used by the synchronous
// degraded path so both modes hand back the same type.
func completedFuture(res *TaskResult) *Future {
	f := newFuture()
	f.complete(res)
	return f
}

// complete publishes the result. The res pointer must not be mutated after.
func (f *Future) complete(res *TaskResult) {
	f.res = res
	close(f.done)
}

// Done returns a channel closed when the result is available.
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the task finishes or ctx is cancelled. A cancelled wait
// does not cancel the task.
func (f *Future) Wait(ctx context.Context) (*TaskResult, error) {
	select {
	case <-f.done:
		return f.res, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result returns the result if available, nil otherwise. It never blocks.
func (f *Future) Result() *TaskResult {
	select {
	case <-f.done:
		return f.res
	default:
		return nil
	}
}
