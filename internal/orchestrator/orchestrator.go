package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/babelhq/babel/internal/telemetry"
)

// ErrShutdown is returned by submissions after Shutdown has begun.
var ErrShutdown = errors.New("orchestrator: shut down")

// newRetryBackOff builds the policy for tasks with Retries > 0. A variable so
// tests can collapse the waits.
var newRetryBackOff = func() backoff.BackOff {
	return backoff.NewExponentialBackOff()
}

// Options sizes the orchestrator. Zero values take the documented defaults.
type Options struct {
	// Enabled false selects degraded mode: the same API, every call
	// executed synchronously in the caller's goroutine.
	Enabled bool
	// IOWorkers is the IO pool size (default 4).
	IOWorkers int
	// CPUWorkers is the CPU pool size (default max(1, NumCPU/2)).
	CPUWorkers int
	// LLMConcurrent caps outstanding LLM calls (default 3).
	LLMConcurrent int
	// LLMRateLimit caps LLM requests per second (default 2).
	LLMRateLimit float64
	// DefaultTimeout applies to tasks that carry none (default 60s).
	DefaultTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.IOWorkers < 1 {
		o.IOWorkers = 4
	}
	if o.CPUWorkers < 1 {
		o.CPUWorkers = runtime.NumCPU() / 2
		if o.CPUWorkers < 1 {
			o.CPUWorkers = 1
		}
	}
	if o.LLMConcurrent < 1 {
		o.LLMConcurrent = 3
	}
	if o.LLMRateLimit <= 0 {
		o.LLMRateLimit = 2
	}
	if o.DefaultTimeout <= 0 {
		o.DefaultTimeout = 60 * time.Second
	}
	return o
}

// Orchestrator owns the pools, schedulers, rate limiter, and aggregator.
// Create one per workspace and shut it down once.
type Orchestrator struct {
	opts     Options
	ioSched  *Scheduler
	cpuSched *Scheduler
	io       *pool
	cpu      *pool
	limiter  *RateLimiter
	agg      *Aggregator
	met      *metrics
	tracer   trace.Tracer

	// root is the lifetime context handed to every task; Shutdown cancels
	// it to interrupt in-flight work when the caller stops waiting.
	root   context.Context
	cancel context.CancelFunc
	down   chan struct{}
}

// New builds an orchestrator and, unless degraded, starts its pools. agg may
// be nil when no result sink is wired.
func New(opts Options, agg *Aggregator) *Orchestrator {
	o := &Orchestrator{
		opts:     opts.withDefaults(),
		ioSched:  NewScheduler(),
		cpuSched: NewScheduler(),
		agg:      agg,
		tracer:   telemetry.Tracer("babel/orchestrator"),
		down:     make(chan struct{}),
	}
	o.limiter = NewRateLimiter(o.opts.LLMConcurrent, o.opts.LLMRateLimit)
	o.root, o.cancel = context.WithCancel(context.Background())
	o.io = newPool("io", o.opts.IOWorkers, o.ioSched, o.runPending)
	o.cpu = newPool("cpu", o.opts.CPUWorkers, o.cpuSched, o.runPending)
	o.met = newMetrics(o)
	if o.opts.Enabled {
		o.io.start()
		o.cpu.start()
	}
	return o
}

// Enabled reports whether the parallel path is active.
func (o *Orchestrator) Enabled() bool { return o.opts.Enabled }

func (o *Orchestrator) isDown() bool {
	select {
	case <-o.down:
		return true
	default:
		return false
	}
}

func (o *Orchestrator) schedulerFor(kind Kind) *Scheduler {
	if kind == KindCPU {
		return o.cpuSched
	}
	return o.ioSched
}

// normalize fills a task's optional fields so downstream code never branches
// on zero values.
func (o *Orchestrator) normalize(t *Task) {
	if t.ID == "" {
		t.ID = ulid.Make().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if t.Kind != KindCPU {
		t.Kind = KindIO
	}
	if t.Timeout <= 0 {
		t.Timeout = o.opts.DefaultTimeout
	}
	if t.Priority < PriorityCritical || t.Priority >= numPriorities {
		t.Priority = PriorityNormal
	}
}

// Submit routes one task to its pool and returns a future. In degraded mode
// the task runs right here and the future is already complete.
func (o *Orchestrator) Submit(ctx context.Context, t *Task) (*Future, error) {
	if t == nil || t.Fn == nil {
		return nil, errors.New("orchestrator: task has no function")
	}
	if o.isDown() {
		return nil, ErrShutdown
	}
	o.normalize(t)
	o.met.recordSubmitted(ctx, t)

	if !o.opts.Enabled {
		return completedFuture(o.runSync(ctx, t)), nil
	}

	p := &pending{task: t, fut: newFuture()}
	if err := o.schedulerFor(t.Kind).Submit(p); err != nil {
		return nil, err
	}
	return p.fut, nil
}

// SubmitBatch enqueues tasks atomically per pool: every element is queued
// before any worker wakes, so the batch's internal priority order holds.
// Futures come back in input order.
func (o *Orchestrator) SubmitBatch(ctx context.Context, tasks []*Task) ([]*Future, error) {
	if o.isDown() {
		return nil, ErrShutdown
	}
	futures := make([]*Future, len(tasks))

	if !o.opts.Enabled {
		for i, t := range tasks {
			if t == nil || t.Fn == nil {
				return nil, fmt.Errorf("orchestrator: batch task %d has no function", i)
			}
			o.normalize(t)
			o.met.recordSubmitted(ctx, t)
			futures[i] = completedFuture(o.runSync(ctx, t))
		}
		return futures, nil
	}

	var ioBatch, cpuBatch []*pending
	for i, t := range tasks {
		if t == nil || t.Fn == nil {
			return nil, fmt.Errorf("orchestrator: batch task %d has no function", i)
		}
		o.normalize(t)
		o.met.recordSubmitted(ctx, t)
		p := &pending{task: t, fut: newFuture()}
		futures[i] = p.fut
		if t.Kind == KindCPU {
			cpuBatch = append(cpuBatch, p)
		} else {
			ioBatch = append(ioBatch, p)
		}
	}
	if len(ioBatch) > 0 {
		if err := o.ioSched.SubmitBatch(ioBatch); err != nil {
			return nil, err
		}
	}
	if len(cpuBatch) > 0 {
		if err := o.cpuSched.SubmitBatch(cpuBatch); err != nil {
			return nil, err
		}
	}
	return futures, nil
}

// runPending is the worker-side completion path: execute, record, resolve the
// future, feed the aggregator.
func (o *Orchestrator) runPending(p *pending) {
	res := o.execute(o.root, p.task)
	o.met.recordResult(o.root, p.task, res)
	p.fut.complete(res)
	if o.agg != nil {
		o.agg.Push(res)
	}
}

// runSync is the degraded-mode path: same execution and bookkeeping, caller's
// goroutine and context.
func (o *Orchestrator) runSync(ctx context.Context, t *Task) *TaskResult {
	res := o.execute(ctx, t)
	o.met.recordResult(ctx, t, res)
	if o.agg != nil {
		o.agg.Push(res)
	}
	return res
}

// execute runs one task to a terminal TaskResult. Worker panics become
// failed results; timeout and cancellation are told apart by the context
// error. Tasks with Retries > 0 retry transient failures under exponential
// backoff.
func (o *Orchestrator) execute(parent context.Context, t *Task) *TaskResult {
	started := time.Now()
	res := &TaskResult{
		TaskID:   t.ID,
		Kind:     t.Kind,
		Priority: t.Priority,
		Started:  started.UTC(),
	}

	ctx := parent
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, t.Timeout)
		defer cancel()
	}

	ctx, span := o.tracer.Start(ctx, "babel.task",
		trace.WithAttributes(
			attribute.String("task.id", t.ID),
			attribute.String("task.kind", string(t.Kind)),
			attribute.String("task.priority", t.Priority.String()),
			attribute.Bool("task.llm", t.IsLLMCall),
		))
	defer span.End()

	var value any
	attempts := 0
	op := func() error {
		attempts++
		if t.IsLLMCall {
			if err := o.limiter.Acquire(ctx); err != nil {
				return backoff.Permanent(err)
			}
			defer o.limiter.Release()
		}
		v, err := runProtected(ctx, t.Fn)
		if err == nil {
			value = v
			return nil
		}
		if ctx.Err() != nil {
			// Timeout and cancellation are not transient.
			return backoff.Permanent(err)
		}
		return err
	}

	var err error
	if t.Retries > 0 {
		bo := backoff.WithContext(
			backoff.WithMaxRetries(newRetryBackOff(), uint64(t.Retries)), ctx)
		err = backoff.Retry(op, bo)
	} else {
		err = op()
	}

	res.Attempts = attempts
	res.Duration = time.Since(started)

	switch {
	case err == nil:
		res.State = StateCompleted
		res.Value = value
	case errors.Is(err, context.Canceled):
		res.State = StateCancelled
		res.Err = err
		res.Error = "cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		res.State = StateFailed
		res.Err = err
		res.Error = fmt.Sprintf("timed out after %s", t.Timeout)
	default:
		res.State = StateFailed
		res.Err = err
		res.Error = err.Error()
	}

	if res.State != StateCompleted {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Error)
	}
	return res
}

// runProtected invokes the task body with panic containment. A panicking
// task fails; it never takes a worker down.
func runProtected(ctx context.Context, fn func(context.Context) (any, error)) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return fn(ctx)
}

// MapParallel runs fn over items and returns results in input order,
// whatever order tasks complete in. The first failure in input order aborts
// the map; queued items that have not started yet become no-ops. In degraded
// mode the items simply run sequentially.
func MapParallel[T, R any](ctx context.Context, o *Orchestrator, items []T, kind Kind, pri Priority, timeout time.Duration, fn func(context.Context, T) (R, error)) ([]R, error) {
	if len(items) == 0 {
		return nil, nil
	}

	mctx, abort := context.WithCancel(ctx)
	defer abort()

	tasks := make([]*Task, len(items))
	for i, item := range items {
		item := item
		t := NewTask(kind, func(c context.Context) (any, error) {
			if mctx.Err() != nil {
				return nil, mctx.Err()
			}
			return fn(c, item)
		})
		t.Priority = pri
		t.Timeout = timeout
		tasks[i] = t
	}

	futures, err := o.SubmitBatch(ctx, tasks)
	if err != nil {
		return nil, err
	}

	out := make([]R, len(items))
	for i, f := range futures {
		res, werr := f.Wait(ctx)
		if werr != nil {
			abort()
			return nil, werr
		}
		if res.Failed() {
			abort()
			cause := res.Err
			if cause == nil {
				cause = errors.New(res.Error)
			}
			return nil, fmt.Errorf("parallel map item %d of %d: %w", i+1, len(items), cause)
		}
		if res.Value != nil {
			v, ok := res.Value.(R)
			if !ok {
				return nil, fmt.Errorf("parallel map item %d: got %T", i+1, res.Value)
			}
			out[i] = v
		}
	}
	return out, nil
}

// Shutdown stops intake, then resolves what remains. With cancelPending the
// queued-but-unstarted tasks are returned to the caller, their futures
// resolved as cancelled. With wait the pools finish in-flight work, bounded
// by ctx; without it the in-flight contexts are cancelled immediately.
// Always closes the aggregator last, after the final worker stops producing.
func (o *Orchestrator) Shutdown(ctx context.Context, wait, cancelPending bool) []*Task {
	select {
	case <-o.down:
		return nil
	default:
		close(o.down)
	}

	var cancelled []*Task
	if cancelPending {
		drained := append(o.ioSched.Drain(), o.cpuSched.Drain()...)
		for _, p := range drained {
			p.fut.complete(&TaskResult{
				TaskID:   p.task.ID,
				Kind:     p.task.Kind,
				Priority: p.task.Priority,
				State:    StateCancelled,
				Error:    "cancelled before start",
			})
			cancelled = append(cancelled, p.task)
		}
	}

	o.ioSched.Close()
	o.cpuSched.Close()

	if !wait {
		o.cancel()
	}
	if o.opts.Enabled {
		drained := make(chan struct{})
		go func() {
			o.io.wait()
			o.cpu.wait()
			close(drained)
		}()
		select {
		case <-drained:
		case <-ctx.Done():
			o.cancel()
			<-drained
		}
	}
	o.cancel()

	if o.agg != nil {
		o.agg.Close()
	}
	return cancelled
}

// Summary snapshots counters, queue depths, active workers, throughput over
// the recent window, and how often the LLM limiter was engaged.
func (o *Orchestrator) Summary() Summary {
	s := o.met.snapshot()
	s.QueueDepth = make(map[string]int, numPriorities)
	for pri := PriorityCritical; pri < numPriorities; pri++ {
		s.QueueDepth[pri.String()] = o.ioSched.Len(pri) + o.cpuSched.Len(pri)
	}
	s.ActiveIO = int(o.io.activeCount())
	s.ActiveCPU = int(o.cpu.activeCount())
	s.LLMPermits = o.limiter.Acquires()
	return s
}
