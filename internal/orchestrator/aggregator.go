package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/babelhq/babel/internal/debug"
)

// Sink receives batches of task results from the aggregator's single
// consumer. The event log writer is the canonical sink: because only this one
// goroutine ever calls it, journal appends stay serial no matter how many
// workers complete tasks concurrently.
type Sink func(ctx context.Context, batch []*TaskResult) error

// Aggregator funnels results from all workers through one consumer goroutine.
// Batching is optional: by count, by flush interval, or both.
type Aggregator struct {
	ch        chan *TaskResult
	sink      Sink
	batchSize int
	interval  time.Duration

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
	done      chan struct{}
}

// AggregatorOption tunes batching.
type AggregatorOption func(*Aggregator)

// WithBatchSize flushes to the sink every n results. n < 1 means flush each
// result immediately.
func WithBatchSize(n int) AggregatorOption {
	return func(a *Aggregator) { a.batchSize = n }
}

// WithFlushInterval flushes any buffered results at least this often.
func WithFlushInterval(d time.Duration) AggregatorOption {
	return func(a *Aggregator) { a.interval = d }
}

// NewAggregator creates an aggregator and starts its consumer. ctx bounds
// sink calls; Close stops the consumer after a final flush.
func NewAggregator(ctx context.Context, sink Sink, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		ch:        make(chan *TaskResult, 256),
		sink:      sink,
		batchSize: 1,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.batchSize < 1 {
		a.batchSize = 1
	}
	go a.consume(ctx)
	return a
}

// Push hands a result to the consumer. It blocks when the buffer is full;
// backpressure here is deliberate, the writer must not be outrun. Results
// pushed after Close are dropped; shutdown stops the pools first, so that
// only happens on abandoned work.
func (a *Aggregator) Push(res *TaskResult) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return
	}
	a.ch <- res
}

// Close flushes buffered results and stops the consumer. Safe to call twice.
func (a *Aggregator) Close() {
	a.closeOnce.Do(func() {
		a.mu.Lock()
		a.closed = true
		a.mu.Unlock()
		close(a.ch)
		<-a.done
	})
}

// consume is the single goroutine allowed to call the sink.
func (a *Aggregator) consume(ctx context.Context) {
	defer close(a.done)

	var buf []*TaskResult
	flush := func() {
		if len(buf) == 0 {
			return
		}
		if err := a.sink(ctx, buf); err != nil {
			debug.Logf("aggregator: sink rejected %d results: %v\n", len(buf), err)
		}
		buf = nil
	}

	var tick <-chan time.Time
	var ticker *time.Ticker
	if a.interval > 0 {
		ticker = time.NewTicker(a.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case res, ok := <-a.ch:
			if !ok {
				flush()
				return
			}
			buf = append(buf, res)
			if len(buf) >= a.batchSize {
				flush()
			}
		case <-tick:
			flush()
		}
	}
}
