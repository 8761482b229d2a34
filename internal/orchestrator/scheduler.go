package orchestrator

import (
	"errors"
	"sync"
)

// ErrSchedulerClosed is returned by submissions after shutdown began.
var ErrSchedulerClosed = errors.New("orchestrator: scheduler closed")

// pending couples a queued task with the future its submitter holds.
type pending struct {
	task *Task
	fut  *Future
}

// Scheduler is a set of four FIFO queues keyed by priority. Get always
// returns the earliest task of the highest non-empty priority. All methods
// are safe for concurrent use; a condition variable wakes blocked getters on
// enqueue and on close.
type Scheduler struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queues [numPriorities][]*pending
	closed bool
}

// NewScheduler returns an empty scheduler.
func NewScheduler() *Scheduler {
	s := &Scheduler{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Submit enqueues one item and wakes a single waiter.
func (s *Scheduler) Submit(p *pending) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSchedulerClosed
	}
	s.enqueueLocked(p)
	s.cond.Signal()
	return nil
}

// SubmitBatch enqueues all items before waking any waiter, so the batch's
// relative priority order is respected: no waiter can observe a partially
// enqueued batch.
func (s *Scheduler) SubmitBatch(ps []*pending) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSchedulerClosed
	}
	for _, p := range ps {
		s.enqueueLocked(p)
	}
	s.cond.Broadcast()
	return nil
}

func (s *Scheduler) enqueueLocked(p *pending) {
	pri := p.task.Priority
	if pri < PriorityCritical || pri >= numPriorities {
		pri = PriorityNormal
		p.task.Priority = pri
	}
	s.queues[pri] = append(s.queues[pri], p)
}

// Get blocks until an item is available or the scheduler is closed and
// drained. The second return is false only in the closed-and-empty case,
// which is the workers' signal to exit.
func (s *Scheduler) Get() (*pending, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		if p := s.popLocked(); p != nil {
			return p, true
		}
		if s.closed {
			return nil, false
		}
		s.cond.Wait()
	}
}

// GetNowait pops the next item without blocking.
func (s *Scheduler) GetNowait() (*pending, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.popLocked()
	return p, p != nil
}

// Peek returns the task Get would dispatch next, without removing it.
func (s *Scheduler) Peek() (*Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for pri := PriorityCritical; pri < numPriorities; pri++ {
		if len(s.queues[pri]) > 0 {
			return s.queues[pri][0].task, true
		}
	}
	return nil, false
}

func (s *Scheduler) popLocked() *pending {
	for pri := PriorityCritical; pri < numPriorities; pri++ {
		q := s.queues[pri]
		if len(q) == 0 {
			continue
		}
		p := q[0]
		// Shift rather than reslice so the backing array does not pin
		// dispatched tasks.
		copy(q, q[1:])
		q[len(q)-1] = nil
		s.queues[pri] = q[:len(q)-1]
		return p
	}
	return nil
}

// Drain removes and returns every queued item, highest priority first. Used
// at shutdown when the caller wants unstarted tasks back.
func (s *Scheduler) Drain() []*pending {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*pending
	for pri := PriorityCritical; pri < numPriorities; pri++ {
		out = append(out, s.queues[pri]...)
		s.queues[pri] = nil
	}
	return out
}

// Len reports the queue depth at one priority.
func (s *Scheduler) Len(pri Priority) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pri < PriorityCritical || pri >= numPriorities {
		return 0
	}
	return len(s.queues[pri])
}

// TotalLen reports the depth across all priorities.
func (s *Scheduler) TotalLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for pri := PriorityCritical; pri < numPriorities; pri++ {
		n += len(s.queues[pri])
	}
	return n
}

// Close stops accepting submissions and wakes every blocked getter. Items
// already queued are still handed out; Get reports closed only once empty.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()
}
