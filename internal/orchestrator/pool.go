package orchestrator

import (
	"sync"
	"sync/atomic"

	"github.com/babelhq/babel/internal/debug"
)

// pool runs a fixed set of workers against one scheduler. The same shape
// serves both kinds: the IO pool is sized generously because its workers
// spend most of their time blocked, the CPU pool is sized to the cores.
type pool struct {
	name   string
	size   int
	sched  *Scheduler
	run    func(*pending)
	wg     sync.WaitGroup
	active atomic.Int64
}

func newPool(name string, size int, sched *Scheduler, run func(*pending)) *pool {
	if size < 1 {
		size = 1
	}
	return &pool{name: name, size: size, sched: sched, run: run}
}

// start launches the workers. Each loops until its scheduler is closed and
// drained.
func (p *pool) start() {
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

func (p *pool) worker(n int) {
	defer p.wg.Done()
	for {
		item, ok := p.sched.Get()
		if !ok {
			return
		}
		p.active.Add(1)
		p.run(item)
		p.active.Add(-1)
	}
}

// wait blocks until every worker has exited. Only meaningful after the
// scheduler is closed.
func (p *pool) wait() {
	p.wg.Wait()
	debug.Logf("orchestrator: %s pool drained\n", p.name)
}

func (p *pool) activeCount() int64 {
	return p.active.Load()
}
