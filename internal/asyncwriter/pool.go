// Package asyncwriter provides a small bounded worker pool for
// fire-and-forget background writes (governor state, proxy counters),
// per the design note in spec.md §9: a dropped write is preferable to
// an unbounded number of background goroutines.
package asyncwriter

import "github.com/grishkovelli/asc/internal/logging"

// Pool runs submitted functions on a fixed number of goroutines. When
// the queue is full, Submit drops the job and logs a warning instead
// of blocking the caller.
type Pool struct {
	jobs chan func()
	log  *logging.Logger
	name string
}

// New starts a Pool with the given number of workers and queue
// capacity.
func New(log *logging.Logger, name string, workers, buffer int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if buffer < 1 {
		buffer = 1
	}
	p := &Pool{
		jobs: make(chan func(), buffer),
		log:  log,
		name: name,
	}
	for i := 0; i < workers; i++ {
		go p.run()
	}
	return p
}

func (p *Pool) run() {
	for fn := range p.jobs {
		fn()
	}
}

// Submit enqueues fn for background execution. If the pool is
// saturated, fn is dropped and a warning is logged.
func (p *Pool) Submit(fn func()) {
	select {
	case p.jobs <- fn:
	default:
		p.log.Warn("background write pool saturated, dropping write", "pool", p.name)
	}
}
