package workerpool

import (
	"sync"
)

// Pool runs submitted tasks on a fixed number of goroutines.
type Pool struct {
	workers   int
	queue     chan func()
	waitGroup sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// New creates a pool with the given number of workers and queue capacity.
func New(workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	pool := &Pool{
		workers: workers,
		queue:   make(chan func(), queueSize),
	}

	pool.waitGroup.Add(workers)
	for i := 0; i < workers; i++ {
		go pool.worker()
	}

	return pool
}

func (p *Pool) worker() {
	defer p.waitGroup.Done()
	for task := range p.queue {
		task()
	}
}

// TrySubmit queues task without blocking. It returns false when the queue is
// full or the pool has been shut down.
func (p *Pool) TrySubmit(task func()) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.queue <- task:
		return true
	default:
		return false
	}
}

// Shutdown stops accepting jobs, runs everything already queued, and waits
// for the workers to exit. Safe to call more than once.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.waitGroup.Wait()
}
