package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var ErrPoolClosed = errors.New("worker pool is closed")

// Pool runs submitted tasks on a fixed number of goroutines over a bounded
// queue. Submit blocks while the queue is full, which pushes back on
// producers instead of growing memory.
type Pool struct {
	tasks chan func(context.Context)

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup // Submit calls past the closed check

	workers sync.WaitGroup
}

// NewPool starts workers goroutines draining a queue of queueSize tasks.
// Values below 1 are clamped to 1.
func NewPool(ctx context.Context, workers, queueSize int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}

	p := &Pool{tasks: make(chan func(context.Context), queueSize)}
	for i := 0; i < workers; i++ {
		p.workers.Add(1)
		go p.run(ctx, i)
	}
	return p
}

func (p *Pool) run(ctx context.Context, id int) {
	defer p.workers.Done()
	slog.Debug("worker started", "worker_id", id)
	for task := range p.tasks {
		task(ctx)
	}
	slog.Debug("worker stopped", "worker_id", id)
}

// Submit queues a task. It blocks while the queue is full and fails once the
// pool has been stopped or ctx is cancelled. Tasks receive the pool's context
// and are expected to bail out quickly once it is cancelled.
func (p *Pool) Submit(ctx context.Context, task func(context.Context)) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.inflight.Add(1)
	p.mu.Unlock()
	defer p.inflight.Done()

	select {
	case p.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop drains then stops: no new submissions are accepted, tasks already
// queued still run, and Stop returns once every worker has exited.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.inflight.Wait()
	close(p.tasks)
	p.workers.Wait()
}
