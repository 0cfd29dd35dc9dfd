package playback

import (
	"context"
	"sync"
)

// Pool runs blocking collaborator calls on a fixed set of workers so the
// reconciliation loop only ever waits on a cancellable future rather than
// blocking on OS machinery directly.
type Pool struct {
	tasks     chan func()
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = 4
	}
	p := &Pool{tasks: make(chan func(), workers*2)}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		task()
	}
}

// Run executes fn on a pool worker and waits for it to finish or for ctx to
// expire. A timed-out wait abandons only the wait: the worker still runs fn
// to completion, which keeps a hung OS call from wedging the caller.
func (p *Pool) Run(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	task := func() {
		done <- fn()
	}
	select {
	case p.tasks <- task:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting work and waits for in-flight tasks. Safe to call
// more than once.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.tasks)
		p.wg.Wait()
	})
}
