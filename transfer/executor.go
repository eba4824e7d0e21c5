package transfer

import (
	"sync"

	oserrors "github.com/input-output-hk/catalyst-forge-libs/aws/objectstorage/errors"
)

// Executor runs part-upload tasks concurrently on behalf of a
// MultipartAssembler. The degree of parallelism is the executor's
// configuration; the degenerate single-worker case is valid and serializes
// part uploads without changing any ordering guarantee.
//
// Submit must not block on the task itself: the assembler relies on AddPart
// returning without waiting for network I/O.
type Executor interface {
	// Submit schedules a task for asynchronous execution. It returns an error
	// only when the executor cannot accept work (for example after Close);
	// the task is then never run.
	Submit(task func()) error
}

// WorkerPool is a semaphore-bounded Executor. Each submitted task runs on its
// own goroutine but at most maxConcurrency tasks execute at once.
type WorkerPool struct {
	maxConcurrency int
	semaphore      chan struct{}

	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool
}

// NewWorkerPool creates a worker pool with the specified concurrency limit.
func NewWorkerPool(maxConcurrency int) *WorkerPool {
	if maxConcurrency <= 0 {
		maxConcurrency = 5 // Default concurrency
	}

	return &WorkerPool{
		maxConcurrency: maxConcurrency,
		semaphore:      make(chan struct{}, maxConcurrency),
	}
}

// Submit schedules a task on the pool. The task's goroutine acquires a
// concurrency slot before running, so Submit itself never waits for a slot.
func (p *WorkerPool) Submit(task func()) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return oserrors.NewError("submit", oserrors.ErrInvalidState).
			WithMessage("worker pool is closed")
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()

		p.semaphore <- struct{}{}
		defer func() { <-p.semaphore }()

		task()
	}()

	return nil
}

// Close marks the pool closed and waits for all previously submitted tasks to
// finish. Further Submit calls fail.
func (p *WorkerPool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.wg.Wait()
}

// Stats returns the pool's current occupancy.
func (p *WorkerPool) Stats() PoolStats {
	return PoolStats{
		MaxConcurrency:     p.maxConcurrency,
		CurrentConcurrency: len(p.semaphore),
		AvailableSlots:     cap(p.semaphore) - len(p.semaphore),
	}
}

// PoolStats contains statistics about a worker pool's current state.
type PoolStats struct {
	// MaxConcurrency is the maximum allowed concurrent tasks
	MaxConcurrency int

	// CurrentConcurrency is the current number of running tasks
	CurrentConcurrency int

	// AvailableSlots is the number of available concurrency slots
	AvailableSlots int
}

var _ Executor = (*WorkerPool)(nil)
