package sandbox

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// Pool bounds the number of sandboxed containers that may run at once — the
// shared worker pool, fixed size, defaulting to the number of CPUs. The
// Gas Ranker and the Static Analyzer Adapter each acquire one slot
// before calling Runner.Run and release it afterward; a Pool is safe to
// share between both.
type Pool struct {
	sem *semaphore.Weighted
}

// NewPool builds a Pool with room for `size` concurrent sandbox runs.
// size <= 0 defaults to runtime.NumCPU().
func NewPool(size int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size))}
}

// Acquire blocks until a slot is free or ctx is done.
func (p *Pool) Acquire(ctx context.Context) error {
	return p.sem.Acquire(ctx, 1)
}

// Release returns a slot to the pool.
func (p *Pool) Release() {
	p.sem.Release(1)
}
