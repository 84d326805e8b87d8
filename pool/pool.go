// Package pool caps how many heavy media jobs run at once across every
// pipeline in the process.
package pool

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Pool is a weighted semaphore shared by all pipeline instances.
type Pool struct {
	name string
	size int64
	sem  *semaphore.Weighted
}

// New returns a pool admitting at most size concurrent jobs. Sizes below 1
// are treated as 1.
func New(name string, size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{name: name, size: int64(size), sem: semaphore.NewWeighted(int64(size))}
}

// Name is the pool label used in logs.
func (p *Pool) Name() string { return p.name }

// Size is the concurrency cap.
func (p *Pool) Size() int { return int(p.size) }

// Do waits for a slot and runs fn. It returns ctx.Err() without running fn
// if the context ends first.
func (p *Pool) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	return fn(ctx)
}

// Submit is Do for jobs that return a value.
func Submit[T any](ctx context.Context, p *Pool, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		out = v
		return err
	})
	return out, err
}
