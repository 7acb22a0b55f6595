// Package concurrency wraps the conc pool with the defaults the executor
// relies on: context propagation, cancel-on-error, first-error reporting.
package concurrency

import (
	"context"

	"github.com/sourcegraph/conc/pool"
)

// NewPool returns a new pool where each task respects context cancellation.
// Wait() will only return the first error seen.
func NewPool(ctx context.Context, maxGoroutines int) *pool.ContextPool {
	return pool.New().
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError().
		WithMaxGoroutines(maxGoroutines)
}

// ForEachIndexed runs fn for every index in [0, n) on a bounded pool and
// waits for all of them. Results land wherever fn writes them, keyed by
// index, so callers preserve input order regardless of completion order.
func ForEachIndexed(ctx context.Context, maxGoroutines, n int, fn func(ctx context.Context, i int) error) error {
	p := NewPool(ctx, maxGoroutines)
	for i := 0; i < n; i++ {
		p.Go(func(ctx context.Context) error {
			return fn(ctx, i)
		})
	}
	return p.Wait()
}
