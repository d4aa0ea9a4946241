package cmd

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// DefaultConcurrency is the default number of concurrent workers
const DefaultConcurrency = 5

// runBulkOperation runs operation for indexes 0..n-1 with bounded
// parallelism. Results keep input order. Slots whose operation never ran
// because ctx was cancelled hold the zero value and done[i] is false.
func runBulkOperation[T any](
	ctx context.Context,
	n int,
	concurrency int64,
	progress bool,
	errOut io.Writer,
	operation func(ctx context.Context, i int) T,
) (results []T, done []bool) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if errOut == nil {
		errOut = io.Discard
	}

	sem := semaphore.NewWeighted(concurrency)
	var mu sync.Mutex
	results = make([]T, n)
	done = make([]bool, n)
	var finished int64

	g, ctx := errgroup.WithContext(ctx)

	for i := range n {
		g.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				return nil // cancelled
			}
			defer sem.Release(1)

			if ctx.Err() != nil {
				return nil
			}

			result := operation(ctx, i)

			mu.Lock()
			results[i] = result
			done[i] = true
			mu.Unlock()

			if progress {
				current := atomic.AddInt64(&finished, 1)
				mu.Lock()
				_, _ = fmt.Fprintf(errOut, "\rProcessed %d/%d", current, n)
				mu.Unlock()
			}

			return nil // individual failures never cancel the group
		})
	}

	_ = g.Wait()

	if progress && n > 0 {
		_, _ = fmt.Fprintf(errOut, "\rProcessed %d/%d\n", atomic.LoadInt64(&finished), n)
	}

	return results, done
}
