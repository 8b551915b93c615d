// Package concurrency provides the bounded fan-out used by the nutrition
// resolver.
package concurrency

import (
	"context"
	"sync"
)

// Map runs fn over items with at most limit workers and returns results
// aligned to input order. A limit above len(items) is clamped so no idle
// worker is spawned. The first error cancels the remaining work.
func Map[T, R any](ctx context.Context, items []T, limit int, fn func(ctx context.Context, idx int, item T) (R, error)) ([]R, error) {
	if len(items) == 0 {
		return nil, nil
	}
	if limit < 1 {
		limit = 1
	}
	if limit > len(items) {
		limit = len(items)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]R, len(items))
	indices := make(chan int)

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)

	for w := 0; w < limit; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range indices {
				if ctx.Err() != nil {
					return
				}
				res, err := fn(ctx, idx, items[idx])
				if err != nil {
					errOnce.Do(func() {
						firstErr = err
						cancel()
					})
					return
				}
				results[idx] = res
			}
		}()
	}

feed:
	for i := range items {
		select {
		case indices <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(indices)

	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
