package parallel

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Parallelize divides items into one contiguous chunk per CPU core and runs
// fn on each range [start, end) concurrently.
func Parallelize(items int, fn func(start, end int)) {
	if items == 0 {
		return
	}
	numWorkers := runtime.NumCPU()
	if numWorkers > items {
		numWorkers = items
	}
	chunkSize := (items + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for start := 0; start < items; start += chunkSize {
		end := start + chunkSize
		if end > items {
			end = items
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// ParallelizeWithThreshold runs fn(0, items) sequentially when items does
// not exceed threshold, and in parallel otherwise.
func ParallelizeWithThreshold(items int, threshold int, fn func(start, end int)) {
	if items <= threshold {
		fn(0, items)
		return
	}
	Parallelize(items, fn)
}

// Batches processes [0, items) in consecutive batches of batchSize with at
// most workers batches in flight. fn receives the batch bounds and must
// write its results by index so the output order is independent of
// scheduling. The first error cancels ctx for the remaining batches and is
// returned.
func Batches(ctx context.Context, items, batchSize, workers int, fn func(ctx context.Context, start, end int) error) error {
	if items == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = items
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for start := 0; start < items; start += batchSize {
		end := start + batchSize
		if end > items {
			end = items
		}
		s, e := start, end
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, s, e)
		})
	}
	return g.Wait()
}
