package resilience

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Batch applies fn to every item using at most concurrency workers. Results
// keep input order. Items whose fn returns an error or panics are logged,
// omitted from the results and reported as BatchItemErrors sorted by index.
// Items not yet started when ctx is cancelled fail with the context error.
func Batch[T, R any](ctx context.Context, stage string, items []T, concurrency int, key func(T) string, fn func(T) (R, error)) ([]R, []*BatchItemError) {
	if concurrency < 1 {
		concurrency = 1
	}

	out := make([]R, len(items))
	done := make([]bool, len(items))

	var (
		mu        sync.Mutex
		failures  []*BatchItemError
		succeeded atomic.Int64
		failed    atomic.Int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, item := range items {
		g.Go(func() error {
			var res R
			err := gctx.Err()
			if err == nil {
				err = Guard(func() error {
					var fnErr error
					res, fnErr = fn(item)
					return fnErr
				})
			}
			if err != nil {
				failed.Add(1)
				itemErr := &BatchItemError{Stage: stage, Index: i, Key: key(item), Err: err}
				zap.L().Warn("batch item failed",
					zap.String("stage", stage),
					zap.Int("index", i),
					zap.String("key", itemErr.Key),
					zap.Error(err),
				)
				mu.Lock()
				failures = append(failures, itemErr)
				mu.Unlock()
				return nil // don't abort batch on individual failure
			}

			out[i] = res
			done[i] = true
			succeeded.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	results := make([]R, 0, len(items))
	for i := range out {
		if done[i] {
			results = append(results, out[i])
		}
	}
	sort.Slice(failures, func(a, b int) bool { return failures[a].Index < failures[b].Index })

	zap.L().Info("batch complete",
		zap.String("stage", stage),
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return results, failures
}
