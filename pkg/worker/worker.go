// Package worker runs a processor over many items with bounded concurrency, a shared rate limit and
// retry with exponential backoff for transient failures.
package worker

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// ProcessAll runs the processor over all input items and returns results in input order.
func ProcessAll[In any, Out any](
	ctx context.Context,
	items []In,
	processor func(context.Context, In) (Out, error),
	opts Options,
) ([]Result[In, Out], error) {
	return ProcessAllWithCallback(ctx, items, processor, nil, opts)
}

// ProcessAllWithCallback runs the processor over all input items and invokes onResult as each item
// completes, in completion order, from the calling goroutine. An onResult error stops the run and is
// returned.
func ProcessAllWithCallback[In any, Out any](
	ctx context.Context,
	items []In,
	processor func(context.Context, In) (Out, error),
	onResult func(Result[In, Out]) error,
	opts Options,
) ([]Result[In, Out], error) {
	opts = opts.withDefaults()
	r := newRetrier(opts)

	runCtx, stop := context.WithCancelCause(ctx)
	defer stop(nil)
	g, gctx := errgroup.WithContext(runCtx)

	type completion struct {
		idx int
		res Result[In, Out]
	}
	next := make(chan int)
	done := make(chan completion, opts.Workers)

	g.Go(func() error {
		defer close(next)
		for i := range items {
			select {
			case next <- i:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})
	for range opts.Workers {
		g.Go(func() error {
			for i := range next {
				if gctx.Err() != nil {
					return nil
				}
				res := run(gctx, r, items[i], processor)
				select {
				case done <- completion{idx: i, res: res}:
				case <-gctx.Done():
					return nil
				}
				if res.Err != nil && opts.FailurePolicy == FailurePolicyFailFast {
					if gctx.Err() != nil {
						// Already stopping; the first error wins.
						return nil
					}
					return res.Err
				}
			}
			return nil
		})
	}

	var itemErr error
	go func() {
		itemErr = g.Wait()
		close(done)
	}()

	out := make([]Result[In, Out], len(items))
	for c := range done {
		out[c.idx] = c.res
		if onResult == nil {
			continue
		}
		if err := onResult(c.res); err != nil && runCtx.Err() == nil {
			stop(err)
		}
	}

	if itemErr != nil {
		return nil, itemErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cause := context.Cause(runCtx); cause != nil {
		return nil, cause
	}
	return out, nil
}
