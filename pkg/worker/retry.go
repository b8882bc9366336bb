package worker

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"time"

	"golang.org/x/time/rate"
)

// retrier holds what every call of one run or queue shares: the options and the rate limiter.
type retrier struct {
	opts    Options
	limiter *rate.Limiter
}

func newRetrier(opts Options) *retrier {
	r := &retrier{opts: opts}
	if opts.RateLimitRPS > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), 1)
	}
	return r
}

// admit blocks until the limiter lets one more call through.
func (r *retrier) admit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.limiter == nil {
		return nil
	}
	return r.limiter.Wait(ctx)
}

// again reports whether a call that failed with err after attempts calls gets another one.
func (r *retrier) again(err error, attempts int) bool {
	if !IsTransient(err) {
		return false
	}
	budget := r.opts.MaxRetries
	var capped retryCap
	if errors.As(err, &capped) {
		budget = min(budget, max(capped.MaxExtraRetries(), 0))
	}
	return attempts <= budget
}

func (r *retrier) pause(ctx context.Context, attempts int) error {
	t := time.NewTimer(backoff(r.opts, attempts-1))
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run calls processor for item until it succeeds, fails permanently or runs out of retries. Each
// call gets its own RequestTimeout.
func run[In any, Out any](
	ctx context.Context,
	r *retrier,
	item In,
	processor func(context.Context, In) (Out, error),
) Result[In, Out] {
	res := Result[In, Out]{Input: item}
	for {
		if err := r.admit(ctx); err != nil {
			res.Err = err
			return res
		}
		res.Attempt++
		callCtx, cancel := context.WithTimeout(ctx, r.opts.RequestTimeout)
		res.Output, res.Err = processor(callCtx, item)
		cancel()
		switch {
		case res.Err == nil:
			return res
		case ctx.Err() != nil:
			res.Err = ctx.Err()
			return res
		case !r.again(res.Err, res.Attempt):
			return res
		}
		if err := r.pause(ctx, res.Attempt); err != nil {
			res.Err = err
			return res
		}
	}
}

type retryCap interface {
	MaxExtraRetries() int
}

// IsTransient reports whether err is worth retrying: errors marked with TransientError or
// LimitedTransientError, deadline overruns and network timeouts.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *TransientError
	var lte *LimitedTransientError
	if errors.As(err, &te) || errors.As(err, &lte) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// backoff doubles BackoffInitial per earlier retry up to BackoffMax, then applies jitter.
func backoff(opts Options, retry int) time.Duration {
	d := opts.BackoffInitial
	for ; retry > 0 && d < opts.BackoffMax; retry-- {
		d *= 2
	}
	d = min(d, opts.BackoffMax)
	if opts.BackoffJitterFrac <= 0 {
		return d
	}
	return time.Duration(float64(d) * (1 + (rand.Float64()*2-1)*opts.BackoffJitterFrac))
}
