package worker

import "time"

// FailurePolicy decides what ProcessAll does with an item that failed after its retries.
type FailurePolicy int

const (
	// FailurePolicyPartialOutput keeps going and reports the error on the item's Result.
	FailurePolicyPartialOutput FailurePolicy = iota
	// FailurePolicyFailFast stops the run and returns the first item error.
	FailurePolicyFailFast
)

type Options struct {
	Workers        int
	MaxRetries     int
	RequestTimeout time.Duration

	// RateLimitRPS is shared by every worker of one run or queue. <=0 disables it.
	RateLimitRPS float64

	FailurePolicy FailurePolicy

	BackoffInitial time.Duration
	BackoffMax     time.Duration
	// BackoffJitterFrac spreads each sleep by +/- this fraction (0.2 = +/-20%).
	BackoffJitterFrac float64
}

// Result is the outcome for one input item. Attempt counts processor calls, so it is 0 when the
// item never ran.
type Result[In any, Out any] struct {
	Input   In
	Output  Out
	Err     error
	Attempt int
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	o.MaxRetries = max(o.MaxRetries, 0)
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 30 * time.Second
	}
	if o.BackoffInitial <= 0 {
		o.BackoffInitial = 200 * time.Millisecond
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = 2 * time.Second
	}
	o.BackoffJitterFrac = max(o.BackoffJitterFrac, 0)
	return o
}
