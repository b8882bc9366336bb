package worker

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueClosed is returned by Submit after Close.
var ErrQueueClosed = errors.New("worker: queue closed")

// Queue is a long-lived pool fed one item at a time, with the same retry, timeout and rate-limit
// semantics as ProcessAll.
//
// Items are keyed. Items with the same key never run concurrently, and an item submitted while an
// earlier one with its key is still waiting replaces it: only the latest waiting item per key is
// processed, after any run of that key already in progress. Replaced items never reach onResult.
// onResult is called from the worker goroutines.
type Queue[In any, Out any] struct {
	ctx       context.Context
	cancel    context.CancelFunc
	key       func(In) string
	processor func(context.Context, In) (Out, error)
	onResult  func(Result[In, Out])
	retry     *retrier
	wg        sync.WaitGroup

	mu        sync.Mutex
	ready     *sync.Cond
	waiting   map[string]In
	order     []string // keys in waiting that are not running, oldest first
	running   map[string]bool
	closed    bool
	coalesced int64
}

// NewQueue starts opts.Workers goroutines. Submit never blocks: waiting items are bounded by the
// number of distinct keys.
func NewQueue[In any, Out any](
	ctx context.Context,
	key func(In) string,
	processor func(context.Context, In) (Out, error),
	onResult func(Result[In, Out]),
	opts Options,
) *Queue[In, Out] {
	opts = opts.withDefaults()
	runCtx, cancel := context.WithCancel(ctx)
	q := &Queue[In, Out]{
		ctx:       runCtx,
		cancel:    cancel,
		key:       key,
		processor: processor,
		onResult:  onResult,
		retry:     newRetrier(opts),
		waiting:   map[string]In{},
		running:   map[string]bool{},
	}
	q.ready = sync.NewCond(&q.mu)
	for range opts.Workers {
		q.wg.Go(q.loop)
	}
	return q
}

// Submit schedules item, replacing a waiting item with the same key.
func (q *Queue[In, Out]) Submit(item In) error {
	k := q.key(item)
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	if err := q.ctx.Err(); err != nil {
		return err
	}
	if _, ok := q.waiting[k]; ok {
		q.waiting[k] = item
		q.coalesced++
		return nil
	}
	q.waiting[k] = item
	if !q.running[k] {
		q.order = append(q.order, k)
		q.ready.Signal()
	}
	return nil
}

// Coalesced counts items that were replaced before they ran.
func (q *Queue[In, Out]) Coalesced() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.coalesced
}

func (q *Queue[In, Out]) loop() {
	for {
		k, item, ok := q.take()
		if !ok {
			return
		}
		res := run(q.ctx, q.retry, item, q.processor)
		if q.onResult != nil {
			q.onResult(res)
		}
		q.release(k)
	}
}

// take blocks until a key is ready and marks it running. It reports false once the queue is closed
// and nothing is ready.
func (q *Queue[In, Out]) take() (string, In, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.order) == 0 {
		if q.closed {
			var zero In
			return "", zero, false
		}
		q.ready.Wait()
	}
	k := q.order[0]
	q.order = q.order[1:]
	item := q.waiting[k]
	delete(q.waiting, k)
	q.running[k] = true
	return k, item, true
}

// release ends the run of k and requeues it if a newer item arrived meanwhile.
func (q *Queue[In, Out]) release(k string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.running, k)
	if _, ok := q.waiting[k]; ok {
		q.order = append(q.order, k)
		q.ready.Signal()
	}
}

// Close stops accepting items and waits until waiting items are processed or ctx is done. When ctx
// ends first, in-flight work is cancelled and ctx.Err() is returned.
func (q *Queue[In, Out]) Close(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	q.ready.Broadcast()
	q.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		<-drained
		return ctx.Err()
	}
}
