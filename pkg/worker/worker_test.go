package worker_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/worker"
)

func fastOpts(workers, retries int) worker.Options {
	return worker.Options{
		Workers:           workers,
		MaxRetries:        retries,
		RequestTimeout:    time.Second,
		BackoffInitial:    time.Millisecond,
		BackoffMax:        2 * time.Millisecond,
		BackoffJitterFrac: 0,
	}
}

func byValue(s string) string { return s }

func TestProcessAll_RetriesTransient(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	fn := func(_ context.Context, _ string) (string, error) {
		if calls.Add(1) <= 2 {
			return "", &worker.TransientError{Err: errors.New("503 from backend")}
		}
		return "saved", nil
	}

	out, err := worker.ProcessAll(context.Background(), []string{"rec-1"}, fn, fastOpts(1, 3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0].Err != nil || out[0].Output != "saved" {
		t.Fatalf("unexpected output: %#v", out)
	}
	if out[0].Attempt != 3 {
		t.Fatalf("attempt=%d want 3", out[0].Attempt)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 calls, got %d", got)
	}
}

func TestProcessAll_DoesNotRetryPermanent(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	fn := func(_ context.Context, _ string) (string, error) {
		calls.Add(1)
		return "", errors.New("400 bad request")
	}

	out, err := worker.ProcessAll(context.Background(), []string{"rec-1"}, fn, fastOpts(1, 10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0].Err == nil || out[0].Err.Error() != "400 bad request" {
		t.Fatalf("unexpected output: %#v", out[0])
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected 1 call, got %d", got)
	}
}

func TestProcessAll_RespectsPerErrorRetryCap(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	fn := func(_ context.Context, _ string) (string, error) {
		calls.Add(1)
		return "", &worker.LimitedTransientError{Err: errors.New("rate limited"), ExtraRetries: 1}
	}

	out, err := worker.ProcessAll(context.Background(), []string{"rec-1"}, fn, fastOpts(1, 10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0].Err == nil {
		t.Fatalf("expected error output, got %#v", out[0])
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected 2 calls (1 initial + 1 retry), got %d", got)
	}
}

func TestProcessAll_FailFastStops(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	fn := func(_ context.Context, id string) (string, error) {
		calls.Add(1)
		if id == "bad" {
			return "", errors.New("boom")
		}
		return "ok", nil
	}

	opts := fastOpts(1, 0)
	opts.FailurePolicy = worker.FailurePolicyFailFast
	out, err := worker.ProcessAll(context.Background(), []string{"bad", "good"}, fn, opts)
	if err == nil || err.Error() != "boom" {
		t.Fatalf("expected boom error, got %v", err)
	}
	if out != nil {
		t.Fatalf("expected nil output on fail-fast, got %#v", out)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected 1 call, got %d", got)
	}
}

func TestProcessAll_PartialOutputKeepsInputOrder(t *testing.T) {
	t.Parallel()

	fn := func(_ context.Context, id string) (string, error) {
		if id == "bad" {
			return "", errors.New("boom")
		}
		return "ok:" + id, nil
	}

	out, err := worker.ProcessAll(context.Background(), []string{"bad", "a", "b"}, fn, fastOpts(3, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0].Err == nil || out[1].Output != "ok:a" || out[2].Output != "ok:b" {
		t.Fatalf("unexpected outputs: %#v", out)
	}
}

func TestProcessAllWithCallback_CallbackErrorStopsRun(t *testing.T) {
	t.Parallel()

	callbackErr := errors.New("callback failed")
	_, err := worker.ProcessAllWithCallback(
		context.Background(),
		[]string{"rec-1"},
		func(_ context.Context, id string) (string, error) { return id, nil },
		func(worker.Result[string, string]) error { return callbackErr },
		fastOpts(1, 0),
	)
	if !errors.Is(err, callbackErr) {
		t.Fatalf("expected callback error, got %v", err)
	}
}

func TestIsTransient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "plain", err: errors.New("x"), want: false},
		{name: "marked", err: &worker.TransientError{Err: errors.New("x")}, want: true},
		{name: "deadline", err: context.DeadlineExceeded, want: true},
		{name: "canceled", err: context.Canceled, want: false},
	}
	for _, tt := range tests {
		if got := worker.IsTransient(tt.err); got != tt.want {
			t.Fatalf("%s: IsTransient=%v want %v", tt.name, got, tt.want)
		}
	}
}

func TestQueue_ProcessesSubmittedItemsAndDrainsOnClose(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var done []string
	q := worker.NewQueue(context.Background(), byValue,
		func(_ context.Context, id string) (string, error) {
			time.Sleep(time.Millisecond)
			return id, nil
		},
		func(res worker.Result[string, string]) {
			mu.Lock()
			defer mu.Unlock()
			done = append(done, res.Output)
		},
		fastOpts(2, 0),
	)

	for _, id := range []string{"c", "a", "b"} {
		if err := q.Submit(id); err != nil {
			t.Fatalf("submit %q: %v", id, err)
		}
	}
	if err := q.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	sort.Strings(done)
	if len(done) != 3 || done[0] != "a" || done[2] != "c" {
		t.Fatalf("unexpected processed items: %v", done)
	}
	if err := q.Submit("late"); !errors.Is(err, worker.ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed, got %v", err)
	}
}

func TestQueue_CloseHonoursContext(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	q := worker.NewQueue(context.Background(), byValue,
		func(ctx context.Context, _ string) (string, error) {
			select {
			case <-release:
				return "", nil
			case <-ctx.Done():
				return "", ctx.Err()
			}
		},
		nil,
		fastOpts(1, 0),
	)
	if err := q.Submit("stuck"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := q.Close(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	close(release)
}

type keyedSave struct {
	id, val string
}

func TestQueue_SameKeyRunsSeriallyAndKeepsLatest(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	var mu sync.Mutex
	var seen []string
	active := map[string]int{}
	overlap := false

	q := worker.NewQueue(context.Background(),
		func(s keyedSave) string { return s.id },
		func(_ context.Context, s keyedSave) (string, error) {
			mu.Lock()
			active[s.id]++
			if active[s.id] > 1 {
				overlap = true
			}
			mu.Unlock()
			if s.val == "v1" {
				close(started)
				<-release
			}
			mu.Lock()
			active[s.id]--
			seen = append(seen, s.val)
			mu.Unlock()
			return s.val, nil
		},
		nil,
		fastOpts(4, 0),
	)

	if err := q.Submit(keyedSave{id: "r1", val: "v1"}); err != nil {
		t.Fatalf("submit v1: %v", err)
	}
	<-started
	for _, v := range []string{"v2", "v3"} {
		if err := q.Submit(keyedSave{id: "r1", val: v}); err != nil {
			t.Fatalf("submit %s: %v", v, err)
		}
	}
	close(release)
	if err := q.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if overlap {
		t.Fatalf("two items with the same key ran at once")
	}
	if len(seen) != 2 || seen[0] != "v1" || seen[1] != "v3" {
		t.Fatalf("seen=%v want [v1 v3]", seen)
	}
	if got := q.Coalesced(); got != 1 {
		t.Fatalf("coalesced=%d want 1", got)
	}
}

func TestQueue_RetryOfOlderItemDoesNotOverwriteNewer(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	var mu sync.Mutex
	var last string
	q := worker.NewQueue(context.Background(),
		func(s keyedSave) string { return s.id },
		func(_ context.Context, s keyedSave) (string, error) {
			if calls.Add(1) == 1 {
				return "", &worker.TransientError{Err: errors.New("503")}
			}
			mu.Lock()
			last = s.val
			mu.Unlock()
			return s.val, nil
		},
		nil,
		fastOpts(4, 2),
	)

	for _, v := range []string{"old", "new"} {
		if err := q.Submit(keyedSave{id: "r1", val: v}); err != nil {
			t.Fatalf("submit %s: %v", v, err)
		}
	}
	if err := q.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if last != "new" {
		t.Fatalf("last write=%q want new", last)
	}
}
