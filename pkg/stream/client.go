// Package stream consumes long-lived HTTP responses that deliver JSON events incrementally and
// dispatches them to callbacks.
package stream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Handlers receives stream callbacks. All callbacks run on one goroutine in arrival order.
//
// OnError fires at most once, for transport failures, and is never followed by OnComplete.
// OnComplete fires at most once, when the body ends cleanly. Neither fires after the stream is
// cancelled.
type Handlers struct {
	OnData     func(Event)
	OnError    func(error)
	OnComplete func()
}

// Doer is satisfied by *http.Client.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

type Options struct {
	Logger *zap.Logger
	// ResponseError builds the error reported for a non-2xx response. body is at most 4KiB.
	ResponseError func(resp *http.Response, body []byte) error
}

// Stream is a running stream. Close is the cleanup handle.
type Stream struct {
	cancel  context.CancelFunc
	stopped atomic.Bool
	done    chan struct{}

	mu       sync.Mutex
	finished bool
}

// Start sends req with doer and reads the response body on a new goroutine. The request is bound
// to a context derived from ctx; cancelling ctx is reported through OnError like any other
// transport failure.
func Start(ctx context.Context, doer Doer, req *http.Request, h Handlers, opts Options) *Stream {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	runCtx, cancel := context.WithCancel(ctx)
	s := &Stream{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(s.done)
		defer cancel()
		s.run(runCtx, doer, req.WithContext(runCtx), h, opts, logger)
	}()
	return s
}

// Produce runs produce on a new goroutine and delivers what it emits through h with the same
// guarantees as Start. produce must call emit from a single goroutine. A nil return completes the
// stream; an error is reported through OnError.
func Produce(ctx context.Context, h Handlers, produce func(ctx context.Context, emit func(Event)) error) *Stream {
	runCtx, cancel := context.WithCancel(ctx)
	s := &Stream{cancel: cancel, done: make(chan struct{})}
	emit := func(ev Event) {
		if s.stopped.Load() || h.OnData == nil {
			return
		}
		h.OnData(ev)
	}
	go func() {
		defer close(s.done)
		defer cancel()
		if err := produce(runCtx, emit); err != nil {
			s.fail(h, err)
			return
		}
		if err := runCtx.Err(); err != nil {
			s.fail(h, err)
			return
		}
		s.finish(func() {
			if h.OnComplete != nil {
				h.OnComplete()
			}
		})
	}()
	return s
}

// Cancel aborts the connection without waiting. It is safe to call from a handler; once it returns
// there, no further callback runs.
func (s *Stream) Cancel() {
	s.stopped.Store(true)
	s.cancel()
}

// Close cancels the stream and waits for the reader goroutine to exit, so no callback runs after it
// returns. It must not be called from inside a handler; use Cancel there.
func (s *Stream) Close() {
	s.Cancel()
	<-s.done
}

// Done is closed once the reader goroutine has exited.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

func (s *Stream) run(ctx context.Context, doer Doer, req *http.Request, h Handlers, opts Options, logger *zap.Logger) {
	resp, err := doer.Do(req)
	if err != nil {
		s.fail(h, fmt.Errorf("open stream: %w", err))
		return
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if opts.ResponseError != nil {
			s.fail(h, opts.ResponseError(resp, body))
		} else {
			s.fail(h, fmt.Errorf("open stream: unexpected status %s", resp.Status))
		}
		return
	}

	sc := NewScanner(resp.Body)
	for sc.Next() {
		if s.stopped.Load() {
			return
		}
		frame := sc.Frame()
		ev, err := ParseEvent([]byte(frame.Data))
		if err != nil {
			logger.Warn("skipping malformed stream event", zap.Error(err), zap.Int("bytes", len(frame.Data)))
			continue
		}
		if !ev.Type.Known() {
			logger.Warn("skipping stream event with unknown type", zap.String("type", string(ev.Type)))
			continue
		}
		if h.OnData != nil {
			h.OnData(ev)
		}
	}
	if err := sc.Err(); err != nil {
		s.fail(h, fmt.Errorf("read stream: %w", err))
		return
	}
	if ctx.Err() != nil {
		s.fail(h, fmt.Errorf("read stream: %w", ctx.Err()))
		return
	}
	s.finish(func() {
		if h.OnComplete != nil {
			h.OnComplete()
		}
	})
}

func (s *Stream) fail(h Handlers, err error) {
	s.finish(func() {
		if h.OnError != nil {
			h.OnError(err)
		}
	})
}

func (s *Stream) finish(fn func()) {
	s.mu.Lock()
	if s.finished || s.stopped.Load() {
		s.mu.Unlock()
		return
	}
	s.finished = true
	s.mu.Unlock()
	fn()
}
