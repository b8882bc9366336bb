package reconcile

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/candidate"
	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/redact"
	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/stream"
)

// ErrSkip may be returned by a Decoder for result events that carry nothing to apply.
var ErrSkip = errors.New("reconcile: skip event")

// Decoder turns a "result" event into the locator of its record and a typed patch.
type Decoder[P any] func(ev stream.Event) (Locator, P, error)

// Applier writes a decoded patch onto a record.
type Applier[P any] func(rec *candidate.Record, patch P, origin Origin) Outcome

// Flow binds stream events of one enrichment kind to a Store. Each kind supplies only its Decoder
// and Applier.
type Flow[P any] struct {
	Kind   Kind
	Decode Decoder[P]
	Apply  Applier[P]
	Logger *zap.Logger
}

// Opener starts a stream with the given handlers.
type Opener func(h stream.Handlers) (*stream.Stream, error)

// Begin marks targets as loading under op, then opens the stream. A failure to open is dispatched
// as StreamErrored and also returned.
func (f Flow[P]) Begin(store *Store, op Operation, targets []Target, open Opener) (*stream.Stream, error) {
	store.Dispatch(RequestStarted{Op: op, Kind: f.Kind, Targets: targets})
	s, err := open(f.Handlers(store, op))
	if err != nil {
		store.Dispatch(StreamErrored{Op: op, Message: redact.Secrets(err.Error())})
		return nil, fmt.Errorf("open %s stream: %w", f.Kind, err)
	}
	return s, nil
}

// Handlers returns stream callbacks that dispatch into store under op.
func (f Flow[P]) Handlers(store *Store, op Operation) stream.Handlers {
	logger := f.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("op", string(op)))

	return stream.Handlers{
		OnData: func(ev stream.Event) {
			if msg, ok := f.toMsg(op, ev, logger); ok {
				store.Dispatch(msg)
			}
		},
		OnError: func(err error) {
			store.Dispatch(StreamErrored{Op: op, Message: redact.Secrets(err.Error())})
		},
		OnComplete: func() {
			store.Dispatch(StreamCompleted{Op: op})
		},
	}
}

func (f Flow[P]) toMsg(op Operation, ev stream.Event, logger *zap.Logger) (msg Msg, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("skipping event that could not be decoded", zap.String("type", string(ev.Type)), zap.Any("panic", r))
			msg, ok = nil, false
		}
	}()

	switch ev.Type {
	case stream.TypeStatus:
		var st stream.Status
		if err := ev.Decode(&st); err != nil {
			logger.Warn("skipping malformed status event", zap.Error(err))
			return nil, false
		}
		return StatusReceived{Op: op, Message: st.Message, Processed: st.Processed, Total: st.Total}, true
	case stream.TypeResult:
		loc, patch, err := f.Decode(ev)
		if err != nil {
			if !errors.Is(err, ErrSkip) {
				logger.Warn("skipping malformed result event", zap.Error(err))
			}
			return nil, false
		}
		apply := f.Apply
		return ResultReceived{
			Op:      op,
			Locator: loc,
			Patch: PatchFunc(func(rec *candidate.Record, origin Origin) Outcome {
				return apply(rec, patch, origin)
			}),
		}, true
	case stream.TypeComplete:
		var c stream.Complete
		if err := ev.Decode(&c); err != nil {
			logger.Warn("complete event without a valid body", zap.Error(err))
		}
		return StreamCompleted{Op: op, TotalProcessed: c.TotalProcessed}, true
	case stream.TypeError:
		var fl stream.Failure
		if err := ev.Decode(&fl); err != nil {
			logger.Warn("error event without a valid body", zap.Error(err))
		}
		return StreamErrored{Op: op, Message: redact.Secrets(fl.Text())}, true
	}
	logger.Warn("skipping stream event with unknown type", zap.String("type", string(ev.Type)))
	return nil, false
}
