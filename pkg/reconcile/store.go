package reconcile

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/candidate"
)

// Persister saves a patched record. Enqueue must not block for long; it is called outside the
// store lock but on the dispatching goroutine.
type Persister interface {
	Enqueue(rec candidate.Record)
}

// StoreOptions configures a Store. Zero values are usable.
type StoreOptions struct {
	Logger    *zap.Logger
	Persister Persister
	// OnNotify receives every Notify effect at info level or above, after it has been logged.
	OnNotify func(Notify)
	// ClearDelay overrides DefaultClearDelay. Negative means clear immediately.
	ClearDelay time.Duration
	// AfterFunc schedules delayed loading clears. Defaults to time.AfterFunc. f must run on another
	// goroutine.
	AfterFunc func(d time.Duration, f func()) Stopper
}

// Stopper is the part of *time.Timer the store needs.
type Stopper interface {
	Stop() bool
}

// Store serializes every Reduce call behind one mutex and runs the resulting effects outside of it.
type Store struct {
	log       *zap.Logger
	persister Persister
	onNotify  func(Notify)
	afterFunc func(time.Duration, func()) Stopper

	mu     sync.Mutex
	state  State
	timers map[*timerRef]struct{}
	closed bool
}

type timerRef struct {
	stop Stopper
}

func NewStore(records []candidate.Record, opts StoreOptions) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	st := NewState(records)
	switch {
	case opts.ClearDelay > 0:
		st.ClearDelay = opts.ClearDelay
	case opts.ClearDelay < 0:
		st.ClearDelay = 0
	}
	after := opts.AfterFunc
	if after == nil {
		after = func(d time.Duration, f func()) Stopper { return time.AfterFunc(d, f) }
	}
	return &Store{
		log:       logger,
		persister: opts.Persister,
		onNotify:  opts.OnNotify,
		afterFunc: after,
		state:     st,
		timers:    map[*timerRef]struct{}{},
	}
}

// Dispatch applies msg and runs its effects. It is safe for concurrent use. Messages dispatched
// after Close are dropped.
func (s *Store) Dispatch(msg Msg) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	next, effects := Reduce(s.state, msg)
	s.state = next
	s.mu.Unlock()

	for _, eff := range effects {
		s.run(eff)
	}
}

func (s *Store) run(eff Effect) {
	switch e := eff.(type) {
	case ExpireLoading:
		s.schedule(e)
	case Persist:
		if s.persister != nil {
			s.persister.Enqueue(e.Record)
		}
	case Notify:
		fields := append([]zap.Field{zap.String("op", string(e.Op))}, e.Fields...)
		if ce := s.log.Check(e.Level, e.Message); ce != nil {
			ce.Write(fields...)
		}
		if s.onNotify != nil && e.Level >= zap.InfoLevel {
			s.onNotify(e)
		}
	}
}

func (s *Store) schedule(e ExpireLoading) {
	expired := LoadingExpired{Op: e.Op, RecordID: e.RecordID, Generation: e.Generation}
	if e.Delay <= 0 {
		s.Dispatch(expired)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	ref := &timerRef{}
	ref.stop = s.afterFunc(e.Delay, func() {
		s.mu.Lock()
		delete(s.timers, ref)
		s.mu.Unlock()
		s.Dispatch(expired)
	})
	s.timers[ref] = struct{}{}
}

// State returns the current state. The returned value must not be modified.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Records returns a deep copy of the current record list.
func (s *Store) Records() []candidate.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return candidate.CloneAll(s.state.Records)
}

// Close stops pending loading timers. Later dispatches are ignored.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for ref := range s.timers {
		if ref.stop != nil {
			ref.stop.Stop()
		}
	}
	s.timers = map[*timerRef]struct{}{}
}
