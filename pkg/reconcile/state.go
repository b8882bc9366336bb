// Package reconcile applies streamed enrichment results to an in-memory candidate list.
//
// All changes go through Reduce, a pure function from (State, Msg) to a new State plus a list of
// effects for the caller to run. Store wraps Reduce with a mutex so a list can be fed from several
// concurrent streams, and Flow binds one stream's events to a Store.
package reconcile

import (
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/candidate"
)

// DefaultClearDelay keeps a record's loading marker visible for a moment after its result arrives.
const DefaultClearDelay = 300 * time.Millisecond

// Kind names an enrichment flow.
type Kind string

const (
	KindEmail    Kind = "email"
	KindLinkedIn Kind = "linkedin"
	KindAnalysis Kind = "analysis"
)

// Operation keys the loading set and progress of one request, e.g. "email:6f1c...".
type Operation string

// NewOperation builds an operation key for kind.
func NewOperation(kind Kind, id string) Operation {
	return Operation(string(kind) + ":" + id)
}

// Origin records how a lookup for a record was started.
type Origin int

const (
	// OriginUnknown is used when a result arrives for a record that was never requested.
	OriginUnknown Origin = iota
	// OriginProvider lookups started from a provider id.
	OriginProvider
	// OriginURL lookups started from a LinkedIn URL.
	OriginURL
)

func (o Origin) String() string {
	switch o {
	case OriginProvider:
		return "provider"
	case OriginURL:
		return "url"
	}
	return "unknown"
}

// Target is one record included in a request.
type Target struct {
	RecordID string
	Origin   Origin
}

// Result classifies what a patch did.
type Result int

const (
	ResultUpdated Result = iota
	// ResultEmpty is a semantic "nothing found" outcome, stored as a sentinel on the record.
	ResultEmpty
	// ResultFailed leaves the record's enrichment fields as they were.
	ResultFailed
)

// Outcome is returned by a patch.
type Outcome struct {
	Result  Result
	Persist bool
}

// Patch changes one record. Implementations must be assignments so applying a patch twice leaves
// the record as applying it once.
type Patch interface {
	Apply(rec *candidate.Record, origin Origin) Outcome
}

type PatchFunc func(rec *candidate.Record, origin Origin) Outcome

func (f PatchFunc) Apply(rec *candidate.Record, origin Origin) Outcome {
	return f(rec, origin)
}

// Progress is the per-operation counter set reported to observers.
type Progress struct {
	Total     int
	Processed int
	Matched   int
	Unmatched int
	Empty     int
	Failed    int
	Message   string
	Done      bool
	Err       string
}

// OpState is the state of one operation.
type OpState struct {
	Kind     Kind
	Progress Progress
	// Loading maps record id to the generation of the request that added it.
	Loading map[string]uint64
	Origins map[string]Origin
	Closed  bool
	gen     uint64
}

func (o *OpState) clone() *OpState {
	out := *o
	out.Loading = make(map[string]uint64, len(o.Loading))
	for k, v := range o.Loading {
		out.Loading[k] = v
	}
	out.Origins = make(map[string]Origin, len(o.Origins))
	for k, v := range o.Origins {
		out.Origins[k] = v
	}
	return &out
}

// State is the record list plus per-operation loading and progress. A State returned by Reduce
// shares unchanged parts with its predecessor; treat it as read-only.
type State struct {
	Records    []candidate.Record
	Ops        map[Operation]*OpState
	ClearDelay time.Duration
	Matchers   []Matcher
}

// NewState wraps records. The slice is copied.
func NewState(records []candidate.Record) State {
	return State{
		Records:    candidate.CloneAll(records),
		Ops:        map[Operation]*OpState{},
		ClearDelay: DefaultClearDelay,
		Matchers:   DefaultMatchers,
	}
}

// Record returns the record with the given local id.
func (s State) Record(id string) (candidate.Record, bool) {
	for _, r := range s.Records {
		if r.ID == id {
			return r, true
		}
	}
	return candidate.Record{}, false
}

// Loading reports whether record id is in flight for op.
func (s State) Loading(op Operation, id string) bool {
	o, ok := s.Ops[op]
	if !ok {
		return false
	}
	_, ok = o.Loading[id]
	return ok
}

// LoadingCount returns the size of op's loading set.
func (s State) LoadingCount(op Operation) int {
	if o, ok := s.Ops[op]; ok {
		return len(o.Loading)
	}
	return 0
}

// AnyLoading reports whether record id is in flight for any operation of kind.
func (s State) AnyLoading(kind Kind, id string) bool {
	for _, o := range s.Ops {
		if o.Kind != kind {
			continue
		}
		if _, ok := o.Loading[id]; ok {
			return true
		}
	}
	return false
}

func (s State) Progress(op Operation) (Progress, bool) {
	o, ok := s.Ops[op]
	if !ok {
		return Progress{}, false
	}
	return o.Progress, true
}

// Msg is an input to Reduce.
type Msg interface {
	operation() Operation
}

// RequestStarted marks targets as in flight for Op.
type RequestStarted struct {
	Op      Operation
	Kind    Kind
	Targets []Target
}

// StatusReceived carries a "status" event. Processed and Total are optional.
type StatusReceived struct {
	Op        Operation
	Message   string
	Processed *int
	Total     *int
}

// ResultReceived carries one decoded "result" event.
type ResultReceived struct {
	Op      Operation
	Locator Locator
	Patch   Patch
}

// StreamCompleted ends Op. TotalProcessed is zero when the stream ended without a "complete" event.
type StreamCompleted struct {
	Op             Operation
	TotalProcessed int
}

// StreamErrored ends Op with an error. Already-applied patches are kept.
type StreamErrored struct {
	Op      Operation
	Message string
}

// LoadingExpired removes RecordID from Op's loading set if it still belongs to Generation.
type LoadingExpired struct {
	Op         Operation
	RecordID   string
	Generation uint64
}

func (m RequestStarted) operation() Operation  { return m.Op }
func (m StatusReceived) operation() Operation  { return m.Op }
func (m ResultReceived) operation() Operation  { return m.Op }
func (m StreamCompleted) operation() Operation { return m.Op }
func (m StreamErrored) operation() Operation   { return m.Op }
func (m LoadingExpired) operation() Operation  { return m.Op }

// Effect is work Reduce asks its caller to do.
type Effect interface {
	effect()
}

// ExpireLoading asks for a LoadingExpired message after Delay.
type ExpireLoading struct {
	Op         Operation
	RecordID   string
	Generation uint64
	Delay      time.Duration
}

// Persist asks for Record to be saved to the backend. Failures must not be fed back.
type Persist struct {
	Op     Operation
	Record candidate.Record
}

// Notify is a user-facing or diagnostic message.
type Notify struct {
	Op      Operation
	Level   zapcore.Level
	Message string
	Fields  []zapcore.Field
}

func (ExpireLoading) effect() {}
func (Persist) effect()       {}
func (Notify) effect()        {}
