package reconcile

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/candidate"
)

// Reduce applies msg to s and returns the next state and the effects to run. It never panics on
// a bad patch: the event is skipped and reported through a Notify effect.
func Reduce(s State, msg Msg) (State, []Effect) {
	switch m := msg.(type) {
	case RequestStarted:
		return reduceRequestStarted(s, m)
	case StatusReceived:
		return reduceStatus(s, m)
	case ResultReceived:
		return reduceResult(s, m)
	case StreamCompleted:
		return reduceCompleted(s, m)
	case StreamErrored:
		return reduceErrored(s, m)
	case LoadingExpired:
		return reduceExpired(s, m)
	}
	return s, nil
}

// withOp returns a copy of s whose Ops map holds a private copy of op's state, creating it when
// missing.
func withOp(s State, op Operation) (State, *OpState) {
	ops := make(map[Operation]*OpState, len(s.Ops)+1)
	for k, v := range s.Ops {
		ops[k] = v
	}
	var o *OpState
	if cur, ok := ops[op]; ok {
		o = cur.clone()
	} else {
		o = &OpState{Loading: map[string]uint64{}, Origins: map[string]Origin{}}
	}
	ops[op] = o
	s.Ops = ops
	return s, o
}

func reduceRequestStarted(s State, m RequestStarted) (State, []Effect) {
	s, o := withOp(s, m.Op)
	if m.Kind != "" {
		o.Kind = m.Kind
	}
	if o.Closed {
		o.Closed = false
		o.Progress.Done = false
		o.Progress.Err = ""
	}
	for _, t := range m.Targets {
		if t.RecordID == "" {
			continue
		}
		o.gen++
		o.Loading[t.RecordID] = o.gen
		o.Origins[t.RecordID] = t.Origin
	}
	o.Progress.Total += len(m.Targets)
	return s, nil
}

func reduceStatus(s State, m StatusReceived) (State, []Effect) {
	s, o := withOp(s, m.Op)
	if m.Message != "" {
		o.Progress.Message = m.Message
	}
	if m.Processed != nil {
		o.Progress.Processed = *m.Processed
	}
	if m.Total != nil {
		o.Progress.Total = *m.Total
	}
	return s, nil
}

func reduceResult(s State, m ResultReceived) (State, []Effect) {
	s, o := withOp(s, m.Op)

	matchers := s.Matchers
	if matchers == nil {
		matchers = DefaultMatchers
	}
	idx, via, ok := Locate(s.Records, m.Locator, matchers)
	if !ok {
		o.Progress.Unmatched++
		return s, []Effect{Notify{
			Op:      m.Op,
			Level:   zapcore.DebugLevel,
			Message: "no record matches result",
			Fields:  []zapcore.Field{zap.Stringer("locator", m.Locator)},
		}}
	}
	if m.Patch == nil {
		return s, nil
	}

	rec := s.Records[idx].Clone()
	origin, known := o.Origins[rec.ID]
	if !known {
		origin = originFromLocator(m.Locator)
	}

	outcome, err := applyPatch(m.Patch, &rec, origin)
	if err != nil {
		return s, []Effect{Notify{
			Op:      m.Op,
			Level:   zapcore.WarnLevel,
			Message: "skipping result that could not be applied",
			Fields:  []zapcore.Field{zap.String("record", rec.ID), zap.Error(err)},
		}}
	}

	next := append(s.Records[:0:0], s.Records...)
	next[idx] = rec
	s.Records = next

	o.Progress.Matched++
	switch outcome.Result {
	case ResultEmpty:
		o.Progress.Empty++
	case ResultFailed:
		o.Progress.Failed++
	}

	var effects []Effect
	if outcome.Persist {
		effects = append(effects, Persist{Op: m.Op, Record: rec.Clone()})
	}
	if gen, loading := o.Loading[rec.ID]; loading {
		effects = append(effects, ExpireLoading{Op: m.Op, RecordID: rec.ID, Generation: gen, Delay: s.ClearDelay})
	}
	effects = append(effects, Notify{
		Op:      m.Op,
		Level:   zapcore.DebugLevel,
		Message: "applied result",
		Fields:  []zapcore.Field{zap.String("record", rec.ID), zap.String("via", via), zap.Stringer("origin", origin)},
	})
	return s, effects
}

func reduceCompleted(s State, m StreamCompleted) (State, []Effect) {
	if o, ok := s.Ops[m.Op]; ok && o.Closed {
		return s, nil
	}
	s, o := withOp(s, m.Op)
	o.Closed = true
	o.Loading = map[string]uint64{}
	o.Progress.Done = true
	if m.TotalProcessed > 0 {
		o.Progress.Processed = m.TotalProcessed
	} else if seen := o.Progress.Matched + o.Progress.Unmatched; seen > o.Progress.Processed {
		o.Progress.Processed = seen
	}
	return s, []Effect{Notify{
		Op:      m.Op,
		Level:   zapcore.InfoLevel,
		Message: fmt.Sprintf("%s finished: %d processed, %d matched", kindLabel(o.Kind), o.Progress.Processed, o.Progress.Matched),
	}}
}

func reduceErrored(s State, m StreamErrored) (State, []Effect) {
	if o, ok := s.Ops[m.Op]; ok && o.Closed {
		return s, nil
	}
	s, o := withOp(s, m.Op)
	o.Closed = true
	o.Loading = map[string]uint64{}
	msg := m.Message
	if msg == "" {
		msg = "stream failed"
	}
	o.Progress.Err = msg
	return s, []Effect{Notify{
		Op:      m.Op,
		Level:   zapcore.ErrorLevel,
		Message: fmt.Sprintf("%s failed: %s", kindLabel(o.Kind), msg),
	}}
}

func reduceExpired(s State, m LoadingExpired) (State, []Effect) {
	o, ok := s.Ops[m.Op]
	if !ok {
		return s, nil
	}
	if gen, loading := o.Loading[m.RecordID]; !loading || gen != m.Generation {
		return s, nil
	}
	s, o = withOp(s, m.Op)
	delete(o.Loading, m.RecordID)
	return s, nil
}

func applyPatch(p Patch, rec *candidate.Record, origin Origin) (out Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("patch panicked: %v", r)
		}
	}()
	return p.Apply(rec, origin), nil
}

func originFromLocator(loc Locator) Origin {
	if loc.ProfileID != "" {
		return OriginProvider
	}
	return OriginURL
}

func kindLabel(k Kind) string {
	switch k {
	case KindEmail:
		return "email lookup"
	case KindLinkedIn:
		return "LinkedIn URL lookup"
	case KindAnalysis:
		return "deep analysis"
	}
	return "enrichment"
}
