package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/jonjonssons/sacore-ai-web-sub002/internal/analyzer"
	"github.com/jonjonssons/sacore-ai-web-sub002/internal/flows"
	"github.com/jonjonssons/sacore-ai-web-sub002/internal/persist"
	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/backend"
	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/candidate"
	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/reconcile"
	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/stream"
	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/worker"
)

// Source opens the backend's enrichment streams. *backend.Client implements it.
type Source interface {
	StreamEmails(ctx context.Context, req backend.EmailRequest, h stream.Handlers) (*stream.Stream, error)
	StreamLinkedInURLs(ctx context.Context, req backend.LinkedInRequest, h stream.Handlers) (*stream.Stream, error)
	StreamAnalysis(ctx context.Context, req backend.AnalysisRequest, h stream.Handlers) (*stream.Stream, error)
}

// ErrNothingToDo is returned when every record already has an outcome for the requested lookup.
var ErrNothingToDo = errors.New("no records need this lookup")

type SessionOptions struct {
	Logger *zap.Logger
	// Saver receives every record a lookup changed. Nil disables persistence.
	Saver         persist.Saver
	PersistWorker worker.Options
	// ClearDelay is passed to the reconcile store.
	ClearDelay time.Duration
	// OnNotify receives user-facing notifications (completion, failures).
	OnNotify func(reconcile.Notify)
	// All sends every record instead of only those without an outcome.
	All bool
}

// Session holds one candidate list and runs lookups against it.
type Session struct {
	runID     string
	log       *zap.Logger
	store     *reconcile.Store
	persister *persist.Queue
	all       bool
}

func NewSession(ctx context.Context, records []candidate.Record, opts SessionOptions) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	runID := "run-" + uuid.NewString()[:8]
	logger = logger.With(zap.String("run", runID))

	s := &Session{runID: runID, log: logger, all: opts.All}
	storeOpts := reconcile.StoreOptions{
		Logger:     logger,
		OnNotify:   opts.OnNotify,
		ClearDelay: opts.ClearDelay,
	}
	if opts.Saver != nil {
		s.persister = persist.New(ctx, opts.Saver, persist.Options{Logger: logger, Worker: opts.PersistWorker})
		storeOpts.Persister = s.persister
	}
	s.store = reconcile.NewStore(records, storeOpts)
	return s
}

func (s *Session) RunID() string { return s.runID }

func (s *Session) Store() *reconcile.Store { return s.store }

// Records returns a snapshot of the candidate list.
func (s *Session) Records() []candidate.Record { return s.store.Records() }

func (s *Session) pending(kind reconcile.Kind) []candidate.Record {
	records := s.store.Records()
	if s.all {
		return records
	}
	return flows.Pending(kind, records)
}

// Emails runs an email lookup for the records that have no email outcome yet.
func (s *Session) Emails(ctx context.Context, src Source) (reconcile.Progress, error) {
	records := s.pending(reconcile.KindEmail)
	if len(records) == 0 {
		return reconcile.Progress{}, ErrNothingToDo
	}
	req, targets := flows.EmailRequest(records)
	return run(ctx, s, flows.Email(s.log), targets, func(h stream.Handlers) (*stream.Stream, error) {
		return src.StreamEmails(ctx, req, h)
	})
}

// LinkedInURLs back-fills LinkedIn URLs.
func (s *Session) LinkedInURLs(ctx context.Context, src Source) (reconcile.Progress, error) {
	records := s.pending(reconcile.KindLinkedIn)
	if len(records) == 0 {
		return reconcile.Progress{}, ErrNothingToDo
	}
	req, targets := flows.LinkedInRequest(records)
	return run(ctx, s, flows.LinkedIn(s.log), targets, func(h stream.Handlers) (*stream.Stream, error) {
		return src.StreamLinkedInURLs(ctx, req, h)
	})
}

// Analyze runs the backend's deep analysis against criteria.
func (s *Session) Analyze(ctx context.Context, src Source, criteria []string) (reconcile.Progress, error) {
	records := s.pending(reconcile.KindAnalysis)
	if len(records) == 0 {
		return reconcile.Progress{}, ErrNothingToDo
	}
	req, targets := flows.AnalysisRequest(records, criteria)
	return run(ctx, s, flows.Analysis(s.log), targets, func(h stream.Handlers) (*stream.Stream, error) {
		return src.StreamAnalysis(ctx, req, h)
	})
}

// AnalyzeLocal scores candidates with a local analyzer instead of the backend.
func (s *Session) AnalyzeLocal(ctx context.Context, a analyzer.Analyzer, criteria []string, opts worker.Options) (reconcile.Progress, error) {
	records := s.pending(reconcile.KindAnalysis)
	if len(records) == 0 {
		return reconcile.Progress{}, ErrNothingToDo
	}
	req, targets := flows.AnalysisRequest(records, criteria)
	return run(ctx, s, flows.Analysis(s.log), targets, analyzer.Opener(ctx, a, req, analyzer.Options{Logger: s.log, Worker: opts}))
}

// Lookup is one lookup run by RunConcurrently.
type Lookup func(ctx context.Context) (reconcile.Progress, error)

// RunConcurrently runs lookups in parallel on the same session. Each lookup is its own operation,
// so their loading states and counters stay independent. The first failure cancels the rest.
func (s *Session) RunConcurrently(ctx context.Context, lookups ...Lookup) ([]reconcile.Progress, error) {
	out := make([]reconcile.Progress, len(lookups))
	g, gctx := errgroup.WithContext(ctx)
	for i, lookup := range lookups {
		g.Go(func() error {
			p, err := lookup(gctx)
			if errors.Is(err, ErrNothingToDo) {
				return nil
			}
			out[i] = p
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}
	return out, nil
}

// Close waits for pending saves and releases the store. Save failures are returned but never undo
// the in-memory records.
func (s *Session) Close(ctx context.Context) error {
	var err error
	if s.persister != nil {
		err = s.persister.Close(ctx)
		st := s.persister.Stats()
		s.log.Info("profile saves finished",
			zap.Int64("saved", st.Saved),
			zap.Int64("failed", st.Failed),
			zap.Int64("dropped", st.Dropped),
			zap.Int64("coalesced", st.Coalesced),
		)
	}
	s.store.Close()
	return err
}

func run[P any](ctx context.Context, s *Session, flow reconcile.Flow[P], targets []reconcile.Target, open reconcile.Opener) (reconcile.Progress, error) {
	op := reconcile.NewOperation(flow.Kind, uuid.NewString())
	start := time.Now()
	s.log.Info("lookup started", zap.String("op", string(op)), zap.Int("records", len(targets)))

	st, err := flow.Begin(s.store, op, targets, open)
	if err != nil {
		p, _ := s.store.State().Progress(op)
		return p, err
	}

	select {
	case <-st.Done():
	case <-ctx.Done():
		st.Close()
		s.store.Dispatch(reconcile.StreamErrored{Op: op, Message: "cancelled: " + ctx.Err().Error()})
	}

	p, _ := s.store.State().Progress(op)
	s.log.Check(levelFor(p), "lookup finished").Write(
		zap.String("op", string(op)),
		zap.Int("processed", p.Processed),
		zap.Int("matched", p.Matched),
		zap.Int("unmatched", p.Unmatched),
		zap.Int("empty", p.Empty),
		zap.Int("failed", p.Failed),
		zap.Duration("duration", time.Since(start).Round(time.Millisecond)),
	)
	if p.Err != "" {
		return p, fmt.Errorf("%s lookup failed: %s", flow.Kind, strings.TrimSpace(p.Err))
	}
	return p, nil
}

func levelFor(p reconcile.Progress) zapcore.Level {
	if p.Err != "" {
		return zapcore.WarnLevel
	}
	return zapcore.InfoLevel
}
