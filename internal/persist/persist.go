// Package persist saves patched records in the background. Saves are fire-and-forget: a failed save
// is logged and the in-memory record keeps its new value. Saves of one record id run one at a time,
// and a newer snapshot replaces an older one still waiting, so the last save of an id is its newest
// snapshot.
package persist

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/candidate"
	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/redact"
	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/worker"
)

// Saver writes one record to durable storage.
type Saver interface {
	SaveProfile(ctx context.Context, rec candidate.Record) error
}

// SaverFunc adapts a function to Saver.
type SaverFunc func(ctx context.Context, rec candidate.Record) error

func (f SaverFunc) SaveProfile(ctx context.Context, rec candidate.Record) error {
	return f(ctx, rec)
}

// Stats counts saves since the queue started.
type Stats struct {
	Saved   int64
	Failed  int64
	Dropped int64
	// Coalesced counts snapshots replaced by a newer one before they were saved.
	Coalesced int64
}

// Queue implements reconcile.Persister on top of a worker.Queue.
type Queue struct {
	log   *zap.Logger
	q     *worker.Queue[candidate.Record, struct{}]
	saved atomic.Int64
	fail  atomic.Int64
	drop  atomic.Int64

	mu     sync.Mutex
	errs   []error
	closed bool
}

type Options struct {
	Logger *zap.Logger
	Worker worker.Options
}

// New starts the save workers. They stop when ctx is cancelled or Close returns.
func New(ctx context.Context, saver Saver, opts Options) *Queue {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Queue{log: logger}
	wopts := opts.Worker
	wopts.FailurePolicy = worker.FailurePolicyPartialOutput
	p.q = worker.NewQueue(ctx,
		func(rec candidate.Record) string { return rec.ID },
		func(ctx context.Context, rec candidate.Record) (struct{}, error) {
			return struct{}{}, saver.SaveProfile(ctx, rec)
		},
		p.onResult,
		wopts,
	)
	return p
}

func (p *Queue) onResult(res worker.Result[candidate.Record, struct{}]) {
	if res.Err == nil {
		p.saved.Add(1)
		p.log.Debug("saved profile", zap.String("record", res.Input.ID), zap.Int("attempt", res.Attempt))
		return
	}
	p.fail.Add(1)
	p.mu.Lock()
	p.errs = append(p.errs, res.Err)
	p.mu.Unlock()
	p.log.Warn("failed to save profile",
		zap.String("record", res.Input.ID),
		zap.Int("attempt", res.Attempt),
		zap.String("error", redact.Secrets(res.Err.Error())),
	)
}

// Enqueue schedules a copy of rec for saving. It does not block.
func (p *Queue) Enqueue(rec candidate.Record) {
	if err := p.q.Submit(rec.Clone()); err != nil {
		p.drop.Add(1)
		p.log.Warn("dropping profile save", zap.String("record", rec.ID), zap.Error(err))
	}
}

// Close waits for queued saves to finish, or for ctx to end. It returns the joined save errors.
func (p *Queue) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	if err := p.q.Close(ctx); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return errors.Join(p.errs...)
}

func (p *Queue) Stats() Stats {
	return Stats{
		Saved:     p.saved.Load(),
		Failed:    p.fail.Load(),
		Dropped:   p.drop.Load(),
		Coalesced: p.q.Coalesced(),
	}
}
