// Package analyzer scores candidates against criteria locally and reports the outcome as the same
// stream events the backend's deep-analysis endpoint emits, so results reconcile identically.
package analyzer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/backend"
	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/candidate"
	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/reconcile"
	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/redact"
	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/stream"
	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/worker"
)

// Result is the analysis of one candidate.
type Result struct {
	Score       float64
	Description string
	Breakdown   []candidate.BreakdownItem
}

// Analyzer scores a single candidate.
type Analyzer interface {
	Analyze(ctx context.Context, profile backend.AnalysisProfile, criteria []string) (Result, error)
}

type Options struct {
	Logger *zap.Logger
	Worker worker.Options
}

type analysisPayload struct {
	Score       float64                   `json:"score"`
	Description string                    `json:"description,omitempty"`
	Breakdown   []candidate.BreakdownItem `json:"breakdown,omitempty"`
}

type resultPayload struct {
	ProfileID   string          `json:"profileId,omitempty"`
	LinkedInURL string          `json:"linkedinUrl,omitempty"`
	Analysis    analysisPayload `json:"analysis"`
}

// Opener returns a reconcile.Opener that analyzes req.Profiles through a worker pool. One result
// event is emitted per analyzed profile, a status event per failure, then a complete event.
func Opener(ctx context.Context, a Analyzer, req backend.AnalysisRequest, opts Options) reconcile.Opener {
	return func(h stream.Handlers) (*stream.Stream, error) {
		if a == nil {
			return nil, fmt.Errorf("analyzer: no analyzer configured")
		}
		if len(req.Criteria) == 0 {
			return nil, fmt.Errorf("analyzer: at least one criterion is required")
		}
		return stream.Produce(ctx, h, func(ctx context.Context, emit func(stream.Event)) error {
			return run(ctx, a, req, opts, emit)
		}), nil
	}
}

func run(ctx context.Context, a Analyzer, req backend.AnalysisRequest, opts Options, emit func(stream.Event)) error {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	wopts := opts.Worker
	wopts.FailurePolicy = worker.FailurePolicyPartialOutput

	total := len(req.Profiles)
	send := func(t stream.Type, payload any) {
		ev, err := stream.NewEvent(t, payload)
		if err != nil {
			logger.Error("failed to encode analysis event", zap.Error(err))
			return
		}
		emit(ev)
	}
	zero := 0
	send(stream.TypeStatus, stream.Status{
		Message:   fmt.Sprintf("analyzing %d profiles against %d criteria", total, len(req.Criteria)),
		Processed: &zero,
		Total:     &total,
	})

	processed := 0
	_, err := worker.ProcessAllWithCallback(ctx, req.Profiles,
		func(ctx context.Context, p backend.AnalysisProfile) (Result, error) {
			return a.Analyze(ctx, p, req.Criteria)
		},
		func(res worker.Result[backend.AnalysisProfile, Result]) error {
			processed++
			p := res.Input
			if res.Err != nil {
				msg := redact.Secrets(res.Err.Error())
				logger.Warn("analysis failed",
					zap.String("identifier", profileKey(p)),
					zap.Int("attempt", res.Attempt),
					zap.String("error", msg),
				)
				n := processed
				send(stream.TypeStatus, stream.Status{
					Message:   fmt.Sprintf("analysis failed for %s: %s", profileKey(p), msg),
					Processed: &n,
					Total:     &total,
				})
				return nil
			}
			send(stream.TypeResult, resultPayload{
				ProfileID:   strings.TrimSpace(p.ProfileID),
				LinkedInURL: strings.TrimSpace(p.LinkedInURL),
				Analysis: analysisPayload{
					Score:       res.Output.Score,
					Description: res.Output.Description,
					Breakdown:   res.Output.Breakdown,
				},
			})
			return nil
		},
		wopts,
	)
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}
	send(stream.TypeComplete, stream.Complete{TotalProcessed: processed})
	return nil
}

func profileKey(p backend.AnalysisProfile) string {
	if id := strings.TrimSpace(p.ProfileID); id != "" {
		return id
	}
	return strings.TrimSpace(p.LinkedInURL)
}
