// Package processor is a starting point for a custom enrichment kind built on the public
// reconcile and stream packages.
package processor

import (
	"context"
	"strings"

	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/candidate"
	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/reconcile"
	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/stream"
)

const Kind reconcile.Kind = "title"

type titleResult struct {
	ProfileID string `json:"profileId"`
	Title     string `json:"title"`
}

// Flow fills Record.Title from "result" events.
func Flow() reconcile.Flow[string] {
	return reconcile.Flow[string]{
		Kind: Kind,
		Decode: func(ev stream.Event) (reconcile.Locator, string, error) {
			var r titleResult
			if err := ev.Decode(&r); err != nil {
				return reconcile.Locator{}, "", err
			}
			return reconcile.Locator{ProfileID: r.ProfileID}, strings.TrimSpace(r.Title), nil
		},
		Apply: func(rec *candidate.Record, title string, _ reconcile.Origin) reconcile.Outcome {
			if title == "" {
				return reconcile.Outcome{Result: reconcile.ResultEmpty}
			}
			rec.Title = title
			return reconcile.Outcome{Result: reconcile.ResultUpdated}
		},
	}
}

// Opener produces one upper-cased title per record locally.
func Opener(ctx context.Context, records []candidate.Record) reconcile.Opener {
	return func(h stream.Handlers) (*stream.Stream, error) {
		return stream.Produce(ctx, h, func(ctx context.Context, emit func(stream.Event)) error {
			for _, rec := range records {
				ev, err := stream.NewEvent(stream.TypeResult, titleResult{
					ProfileID: rec.ID,
					Title:     strings.ToUpper(strings.TrimSpace(rec.FullName)),
				})
				if err != nil {
					return err
				}
				emit(ev)
			}
			return nil
		}), nil
	}
}
