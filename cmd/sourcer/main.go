package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/jonjonssons/sacore-ai-web-sub002/internal/analyzer/gemini"
	"github.com/jonjonssons/sacore-ai-web-sub002/internal/app"
	"github.com/jonjonssons/sacore-ai-web-sub002/internal/version"
	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/reconcile"
	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/redact"
	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	switch os.Args[1] {
	case "help", "-h", "--help":
		usage(os.Stdout)
		return
	case "version", "--version":
		_, _ = fmt.Fprintf(os.Stdout, "sourcer %s\n", version.Current)
		return
	case "emails":
		os.Exit(runLookup(ctx, "emails", os.Args[2:], func(ctx context.Context, r *runner) (reconcile.Progress, error) {
			return r.sess.Emails(ctx, r.client)
		}))
	case "linkedin":
		os.Exit(runLookup(ctx, "linkedin", os.Args[2:], func(ctx context.Context, r *runner) (reconcile.Progress, error) {
			return r.sess.LinkedInURLs(ctx, r.client)
		}))
	case "enrich":
		os.Exit(runEnrich(ctx, os.Args[2:]))
	case "analyze":
		os.Exit(runAnalyze(ctx, os.Args[2:]))
	case "profiles":
		os.Exit(runProfiles(ctx, os.Args[2:]))
	default:
		_, _ = fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		usage(os.Stderr)
		os.Exit(2)
	}
}

func runLookup(ctx context.Context, name string, args []string, lookup func(context.Context, *runner) (reconcile.Progress, error)) int {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	flags := addCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	r, code := newRunner(ctx, flags, true)
	if r == nil {
		return code
	}
	defer r.close(ctx)

	_, err := lookup(r.lookupCtx(ctx), r)
	return r.finish(ctx, name, err)
}

func runEnrich(ctx context.Context, args []string) int {
	fs := pflag.NewFlagSet("enrich", pflag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	flags := addCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	r, code := newRunner(ctx, flags, true)
	if r == nil {
		return code
	}
	defer r.close(ctx)

	lctx := r.lookupCtx(ctx)
	_, err := r.sess.RunConcurrently(lctx,
		func(ctx context.Context) (reconcile.Progress, error) { return r.sess.Emails(ctx, r.client) },
		func(ctx context.Context) (reconcile.Progress, error) { return r.sess.LinkedInURLs(ctx, r.client) },
	)
	return r.finish(ctx, "enrich", err)
}

func runAnalyze(ctx context.Context, args []string) int {
	fs := pflag.NewFlagSet("analyze", pflag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	flags := addCommonFlags(fs)
	criteria := fs.StringArrayP("criteria", "c", nil, "Criterion to score against (repeatable)")
	local := fs.Bool("local", false, "Score with Gemini locally instead of the backend (env: GEMINI_API_KEY)")
	geminiModel := fs.String("gemini-model", "", "Gemini model name override (env: GEMINI_MODEL)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	var cleaned []string
	for _, c := range *criteria {
		if c = strings.TrimSpace(c); c != "" {
			cleaned = append(cleaned, c)
		}
	}
	if len(cleaned) == 0 {
		_, _ = fmt.Fprintln(os.Stderr, "analyze requires at least one --criteria")
		return 2
	}

	r, code := newRunner(ctx, flags, !*local)
	if r == nil {
		return code
	}
	defer r.close(ctx)

	if !*local {
		_, err := r.sess.Analyze(r.lookupCtx(ctx), r.client, cleaned)
		return r.finish(ctx, "analyze", err)
	}

	gem := r.cfg.Gemini
	if *geminiModel != "" {
		gem.Model = *geminiModel
	}
	if strings.TrimSpace(gem.APIKey) == "" {
		_, _ = fmt.Fprintln(os.Stderr, "config error: GEMINI_API_KEY is required for --local")
		return 2
	}
	a, err := gemini.New(ctx, gemini.Config{APIKey: gem.APIKey, Model: gem.Model, BaseURL: gem.BaseURL})
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "gemini config error: %s\n", redact.Secrets(err.Error()))
		return 2
	}
	_, err = r.sess.AnalyzeLocal(ctx, a, cleaned, worker.Options{
		Workers:        gem.Workers,
		MaxRetries:     gem.MaxRetries,
		RequestTimeout: gem.RequestTimeout,
		RateLimitRPS:   gem.RateLimitRPS,
	})
	return r.finish(ctx, "analyze", err)
}

func runProfiles(ctx context.Context, args []string) int {
	fs := pflag.NewFlagSet("profiles", pflag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	configPath := fs.String("config", "", "Optional YAML config file")
	outputPath := fs.StringP("output", "o", "", "Write saved profiles to this CSV instead of listing them")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	r, code := newRunner(ctx, &commonFlags{configPath: *configPath, save: saveNone}, true)
	if r == nil {
		return code
	}
	defer r.close(ctx)

	profiles, err := r.client.ListProfiles(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "list profiles failed: %s\n", redact.Secrets(err.Error()))
		return 1
	}
	if *outputPath != "" {
		if err := app.WriteCandidates(*outputPath, profiles); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "write output failed: %s\n", redact.Secrets(err.Error()))
			return 1
		}
		return 0
	}
	for _, p := range profiles {
		_, _ = fmt.Fprintf(os.Stdout, "%s\t%s\t%s\n", p.ID, p.LinkedInURL, p.Email)
	}
	return 0
}

// finish writes the output file and maps the lookup error to an exit code.
func (r *runner) finish(ctx context.Context, name string, err error) int {
	if errors.Is(err, app.ErrNothingToDo) {
		_, _ = fmt.Fprintf(os.Stdout, "%s: every record already has a result; use --all to redo them\n", name)
		err = nil
	}
	if closeErr := r.sess.Close(ctx); closeErr != nil {
		r.log.Warn("some profiles were not saved", zap.String("error", redact.Secrets(closeErr.Error())))
	}
	r.sessClosed = true
	if writeErr := app.WriteCandidates(r.flags.outputPath, r.sess.Records()); writeErr != nil {
		_, _ = fmt.Fprintf(os.Stderr, "write output failed: %s\n", redact.Secrets(writeErr.Error()))
		return 1
	}
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%s failed: %s\n", name, redact.Secrets(err.Error()))
		return 1
	}
	return 0
}

func usage(w *os.File) {
	_, _ = fmt.Fprintf(w, `sourcer: stream enrichment results from the sourcing backend into a candidate list

Usage:
  sourcer <command> [flags]

Commands:
  emails     Look up emails for candidates without one
  linkedin   Back-fill LinkedIn URLs
  enrich     Run emails and linkedin at the same time
  analyze    Score candidates against --criteria (backend, or --local with Gemini)
  profiles   List profiles saved on the backend
  version    Print the version

Examples:
  sourcer emails --input candidates.csv --output enriched.csv
  sourcer analyze -c "5+ years of Go" -c "Based in Stockholm" --input candidates.csv --output scored.csv
  sourcer analyze --local -c "Fintech background" --input candidates.csv --output scored.csv --save none

Environment:
  SOURCER_BACKEND_URL     Backend API base URL (e.g. https://app.example.com/api)
  SOURCER_TOKEN           Bearer token
  SOURCER_TOKEN_FILE      File containing the bearer token
  SOURCER_CA_PATH         Optional PEM bundle for the backend's TLS certificate
  SOURCER_LOG_LEVEL       debug, info, warn or error
  SOURCER_LOG_FORMAT      console or json
  GEMINI_API_KEY          Gemini API key (analyze --local)
  GEMINI_MODEL            Gemini model name

A .env file in the working directory is read when present.
`)
}
