package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/jonjonssons/sacore-ai-web-sub002/internal/app"
	"github.com/jonjonssons/sacore-ai-web-sub002/internal/config"
	"github.com/jonjonssons/sacore-ai-web-sub002/internal/logging"
	"github.com/jonjonssons/sacore-ai-web-sub002/internal/persist"
	"github.com/jonjonssons/sacore-ai-web-sub002/internal/store"
	"github.com/jonjonssons/sacore-ai-web-sub002/internal/version"
	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/backend"
	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/reconcile"
	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/redact"
	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/worker"
)

const (
	saveAuto    = "auto"
	saveBackend = "backend"
	saveDB      = "db"
	saveNone    = "none"
)

type commonFlags struct {
	configPath string
	inputPath  string
	outputPath string
	all        bool
	save       string
	dbPath     string
	logLevel   string
	// files is set for commands that read --input and write --output.
	files bool
}

func addCommonFlags(fs *pflag.FlagSet) *commonFlags {
	f := &commonFlags{files: true}
	fs.StringVar(&f.configPath, "config", "", "Optional YAML config file")
	fs.StringVarP(&f.inputPath, "input", "i", "", "Input candidate CSV")
	fs.StringVarP(&f.outputPath, "output", "o", "", "Output candidate CSV")
	fs.BoolVar(&f.all, "all", false, "Send every record, including those that already have a result")
	fs.StringVar(&f.save, "save", saveAuto, "Where changed profiles are saved: auto, backend, db or none")
	fs.StringVar(&f.dbPath, "save-db", "sourcer.db", "SQLite file used by --save db")
	fs.StringVar(&f.logLevel, "log-level", "", "Log level override (env: SOURCER_LOG_LEVEL)")
	return f
}

type runner struct {
	cfg    config.Config
	flags  *commonFlags
	log    *zap.Logger
	client *backend.Client
	db     *store.Store
	sess   *app.Session

	sessClosed bool
	cancel     context.CancelFunc
}

// newRunner loads configuration and builds the session. On failure it prints the reason and returns
// a nil runner with the exit code.
func newRunner(ctx context.Context, flags *commonFlags, needBackend bool) (*runner, int) {
	if flags.files && (flags.inputPath == "" || flags.outputPath == "") {
		_, _ = fmt.Fprintln(os.Stderr, "--input and --output are required")
		return nil, 2
	}

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", redact.Secrets(err.Error()))
		return nil, 2
	}
	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}
	logger, err := logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", err)
		return nil, 2
	}

	r := &runner{cfg: cfg, flags: flags, log: logger}
	if needBackend {
		if r.client, err = newBackendClient(cfg, logger); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "backend config error: %s\n", redact.Secrets(err.Error()))
			return nil, 2
		}
	}
	if !flags.files {
		return r, 0
	}

	records, err := app.ReadCandidates(flags.inputPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "read input failed: %s\n", redact.Secrets(err.Error()))
		return nil, 1
	}

	saver, err := r.saver(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "save config error: %s\n", redact.Secrets(err.Error()))
		return nil, 2
	}
	r.sess = app.NewSession(ctx, records, app.SessionOptions{
		Logger: logger,
		Saver:  saver,
		PersistWorker: worker.Options{
			Workers:        cfg.Persist.Workers,
			MaxRetries:     cfg.Persist.MaxRetries,
			RequestTimeout: cfg.Persist.RequestTimeout,
			RateLimitRPS:   cfg.Persist.RateLimitRPS,
		},
		ClearDelay: cfg.Reconcile.StoreClearDelay(),
		OnNotify: func(n reconcile.Notify) {
			_, _ = fmt.Fprintln(os.Stdout, n.Message)
		},
		All: flags.all,
	})
	logger.Info("loaded candidates",
		zap.String("run", r.sess.RunID()),
		zap.String("input", flags.inputPath),
		zap.Int("records", len(records)),
	)
	return r, 0
}

func newBackendClient(cfg config.Config, logger *zap.Logger) (*backend.Client, error) {
	if err := cfg.RequireBackend(); err != nil {
		return nil, err
	}
	token, err := cfg.BackendToken()
	if err != nil {
		return nil, err
	}
	return backend.NewClient(cfg.Backend.URL, backend.Options{
		Token:          token,
		DefaultCAPath:  cfg.Backend.CAPath,
		UserAgent:      "sourcer/" + version.Current,
		RequestTimeout: cfg.Backend.RequestTimeout,
		Logger:         logger,
	})
}

func (r *runner) saver(ctx context.Context) (persist.Saver, error) {
	switch r.flags.save {
	case saveAuto:
		if r.client != nil {
			return r.client, nil
		}
		return nil, nil
	case saveBackend:
		if r.client == nil {
			return nil, fmt.Errorf("--save backend needs a backend URL")
		}
		return r.client, nil
	case saveDB:
		db, err := store.Open(ctx, r.flags.dbPath)
		if err != nil {
			return nil, err
		}
		r.db = db
		return db, nil
	case saveNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown --save %q (want auto, backend, db or none)", r.flags.save)
	}
}

// lookupCtx bounds a lookup by the configured stream timeout.
func (r *runner) lookupCtx(ctx context.Context) context.Context {
	if r.cfg.Backend.StreamTimeout <= 0 {
		return ctx
	}
	ctx, r.cancel = context.WithTimeout(ctx, r.cfg.Backend.StreamTimeout)
	return ctx
}

func (r *runner) close(ctx context.Context) {
	if r.cancel != nil {
		r.cancel()
	}
	if r.sess != nil && !r.sessClosed {
		_ = r.sess.Close(ctx)
	}
	if r.db != nil {
		if err := r.db.Close(); err != nil {
			r.log.Warn("close profile db", zap.Error(err))
		}
	}
	_ = r.log.Sync()
}

var (
	_ persist.Saver = (*store.Store)(nil)
	_ persist.Saver = (*backend.Client)(nil)
)
