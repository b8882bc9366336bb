package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/jonjonssons/sacore-ai-web-sub002/internal/logging"
	"github.com/jonjonssons/sacore-ai-web-sub002/internal/mockbackend"
	"github.com/jonjonssons/sacore-ai-web-sub002/internal/store"
)

func main() {
	addr := defaultString("SOURCER_MOCK_ADDR", "127.0.0.1:8089")
	dbPath := defaultString("SOURCER_MOCK_DB", ":memory:")
	token := defaultString("SOURCER_TOKEN", "")
	logLevel := defaultString("SOURCER_LOG_LEVEL", "info")
	creditLimit := defaultInt("SOURCER_MOCK_CREDIT_LIMIT", 0)

	fs := pflag.NewFlagSet("mock-backend", pflag.ExitOnError)
	fs.StringVar(&addr, "addr", addr, "Listen address (env: SOURCER_MOCK_ADDR)")
	fs.StringVar(&dbPath, "db", dbPath, "SQLite file for saved profiles, :memory: for none (env: SOURCER_MOCK_DB)")
	fs.StringVar(&token, "token", token, "Bearer token to require; empty accepts any request (env: SOURCER_TOKEN)")
	fs.IntVar(&creditLimit, "credit-limit", creditLimit, "Reject lookups larger than this with 402, 0 disables (env: SOURCER_MOCK_CREDIT_LIMIT)")
	eventDelay := fs.Duration("event-delay", 150*time.Millisecond, "Delay between stream events")
	errorAfter := fs.Int("error-after", 0, "Send an error event after this many results, 0 disables")
	fs.StringVar(&logLevel, "log-level", logLevel, "Log level (env: SOURCER_LOG_LEVEL)")
	_ = fs.Parse(os.Args[1:])

	logger, err := logging.New(os.Stderr, logLevel, "console")
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, dbPath)
	if err != nil {
		logger.Error("open profile store", zap.Error(err))
		os.Exit(1)
	}
	defer func() { _ = st.Close() }()

	gin.SetMode(gin.ReleaseMode)
	srv := mockbackend.New(st, mockbackend.Options{
		Logger:      logger,
		Token:       token,
		CreditLimit: creditLimit,
		EventDelay:  *eventDelay,
		ErrorAfter:  *errorAfter,
	})

	httpSrv := &http.Server{Addr: addr, Handler: srv.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Info("mock backend listening", zap.String("addr", addr), zap.String("db", dbPath), zap.Bool("auth", token != ""))
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
}

func defaultString(envVar string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(envVar))
	if v == "" {
		return fallback
	}
	return v
}

func defaultInt(envVar string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(envVar)))
	if err != nil {
		return fallback
	}
	return v
}
