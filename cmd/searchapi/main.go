// Command searchapi serves the natural-language search HTTP and
// WebSocket endpoints: it wires config.Load() into concrete component
// constructors, builds a pipeline.Controller, and starts an HTTP server
// with a 30s graceful shutdown window.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	"github.com/lakeql/nlsearch/internal/analytics"
	"github.com/lakeql/nlsearch/internal/cache"
	"github.com/lakeql/nlsearch/internal/config"
	"github.com/lakeql/nlsearch/internal/db"
	"github.com/lakeql/nlsearch/internal/domain"
	"github.com/lakeql/nlsearch/internal/httpapi"
	"github.com/lakeql/nlsearch/internal/intent"
	"github.com/lakeql/nlsearch/internal/llm"
	"github.com/lakeql/nlsearch/internal/pipeline"
	"github.com/lakeql/nlsearch/internal/retry"
	"github.com/lakeql/nlsearch/internal/runner"
	"github.com/lakeql/nlsearch/internal/sqlgen/rule"
	llmgen "github.com/lakeql/nlsearch/internal/sqlgen/llm"
	"github.com/lakeql/nlsearch/internal/sqlvalidate"
	"github.com/lakeql/nlsearch/internal/strategy"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := newLogger(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	querier, err := db.NewPGXQuerier(ctx, cfg.DBDSN, int32(cfg.DBPoolSize), cfg.DBStatementTimeout.Milliseconds())
	cancel()
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer querier.Close()

	var llmClient llm.Client
	if cfg.AnthropicAPIKey != "" {
		llmClient = llm.NewAnthropicClient(cfg.AnthropicAPIKey, cfg.AnthropicModel, 1024)
	} else {
		log.Warn("ANTHROPIC_API_KEY not set, LLM generation will use a stub client that always fails closed")
		llmClient = llm.NewFakeClient()
	}

	ruleGen := rule.New()
	llmGen := llmgen.New(llmClient, cfg.LLMTimeout)

	retryPolicy := retry.Policy{
		MaxAttempts:     cfg.LLMMaxRetries,
		BaseDelay:       cfg.LLMBaseDelay,
		MaxDelay:        cfg.LLMMaxDelay,
		ExponentialBase: 2,
		Jitter:          cfg.LLMJitter,
	}
	scheduler := strategy.New(ruleGen, llmGen, retryPolicy)

	validator := sqlvalidate.New(cfg.Whitelist)
	queryRunner := runner.New(querier, cfg.DBStatementTimeout, cfg.DefaultLimit)
	resultCache := cache.New(cfg.CacheMaxEntries)
	recorder := analytics.New(cfg.AnalyticsQueueSize)
	defer recorder.Close()

	ctrl := pipeline.New(
		intent.New(),
		scheduler,
		validator,
		queryRunner,
		resultCache,
		recorder,
		domain.Strategy(cfg.DefaultStrategy),
		cfg.DefaultLimit,
		cfg.CacheTTL,
		cfg.RequestTimeout,
	)

	router := httpapi.NewRouter(ctrl, log, corsOrigins())

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info("search API starting", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	sig := <-shutdown
	log.Info("received signal, shutting down gracefully", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown error", "error", err)
	} else {
		log.Info("server stopped gracefully")
	}
	return nil
}

func corsOrigins() []string {
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		return strings.Split(v, ",")
	}
	return []string{"http://localhost:5173"}
}

func newLogger(level string) *slog.Logger {
	logLevel := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				t := a.Value.Time().UTC()
				a.Value = slog.StringValue(formatRFC3339Millis(t))
			}
			return a
		},
	}))
}

func formatRFC3339Millis(t time.Time) string {
	t = t.UTC()
	base := t.Format("2006-01-02T15:04:05")
	ms := t.Nanosecond() / 1_000_000
	return fmt.Sprintf("%s.%03dZ", base, ms)
}
