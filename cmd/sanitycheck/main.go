package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/magnanim0use/sanity-check/internal/analyze"
	"github.com/magnanim0use/sanity-check/internal/audit"
	"github.com/magnanim0use/sanity-check/internal/fetch"
	"github.com/magnanim0use/sanity-check/internal/importer"
	"github.com/magnanim0use/sanity-check/internal/platform/config"
	"github.com/magnanim0use/sanity-check/internal/platform/database"
	"github.com/magnanim0use/sanity-check/internal/platform/server"
	"github.com/magnanim0use/sanity-check/internal/platform/telemetry"
	"github.com/magnanim0use/sanity-check/internal/ratelimit"
	"github.com/magnanim0use/sanity-check/internal/sentinel"
	"github.com/magnanim0use/sanity-check/internal/validate"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup logging
	logger := telemetry.NewLogger(cfg.Log.Level, cfg.Log.Format)
	telemetry.SetDefault(logger)

	slog.Info("sanity-check starting",
		"version", "0.3.0",
		"port", cfg.Server.Port,
	)

	// Connect to database (optional — audit persistence degrades to
	// process logs without it)
	ctx := context.Background()
	var pool *database.Pool

	if cfg.Database.URL != "" {
		slog.Info("connecting to database")
		p, err := database.Connect(ctx, cfg.Database.URL, cfg.Database.MaxConns)
		if err != nil {
			slog.Warn("database connection failed, starting without DB", "error", err)
		} else {
			pool = p
			defer pool.Close()

			if err := database.EnsureSchema(ctx, pool); err != nil {
				return fmt.Errorf("ensuring schema: %w", err)
			}
			slog.Info("schema ready")
		}
	}

	// Audit
	var auditLogger audit.Logger = audit.SlogLogger{}
	var auditHandler *audit.Handler
	if pool != nil {
		auditStore := audit.NewStore()
		auditLogger = audit.NewAsyncLogger(pool, auditStore, audit.LoggerConfig{
			BufferSize:    cfg.Audit.BufferSize,
			BatchSize:     cfg.Audit.BatchSize,
			FlushInterval: time.Duration(cfg.Audit.FlushIntervalMs) * time.Millisecond,
		})
		defer auditLogger.Close()
		auditHandler = audit.NewHandler(pool)
		slog.Info("audit logger started")
	}

	// Admission pipeline
	limiter := ratelimit.New()
	scanner := sentinel.NewScanner(sentinel.Config{
		MaxLength:        cfg.Guard.MaxFieldLength,
		EscalateCombined: true,
	})
	orchestrator := validate.New(limiter, scanner, auditLogger)

	validateCfg := validate.Config{
		RateLimitMax:         cfg.Limits.MaxRequests,
		RateLimitWindow:      time.Duration(cfg.Limits.WindowSecs) * time.Second,
		RequireSecurityCheck: cfg.Guard.RequireSecurityCheck,
		MaxFieldLength:       cfg.Guard.MaxFieldLength,
		RequiredFields:       []string{"message"},
		SensitiveFields:      []string{"message", "context", "platform"},
		ExposeDetails:        cfg.Guard.ExposeDetails,
	}

	// Message review
	reviewClient := analyze.NewClient(analyze.ClientConfig{
		BaseURL: cfg.Analyze.BaseURL,
		APIKey:  cfg.Analyze.APIKey,
		Model:   cfg.Analyze.Model,
	})
	analyzeHandler := analyze.NewHandler(orchestrator, reviewClient, validateCfg)

	// URL import
	classifier := fetch.NewClassifier(fetch.Config{
		Timeout:          time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		MaxContentLength: cfg.Fetch.MaxContentLength,
		OutboundRate:     rate.Limit(cfg.Fetch.RequestsPerSec),
		OutboundBurst:    cfg.Limits.MaxRequests,
	}, &http.Client{})
	importHandler := importer.NewHandler(classifier, limiter, auditLogger, importer.Config{
		RateLimitMax:    cfg.Limits.MaxRequests,
		RateLimitWindow: time.Duration(cfg.Limits.WindowSecs) * time.Second,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := server.New(addr, server.Dependencies{
		Pool:               pool,
		AnalyzeHandler:     analyzeHandler,
		ImportHandler:      importHandler,
		AuditHandler:       auditHandler,
		Logger:             logger,
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
	})

	// Graceful shutdown on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		limiter.Run(gctx, time.Duration(cfg.Limits.SweepIntervalSecs)*time.Second)
		return nil
	})
	g.Go(func() error {
		return srv.Start(gctx)
	})

	slog.Info("server ready", "addr", addr)
	return g.Wait()
}
