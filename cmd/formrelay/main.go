// Package main is the entry point for the formrelay server.
// It wires all dependencies together and starts the HTTP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/xtremefabrix/formrelay/internal/config"
	"github.com/xtremefabrix/formrelay/internal/delivery"
	"github.com/xtremefabrix/formrelay/internal/observability"
	"github.com/xtremefabrix/formrelay/internal/schema"
	"github.com/xtremefabrix/formrelay/internal/submission"
	"github.com/xtremefabrix/formrelay/internal/transport"
)

// Build-time variables set via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc1234"
var (
	version = "dev"
	commit  = "unknown"
)

const serviceName = "formrelay"

func main() {
	os.Exit(run())
}

func run() int {
	// Step 1: Parse CLI flags.
	configPath := flag.String("config", "", "path to configuration file (built-in defaults when empty)")
	envFile := flag.String("env", ".env", "optional dotenv file with webhook URLs and secrets")
	issueToken := flag.String("issue-token", "", "print an operator token for this subject and exit")
	tokenTTL := flag.Duration("token-ttl", 12*time.Hour, "lifetime of a token printed by -issue-token")
	flag.Parse()

	// Step 2: Load configuration.
	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 1
	}

	if *issueToken != "" {
		token, err := transport.IssueOperatorToken(cfg.Admin, cfg.AdminSecret(), *issueToken, *tokenTTL, time.Now())
		if err != nil {
			fmt.Fprintf(os.Stderr, "token error: %v (set %s)\n", err, cfg.Admin.SecretEnv)
			return 1
		}
		fmt.Println(token)
		return 0
	}

	// Step 3: Initialize telemetry (logger, tracer, metrics).
	observability.Version = version
	observability.Commit = commit

	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	tracingShutdown, err := observability.InitTracing(ctx, cfg.Observability.Tracing, serviceName, version)
	if err != nil {
		logger.Error("tracing initialization failed", zap.Error(err))
		return 1
	}

	metrics := observability.InitMetrics(prometheus.DefaultRegisterer)

	// Step 4: Load form schemas, check them, build the registry.
	forms, err := loadForms(cfg.Definitions, logger)
	if err != nil {
		logger.Error("form definition loading failed", zap.Error(err))
		return 1
	}
	registry := schema.NewRegistry(forms)
	metrics.SetFormsLoaded(registry.Len())

	// Step 5: Initialize the audit store.
	auditStore, auditCloser, err := buildAuditStore(ctx, cfg.Audit, logger)
	if err != nil {
		logger.Error("audit store initialization failed", zap.Error(err))
		return 1
	}

	// Step 6: Initialize the idempotency store (optional).
	idempotencyStore, idempotencyCloser, err := buildIdempotencyStore(ctx, cfg.Idempotency, logger)
	if err != nil {
		logger.Error("idempotency store initialization failed", zap.Error(err))
		return 1
	}

	// Step 7: Build delivery targets and pipelines.
	deliverer := delivery.NewWebhookDeliverer(delivery.WithUserAgent(serviceName + "/" + version))
	pipelines := buildPipelines(cfg, registry, deliverer, auditStore, metrics, logger)

	manager := submission.NewManager(pipelines, submission.NewMemoryInstanceStore(),
		submission.WithInstanceTTL(cfg.Instances.TTL),
		submission.WithManagerLogger(logger),
		submission.WithInstanceMetrics(metrics),
	)
	var dedupe *submission.Deduplicator
	if idempotencyStore != nil {
		dedupe = submission.NewDeduplicator(idempotencyStore, cfg.Idempotency.Store.DefaultTTL, logger)
	}

	// Step 8: Build HTTP router.
	readinessChecks := observability.ReadinessChecks{
		FormsLoaded:      func() int { return len(manager.Pipelines()) },
		IdempotencyStore: healthCheckerOf(idempotencyStore),
		AuditStore:       healthCheckerOf(auditStore),
	}

	router := transport.NewRouter(transport.Dependencies{
		Config:      cfg,
		Logger:      logger,
		Manager:     manager,
		Dedupe:      dedupe,
		Audit:       auditStore,
		Metrics:     metrics,
		Gatherer:    prometheus.DefaultGatherer,
		Readiness:   readinessChecks,
		OpenAPI:     schema.OpenAPIDocument(registry, version),
		AdminSecret: cfg.AdminSecret(),
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Step 9: Start background tasks.
	bgCtx, bgCancel := context.WithCancel(ctx)
	defer bgCancel()

	go runInstanceReaper(bgCtx, manager, idempotencyStore, cfg.Instances.ReapInterval, logger)

	// Step 10: Start HTTP server.
	logger.Info("server started",
		zap.Int("port", cfg.Server.Port),
		zap.String("version", version),
		zap.String("commit", commit),
		zap.Int("forms", registry.Len()),
		zap.String("forms_checksum", registry.Checksum()),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		logger.Info("shutdown initiated")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		return 1
	}

	// Graceful shutdown sequence.
	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	// Stop accepting new connections and drain in-flight requests.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// Cancel background tasks.
	bgCancel()

	// Close stores.
	if idempotencyCloser != nil {
		idempotencyCloser()
	}
	if auditCloser != nil {
		auditCloser()
	}

	// Flush telemetry.
	if err := tracingShutdown(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return 0
}
