package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xtremefabrix/formrelay/internal/audit"
	"github.com/xtremefabrix/formrelay/internal/config"
	"github.com/xtremefabrix/formrelay/internal/delivery"
	"github.com/xtremefabrix/formrelay/internal/observability"
	"github.com/xtremefabrix/formrelay/internal/schema"
	"github.com/xtremefabrix/formrelay/internal/submission"
	"github.com/xtremefabrix/formrelay/model"
)

// loadForms returns the built-in forms overlaid with YAML definitions.
// A definition with the ID of a built-in form replaces it.
func loadForms(cfg config.DefinitionsConfig, logger *zap.Logger) ([]model.FormSchema, error) {
	loaded, err := schema.NewLoader().LoadAll(cfg.Directories)
	if err != nil {
		return nil, err
	}

	if errs := schema.CheckAll(loaded); len(errs) > 0 {
		for _, e := range errs {
			logger.Error("form definition error", zap.String("error", e.Error()))
		}
		return nil, fmt.Errorf("%d form definition errors", len(errs))
	}

	for _, f := range loaded {
		logger.Info("form definition loaded", zap.String("form_id", f.ID), zap.String("file", f.SourceFile))
	}
	return schema.Merge(schema.Builtin(), loaded), nil
}

// buildPipelines creates one pipeline per registered form. A form without a
// webhook URL still gets a pipeline; its submissions fail as unreachable.
func buildPipelines(
	cfg *config.Config,
	registry *schema.Registry,
	deliverer delivery.Deliverer,
	auditStore audit.Store,
	metrics *observability.Metrics,
	logger *zap.Logger,
) []*submission.Pipeline {
	opts := []submission.PipelineOption{
		submission.WithLogger(logger),
		submission.WithObserver(submission.NewMetricsObserver(metrics)),
	}
	if auditStore != nil {
		opts = append(opts, submission.WithObserver(audit.NewRecorder(auditStore, logger)))
	}

	forms := registry.All()
	pipelines := make([]*submission.Pipeline, 0, len(forms))
	for _, f := range forms {
		target := delivery.Target{
			FormID:  f.ID,
			URL:     cfg.ResolveWebhookURL(f.ID),
			Timeout: cfg.Forms[f.ID].Timeout,
		}
		if !target.Configured() {
			fc := cfg.Forms[f.ID]
			logger.Warn("webhook URL not configured, submissions will fail",
				zap.String("form_id", f.ID),
				zap.String("env", fc.WebhookURLEnv),
			)
		}
		pipelines = append(pipelines, submission.NewPipeline(f, target, deliverer, opts...))
	}

	for _, id := range cfg.FormIDs() {
		if _, ok := registry.Get(id); !ok {
			logger.Warn("webhook configured for unknown form", zap.String("form_id", id))
		}
	}
	return pipelines
}

// buildAuditStore creates the delivery audit store based on config.
func buildAuditStore(ctx context.Context, cfg config.AuditConfig, logger *zap.Logger) (audit.Store, func(), error) {
	switch cfg.Driver {
	case "memory", "":
		logger.Info("using in-memory audit store", zap.Int("capacity", cfg.Capacity))
		return audit.NewMemoryStore(cfg.Capacity), nil, nil
	case "postgres":
		dsn := os.Getenv(cfg.DSNEnv)
		if dsn == "" {
			return nil, nil, fmt.Errorf("audit store: %s environment variable not set", cfg.DSNEnv)
		}

		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("audit store: connect: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("audit store: ping: %w", err)
		}

		store := audit.NewPgStore(pool)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("audit store: %w", err)
		}
		logger.Info("using postgres audit store")
		return store, pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported audit store driver: %q", cfg.Driver)
	}
}

// buildIdempotencyStore creates the idempotency store based on config.
// It returns a nil store when idempotency is disabled.
func buildIdempotencyStore(ctx context.Context, cfg config.IdempotencyConfig, logger *zap.Logger) (submission.IdempotencyStore, func(), error) {
	if !cfg.Enabled {
		return nil, nil, nil
	}

	switch cfg.Store.Driver {
	case "memory", "":
		logger.Info("using in-memory idempotency store")
		return submission.NewMemoryIdempotencyStore(), nil, nil
	case "redis":
		addr := os.Getenv(cfg.Store.AddrEnv)
		if addr == "" {
			return nil, nil, fmt.Errorf("idempotency store: %s environment variable not set", cfg.Store.AddrEnv)
		}
		client := redis.NewClient(&redis.Options{Addr: addr, DB: cfg.Store.DB})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("idempotency store: ping: %w", err)
		}
		logger.Info("using redis idempotency store", zap.String("addr", addr), zap.Int("db", cfg.Store.DB))
		return submission.NewRedisIdempotencyStore(client), func() { client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported idempotency store driver: %q", cfg.Store.Driver)
	}
}

// healthCheckerOf returns v as a HealthChecker, or nil when it is not one.
func healthCheckerOf(v any) observability.HealthChecker {
	hc, _ := v.(observability.HealthChecker)
	return hc
}

type purger interface {
	Purge() int
}

// runInstanceReaper periodically removes idle form instances and expired
// in-memory idempotency entries.
func runInstanceReaper(ctx context.Context, mgr *submission.Manager, idem submission.IdempotencyStore, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p, _ := idem.(purger)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := mgr.ReapExpired(ctx); err != nil {
				logger.Error("instance reaping failed", zap.Error(err))
			}
			if p != nil {
				if n := p.Purge(); n > 0 {
					logger.Debug("purged idempotency entries", zap.Int("count", n))
				}
			}
		}
	}
}
