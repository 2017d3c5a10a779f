// Package app wires QuotaGate's components into a running service: config,
// infrastructure connections, the HTTP transport, and graceful shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/wisbric/quotagate/internal/auditlog"
	"github.com/wisbric/quotagate/internal/config"
	"github.com/wisbric/quotagate/internal/credential"
	"github.com/wisbric/quotagate/internal/health"
	"github.com/wisbric/quotagate/internal/httpserver"
	"github.com/wisbric/quotagate/internal/kv"
	"github.com/wisbric/quotagate/internal/platform"
	"github.com/wisbric/quotagate/internal/privacy"
	"github.com/wisbric/quotagate/internal/ratelimit"
	"github.com/wisbric/quotagate/internal/telemetry"
)

// Version is set at build time via -ldflags; it is reported by the
// liveness endpoint (spec.md §6).
var Version = "dev"

// readinessDeadline bounds the KV ping issued by /readyz (spec.md §4.5:
// "Issues kv.ping() with a short deadline").
const readinessDeadline = 500 * time.Millisecond

// ErrKVUnreachable is returned when Redis cannot be reached at startup
// after the bounded retry budget is exhausted (spec.md §6: exit code 2,
// "KV unreachable at startup after bounded retry").
var ErrKVUnreachable = errors.New("app: kv store unreachable at startup")

// Run is the application entry point: it connects to Redis and Postgres,
// runs the audit-log migrations, and serves HTTP until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting quotagate", "listen", cfg.ListenAddr())

	rdb, err := platform.NewRedisClient(ctx, cfg.RedisURL, cfg.StartupRetryAttempts, cfg.StartupRetryDelay, logger)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrKVUnreachable, err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("closing redis", "error", err)
		}
	}()

	db, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to audit database: %w", err)
	}
	defer db.Close()

	if err := platform.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("running audit-log migrations: %w", err)
	}
	logger.Info("audit-log migrations applied")

	metricsReg := telemetry.NewMetricsRegistry()

	adapter := kv.New(rdb, cfg.KVTimeout)
	engine := ratelimit.New(adapter, ratelimit.SystemClock{}, logger)

	auditWriter := auditlog.NewWriter(db, logger)
	auditWriter.Start(ctx)
	defer auditWriter.Close()

	manager := privacy.New(adapter, auditWriter, cfg.AuditHashSecret, cfg.PrivacyExtraPatterns, cfg.RetentionDays, logger)
	prober := health.New(adapter, Version, readinessDeadline)
	verifier := credential.New(cfg.Secret, logger)

	srv := httpserver.NewServer(
		httpserver.Config{CORSAllowedOrigins: cfg.CORSAllowedOrigins},
		logger, engine, manager, prober, verifier, metricsReg,
	)

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      srv,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.ListenAddr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
			return
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
