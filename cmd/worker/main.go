package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kirillkom/context-assistant/internal/adapters/audit"
	"github.com/kirillkom/context-assistant/internal/bootstrap"
	"github.com/kirillkom/context-assistant/internal/config"
	"github.com/kirillkom/context-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/context-assistant/internal/observability/logging"
	"github.com/kirillkom/context-assistant/internal/observability/metrics"
)

const (
	serviceName = "worker"
	queueGroup  = "session-auditors"
)

// The worker audits session events published by the api, telegram and mcp front ends.
func main() {
	if err := run(); err != nil {
		slog.Error("worker_failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel, nil))

	if strings.TrimSpace(cfg.NATSURL) == "" {
		return errors.New("NATS_URL is not set; the worker only consumes session events")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	policy := resilience.DefaultConfig()
	policy.RetryMaxAttempts = cfg.RetryMaxAttempts
	policy.BreakerEnabled = cfg.BreakerEnabled
	bus, err := bootstrap.NewEventBus(cfg, resilience.NewExecutor(policy, workerMetrics))
	if err != nil {
		return err
	}
	defer bus.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.AuditMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	auditor := audit.NewAuditor(workerMetrics)
	slog.Info("worker_subscribed", "subject", bus.SubscriptionSubject(), "queue_group", queueGroup)
	if err := bus.SubscribeSessionEvents(ctx, queueGroup, auditor.Handle); err != nil {
		return fmt.Errorf("subscribe session events: %w", err)
	}
	return nil
}
