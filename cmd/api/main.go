package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/kirillkom/context-assistant/internal/adapters/http"
	"github.com/kirillkom/context-assistant/internal/bootstrap"
	"github.com/kirillkom/context-assistant/internal/config"
	"github.com/kirillkom/context-assistant/internal/observability/logging"
	"github.com/kirillkom/context-assistant/internal/observability/metrics"
)

const serviceName = "api"

func main() {
	if err := run(); err != nil {
		slog.Error("api_failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel, nil))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, httpMetrics.AssistantCollectors)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer app.Close()

	router, err := httpadapter.NewRouter(app.Service, cfg.UploadMaxBytes)
	if err != nil {
		return fmt.Errorf("init router: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", httpMetrics.Handler())
	mux.Handle("/", router.Handler())

	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           httpMetrics.Middleware(serviceName, mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		// A chat turn waits on the model; leave room for the LLM timeout plus retries.
		WriteTimeout: time.Duration(cfg.LLMTimeoutSeconds)*time.Second*time.Duration(max(cfg.RetryMaxAttempts, 1)) + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("api_listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("api_shutdown_failed", "error", err)
	}
	return nil
}
