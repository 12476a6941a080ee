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

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kirillkom/context-assistant/internal/adapters/telegram"
	"github.com/kirillkom/context-assistant/internal/bootstrap"
	"github.com/kirillkom/context-assistant/internal/config"
	"github.com/kirillkom/context-assistant/internal/observability/logging"
	"github.com/kirillkom/context-assistant/internal/observability/metrics"
)

const serviceName = "telegram"

func main() {
	if err := run(); err != nil {
		slog.Error("telegram_failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel, nil))

	if strings.TrimSpace(cfg.TelegramBotToken) == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, workerMetrics.AssistantCollectors)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer app.Close()

	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return fmt.Errorf("init telegram api: %w", err)
	}
	slog.Info("telegram_authorized", "bot", api.Self.UserName)

	metricsServer := &http.Server{
		Addr:              ":" + cfg.TelegramMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("telegram_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	downloads := &http.Client{Timeout: time.Duration(cfg.FetchTimeoutSeconds) * time.Second * 4}
	bot := telegram.NewBot(api, app.Service, downloads, cfg.UploadMaxBytes, workerMetrics)
	if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run bot: %w", err)
	}
	return nil
}
