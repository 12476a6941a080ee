package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/context-assistant/internal/adapters/mcp"
	"github.com/kirillkom/context-assistant/internal/bootstrap"
	"github.com/kirillkom/context-assistant/internal/config"
	"github.com/kirillkom/context-assistant/internal/observability/logging"
)

const (
	serviceName = "mcp"
	version     = "1.0.0"
	// One process serves one conversation.
	sessionID = "mcp"
)

func main() {
	if err := run(); err != nil {
		slog.Error("mcp_failed", "error", err)
		os.Exit(1)
	}
}

// stdout carries the MCP protocol, so every log line goes to stderr.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel, os.Stderr))

	app, err := bootstrap.New(context.Background(), cfg, nil)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer app.Close()

	srv := mcpadapter.NewServer("context-assistant", version, mcpadapter.NewTools(app.Service, sessionID))
	if err := server.ServeStdio(srv); err != nil {
		return fmt.Errorf("serve stdio: %w", err)
	}
	return nil
}
