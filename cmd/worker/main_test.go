package main

import (
	"log/slog"
	"strings"
	"testing"
)

func TestRunWithoutNATSURLReturnsError(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, key := range []string{"CONFIG_FILE", "LLM_PROVIDER", "SESSION_BACKEND", "UPLOAD_MAX_BYTES"} {
		t.Setenv(key, "")
	}
	t.Setenv("NATS_URL", "")
	defer slog.SetDefault(slog.Default())

	err := run()
	if err == nil || !strings.Contains(err.Error(), "NATS_URL") {
		t.Fatalf("expected NATS_URL error from run, got %v", err)
	}
}
