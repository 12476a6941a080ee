package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func isolate(t *testing.T) {
	t.Helper()
	// keep a developer's .env out of the test
	t.Chdir(t.TempDir())
	for _, key := range []string{
		"CONFIG_FILE", "LLM_PROVIDER", "GROQ_API_KEY", "LLM_API_KEY", "LLM_MODEL",
		"TRANSCRIPT_LANGUAGES", "SESSION_BACKEND", "PROMPT_MAX_TOKENS", "SYSTEM_PROMPT",
		"CONTEXT_INCLUDE_FAILED", "UPLOAD_MAX_BYTES",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LLMProvider != ProviderOpenAI || cfg.LLMModel != "llama-3.3-70b-versatile" {
		t.Fatalf("unexpected llm defaults %q %q", cfg.LLMProvider, cfg.LLMModel)
	}
	if strings.Join(cfg.TranscriptLanguages, ",") != "pt,pt-BR" {
		t.Fatalf("unexpected transcript languages %v", cfg.TranscriptLanguages)
	}
	if cfg.SessionBackend != SessionBackendMemory {
		t.Fatalf("expected memory sessions by default, got %q", cfg.SessionBackend)
	}
	if cfg.LLMAPIKey != "" {
		t.Fatalf("expected empty api key, got %q", cfg.LLMAPIKey)
	}
	if cfg.ContextIncludeFailed {
		t.Fatalf("failed extractions must be excluded from prompts by default")
	}
}

func TestLoadAcceptsAPIKeyAlias(t *testing.T) {
	isolate(t)
	t.Setenv("LLM_API_KEY", "alias-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LLMAPIKey != "alias-key" {
		t.Fatalf("expected alias key, got %q", cfg.LLMAPIKey)
	}

	t.Setenv("GROQ_API_KEY", "groq-key")
	cfg, _ = Load()
	if cfg.LLMAPIKey != "groq-key" {
		t.Fatalf("expected GROQ_API_KEY to win, got %q", cfg.LLMAPIKey)
	}
}

func TestLoadReadsYAMLBeneathEnvironment(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "assistant.yaml")
	content := "LLM_MODEL: from-file\nPROMPT_MAX_TOKENS: 1234\nCONTEXT_INCLUDE_FAILED: true\nSYSTEM_PROMPT: |\n  Contexto: {{.Context}}\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("LLM_MODEL", "from-env")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LLMModel != "from-env" {
		t.Fatalf("environment must override file, got %q", cfg.LLMModel)
	}
	if cfg.PromptMaxTokens != 1234 || !cfg.ContextIncludeFailed {
		t.Fatalf("expected file values, got %d %v", cfg.PromptMaxTokens, cfg.ContextIncludeFailed)
	}
	if cfg.SystemPrompt != "Contexto: {{.Context}}\n" {
		t.Fatalf("unexpected system prompt %q", cfg.SystemPrompt)
	}
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	isolate(t)
	t.Setenv("LLM_PROVIDER", "anthropic-direct")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}

func TestLoadRejectsMissingConfigFile(t *testing.T) {
	isolate(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
