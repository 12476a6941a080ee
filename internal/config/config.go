package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"

	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"
)

type Config struct {
	APIPort  string
	LogLevel string

	LLMProvider       string
	LLMAPIKey         string
	LLMBaseURL        string
	LLMModel          string
	LLMTimeoutSeconds int

	OllamaURL   string
	OllamaModel string

	SystemPrompt         string
	HistoryMaxMessages   int
	ContextMaxChars      int
	PromptMaxTokens      int
	TokenEncoding        string
	ContextIncludeFailed bool

	TranscriptLanguages []string
	YouTubeBaseURL      string
	FetchTimeoutSeconds int
	FetchUserAgent      string
	UploadMaxBytes      int64

	SessionBackend        string
	SessionIdleTTLMinutes int
	RedisAddr             string
	RedisPassword         string
	RedisDB               int

	NATSURL     string
	NATSSubject string

	RetryMaxAttempts int
	BreakerEnabled   bool

	TelegramBotToken    string
	TelegramMetricsPort string
	AuditMetricsPort    string
}

// Load reads configuration from the environment. A .env file in the working directory is
// applied first without overriding real variables; CONFIG_FILE may point at a YAML file of
// KEY: value defaults that sit beneath the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	file, err := readFileLayer(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return Config{}, err
	}
	l := layers{file: file}

	cfg := Config{
		APIPort:  l.mustEnv("API_PORT", "8080"),
		LogLevel: l.mustEnv("LOG_LEVEL", "info"),

		LLMProvider:       strings.ToLower(l.mustEnv("LLM_PROVIDER", ProviderOpenAI)),
		LLMAPIKey:         l.mustEnv("GROQ_API_KEY", l.mustEnv("LLM_API_KEY", "")),
		LLMBaseURL:        l.mustEnv("LLM_BASE_URL", "https://api.groq.com/openai/v1"),
		LLMModel:          l.mustEnv("LLM_MODEL", "llama-3.3-70b-versatile"),
		LLMTimeoutSeconds: l.mustEnvInt("LLM_TIMEOUT_SECONDS", 60),

		OllamaURL:   l.mustEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel: l.mustEnv("OLLAMA_MODEL", "llama3.1:8b"),

		SystemPrompt:         l.mustEnv("SYSTEM_PROMPT", ""),
		HistoryMaxMessages:   l.mustEnvInt("HISTORY_MAX_MESSAGES", 50),
		ContextMaxChars:      l.mustEnvInt("CONTEXT_MAX_CHARS", 48000),
		PromptMaxTokens:      l.mustEnvInt("PROMPT_MAX_TOKENS", 8000),
		TokenEncoding:        l.mustEnv("TOKEN_ENCODING", "cl100k_base"),
		ContextIncludeFailed: l.mustEnvBool("CONTEXT_INCLUDE_FAILED", false),

		TranscriptLanguages: splitList(l.mustEnv("TRANSCRIPT_LANGUAGES", "pt,pt-BR")),
		YouTubeBaseURL:      l.mustEnv("YOUTUBE_BASE_URL", "https://www.youtube.com"),
		FetchTimeoutSeconds: l.mustEnvInt("FETCH_TIMEOUT_SECONDS", 15),
		FetchUserAgent:      l.mustEnv("FETCH_USER_AGENT", "Mozilla/5.0 (compatible; context-assistant/1.0)"),
		UploadMaxBytes:      int64(l.mustEnvInt("UPLOAD_MAX_BYTES", 20<<20)),

		SessionBackend:        strings.ToLower(l.mustEnv("SESSION_BACKEND", SessionBackendMemory)),
		SessionIdleTTLMinutes: l.mustEnvInt("SESSION_IDLE_TTL_MINUTES", 120),
		RedisAddr:             l.mustEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:         l.mustEnv("REDIS_PASSWORD", ""),
		RedisDB:               l.mustEnvInt("REDIS_DB", 0),

		NATSURL:     l.mustEnv("NATS_URL", ""),
		NATSSubject: l.mustEnv("NATS_SUBJECT", "assistant"),

		RetryMaxAttempts: l.mustEnvInt("RETRY_MAX_ATTEMPTS", 3),
		BreakerEnabled:   l.mustEnvBool("BREAKER_ENABLED", true),

		TelegramBotToken:    l.mustEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramMetricsPort: l.mustEnv("TELEGRAM_METRICS_PORT", "9091"),
		AuditMetricsPort:    l.mustEnv("AUDIT_METRICS_PORT", "9092"),
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.LLMProvider {
	case ProviderOpenAI, ProviderOllama:
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER %q", c.LLMProvider)
	}
	switch c.SessionBackend {
	case SessionBackendMemory, SessionBackendRedis:
	default:
		return fmt.Errorf("unsupported SESSION_BACKEND %q", c.SessionBackend)
	}
	if c.UploadMaxBytes <= 0 {
		return fmt.Errorf("UPLOAD_MAX_BYTES must be positive")
	}
	return nil
}

type layers struct {
	file map[string]string
}

func readFileLayer(path string) (map[string]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var values map[string]any
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	out := make(map[string]string, len(values))
	for key, value := range values {
		if value == nil {
			continue
		}
		out[strings.ToUpper(key)] = fmt.Sprint(value)
	}
	return out, nil
}

func (l layers) lookup(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return l.file[key]
}

func (l layers) mustEnv(key, fallback string) string {
	v := l.lookup(key)
	if v == "" {
		return fallback
	}
	return v
}

func (l layers) mustEnvInt(key string, fallback int) int {
	v := l.lookup(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func (l layers) mustEnvBool(key string, fallback bool) bool {
	v := l.lookup(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
