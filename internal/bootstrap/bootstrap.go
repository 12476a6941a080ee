package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kirillkom/context-assistant/internal/config"
	"github.com/kirillkom/context-assistant/internal/core/ports"
	"github.com/kirillkom/context-assistant/internal/core/usecase"
	natsbus "github.com/kirillkom/context-assistant/internal/infrastructure/events/nats"
	"github.com/kirillkom/context-assistant/internal/infrastructure/extractor/document"
	"github.com/kirillkom/context-assistant/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/context-assistant/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/context-assistant/internal/infrastructure/extractor/webpage"
	"github.com/kirillkom/context-assistant/internal/infrastructure/extractor/xlsx"
	"github.com/kirillkom/context-assistant/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/context-assistant/internal/infrastructure/llm/openai"
	"github.com/kirillkom/context-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/context-assistant/internal/infrastructure/session/memory"
	redisstore "github.com/kirillkom/context-assistant/internal/infrastructure/session/redis"
	"github.com/kirillkom/context-assistant/internal/infrastructure/tokens"
	"github.com/kirillkom/context-assistant/internal/infrastructure/transcript/youtube"
	"github.com/kirillkom/context-assistant/internal/observability/metrics"
)

const janitorInterval = time.Minute

type App struct {
	Config config.Config

	Service ports.AssistantService
	Tokens  ports.TokenCounter
	Model   string

	closeFn func()
}

// chatModel is a completion client that can name its model for metrics and logs.
type chatModel interface {
	ports.ChatModel
	Model() string
}

// New wires the assistant for one front end. collectors may be nil; metrics are then skipped.
func New(ctx context.Context, cfg config.Config, collectors *metrics.AssistantCollectors) (*App, error) {
	executor := newExecutor(cfg, collectors)
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	model, err := newChatModel(cfg, executor)
	if err != nil {
		return nil, err
	}
	counter := tokens.NewCounter(cfg.TokenEncoding)

	engine, err := usecase.NewResponseEngine(model, cfg.SystemPrompt, usecase.WindowPolicy{
		MaxHistoryMessages: cfg.HistoryMaxMessages,
		MaxContextChars:    cfg.ContextMaxChars,
		MaxPromptTokens:    cfg.PromptMaxTokens,
	}, counter)
	if err != nil {
		return nil, fmt.Errorf("init response engine: %w", err)
	}

	fetchClient := &http.Client{Timeout: time.Duration(cfg.FetchTimeoutSeconds) * time.Second}
	transcripts, err := youtube.NewClient(cfg.YouTubeBaseURL, fetchClient, cfg.FetchUserAgent, executor)
	if err != nil {
		return nil, fmt.Errorf("init transcript client: %w", err)
	}
	extraction := usecase.NewExtractionUseCase(
		document.NewExtractor(cfg.UploadMaxBytes, pdf.NewExtractor(), xlsx.NewExtractor(), plaintext.NewExtractor()),
		webpage.NewExtractor(fetchClient, cfg.FetchUserAgent, executor),
		transcripts,
		cfg.TranscriptLanguages,
	)

	store, closeStore, err := newSessionStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	closers = append(closers, closeStore)

	// Left as an untyped nil when NATS is off so the use case sees no publisher.
	var events ports.EventPublisher
	if strings.TrimSpace(cfg.NATSURL) != "" {
		bus, err := NewEventBus(cfg, executor)
		if err != nil {
			closeAll()
			return nil, err
		}
		events = bus
		closers = append(closers, bus.Close)
	}

	sessions := usecase.NewSessionUseCase(store, engine, extraction, events, cfg.ContextIncludeFailed)

	var recorder Recorder
	if collectors != nil {
		recorder = collectors
	}

	slog.Info("assistant_ready",
		"llm_provider", cfg.LLMProvider,
		"llm_model", model.Model(),
		"session_backend", cfg.SessionBackend,
		"events", events != nil,
		"exact_tokens", counter.Exact(),
	)

	return &App{
		Config:  cfg,
		Service: instrument(sessions, recorder, counter, model.Model()),
		Tokens:  counter,
		Model:   model.Model(),
		closeFn: closeAll,
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// NewEventBus connects to NATS for publishing or auditing session events.
func NewEventBus(cfg config.Config, executor *resilience.Executor) (*natsbus.Bus, error) {
	bus, err := natsbus.New(cfg.NATSURL, cfg.NATSSubject, natsbus.Options{ResilienceExecutor: executor})
	if err != nil {
		return nil, fmt.Errorf("init session events: %w", err)
	}
	return bus, nil
}

func newExecutor(cfg config.Config, collectors *metrics.AssistantCollectors) *resilience.Executor {
	policy := resilience.DefaultConfig()
	policy.RetryMaxAttempts = cfg.RetryMaxAttempts
	policy.BreakerEnabled = cfg.BreakerEnabled

	var observer resilience.Observer
	if collectors != nil {
		observer = collectors
	}
	return resilience.NewExecutor(policy, observer)
}

func newChatModel(cfg config.Config, executor *resilience.Executor) (chatModel, error) {
	timeout := time.Duration(cfg.LLMTimeoutSeconds) * time.Second
	switch cfg.LLMProvider {
	case config.ProviderOllama:
		return ollama.New(cfg.OllamaURL, cfg.OllamaModel, timeout, executor), nil
	case config.ProviderOpenAI:
		if strings.TrimSpace(cfg.LLMAPIKey) == "" {
			slog.Warn("llm_api_key_missing", "hint", "set GROQ_API_KEY; completions will fail until it is set")
		}
		return openai.New(openai.Config{
			APIKey:  cfg.LLMAPIKey,
			BaseURL: cfg.LLMBaseURL,
			Model:   cfg.LLMModel,
			Timeout: timeout,
		}, executor), nil
	default:
		return nil, fmt.Errorf("unsupported LLM_PROVIDER %q", cfg.LLMProvider)
	}
}

func newSessionStore(ctx context.Context, cfg config.Config) (ports.SessionStore, func(), error) {
	idleTTL := time.Duration(cfg.SessionIdleTTLMinutes) * time.Minute

	switch cfg.SessionBackend {
	case config.SessionBackendRedis:
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
		}
		return redisstore.NewStore(client, idleTTL), func() { _ = client.Close() }, nil
	default:
		store := memory.NewStore(idleTTL)
		janitorCtx, stop := context.WithCancel(context.Background())
		go store.RunJanitor(janitorCtx, janitorInterval)
		return store, stop, nil
	}
}
