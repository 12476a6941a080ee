package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/context-assistant/internal/core/domain"
	"github.com/kirillkom/context-assistant/internal/infrastructure/resilience"
)

// Client talks to a local Ollama server through its non-streaming chat endpoint.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, model string, timeout time.Duration, executor *resilience.Executor) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Model   string      `json:"model"`
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
}

func (c *Client) Model() string {
	return c.model
}

func (c *Client) Complete(ctx context.Context, messages []domain.PromptMessage) (string, error) {
	req := chatRequest{
		Model:    c.model,
		Messages: make([]chatMessage, 0, len(messages)),
	}
	for _, msg := range messages {
		req.Messages = append(req.Messages, chatMessage{Role: string(msg.Role), Content: msg.Content})
	}

	resp, err := resilience.Call(ctx, c.executor, "ollama.chat", func(callCtx context.Context) (chatResponse, error) {
		var out chatResponse
		err := c.postJSON(callCtx, "/api/chat", req, &out, "chat")
		return out, err
	}, resilience.ClassifyHTTP)
	if err != nil {
		return "", classifyFailure("ollama chat", err)
	}
	if resp.Message.Role != "" && resp.Message.Role != string(domain.RoleAssistant) {
		return "", domain.WrapError(domain.ErrUpstream, "ollama chat", fmt.Errorf("unexpected reply role %q", resp.Message.Role))
	}
	return resp.Message.Content, nil
}

func classifyFailure(operation string, err error) error {
	if resilience.ClassifyHTTP(err).Retryable || resilience.IsCircuitOpen(err) {
		return resilience.WrapTemporary(operation, err, resilience.ClassifyHTTP)
	}
	return domain.WrapError(domain.ErrUpstream, operation, err)
}
