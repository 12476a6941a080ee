package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"github.com/kirillkom/context-assistant/internal/core/domain"
	"github.com/kirillkom/context-assistant/internal/core/ports"
)

const DefaultSystemPrompt = "Você é um assistente pessoal, que tem por objetivo apoiar o usuario em qualquer tipo de atividade " +
	"que ele necessitar, focando em aumentar a produtividade dele, você pode utilizar como base algumas informações: {{.Context}}."

type systemPromptData struct {
	Context string
}

// ResponseEngine turns a conversation plus its context buffer into one completion request.
type ResponseEngine struct {
	model   ports.ChatModel
	system  *template.Template
	window  WindowPolicy
	counter ports.TokenCounter
}

func NewResponseEngine(
	model ports.ChatModel,
	systemPrompt string,
	window WindowPolicy,
	counter ports.TokenCounter,
) (*ResponseEngine, error) {
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = DefaultSystemPrompt
	}
	tmpl, err := template.New("system").Parse(systemPrompt)
	if err != nil {
		return nil, fmt.Errorf("parse system prompt: %w", err)
	}
	return &ResponseEngine{
		model:   model,
		system:  tmpl,
		window:  window,
		counter: counter,
	}, nil
}

// ContextText renders the buffer for the system prompt within the window's character bound,
// dropping the oldest entries first.
func (e *ResponseEngine) ContextText(buffer domain.ContextBuffer, includeFailed bool) string {
	text, cut := buffer.Recent(e.window.MaxContextChars, includeFailed)
	if cut {
		slog.Info("context_truncated",
			"max_chars", e.window.MaxContextChars,
			"entries", len(buffer.Entries),
		)
	}
	return text
}

// BuildPrompt returns one system message followed by the conversation in order.
// The context text is substituted into the system prompt verbatim.
func (e *ResponseEngine) BuildPrompt(messages []domain.Message, contextText string) ([]domain.PromptMessage, error) {
	var system strings.Builder
	if err := e.system.Execute(&system, systemPromptData{Context: e.window.context(contextText)}); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "render system prompt", err)
	}

	history := e.window.history(messages)
	prompt := make([]domain.PromptMessage, 0, len(history)+1)
	prompt = append(prompt, domain.PromptMessage{Role: domain.RoleSystem, Content: system.String()})
	for _, msg := range history {
		prompt = append(prompt, domain.PromptMessage{Role: msg.Role, Content: msg.Text})
	}
	return e.window.fitTokens(prompt, e.counter), nil
}

// Respond sends the prompt in one blocking call and returns the model's reply text unchanged.
func (e *ResponseEngine) Respond(ctx context.Context, messages []domain.Message, contextText string) (string, error) {
	prompt, err := e.BuildPrompt(messages, contextText)
	if err != nil {
		return "", err
	}
	reply, err := e.model.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("generate reply: %w", err)
	}
	return reply, nil
}
