package usecase

import (
	"strings"
	"testing"

	"github.com/kirillkom/context-assistant/internal/core/domain"
)

func TestWindowKeepsLastMessages(t *testing.T) {
	engine := newEngine(t, &chatModelFake{}, WindowPolicy{MaxHistoryMessages: 2})
	prompt, err := engine.BuildPrompt([]domain.Message{
		{Role: domain.RoleUser, Text: "a"},
		{Role: domain.RoleAssistant, Text: "b"},
		{Role: domain.RoleUser, Text: "c"},
	}, "")
	if err != nil {
		t.Fatalf("BuildPrompt() error = %v", err)
	}
	if len(prompt) != 3 || prompt[1].Content != "b" || prompt[2].Content != "c" {
		t.Fatalf("unexpected window: %+v", prompt)
	}
}

func TestWindowCutsContextByRunes(t *testing.T) {
	engine, err := NewResponseEngine(&chatModelFake{}, "{{.Context}}", WindowPolicy{MaxContextChars: 3}, nil)
	if err != nil {
		t.Fatalf("NewResponseEngine() error = %v", err)
	}
	prompt, err := engine.BuildPrompt(nil, "ãçéxyz")
	if err != nil {
		t.Fatalf("BuildPrompt() error = %v", err)
	}
	if prompt[0].Content != "ãçé" {
		t.Fatalf("expected rune-safe cut, got %q", prompt[0].Content)
	}
}

func TestWindowTokenBudgetDropsOldestButKeepsNewest(t *testing.T) {
	engine, err := NewResponseEngine(&chatModelFake{}, "sys", WindowPolicy{MaxPromptTokens: 30}, runeCounter{})
	if err != nil {
		t.Fatalf("NewResponseEngine() error = %v", err)
	}
	messages := []domain.Message{
		{Role: domain.RoleUser, Text: strings.Repeat("x", 20)},
		{Role: domain.RoleAssistant, Text: strings.Repeat("y", 20)},
		{Role: domain.RoleUser, Text: "newest"},
	}
	prompt, err := engine.BuildPrompt(messages, "")
	if err != nil {
		t.Fatalf("BuildPrompt() error = %v", err)
	}
	if prompt[0].Role != domain.RoleSystem {
		t.Fatalf("expected system message first")
	}
	if prompt[len(prompt)-1].Content != "newest" {
		t.Fatalf("expected newest message kept, got %+v", prompt)
	}
	if len(prompt) != 2 {
		t.Fatalf("expected both old messages dropped, got %d entries", len(prompt))
	}
}

func TestWindowWithinBoundsIsIdentity(t *testing.T) {
	bounded := newEngine(t, &chatModelFake{}, WindowPolicy{MaxHistoryMessages: 10, MaxContextChars: 100, MaxPromptTokens: 10_000})
	unbounded := newEngine(t, &chatModelFake{}, WindowPolicy{})
	messages := []domain.Message{{Role: domain.RoleUser, Text: "q"}, {Role: domain.RoleAssistant, Text: "a"}}

	a, _ := bounded.BuildPrompt(messages, "ctx")
	b, _ := unbounded.BuildPrompt(messages, "ctx")
	if len(a) != len(b) {
		t.Fatalf("expected identical prompts, got %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("entry %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestWindowContextKeepsNewestSource(t *testing.T) {
	model := &chatModelFake{reply: "ok"}
	engine, err := NewResponseEngine(model, "{{.Context}}", WindowPolicy{MaxContextChars: 16}, nil)
	if err != nil {
		t.Fatalf("NewResponseEngine() error = %v", err)
	}
	buf := domain.ContextBuffer{Notes: "notas"}
	buf.Append(domain.ExtractionResult{Kind: domain.ExtractionOK, Source: domain.SourcePage, Text: strings.Repeat("p", 30)})
	buf.Append(domain.ExtractionResult{Kind: domain.ExtractionOK, Source: domain.SourceVideo, Text: "video novo"})

	text := engine.ContextText(buf, false)
	if text != "notas\nvideo novo" {
		t.Fatalf("expected notes and newest entry, got %q", text)
	}
	prompt, err := engine.BuildPrompt(nil, text)
	if err != nil {
		t.Fatalf("BuildPrompt() error = %v", err)
	}
	if prompt[0].Content != text {
		t.Fatalf("window must not cut the rendered context again, got %q", prompt[0].Content)
	}
}
