package usecase

import (
	"unicode/utf8"

	"github.com/kirillkom/context-assistant/internal/core/domain"
	"github.com/kirillkom/context-assistant/internal/core/ports"
)

// perMessageTokenOverhead approximates the role/separator tokens chat APIs add per entry.
const perMessageTokenOverhead = 4

// WindowPolicy bounds what one completion request may carry. Zero disables a bound.
type WindowPolicy struct {
	MaxHistoryMessages int
	MaxContextChars    int
	MaxPromptTokens    int
}

func (w WindowPolicy) history(messages []domain.Message) []domain.Message {
	if w.MaxHistoryMessages <= 0 || len(messages) <= w.MaxHistoryMessages {
		return messages
	}
	return messages[len(messages)-w.MaxHistoryMessages:]
}

func (w WindowPolicy) context(text string) string {
	if w.MaxContextChars <= 0 || utf8.RuneCountInString(text) <= w.MaxContextChars {
		return text
	}
	runes := []rune(text)
	return string(runes[:w.MaxContextChars])
}

// fitTokens drops the oldest history entries until the prompt fits the token budget.
// prompt[0] is the system message and the last entry is the newest turn; both are kept.
func (w WindowPolicy) fitTokens(prompt []domain.PromptMessage, counter ports.TokenCounter) []domain.PromptMessage {
	if w.MaxPromptTokens <= 0 || counter == nil || len(prompt) <= 2 {
		return prompt
	}

	sizes := make([]int, len(prompt))
	total := 0
	for i, msg := range prompt {
		sizes[i] = counter.Count(msg.Content) + perMessageTokenOverhead
		total += sizes[i]
	}

	drop := 0
	for total > w.MaxPromptTokens && len(prompt)-drop > 2 {
		total -= sizes[1+drop]
		drop++
	}
	if drop == 0 {
		return prompt
	}

	out := make([]domain.PromptMessage, 0, len(prompt)-drop)
	out = append(out, prompt[0])
	out = append(out, prompt[1+drop:]...)
	return out
}
