package usecase

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/kirillkom/context-assistant/internal/core/domain"
)

type chatModelFake struct {
	mu      sync.Mutex
	prompts [][]domain.PromptMessage
	reply   string
	err     error
}

func (f *chatModelFake) Complete(_ context.Context, messages []domain.PromptMessage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, append([]domain.PromptMessage(nil), messages...))
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *chatModelFake) lastPrompt() []domain.PromptMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return nil
	}
	return f.prompts[len(f.prompts)-1]
}

type sessionStoreFake struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
	saves    int
	saveErr  error
}

func newSessionStoreFake() *sessionStoreFake {
	return &sessionStoreFake{sessions: make(map[string]*domain.Session)}
}

func (f *sessionStoreFake) Load(_ context.Context, sessionID string) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[sessionID]
	if !ok {
		return nil, domain.WrapError(domain.ErrSessionNotFound, "load", errors.New(sessionID))
	}
	return session.Clone(), nil
}

func (f *sessionStoreFake) Save(_ context.Context, session *domain.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves++
	f.sessions[session.ID] = session.Clone()
	return nil
}

func (f *sessionStoreFake) Delete(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, sessionID)
	return nil
}

type documentExtractorFake struct {
	text  string
	err   error
	panic bool
}

func (f *documentExtractorFake) Extract(_ context.Context, _, _ string, body io.Reader) (string, error) {
	if f.panic {
		panic("malformed xref table")
	}
	if f.err != nil {
		return "", f.err
	}
	if f.text != "" {
		return f.text, nil
	}
	raw, err := io.ReadAll(body)
	return string(raw), err
}

type pageExtractorFake struct {
	url  string
	text string
	err  error
}

func (f *pageExtractorFake) Extract(_ context.Context, pageURL string) (string, error) {
	f.url = pageURL
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type transcriptFetcherFake struct {
	videoID   string
	languages []string
	fragments []domain.CaptionFragment
	err       error
}

func (f *transcriptFetcherFake) FetchTranscript(_ context.Context, videoID string, languages []string) ([]domain.CaptionFragment, error) {
	f.videoID = videoID
	f.languages = languages
	if f.err != nil {
		return nil, f.err
	}
	return f.fragments, nil
}

type eventPublisherFake struct {
	mu     sync.Mutex
	events []domain.SessionEvent
	err    error
}

func (f *eventPublisherFake) PublishSessionEvent(_ context.Context, event domain.SessionEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return f.err
}

func (f *eventPublisherFake) types() []domain.SessionEventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.SessionEventType, 0, len(f.events))
	for _, event := range f.events {
		out = append(out, event.Type)
	}
	return out
}

// runeCounter counts one token per rune, which keeps budgets easy to reason about.
type runeCounter struct{}

func (runeCounter) Count(text string) int { return len([]rune(text)) }
