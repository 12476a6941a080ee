package ports

import (
	"context"
	"io"

	"github.com/kirillkom/context-assistant/internal/core/domain"
)

// DocumentExtractor turns an uploaded document into plain text.
type DocumentExtractor interface {
	Extract(ctx context.Context, filename, mimeType string, body io.Reader) (string, error)
}

// PageExtractor fetches a web page and returns its visible text.
type PageExtractor interface {
	Extract(ctx context.Context, pageURL string) (string, error)
}

// TranscriptFetcher returns caption fragments for a video in the first available preferred language.
type TranscriptFetcher interface {
	FetchTranscript(ctx context.Context, videoID string, languages []string) ([]domain.CaptionFragment, error)
}

// ChatModel sends a complete prompt to a hosted model and returns the top reply text.
type ChatModel interface {
	Complete(ctx context.Context, messages []domain.PromptMessage) (string, error)
}

// TokenCounter estimates prompt size.
type TokenCounter interface {
	Count(text string) int
}

// SessionStore keeps per-session state between events.
type SessionStore interface {
	Load(ctx context.Context, sessionID string) (*domain.Session, error)
	Save(ctx context.Context, session *domain.Session) error
	Delete(ctx context.Context, sessionID string) error
}

// EventPublisher fans session events out to other systems.
type EventPublisher interface {
	PublishSessionEvent(ctx context.Context, event domain.SessionEvent) error
}
