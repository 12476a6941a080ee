package ports

import (
	"context"
	"io"

	"github.com/kirillkom/context-assistant/internal/core/domain"
)

// AssistantService is the inbound contract every presentation adapter drives.
type AssistantService interface {
	Session(ctx context.Context, sessionID string) (*domain.Session, error)
	Ask(ctx context.Context, sessionID, question string) (*domain.Message, error)
	SetNotes(ctx context.Context, sessionID, text string) (*domain.Session, error)
	AddDocument(ctx context.Context, sessionID, filename, mimeType string, body io.Reader) (*domain.ExtractionResult, error)
	AddPage(ctx context.Context, sessionID, pageURL string) (*domain.ExtractionResult, error)
	AddVideo(ctx context.Context, sessionID, videoURL string) (*domain.ExtractionResult, error)
	Reset(ctx context.Context, sessionID string) (*domain.Session, error)
}
