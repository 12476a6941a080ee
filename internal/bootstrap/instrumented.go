package bootstrap

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/context-assistant/internal/core/domain"
	"github.com/kirillkom/context-assistant/internal/core/ports"
)

// Recorder receives the domain measurements every front end shares.
type Recorder interface {
	RecordExtraction(source, kind string)
	RecordChatTurn(status string, duration time.Duration)
	RecordTokenUsage(model string, promptTokens, completionTokens int)
}

// instrumentedService records chat turns, token estimates and extraction outcomes around
// the wrapped service. Errors and results pass through unchanged.
type instrumentedService struct {
	next     ports.AssistantService
	recorder Recorder
	counter  ports.TokenCounter
	model    string
}

func instrument(next ports.AssistantService, recorder Recorder, counter ports.TokenCounter, model string) ports.AssistantService {
	if recorder == nil {
		return next
	}
	return &instrumentedService{next: next, recorder: recorder, counter: counter, model: model}
}

func (s *instrumentedService) Session(ctx context.Context, sessionID string) (*domain.Session, error) {
	return s.next.Session(ctx, sessionID)
}

func (s *instrumentedService) Ask(ctx context.Context, sessionID, question string) (*domain.Message, error) {
	start := time.Now()
	reply, err := s.next.Ask(ctx, sessionID, question)
	if err != nil {
		s.recorder.RecordChatTurn(chatStatus(err), time.Since(start))
		return nil, err
	}
	s.recorder.RecordChatTurn("success", time.Since(start))
	if s.counter != nil {
		s.recorder.RecordTokenUsage(s.model, s.counter.Count(question), s.counter.Count(reply.Text))
	}
	return reply, nil
}

func (s *instrumentedService) SetNotes(ctx context.Context, sessionID, text string) (*domain.Session, error) {
	return s.next.SetNotes(ctx, sessionID, text)
}

func (s *instrumentedService) AddDocument(ctx context.Context, sessionID, filename, mimeType string, body io.Reader) (*domain.ExtractionResult, error) {
	return s.recordExtraction(s.next.AddDocument(ctx, sessionID, filename, mimeType, body))
}

func (s *instrumentedService) AddPage(ctx context.Context, sessionID, pageURL string) (*domain.ExtractionResult, error) {
	return s.recordExtraction(s.next.AddPage(ctx, sessionID, pageURL))
}

func (s *instrumentedService) AddVideo(ctx context.Context, sessionID, videoURL string) (*domain.ExtractionResult, error) {
	return s.recordExtraction(s.next.AddVideo(ctx, sessionID, videoURL))
}

func (s *instrumentedService) Reset(ctx context.Context, sessionID string) (*domain.Session, error) {
	return s.next.Reset(ctx, sessionID)
}

func (s *instrumentedService) recordExtraction(result *domain.ExtractionResult, err error) (*domain.ExtractionResult, error) {
	if err == nil && result != nil {
		s.recorder.RecordExtraction(string(result.Source), string(result.Kind))
	}
	return result, err
}

func chatStatus(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return "invalid"
	case domain.IsKind(err, domain.ErrTemporary):
		return "temporary"
	case domain.IsKind(err, domain.ErrUpstream):
		return "upstream"
	default:
		return "error"
	}
}
