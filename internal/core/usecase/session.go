package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/context-assistant/internal/core/domain"
	"github.com/kirillkom/context-assistant/internal/core/ports"
)

// SessionUseCase orchestrates one session's events: questions, context additions and resets.
// Events for the same session run one at a time.
type SessionUseCase struct {
	store         ports.SessionStore
	engine        *ResponseEngine
	extraction    *ExtractionUseCase
	events        ports.EventPublisher
	includeFailed bool

	now   func() time.Time
	locks sessionLocks
}

func NewSessionUseCase(
	store ports.SessionStore,
	engine *ResponseEngine,
	extraction *ExtractionUseCase,
	events ports.EventPublisher,
	includeFailedContext bool,
) *SessionUseCase {
	return &SessionUseCase{
		store:         store,
		engine:        engine,
		extraction:    extraction,
		events:        events,
		includeFailed: includeFailedContext,
		now:           func() time.Time { return time.Now().UTC() },
		locks:         sessionLocks{locks: make(map[string]*sessionLock)},
	}
}

func (uc *SessionUseCase) Session(ctx context.Context, sessionID string) (*domain.Session, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}
	unlock := uc.locks.lock(sessionID)
	defer unlock()

	session, created, err := uc.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if created {
		if err := uc.save(ctx, session); err != nil {
			return nil, err
		}
		uc.publish(ctx, domain.SessionEvent{Type: domain.EventSessionCreated, SessionID: sessionID})
	}
	return session.Clone(), nil
}

// Ask appends the question, asks the model and appends its reply. When the model call
// fails the stored session is left exactly as it was.
func (uc *SessionUseCase) Ask(ctx context.Context, sessionID, question string) (*domain.Message, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(question) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ask", fmt.Errorf("question is required"))
	}
	unlock := uc.locks.lock(sessionID)
	defer unlock()

	session, _, err := uc.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	session.AppendMessage(domain.RoleUser, question, uc.now())
	reply, err := uc.engine.Respond(ctx, session.Messages, uc.engine.ContextText(session.Context, uc.includeFailed))
	if err != nil {
		slog.Error("chat_turn",
			"session_id", sessionID,
			"status", "error",
			"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
			"error", err,
		)
		return nil, err
	}
	answer := session.AppendMessage(domain.RoleAssistant, reply, uc.now())

	if err := uc.save(ctx, session); err != nil {
		return nil, err
	}
	slog.Info("chat_turn",
		"session_id", sessionID,
		"status", "ok",
		"messages", len(session.Messages),
		"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
	)
	uc.publish(ctx, domain.SessionEvent{
		Type:      domain.EventChatTurn,
		SessionID: sessionID,
		Messages:  len(session.Messages),
	})
	return &answer, nil
}

func (uc *SessionUseCase) SetNotes(ctx context.Context, sessionID, text string) (*domain.Session, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}
	unlock := uc.locks.lock(sessionID)
	defer unlock()

	session, _, err := uc.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	session.Context.SetNotes(text)
	session.UpdatedAt = uc.now()
	if err := uc.save(ctx, session); err != nil {
		return nil, err
	}
	uc.publish(ctx, domain.SessionEvent{
		Type:      domain.EventNotesUpdated,
		SessionID: sessionID,
		Source:    domain.SourceNotes,
		Messages:  len(session.Messages),
	})
	return session.Clone(), nil
}

func (uc *SessionUseCase) AddDocument(ctx context.Context, sessionID, filename, mimeType string, body io.Reader) (*domain.ExtractionResult, error) {
	if body == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "add document", fmt.Errorf("document body is required"))
	}
	return uc.addContext(ctx, sessionID, func() domain.ExtractionResult {
		return uc.extraction.Document(ctx, filename, mimeType, body)
	})
}

func (uc *SessionUseCase) AddPage(ctx context.Context, sessionID, pageURL string) (*domain.ExtractionResult, error) {
	if strings.TrimSpace(pageURL) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "add page", fmt.Errorf("url is required"))
	}
	return uc.addContext(ctx, sessionID, func() domain.ExtractionResult {
		return uc.extraction.Page(ctx, strings.TrimSpace(pageURL))
	})
}

func (uc *SessionUseCase) AddVideo(ctx context.Context, sessionID, videoURL string) (*domain.ExtractionResult, error) {
	if strings.TrimSpace(videoURL) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "add video", fmt.Errorf("url is required"))
	}
	return uc.addContext(ctx, sessionID, func() domain.ExtractionResult {
		return uc.extraction.Video(ctx, strings.TrimSpace(videoURL))
	})
}

func (uc *SessionUseCase) Reset(ctx context.Context, sessionID string) (*domain.Session, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}
	unlock := uc.locks.lock(sessionID)
	defer unlock()

	session, _, err := uc.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	session.Reset(uc.now())
	if err := uc.save(ctx, session); err != nil {
		return nil, err
	}
	uc.publish(ctx, domain.SessionEvent{Type: domain.EventSessionReset, SessionID: sessionID})
	return session.Clone(), nil
}

func (uc *SessionUseCase) addContext(ctx context.Context, sessionID string, extract func() domain.ExtractionResult) (*domain.ExtractionResult, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}
	unlock := uc.locks.lock(sessionID)
	defer unlock()

	session, _, err := uc.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result := extract()
	logAttrs := []any{
		"session_id", sessionID,
		"source", result.Source,
		"kind", result.Kind,
		"origin", result.Origin,
		"chars", len(result.Text),
		"duration_ms", float64(time.Since(start).Microseconds()) / 1000.0,
	}
	if result.Failed() {
		slog.Warn("context_extracted", append(logAttrs, "error", result.Text)...)
	} else {
		slog.Info("context_extracted", logAttrs...)
	}

	session.Context.Append(result)
	session.UpdatedAt = uc.now()
	if err := uc.save(ctx, session); err != nil {
		return nil, err
	}
	uc.publish(ctx, domain.SessionEvent{
		Type:      domain.EventContextAdded,
		SessionID: sessionID,
		Source:    result.Source,
		Kind:      result.Kind,
		Messages:  len(session.Messages),
	})
	return &result, nil
}

func (uc *SessionUseCase) load(ctx context.Context, sessionID string) (*domain.Session, bool, error) {
	session, err := uc.store.Load(ctx, sessionID)
	if err == nil {
		return session, false, nil
	}
	if domain.IsKind(err, domain.ErrSessionNotFound) {
		return domain.NewSession(sessionID, uc.now()), true, nil
	}
	return nil, false, fmt.Errorf("load session: %w", err)
}

func (uc *SessionUseCase) save(ctx context.Context, session *domain.Session) error {
	if err := uc.store.Save(ctx, session); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (uc *SessionUseCase) publish(ctx context.Context, event domain.SessionEvent) {
	if uc.events == nil {
		return
	}
	event.At = uc.now()
	if err := uc.events.PublishSessionEvent(ctx, event); err != nil {
		slog.Warn("session_event_publish_failed",
			"session_id", event.SessionID,
			"type", event.Type,
			"error", err,
		)
	}
}

func validateSessionID(sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "session", fmt.Errorf("session id is required"))
	}
	return nil
}

type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func (l *sessionLocks) lock(sessionID string) func() {
	l.mu.Lock()
	entry, ok := l.locks[sessionID]
	if !ok {
		entry = &sessionLock{}
		l.locks[sessionID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, sessionID)
		}
		l.mu.Unlock()
	}
}
