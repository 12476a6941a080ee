package domain

import "time"

// Session is the whole per-user state: the conversation and its context buffer.
type Session struct {
	ID        string        `json:"id"`
	Messages  []Message     `json:"messages"`
	Context   ContextBuffer `json:"context"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

func NewSession(id string, now time.Time) *Session {
	return &Session{
		ID:        id,
		Messages:  []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *Session) AppendMessage(role Role, text string, now time.Time) Message {
	msg := Message{Role: role, Text: text, CreatedAt: now}
	s.Messages = append(s.Messages, msg)
	s.UpdatedAt = now
	return msg
}

// Reset empties the conversation and the context buffer. The ID survives.
func (s *Session) Reset(now time.Time) {
	s.Messages = []Message{}
	s.Context = ContextBuffer{}
	s.UpdatedAt = now
}

// Clone returns a deep copy so stores and callers never share slices.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Messages = append([]Message{}, s.Messages...)
	out.Context = s.Context.clone()
	return &out
}

type SessionEventType string

const (
	EventSessionCreated SessionEventType = "session.created"
	EventChatTurn       SessionEventType = "session.chat_turn"
	EventContextAdded   SessionEventType = "session.context_added"
	EventNotesUpdated   SessionEventType = "session.notes_updated"
	EventSessionReset   SessionEventType = "session.reset"
)

// SessionEvent is published after every session mutation.
type SessionEvent struct {
	Type      SessionEventType `json:"type"`
	SessionID string           `json:"session_id"`
	At        time.Time        `json:"at"`
	Source    ContextSource    `json:"source,omitempty"`
	Kind      ExtractionKind   `json:"kind,omitempty"`
	Messages  int              `json:"messages"`
}
