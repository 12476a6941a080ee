package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kirillkom/context-assistant/internal/core/domain"
)

const keyPrefix = "context-assistant:session:"

// Store keeps each session as one JSON value whose expiry is pushed forward on every save,
// so abandoned sessions disappear after the idle TTL.
type Store struct {
	rdb     goredis.Cmdable
	idleTTL time.Duration
}

func NewStore(rdb goredis.Cmdable, idleTTL time.Duration) *Store {
	return &Store{rdb: rdb, idleTTL: idleTTL}
}

func (s *Store) Load(ctx context.Context, sessionID string) (*domain.Session, error) {
	raw, err := s.rdb.Get(ctx, sessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, domain.WrapError(domain.ErrSessionNotFound, "load session", fmt.Errorf("session %s", sessionID))
		}
		return nil, domain.WrapError(domain.ErrTemporary, "load session", err)
	}

	var session domain.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session %s: %w", sessionID, err)
	}
	if session.Messages == nil {
		session.Messages = []domain.Message{}
	}
	return &session, nil
}

func (s *Store) Save(ctx context.Context, session *domain.Session) error {
	if session == nil {
		return domain.WrapError(domain.ErrInvalidInput, "save session", fmt.Errorf("session is nil"))
	}
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", session.ID, err)
	}
	if err := s.rdb.Set(ctx, sessionKey(session.ID), raw, s.idleTTL).Err(); err != nil {
		return domain.WrapError(domain.ErrTemporary, "save session", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := s.rdb.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return domain.WrapError(domain.ErrTemporary, "delete session", err)
	}
	return nil
}

func sessionKey(sessionID string) string {
	return keyPrefix + sessionID
}
