package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/context-assistant/internal/core/domain"
	"github.com/kirillkom/context-assistant/internal/infrastructure/resilience"
)

func TestSubjectForUsesEventType(t *testing.T) {
	if got := subjectFor(normalizePrefix(" assistant. "), domain.EventChatTurn); got != "assistant.session.chat_turn" {
		t.Fatalf("unexpected subject %q", got)
	}
	if got := normalizePrefix(""); got != "assistant" {
		t.Fatalf("expected default prefix, got %q", got)
	}
}

func TestSubscriptionSubjectUsesNormalizedPrefix(t *testing.T) {
	bus := &Bus{prefix: normalizePrefix(" .audit. ")}
	if got := bus.SubscriptionSubject(); got != "audit.>" {
		t.Fatalf("unexpected subscription subject %q", got)
	}
}

func TestDecodeEventRoundTrip(t *testing.T) {
	in := domain.SessionEvent{
		Type:      domain.EventContextAdded,
		SessionID: "s1",
		At:        time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Source:    domain.SourceVideo,
		Kind:      domain.ExtractionError,
		Messages:  4,
	}
	raw, _ := json.Marshal(in)
	out, err := decodeEvent(raw)
	if err != nil {
		t.Fatalf("decodeEvent() error = %v", err)
	}
	if !out.At.Equal(in.At) || out.Type != in.Type || out.SessionID != in.SessionID ||
		out.Source != in.Source || out.Kind != in.Kind || out.Messages != in.Messages {
		t.Fatalf("unexpected event %+v", out)
	}
}

func TestDecodeEventRejectsIncompletePayload(t *testing.T) {
	if _, err := decodeEvent([]byte(`{"type":"session.reset"}`)); err == nil {
		t.Fatalf("expected error for missing session id")
	}
	if _, err := decodeEvent([]byte(`not json`)); err == nil {
		t.Fatalf("expected error for malformed payload")
	}
}

func TestClassifyNATSError(t *testing.T) {
	if !classifyNATSError(fmt.Errorf("nats publish: %w", nats.ErrConnectionClosed)).Retryable {
		t.Fatalf("closed connection should be retryable")
	}
	if classifyNATSError(nats.ErrBadSubject).Retryable {
		t.Fatalf("bad subject must not be retried")
	}
	if class := classifyNATSError(context.Canceled); class.Retryable || class.RecordFailure {
		t.Fatalf("cancellation must be ignored, got %+v", class)
	}
}

func TestPublishFailureIsTaggedTemporary(t *testing.T) {
	err := resilience.WrapTemporary("nats publish", fmt.Errorf("nats publish: %w", nats.ErrNoServers), classifyNATSError)
	if !domain.IsKind(err, domain.ErrTemporary) || !errors.Is(err, nats.ErrNoServers) {
		t.Fatalf("expected temporary wrapping, got %v", err)
	}
}
