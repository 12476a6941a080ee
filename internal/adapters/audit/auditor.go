package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/context-assistant/internal/core/domain"
)

// Metrics is what the auditor reports per event.
type Metrics interface {
	StartItem()
	FinishItem(kind string, duration time.Duration, err error)
	ObserveLag(lag time.Duration)
	RecordExtraction(source, kind string)
}

// Auditor consumes session events published by the front ends and turns them into an
// audit log line plus metrics. It never touches session state.
type Auditor struct {
	metrics Metrics
	now     func() time.Time
}

func NewAuditor(metrics Metrics) *Auditor {
	return &Auditor{metrics: metrics, now: time.Now}
}

func (a *Auditor) Handle(_ context.Context, event domain.SessionEvent) error {
	start := a.now()
	if a.metrics != nil {
		a.metrics.StartItem()
		if !event.At.IsZero() {
			a.metrics.ObserveLag(start.Sub(event.At))
		}
	}

	err := validate(event)
	if err == nil {
		attrs := []any{
			"type", event.Type,
			"session_id", event.SessionID,
			"messages", event.Messages,
			"at", event.At,
		}
		if event.Type == domain.EventContextAdded {
			attrs = append(attrs, "source", event.Source, "kind", event.Kind)
			if a.metrics != nil {
				a.metrics.RecordExtraction(string(event.Source), string(event.Kind))
			}
		}
		slog.Info("session_event", attrs...)
	}

	if a.metrics != nil {
		a.metrics.FinishItem(string(event.Type), a.now().Sub(start), err)
	}
	return err
}

func validate(event domain.SessionEvent) error {
	switch event.Type {
	case domain.EventSessionCreated, domain.EventChatTurn, domain.EventNotesUpdated, domain.EventSessionReset:
		return nil
	case domain.EventContextAdded:
		if event.Source == "" || event.Kind == "" {
			return fmt.Errorf("context event for session %s is missing source or kind", event.SessionID)
		}
		return nil
	default:
		return fmt.Errorf("unknown session event type %q", event.Type)
	}
}
