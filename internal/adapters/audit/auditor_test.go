package audit

import (
	"context"
	"testing"
	"time"

	"github.com/kirillkom/context-assistant/internal/core/domain"
)

type metricsFake struct {
	started     int
	finished    map[string]int
	failed      int
	lags        []time.Duration
	extractions []string
}

func (m *metricsFake) StartItem() { m.started++ }

func (m *metricsFake) FinishItem(kind string, _ time.Duration, err error) {
	if m.finished == nil {
		m.finished = make(map[string]int)
	}
	m.finished[kind]++
	if err != nil {
		m.failed++
	}
}

func (m *metricsFake) ObserveLag(lag time.Duration) { m.lags = append(m.lags, lag) }

func (m *metricsFake) RecordExtraction(source, kind string) {
	m.extractions = append(m.extractions, source+"/"+kind)
}

func TestHandleRecordsLagAndExtraction(t *testing.T) {
	fake := &metricsFake{}
	auditor := NewAuditor(fake)
	published := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	auditor.now = func() time.Time { return published.Add(1500 * time.Millisecond) }

	err := auditor.Handle(context.Background(), domain.SessionEvent{
		Type:      domain.EventContextAdded,
		SessionID: "s-1",
		At:        published,
		Source:    domain.SourcePage,
		Kind:      domain.ExtractionError,
	})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if fake.started != 1 || fake.finished[string(domain.EventContextAdded)] != 1 || fake.failed != 0 {
		t.Fatalf("unexpected item accounting %+v", fake)
	}
	if len(fake.lags) != 1 || fake.lags[0] != 1500*time.Millisecond {
		t.Fatalf("unexpected lag %v", fake.lags)
	}
	if len(fake.extractions) != 1 || fake.extractions[0] != "page/error" {
		t.Fatalf("unexpected extractions %v", fake.extractions)
	}
}

func TestHandleRejectsUnknownAndIncompleteEvents(t *testing.T) {
	fake := &metricsFake{}
	auditor := NewAuditor(fake)

	if err := auditor.Handle(context.Background(), domain.SessionEvent{Type: "session.exploded", SessionID: "s"}); err == nil {
		t.Fatalf("expected error for unknown type")
	}
	if err := auditor.Handle(context.Background(), domain.SessionEvent{Type: domain.EventContextAdded, SessionID: "s"}); err == nil {
		t.Fatalf("expected error for context event without source")
	}
	if fake.failed != 2 || len(fake.extractions) != 0 {
		t.Fatalf("unexpected accounting %+v", fake)
	}
	if len(fake.lags) != 0 {
		t.Fatalf("lag must not be observed without a timestamp")
	}
}

func TestHandleWithoutMetrics(t *testing.T) {
	auditor := NewAuditor(nil)
	if err := auditor.Handle(context.Background(), domain.SessionEvent{Type: domain.EventSessionReset, SessionID: "s"}); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
}
