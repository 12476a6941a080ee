package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/context-assistant/internal/core/domain"
	"github.com/kirillkom/context-assistant/internal/infrastructure/resilience"
)

func testExecutor() *resilience.Executor {
	return resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
		RetryMultiplier:     1,
	}, nil)
}

func TestCompleteSendsRoleTaggedMessages(t *testing.T) {
	var captured chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"model":"llama3","message":{"role":"assistant","content":"  Paris \n"},"done":true}`))
	}))
	defer server.Close()

	client := New(server.URL+"/", "llama3", time.Second, testExecutor())
	reply, err := client.Complete(context.Background(), []domain.PromptMessage{
		{Role: domain.RoleSystem, Content: "ctx"},
		{Role: domain.RoleUser, Content: "capital of France?"},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if reply != "  Paris \n" {
		t.Fatalf("expected reply returned unchanged, got %q", reply)
	}
	if captured.Model != "llama3" || captured.Stream {
		t.Fatalf("unexpected request %+v", captured)
	}
	if len(captured.Messages) != 2 || captured.Messages[0].Role != "system" || captured.Messages[1].Content != "capital of France?" {
		t.Fatalf("unexpected messages %+v", captured.Messages)
	}
}

func TestCompleteRetriesBusyServer(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "server busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"ok"}}`))
	}))
	defer server.Close()

	reply, err := New(server.URL, "m", time.Second, testExecutor()).Complete(context.Background(), nil)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if reply != "ok" || calls.Load() != 2 {
		t.Fatalf("expected one retry, got reply %q after %d calls", reply, calls.Load())
	}
}

func TestCompleteIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model 'missing' not found", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := New(server.URL, "missing", time.Second, testExecutor()).Complete(context.Background(), nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model 'missing' not found") {
		t.Fatalf("expected response body in error, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrUpstream) {
		t.Fatalf("expected upstream kind, got %v", err)
	}
}
