package memory

import (
	"context"
	"testing"
	"time"

	"github.com/kirillkom/context-assistant/internal/core/domain"
)

func TestLoadMissingSessionIsNotFound(t *testing.T) {
	store := NewStore(0)
	_, err := store.Load(context.Background(), "nope")
	if !domain.IsKind(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSaveStoresACopy(t *testing.T) {
	store := NewStore(0)
	ctx := context.Background()
	session := domain.NewSession("s1", time.Now())
	session.AppendMessage(domain.RoleUser, "hi", time.Now())
	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	session.AppendMessage(domain.RoleAssistant, "mutated after save", time.Now())
	loaded, err := store.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(loaded.Messages) != 1 {
		t.Fatalf("expected stored copy to be isolated, got %d messages", len(loaded.Messages))
	}

	loaded.Context.SetNotes("changed by caller")
	again, _ := store.Load(ctx, "s1")
	if again.Context.Notes != "" {
		t.Fatalf("loaded session must not alias the stored one")
	}
}

func TestIdleSessionsExpire(t *testing.T) {
	store := NewStore(time.Minute)
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return clock }
	ctx := context.Background()

	_ = store.Save(ctx, domain.NewSession("old", clock))
	_ = store.Save(ctx, domain.NewSession("fresh", clock))

	clock = clock.Add(50 * time.Second)
	if _, err := store.Load(ctx, "fresh"); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	clock = clock.Add(30 * time.Second)
	if removed := store.Sweep(); removed != 1 {
		t.Fatalf("expected 1 idle session removed, got %d", removed)
	}
	if _, err := store.Load(ctx, "old"); !domain.IsKind(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected expired session to be gone, got %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("expected the touched session to survive, got %d sessions", store.Len())
	}
}

func TestDelete(t *testing.T) {
	store := NewStore(0)
	ctx := context.Background()
	_ = store.Save(ctx, domain.NewSession("s1", time.Now()))
	if err := store.Delete(ctx, "s1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("expected empty store")
	}
}
