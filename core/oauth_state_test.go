package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryOAuthStateStore_ConsumeIsSingleUse(t *testing.T) {
	store := NewMemoryOAuthStateStore(time.Minute)
	ctx := context.Background()

	if err := store.Save(ctx, OAuthStateRecord{State: "state-1", Service: "github", UserID: "u"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	record, err := store.Consume(ctx, " state-1 ")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if record.Service != "github" || record.ExpiresAt.Sub(record.CreatedAt) != time.Minute {
		t.Fatalf("unexpected record %+v", record)
	}
	if _, err := store.Consume(ctx, "state-1"); !errors.Is(err, ErrOAuthStateInvalid) {
		t.Fatalf("expected second consume to fail, got %v", err)
	}
}

func TestMemoryOAuthStateStore_RejectsExpiredAndBlankStates(t *testing.T) {
	store := NewMemoryOAuthStateStore(time.Minute)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := store.Save(ctx, OAuthStateRecord{
		State:     "stale",
		CreatedAt: now.Add(-2 * time.Minute),
		ExpiresAt: now.Add(-time.Minute),
	}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := store.Consume(ctx, "stale"); !errors.Is(err, ErrOAuthStateInvalid) {
		t.Fatalf("expected expired state to be rejected, got %v", err)
	}
	if _, err := store.Consume(ctx, ""); !errors.Is(err, ErrOAuthStateInvalid) {
		t.Fatalf("expected blank state to be rejected, got %v", err)
	}
	if err := store.Save(ctx, OAuthStateRecord{}); err == nil {
		t.Fatalf("expected blank state save to fail")
	}
}

func TestMemoryOAuthStateStore_SaveSweepsAbandonedStates(t *testing.T) {
	store := NewMemoryOAuthStateStore(time.Minute)
	ctx := context.Background()
	clock := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return clock }

	for _, state := range []string{"abandoned-1", "abandoned-2", "abandoned-3"} {
		if err := store.Save(ctx, OAuthStateRecord{State: state, Service: ServiceZoom, UserID: "u"}); err != nil {
			t.Fatalf("save %s: %v", state, err)
		}
	}
	clock = clock.Add(30 * time.Second)
	if err := store.Save(ctx, OAuthStateRecord{State: "pending", Service: ServiceGitHub, UserID: "u"}); err != nil {
		t.Fatalf("save pending: %v", err)
	}
	if len(store.entries) != 4 {
		t.Fatalf("expected unexpired states to be kept, got %d", len(store.entries))
	}

	clock = clock.Add(45 * time.Second)
	if err := store.Save(ctx, OAuthStateRecord{State: "fresh", Service: ServiceZoom, UserID: "u"}); err != nil {
		t.Fatalf("save fresh: %v", err)
	}
	if len(store.entries) != 2 {
		t.Fatalf("expected abandoned states to be swept, got %d entries", len(store.entries))
	}
	if _, err := store.Consume(ctx, "pending"); err != nil {
		t.Fatalf("expected pending state to survive the sweep: %v", err)
	}
	if _, err := store.Consume(ctx, "abandoned-1"); !errors.Is(err, ErrOAuthStateInvalid) {
		t.Fatalf("expected swept state to be unknown, got %v", err)
	}
}

func TestGenerateOAuthState_IsRandomAndURLSafe(t *testing.T) {
	first, err := GenerateOAuthState()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	second, err := GenerateOAuthState()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if first == second || len(first) != 32 {
		t.Fatalf("unexpected states %q %q", first, second)
	}
	for _, r := range first {
		if r == '+' || r == '/' || r == '=' {
			t.Fatalf("expected url-safe state, got %q", first)
		}
	}
}
