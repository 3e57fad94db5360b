package replay

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStore_CheckAndStore_FirstInsertAccepted(t *testing.T) {
	s := NewMemoryStore()
	ok, err := s.CheckAndStore(context.Background(), "mandate_1", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected first insert to be accepted")
	}
}

func TestMemoryStore_CheckAndStore_RejectsActiveDuplicate(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	expiry := time.Now().Add(time.Hour)

	if ok, _ := s.CheckAndStore(ctx, "mandate_1", expiry); !ok {
		t.Fatal("expected first insert accepted")
	}
	ok, err := s.CheckAndStore(ctx, "mandate_1", expiry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected duplicate within TTL to be rejected")
	}
}

func TestMemoryStore_CheckAndStore_RenewsExpiredEntry(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	past := time.Now().Add(-time.Minute)

	if ok, _ := s.CheckAndStore(ctx, "mandate_1", past); !ok {
		t.Fatal("expected first insert accepted")
	}
	// CheckAndStore replaces a past expiry with the default TTL, so the
	// entry is aged past its expiry directly.
	s.entries["mandate_1"] = past
	ok, err := s.CheckAndStore(ctx, "mandate_1", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected renewal of an expired entry to be accepted")
	}
}

func TestMemoryStore_Cleanup_RemovesOnlyExpired(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	s.entries["expired"] = now.Add(-time.Minute)
	_, _ = s.CheckAndStore(ctx, "active", now.Add(time.Hour))

	removed, err := s.Cleanup(ctx, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed != 1 {
		t.Fatalf("Cleanup() removed = %d, want 1", removed)
	}
	if _, stillThere := s.entries["active"]; !stillThere {
		t.Error("expected active entry to survive cleanup")
	}
}

func TestWebhookGuard_SeenTracksProviderEventPair(t *testing.T) {
	g := NewWebhookGuard(NewMemoryStore())
	ctx := context.Background()

	seen, err := g.Seen(ctx, "lithic", "evt_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen {
		t.Fatal("expected first occurrence to be unseen")
	}

	seen, err = g.Seen(ctx, "lithic", "evt_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !seen {
		t.Fatal("expected duplicate event to be reported seen")
	}

	// Different provider with the same event id is a distinct key.
	seen, err = g.Seen(ctx, "stripe", "evt_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen {
		t.Fatal("expected distinct provider to be unseen")
	}
}
