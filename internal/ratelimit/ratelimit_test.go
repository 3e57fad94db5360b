package ratelimit

import (
	"context"
	"testing"
)

func TestCheckAndIncrement_AllowsWithinWindow(t *testing.T) {
	l := New(Config{MaxPerMinute: 2, MaxPerHour: 100, MaxPerDay: 1000, Enabled: true})
	ctx := context.Background()

	ok, reason, err := l.CheckAndIncrement(ctx, "agent_1")
	if err != nil || !ok || reason != "" {
		t.Fatalf("first request: ok=%v reason=%q err=%v", ok, reason, err)
	}
	ok, reason, err = l.CheckAndIncrement(ctx, "agent_1")
	if err != nil || !ok || reason != "" {
		t.Fatalf("second request: ok=%v reason=%q err=%v", ok, reason, err)
	}
}

func TestCheckAndIncrement_RejectsOverMinuteLimit(t *testing.T) {
	l := New(Config{MaxPerMinute: 1, MaxPerHour: 100, MaxPerDay: 1000, Enabled: true})
	ctx := context.Background()

	if ok, _, _ := l.CheckAndIncrement(ctx, "agent_1"); !ok {
		t.Fatal("expected first request to be allowed")
	}
	ok, reason, err := l.CheckAndIncrement(ctx, "agent_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok || reason != "rate_limit_minute" {
		t.Fatalf("expected rate_limit_minute, got ok=%v reason=%q", ok, reason)
	}
}

func TestCheckAndIncrement_IndependentPerKey(t *testing.T) {
	l := New(Config{MaxPerMinute: 1, MaxPerHour: 100, MaxPerDay: 1000, Enabled: true})
	ctx := context.Background()

	if ok, _, _ := l.CheckAndIncrement(ctx, "agent_1"); !ok {
		t.Fatal("expected agent_1 first request allowed")
	}
	if ok, _, _ := l.CheckAndIncrement(ctx, "agent_2"); !ok {
		t.Fatal("expected agent_2 to have its own independent window")
	}
}

func TestCheckAndIncrement_DisabledAlwaysAllows(t *testing.T) {
	l := New(Config{MaxPerMinute: 0, Enabled: false})
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if ok, _, _ := l.CheckAndIncrement(ctx, "agent_1"); !ok {
			t.Fatalf("expected disabled limiter to always allow, failed at iteration %d", i)
		}
	}
}

func TestReset_ClearsState(t *testing.T) {
	l := New(Config{MaxPerMinute: 1, MaxPerHour: 100, MaxPerDay: 1000, Enabled: true})
	ctx := context.Background()

	_, _, _ = l.CheckAndIncrement(ctx, "agent_1")
	if ok, _, _ := l.CheckAndIncrement(ctx, "agent_1"); ok {
		t.Fatal("expected second request to be rate limited before reset")
	}
	l.Reset("agent_1")
	if ok, _, _ := l.CheckAndIncrement(ctx, "agent_1"); !ok {
		t.Fatal("expected request to be allowed after reset")
	}
}
