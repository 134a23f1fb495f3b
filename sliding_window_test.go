package decider

import (
	"context"
	"testing"
	"time"
)

func TestDecideSlidingWindow_AllowsExactlyMaxRequests(t *testing.T) {
	ctx := context.Background()
	clock := NewFakeClock(0)
	engine := New(WithClock(clock))

	allowed := 0
	for i := 0; i < 12; i++ {
		env, err := engine.DecideSlidingWindow(ctx, "user:1", 10, 60)
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if env.Allowed {
			allowed++
		}
	}
	if allowed != 10 {
		t.Errorf("allowed = %d, want exactly 10 of 12 rapid requests", allowed)
	}
}

func TestDecideSlidingWindow_ResetsAfterWindowElapses(t *testing.T) {
	ctx := context.Background()
	clock := NewFakeClock(0)
	engine := New(WithClock(clock))

	for i := 0; i < 3; i++ {
		engine.DecideSlidingWindow(ctx, "user:1", 3, 60)
	}
	if env, _ := engine.DecideSlidingWindow(ctx, "user:1", 3, 60); env.Allowed {
		t.Fatal("window should be full")
	}

	clock.Advance(61)
	env, err := engine.DecideSlidingWindow(ctx, "user:1", 3, 60)
	if err != nil || !env.Allowed {
		t.Fatalf("after window elapses: envelope=%+v err=%v", env, err)
	}
}

func TestDecideSlidingWindow_SubjectsAreIsolated(t *testing.T) {
	ctx := context.Background()
	engine := New(WithClock(NewFakeClock(0)))

	engine.DecideSlidingWindow(ctx, "user:1", 1, 60)
	env, err := engine.DecideSlidingWindow(ctx, "user:2", 1, 60)
	if err != nil || !env.Allowed {
		t.Fatalf("independent subject should have its own window: envelope=%+v err=%v", env, err)
	}
}

func TestDecideSlidingWindow_SameInstantCallsDoNotCollide(t *testing.T) {
	// Regression test for the member-collision bug this algorithm is
	// ported with a fix for (spec §9): scoring every member by `now` alone
	// means two calls landing on the identical timestamp would overwrite
	// one another in the sorted set unless each gets a distinguishing
	// nonce. Simulate "same instant" with a clock that never advances.
	ctx := context.Background()
	clock := NewFakeClock(42)
	engine := New(WithClock(clock))

	allowed := 0
	for i := 0; i < 5; i++ {
		env, err := engine.DecideSlidingWindow(ctx, "user:1", 5, 60)
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if env.Allowed {
			allowed++
		}
	}
	if allowed != 5 {
		t.Errorf("allowed = %d, want 5 — same-instant calls must not collide and evict one another", allowed)
	}
}

func TestDecideSlidingWindow_RetryAfterIsWindowSize(t *testing.T) {
	// Spec §4.5 / original_source rate_limit.py: Retry-After for sliding
	// window is window_size itself (rounded up), not derived from the
	// oldest member's age — and must agree between the scripted and
	// in-memory-fallback code paths for an identical deny.
	ctx := context.Background()
	clock := NewFakeClock(0)
	engine := New(WithClock(clock))

	engine.DecideSlidingWindow(ctx, "user:1", 1, 30)
	env, err := engine.DecideSlidingWindow(ctx, "user:1", 1, 30)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if env.Allowed {
		t.Fatal("expected denial")
	}
	if want := 30 * time.Second; env.RetryAfter != want {
		t.Errorf("RetryAfter = %v, want %v (window_size=30s)", env.RetryAfter, want)
	}
}

func TestDecideSlidingWindow_RejectsInvalidParams(t *testing.T) {
	ctx := context.Background()
	engine := New()

	if _, err := engine.DecideSlidingWindow(ctx, "user:1", 0, 60); err == nil {
		t.Error("expected error for non-positive max_requests")
	}
	if _, err := engine.DecideSlidingWindow(ctx, "user:1", 1, 0); err == nil {
		t.Error("expected error for non-positive window_size")
	}
}
