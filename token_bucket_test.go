package decider

import (
	"context"
	"testing"
	"time"
)

func TestDecideTokenBucket_AllowsUpToCapacity(t *testing.T) {
	ctx := context.Background()
	clock := NewFakeClock(0)
	engine := New(WithClock(clock))

	for i := 0; i < 5; i++ {
		env, err := engine.DecideTokenBucket(ctx, "user:1", 5, 1)
		if err != nil || !env.Allowed {
			t.Fatalf("call %d: envelope=%+v err=%v", i, env, err)
		}
	}
	env, err := engine.DecideTokenBucket(ctx, "user:1", 5, 1)
	if err != nil {
		t.Fatalf("call 6: %v", err)
	}
	if env.Allowed {
		t.Error("6th call should be denied once the bucket is drained")
	}
}

func TestDecideTokenBucket_RefillsOverTime(t *testing.T) {
	ctx := context.Background()
	clock := NewFakeClock(0)
	engine := New(WithClock(clock))

	for i := 0; i < 3; i++ {
		if env, err := engine.DecideTokenBucket(ctx, "user:1", 3, 1); err != nil || !env.Allowed {
			t.Fatalf("drain call %d: envelope=%+v err=%v", i, env, err)
		}
	}
	if env, _ := engine.DecideTokenBucket(ctx, "user:1", 3, 1); env.Allowed {
		t.Fatal("bucket should be empty")
	}

	clock.Advance(2)
	env, err := engine.DecideTokenBucket(ctx, "user:1", 3, 1)
	if err != nil || !env.Allowed {
		t.Fatalf("after refill: envelope=%+v err=%v", env, err)
	}
}

func TestDecideTokenBucket_RetryAfterIsCeilOfInverseRefillRate(t *testing.T) {
	// Spec §4.5 / original_source rate_limit.py: Retry-After for token
	// bucket is ceil(1/refill_rate), independent of how large the token
	// deficit was on the denied call.
	ctx := context.Background()
	clock := NewFakeClock(0)
	engine := New(WithClock(clock))

	engine.DecideTokenBucket(ctx, "user:1", 1, 4)
	env, err := engine.DecideTokenBucket(ctx, "user:1", 1, 4)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if env.Allowed {
		t.Fatal("expected denial")
	}
	if want := time.Second; env.RetryAfter != want {
		t.Errorf("RetryAfter = %v, want %v (ceil(1/4)=1s)", env.RetryAfter, want)
	}
}

func TestDecideTokenBucket_DoesNotFabricateTokensOnBackwardClockJump(t *testing.T) {
	ctx := context.Background()
	clock := NewFakeClock(100)
	engine := New(WithClock(clock))

	for i := 0; i < 2; i++ {
		engine.DecideTokenBucket(ctx, "user:1", 2, 1)
	}
	clock.Advance(-50) // backward jump
	env, err := engine.DecideTokenBucket(ctx, "user:1", 2, 1)
	if err != nil {
		t.Fatalf("call after backward jump: %v", err)
	}
	if env.Allowed {
		t.Error("a backward clock jump must not manufacture tokens")
	}
}

func TestDecideTokenBucket_SubjectsAreIsolated(t *testing.T) {
	ctx := context.Background()
	engine := New(WithClock(NewFakeClock(0)))

	engine.DecideTokenBucket(ctx, "user:1", 1, 1)
	env, err := engine.DecideTokenBucket(ctx, "user:2", 1, 1)
	if err != nil || !env.Allowed {
		t.Fatalf("independent subject should have its own bucket: envelope=%+v err=%v", env, err)
	}
}

func TestDecideTokenBucket_RejectsInvalidParams(t *testing.T) {
	ctx := context.Background()
	engine := New()

	if _, err := engine.DecideTokenBucket(ctx, "user:1", 0, 1); err == nil {
		t.Error("expected error for non-positive capacity")
	}
	if _, err := engine.DecideTokenBucket(ctx, "user:1", 1, 0); err == nil {
		t.Error("expected error for non-positive refill_rate")
	}
}

func TestDecideTokenBucket_FractionalTokensArePreserved(t *testing.T) {
	ctx := context.Background()
	clock := NewFakeClock(0)
	engine := New(WithClock(clock))

	engine.DecideTokenBucket(ctx, "user:1", 10, 1) // tokens: 10 -> 9
	clock.Advance(0.5)
	env, err := engine.DecideTokenBucket(ctx, "user:1", 10, 1) // 9 + 0.5 refill - 1 = 8.5
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if env.Remaining != 8.5 {
		t.Errorf("Remaining = %v, want 8.5 (fractional tokens must not be truncated)", env.Remaining)
	}
}
