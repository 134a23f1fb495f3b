package decider

import (
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ratelimitd/decider/store"
)

type algorithm int

const (
	algoNone algorithm = iota
	algoTokenBucket
	algoLeakyBucket
	algoSlidingWindow
)

// Builder provides a fluent API for constructing a Limiter.
//
//	limiter, err := decider.NewBuilder().
//	    TokenBucket(100, 10).
//	    Redis(client).
//	    Build()
type Builder struct {
	algo algorithm
	opts []Option

	// token bucket
	tbCapacity   float64
	tbRefillRate float64

	// leaky bucket
	lbCapacity float64
	lbLeakRate float64

	// sliding window
	swMaxRequests   float64
	swWindowSeconds float64
}

// NewBuilder returns a new Builder with default options.
func NewBuilder() *Builder {
	return &Builder{}
}

// ─── Algorithm selectors ─────────────────────────────────────────────────────

// TokenBucket configures a Token Bucket algorithm. capacity is the burst
// size; refillRate is tokens added per second.
func (b *Builder) TokenBucket(capacity, refillRate float64) *Builder {
	b.algo = algoTokenBucket
	b.tbCapacity = capacity
	b.tbRefillRate = refillRate
	return b
}

// LeakyBucket configures a Leaky Bucket algorithm. capacity is the bucket
// size; leakRate is units leaked per second.
func (b *Builder) LeakyBucket(capacity, leakRate float64) *Builder {
	b.algo = algoLeakyBucket
	b.lbCapacity = capacity
	b.lbLeakRate = leakRate
	return b
}

// SlidingWindow configures a Sliding Window Log algorithm. maxRequests is
// the limit per window; windowSeconds is the window duration in seconds.
func (b *Builder) SlidingWindow(maxRequests, windowSeconds float64) *Builder {
	b.algo = algoSlidingWindow
	b.swMaxRequests = maxRequests
	b.swWindowSeconds = windowSeconds
	return b
}

// ─── Option setters ──────────────────────────────────────────────────────────

// Redis sets the Redis backend. Accepts any redis.UniversalClient.
func (b *Builder) Redis(client goredis.UniversalClient) *Builder {
	b.opts = append(b.opts, WithRedis(client))
	return b
}

// Store sets a custom store.Store backend.
func (b *Builder) Store(s store.Store) *Builder {
	b.opts = append(b.opts, WithStore(s))
	return b
}

// KeyPrefix sets the prefix prepended to all storage keys.
func (b *Builder) KeyPrefix(prefix string) *Builder {
	b.opts = append(b.opts, WithKeyPrefix(prefix))
	return b
}

// FailOpen sets the fail-open/fail-closed behavior when the backend is
// unreachable.
func (b *Builder) FailOpen(v bool) *Builder {
	b.opts = append(b.opts, WithFailOpen(v))
	return b
}

// Clock overrides the engine's time source, for deterministic tests.
func (b *Builder) Clock(c Clock) *Builder {
	b.opts = append(b.opts, WithClock(c))
	return b
}

// ─── Build ───────────────────────────────────────────────────────────────────

// Build validates the configuration and returns the configured Limiter.
func (b *Builder) Build() (Limiter, error) {
	switch b.algo {
	case algoTokenBucket:
		if err := validateTokenBucketParams(b.tbCapacity, b.tbRefillRate); err != nil {
			return nil, err
		}
		return NewTokenBucketLimiter(New(b.opts...), b.tbCapacity, b.tbRefillRate), nil
	case algoLeakyBucket:
		if err := validateLeakyBucketParams(b.lbCapacity, b.lbLeakRate); err != nil {
			return nil, err
		}
		return NewLeakyBucketLimiter(New(b.opts...), b.lbCapacity, b.lbLeakRate), nil
	case algoSlidingWindow:
		if err := validateSlidingWindowParams(b.swMaxRequests, b.swWindowSeconds); err != nil {
			return nil, err
		}
		return NewSlidingWindowLimiter(New(b.opts...), b.swMaxRequests, b.swWindowSeconds), nil
	default:
		return nil, fmt.Errorf("decider: no algorithm selected; call TokenBucket, LeakyBucket, or SlidingWindow before Build")
	}
}
