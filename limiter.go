package decider

import "context"

// Limiter binds one algorithm and its parameters to an Engine, for callers
// that want a single reusable value to pass into the framework middleware
// adapters (middleware/ginmw, middleware/echomw, middleware/fibermw,
// middleware/grpcmw) rather than calling Engine.Decide* with the same
// capacity/rate at every call site.
type Limiter interface {
	// Check decides one unit of work for subject.
	Check(ctx context.Context, subject string) (Envelope, error)
	// CheckN decides n units of work for subject in a single call.
	CheckN(ctx context.Context, subject string, n float64) (Envelope, error)
	// Reset clears all rate limit state for subject.
	Reset(ctx context.Context, subject string) error
}

type tokenBucketLimiter struct {
	engine     *Engine
	capacity   float64
	refillRate float64
}

// NewTokenBucketLimiter returns a Limiter applying the token bucket
// algorithm with the given capacity and refillRate against engine.
func NewTokenBucketLimiter(engine *Engine, capacity, refillRate float64) Limiter {
	return &tokenBucketLimiter{engine: engine, capacity: capacity, refillRate: refillRate}
}

func (l *tokenBucketLimiter) Check(ctx context.Context, subject string) (Envelope, error) {
	return l.engine.decideTokenBucketN(ctx, subject, l.capacity, l.refillRate, 1)
}

func (l *tokenBucketLimiter) CheckN(ctx context.Context, subject string, n float64) (Envelope, error) {
	return l.engine.decideTokenBucketN(ctx, subject, l.capacity, l.refillRate, n)
}

func (l *tokenBucketLimiter) Reset(ctx context.Context, subject string) error {
	return l.engine.store.Del(ctx, l.engine.fullKey("tb", subject))
}

type leakyBucketLimiter struct {
	engine   *Engine
	capacity float64
	leakRate float64
}

// NewLeakyBucketLimiter returns a Limiter applying the leaky bucket
// algorithm with the given capacity and leakRate against engine.
func NewLeakyBucketLimiter(engine *Engine, capacity, leakRate float64) Limiter {
	return &leakyBucketLimiter{engine: engine, capacity: capacity, leakRate: leakRate}
}

func (l *leakyBucketLimiter) Check(ctx context.Context, subject string) (Envelope, error) {
	return l.engine.decideLeakyBucketN(ctx, subject, l.capacity, l.leakRate, 1)
}

func (l *leakyBucketLimiter) CheckN(ctx context.Context, subject string, n float64) (Envelope, error) {
	return l.engine.decideLeakyBucketN(ctx, subject, l.capacity, l.leakRate, n)
}

func (l *leakyBucketLimiter) Reset(ctx context.Context, subject string) error {
	return l.engine.store.Del(ctx, l.engine.fullKey("lb", subject))
}

type slidingWindowLimiter struct {
	engine        *Engine
	maxRequests   float64
	windowSeconds float64
}

// NewSlidingWindowLimiter returns a Limiter admitting at most maxRequests
// per trailing window of windowSeconds against engine.
func NewSlidingWindowLimiter(engine *Engine, maxRequests, windowSeconds float64) Limiter {
	return &slidingWindowLimiter{engine: engine, maxRequests: maxRequests, windowSeconds: windowSeconds}
}

func (l *slidingWindowLimiter) Check(ctx context.Context, subject string) (Envelope, error) {
	return l.engine.DecideSlidingWindow(ctx, subject, l.maxRequests, l.windowSeconds)
}

func (l *slidingWindowLimiter) CheckN(ctx context.Context, subject string, n float64) (Envelope, error) {
	// The sliding window log records one member per admitted unit; n calls
	// to Check accomplish the same thing n times over, so CheckN simply
	// repeats the single-unit decision rather than special-casing batches.
	var last Envelope
	for i := float64(0); i < n; i++ {
		env, err := l.engine.DecideSlidingWindow(ctx, subject, l.maxRequests, l.windowSeconds)
		if err != nil || !env.Allowed {
			return env, err
		}
		last = env
	}
	return last, nil
}

func (l *slidingWindowLimiter) Reset(ctx context.Context, subject string) error {
	return l.engine.store.Del(ctx, l.engine.fullKey("sw", subject))
}
