// Package decider implements a distributed rate-limit decision engine.
//
// It answers "may this subject perform one more unit of work right now?"
// under a caller-supplied policy, sharing decisions across every replica of
// a service via a central store. Three algorithms are supported — token
// bucket, leaky bucket, and sliding window — each executed as a single
// atomic operation against the store so that concurrent deciders never
// interleave updates to the same key.
//
// # Quick Start
//
//	engine := decider.New(decider.WithRedis(redisClient))
//	envelope, err := engine.DecideTokenBucket(ctx, "user:42:endpoint:/orders", 100, 10)
//	if envelope.Allowed {
//	    // proceed
//	}
//
// With no store configured, the engine runs entirely in-process, useful for
// tests and single-replica deployments:
//
//	engine := decider.New()
//
// # Algorithms
//
//   - Token Bucket — steady refill, burst-friendly
//   - Leaky Bucket — constant drain, hard rejection on overflow
//   - Sliding Window — precise event log over a trailing window
//
// All three return an [Envelope] with Allowed and Remaining. By default a
// store failure surfaces as [StoreUnavailableError]; invalid parameters
// surface as [BadRequestError]. The engine makes no local decision on a
// store failure unless the caller opts in with [WithFailOpen], in which case
// it returns Allowed=true instead of the error.
package decider
