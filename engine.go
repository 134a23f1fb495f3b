// Package decider implements a distributed rate-limit decision engine: see
// doc.go for the package overview.
package decider

import (
	"context"
	"fmt"
	"hash/maphash"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ratelimitd/decider/store"
	redisstore "github.com/ratelimitd/decider/store/redis"
)

// Envelope is the result of a single decision. It is returned by every
// Decide* call regardless of algorithm.
type Envelope struct {
	// Allowed reports whether the request may proceed.
	Allowed bool
	// Remaining is the capacity left after this decision, in the unit the
	// algorithm tracks (fractional tokens for token bucket, fractional
	// water level for leaky bucket, integer count for sliding window).
	Remaining float64
	// Limit echoes the configured capacity/max-requests for this call.
	Limit float64
	// RetryAfter is how long the caller should wait before retrying, valid
	// only when Allowed is false.
	RetryAfter time.Duration
}

// Options configures an Engine. Use the With* functions rather than
// constructing this directly.
type Options struct {
	RedisClient goredis.UniversalClient
	Store       store.Store
	KeyPrefix   string
	FailOpen    bool
	Clock       Clock
	Logger      *zap.Logger
}

// Option configures an Engine at construction time.
type Option func(*Options)

// WithRedis backs the engine with Redis via a redis.UniversalClient,
// supporting standalone, Cluster, and Sentinel deployments. This is the
// production configuration: scripts run as single atomic Redis EVAL calls,
// so concurrent deciders across replicas never interleave updates to the
// same key (spec §5).
func WithRedis(client goredis.UniversalClient) Option {
	return func(o *Options) {
		o.Store = redisstore.New(client)
	}
}

// WithStore backs the engine with any store.Store implementation, for
// backends other than Redis or for tests that want to observe store calls
// directly.
func WithStore(s store.Store) Option {
	return func(o *Options) {
		o.Store = s
	}
}

// WithKeyPrefix namespaces every key the engine writes, useful for sharing
// one Redis instance across environments or services.
func WithKeyPrefix(prefix string) Option {
	return func(o *Options) {
		o.KeyPrefix = prefix
	}
}

// WithFailOpen makes the engine return Allowed=true when the store is
// unreachable, instead of surfacing a StoreUnavailableError. Off by default:
// callers should choose fail-open vs. fail-closed deliberately (spec §7).
func WithFailOpen(failOpen bool) Option {
	return func(o *Options) {
		o.FailOpen = failOpen
	}
}

// WithClock overrides the engine's time source. Tests inject a [FakeClock]
// to assert refill/leak/window behavior deterministically.
func WithClock(c Clock) Option {
	return func(o *Options) {
		o.Clock = c
	}
}

// WithLogger attaches a zap logger for store errors and fail-open events.
// Defaults to zap.NewNop() — the engine is silent unless a logger is given.
func WithLogger(l *zap.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// Engine executes rate-limit decisions against a store. It is safe for
// concurrent use by multiple goroutines, and typically constructed once per
// process and shared across all request handlers.
type Engine struct {
	store     store.Store
	keyPrefix string
	failOpen  bool
	clock     Clock
	logger    *zap.Logger

	// keyLocks guards the in-memory fallback path (store.Eval returning
	// ErrScriptNotSupported): the store itself has no atomic scripting, so
	// the engine serializes read-modify-write sequences per key here
	// instead. Sharded to bound contention across unrelated keys.
	keyLocks [256]sync.Mutex
}

// New constructs an Engine. With no options, it runs entirely in-process
// against a private in-memory store — suitable for tests and single-replica
// deployments, but decisions are not shared across processes.
func New(opts ...Option) *Engine {
	o := &Options{
		KeyPrefix: "ratelimit",
		Clock:     RealClock{},
		Logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.Store == nil {
		o.Store = defaultMemoryStore()
	}
	return &Engine{
		store:     o.Store,
		keyPrefix: o.KeyPrefix,
		failOpen:  o.FailOpen,
		clock:     o.Clock,
		logger:    o.Logger,
	}
}

func (e *Engine) fullKey(family, subject string) string {
	return fmt.Sprintf("%s:%s:%s", e.keyPrefix, family, subject)
}

// lockFor returns the mutex guarding fallback read-modify-write sequences
// for the given key, hashed into a fixed-size shard set.
func (e *Engine) lockFor(key string) *sync.Mutex {
	var h maphash.Hash
	h.SetSeed(lockSeed)
	_, _ = h.WriteString(key)
	return &e.keyLocks[h.Sum64()%uint64(len(e.keyLocks))]
}

var lockSeed = maphash.MakeSeed()

func (e *Engine) failOpenEnvelope(limit float64) Envelope {
	return Envelope{Allowed: true, Remaining: limit, Limit: limit}
}

func (e *Engine) logStoreError(algorithm, subject string, err error) {
	e.logger.Warn("store call failed",
		zap.String("algorithm", algorithm),
		zap.String("subject", subject),
		zap.Error(err),
	)
}

// Close releases resources held by the engine's store.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Ping reports whether the engine's backing store is reachable, for health
// checks (§4.5).
func (e *Engine) Ping(ctx context.Context) error {
	return e.store.Ping(ctx)
}
