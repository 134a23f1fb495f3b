// Package store defines the backend storage contract the decision engine
// consumes: a keyed hash/sorted-set store with server-side atomic scripting
// and key expiration (spec §6, "Store protocol"). Any backend satisfying
// this contract is acceptable; the decider does not depend on Redis
// specifically, only on the primitives this interface names.
//
// store/redis is the production implementation, backed by
// redis.UniversalClient (standalone, Cluster, or Sentinel). store/memory is
// for tests and single-process deployments; it has no real scripting
// engine, so Eval returns ErrScriptNotSupported and the decision engine
// falls back to guarding the same read-modify-write sequence with an
// in-process per-key mutex instead.
package store

import (
	"context"
	"time"
)

// Store abstracts the backend for rate limit state persistence.
// Implementations must be safe for concurrent use.
type Store interface {
	// Eval executes a Lua script atomically with the given keys and args,
	// returning the script's raw reply. Implementations that don't support
	// scripting (e.g. the in-memory store) return ErrScriptNotSupported;
	// callers fall back to the generic hash/sorted-set operations below,
	// guarded by their own per-key locking.
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error)

	// Expire sets a TTL on an existing key.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// HGetAll returns all fields and values of a hash stored at key.
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	// HSet sets fields in a hash stored at key. Values are field/value pairs.
	HSet(ctx context.Context, key string, values ...interface{}) error

	// ZAdd adds a member with score to the sorted set at key.
	ZAdd(ctx context.Context, key string, score float64, member string) error

	// ZCard returns the number of members in the sorted set at key.
	ZCard(ctx context.Context, key string) (int64, error)

	// ZRemRangeByScore removes sorted set members with scores in [min, max].
	ZRemRangeByScore(ctx context.Context, key, min, max string) error

	// Del deletes one or more keys. Used by administrative resets.
	Del(ctx context.Context, keys ...string) error

	// Ping verifies the backend is reachable, for health checks.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}

// ErrScriptNotSupported is returned by Eval when the store doesn't support
// server-side scripting.
type ErrScriptNotSupported struct{}

func (e *ErrScriptNotSupported) Error() string {
	return "store: scripting not supported by this backend"
}
