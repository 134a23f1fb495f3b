package decider

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"math"
	"strconv"
	"time"

	"github.com/ratelimitd/decider/store"
)

// slidingWindowScript implements the sliding window log algorithm (spec
// §4.4): every admitted call's timestamp is recorded in a sorted set;
// members with score <= now-window are evicted before counting.
//
// The reference this is ported from runs ZREMRANGEBYSCORE, ZCARD, and ZADD
// as three separate round trips, which is not atomic — two concurrent
// calls can both observe room under the limit and both add, overrunning
// maxRequests. This script performs the whole decision as one Redis EVAL so
// it's atomic across replicas (spec §5). It also fixes a dedup bug in that
// same reference: scoring every member by `now` with no distinguishing
// component means two calls arriving in the same instant collide in the
// set and only one survives ZADD. The caller passes a per-call nonce
// (ARGV[4]) so same-millisecond calls remain distinct members.
const slidingWindowScript = `
local key = KEYS[1]
local max_requests = tonumber(ARGV[1])
local window_seconds = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local member = ARGV[4]

local window_start = now - window_seconds
redis.call('ZREMRANGEBYSCORE', key, '-inf', tostring(window_start))

local count = redis.call('ZCARD', key)

local allowed = 0
local retry_after = 0

if count < max_requests then
  redis.call('ZADD', key, now, member)
  redis.call('EXPIRE', key, math.ceil(window_seconds) + 1)
  count = count + 1
  allowed = 1
else
  retry_after = math.ceil(window_seconds)
end

local remaining = max_requests - count
if remaining < 0 then
  remaining = 0
end

return { allowed, remaining, retry_after }
`

func validateSlidingWindowParams(maxRequests, windowSeconds float64) error {
	if maxRequests <= 0 {
		return badRequest("sliding window max_requests must be positive, got %v", maxRequests)
	}
	if windowSeconds <= 0 {
		return badRequest("sliding window window_size must be positive, got %v", windowSeconds)
	}
	return nil
}

// DecideSlidingWindow applies the sliding window log algorithm for one
// request from subject, admitting at most maxRequests per trailing window
// of windowSeconds.
func (e *Engine) DecideSlidingWindow(ctx context.Context, subject string, maxRequests float64, windowSeconds float64) (Envelope, error) {
	if err := validateSlidingWindowParams(maxRequests, windowSeconds); err != nil {
		return Envelope{}, err
	}

	key := e.fullKey("sw", subject)
	now := e.clock.Now()
	member, err := newNonce()
	if err != nil {
		return Envelope{}, storeUnavailable("sliding_window", err)
	}

	reply, err := e.store.Eval(ctx, slidingWindowScript, []string{key}, maxRequests, windowSeconds, now, member)
	if _, unsupported := err.(*store.ErrScriptNotSupported); unsupported {
		return e.slidingWindowFallback(ctx, key, maxRequests, windowSeconds, now, member)
	}
	if err != nil {
		e.logStoreError("sliding_window", subject, err)
		if e.failOpen {
			return e.failOpenEnvelope(maxRequests), nil
		}
		return Envelope{}, storeUnavailable("sliding_window", err)
	}

	vals, ok := reply.([]interface{})
	if !ok || len(vals) != 3 {
		return Envelope{}, storeUnavailable("sliding_window", errUnexpectedReply)
	}

	return Envelope{
		Allowed:    toInt64(vals[0]) == 1,
		Remaining:  float64(toInt64(vals[1])),
		Limit:      maxRequests,
		RetryAfter: time.Duration(toInt64(vals[2])) * time.Second,
	}, nil
}

// slidingWindowFallback re-implements the script's logic against a store
// without scripting support, guarded by a per-key mutex.
func (e *Engine) slidingWindowFallback(ctx context.Context, key string, maxRequests, windowSeconds, now float64, member string) (Envelope, error) {
	lock := e.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	windowStart := now - windowSeconds
	if err := e.store.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatFloat(windowStart, 'f', -1, 64)); err != nil {
		if e.failOpen {
			return e.failOpenEnvelope(maxRequests), nil
		}
		return Envelope{}, storeUnavailable("sliding_window", err)
	}

	count, err := e.store.ZCard(ctx, key)
	if err != nil {
		if e.failOpen {
			return e.failOpenEnvelope(maxRequests), nil
		}
		return Envelope{}, storeUnavailable("sliding_window", err)
	}

	if float64(count) >= maxRequests {
		retryAfter := time.Duration(math.Ceil(windowSeconds)) * time.Second
		return Envelope{
			Allowed:    false,
			Remaining:  0,
			Limit:      maxRequests,
			RetryAfter: retryAfter,
		}, nil
	}

	if err := e.store.ZAdd(ctx, key, now, member); err != nil {
		if e.failOpen {
			return e.failOpenEnvelope(maxRequests), nil
		}
		return Envelope{}, storeUnavailable("sliding_window", err)
	}
	if err := e.store.Expire(ctx, key, time.Duration(math.Ceil(windowSeconds)+1)*time.Second); err != nil {
		e.logStoreError("sliding_window", key, err)
	}

	remaining := maxRequests - float64(count) - 1
	if remaining < 0 {
		remaining = 0
	}
	return Envelope{
		Allowed:   true,
		Remaining: remaining,
		Limit:     maxRequests,
	}, nil
}

// newNonce generates a short random hex string distinguishing concurrent
// calls landing on the same score (spec §9 sliding window dedup fix).
func newNonce() (string, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}

