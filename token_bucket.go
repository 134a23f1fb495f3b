package decider

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/ratelimitd/decider/store"
)

// tokenBucketScript implements the token bucket algorithm (spec §4.2):
// tokens refill continuously at refillRate per second up to capacity; a
// call of cost n is allowed if enough tokens have accumulated.
//
// Two fixes relative to the reference implementation this is ported from
// (see DESIGN.md): elapsed is clamped to zero so a backward clock jump
// never manufactures tokens, and the remaining token count is returned via
// tostring so Redis's float-to-integer RESP conversion doesn't truncate
// fractional tokens.
//
// The key is never expired: it holds the bucket's live state for as long
// as the subject is active, not a rolling window (spec §9, unlike the
// sliding window family).
const tokenBucketScript = `
local key = KEYS[1]
local max_tokens = tonumber(ARGV[1])
local refill_rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local cost = tonumber(ARGV[4])

local data = redis.call('HGETALL', key)
local tokens = max_tokens
local last_refill = now

if #data > 0 then
  local fields = {}
  for i = 1, #data, 2 do
    fields[data[i]] = data[i + 1]
  end
  tokens = tonumber(fields['tokens']) or max_tokens
  last_refill = tonumber(fields['last_refill']) or now
end

local elapsed = now - last_refill
if elapsed < 0 then
  elapsed = 0
end
tokens = math.min(max_tokens, tokens + elapsed * refill_rate)

local allowed = 0
local retry_after = 0

if tokens >= cost then
  tokens = tokens - cost
  allowed = 1
else
  retry_after = math.ceil(1 / refill_rate)
end

redis.call('HSET', key, 'tokens', tostring(tokens), 'last_refill', tostring(now))

return { allowed, tostring(tokens), retry_after }
`

// DecideTokenBucket applies the token bucket algorithm for one unit of work
// from subject, with the given capacity (burst size) and refillRate (tokens
// added per second).
func (e *Engine) DecideTokenBucket(ctx context.Context, subject string, capacity, refillRate float64) (Envelope, error) {
	return e.decideTokenBucketN(ctx, subject, capacity, refillRate, 1)
}

func validateTokenBucketParams(capacity, refillRate float64) error {
	if capacity <= 0 {
		return badRequest("token bucket capacity must be positive, got %v", capacity)
	}
	if refillRate <= 0 {
		return badRequest("token bucket refill_rate must be positive, got %v", refillRate)
	}
	return nil
}

func (e *Engine) decideTokenBucketN(ctx context.Context, subject string, capacity, refillRate float64, cost float64) (Envelope, error) {
	if err := validateTokenBucketParams(capacity, refillRate); err != nil {
		return Envelope{}, err
	}

	key := e.fullKey("tb", subject)
	now := e.clock.Now()

	reply, err := e.store.Eval(ctx, tokenBucketScript, []string{key}, capacity, refillRate, now, cost)
	if _, unsupported := err.(*store.ErrScriptNotSupported); unsupported {
		return e.tokenBucketFallback(ctx, key, capacity, refillRate, now, cost)
	}
	if err != nil {
		e.logStoreError("token_bucket", subject, err)
		if e.failOpen {
			return e.failOpenEnvelope(capacity), nil
		}
		return Envelope{}, storeUnavailable("token_bucket", err)
	}

	return parseTokenBucketReply(reply, capacity)
}

func parseTokenBucketReply(reply interface{}, capacity float64) (Envelope, error) {
	vals, ok := reply.([]interface{})
	if !ok || len(vals) != 3 {
		return Envelope{}, storeUnavailable("token_bucket", errUnexpectedReply)
	}
	allowed := toInt64(vals[0]) == 1
	remaining, _ := strconv.ParseFloat(toString(vals[1]), 64)
	retryAfterSec := toInt64(vals[2])

	return Envelope{
		Allowed:    allowed,
		Remaining:  remaining,
		Limit:      capacity,
		RetryAfter: time.Duration(retryAfterSec) * time.Second,
	}, nil
}

// tokenBucketFallback re-implements the script's logic in Go, guarded by a
// per-key mutex, for stores without scripting support (store.ErrScriptNotSupported).
func (e *Engine) tokenBucketFallback(ctx context.Context, key string, capacity, refillRate, now, cost float64) (Envelope, error) {
	lock := e.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	fields, err := e.store.HGetAll(ctx, key)
	if err != nil {
		if e.failOpen {
			return e.failOpenEnvelope(capacity), nil
		}
		return Envelope{}, storeUnavailable("token_bucket", err)
	}

	tokens := capacity
	lastRefill := now
	if v, ok := fields["tokens"]; ok {
		if parsed, perr := strconv.ParseFloat(v, 64); perr == nil {
			tokens = parsed
		}
	}
	if v, ok := fields["last_refill"]; ok {
		if parsed, perr := strconv.ParseFloat(v, 64); perr == nil {
			lastRefill = parsed
		}
	}

	elapsed := now - lastRefill
	if elapsed < 0 {
		elapsed = 0
	}
	tokens = math.Min(capacity, tokens+elapsed*refillRate)

	var allowed bool
	var retryAfter time.Duration
	if tokens >= cost {
		tokens -= cost
		allowed = true
	} else {
		retryAfter = time.Duration(math.Ceil(1/refillRate)) * time.Second
	}

	if err := e.store.HSet(ctx, key,
		"tokens", strconv.FormatFloat(tokens, 'f', -1, 64),
		"last_refill", strconv.FormatFloat(now, 'f', -1, 64),
	); err != nil {
		if e.failOpen {
			return e.failOpenEnvelope(capacity), nil
		}
		return Envelope{}, storeUnavailable("token_bucket", err)
	}

	return Envelope{
		Allowed:    allowed,
		Remaining:  tokens,
		Limit:      capacity,
		RetryAfter: retryAfter,
	}, nil
}
