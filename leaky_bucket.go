package decider

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/ratelimitd/decider/store"
)

// leakyBucketScript implements the leaky bucket algorithm (spec §4.3): the
// bucket's water level leaks out at leakRate per second; a call of cost n
// is allowed if it doesn't overflow capacity. Unlike the reference this is
// ported from (see DESIGN.md), elapsed is clamped to zero and the leaked
// level is returned via tostring to preserve its fraction.
//
// Only policing (hard-reject-on-overflow) semantics are implemented; the
// teacher's separate shaping mode (delayed admission with a computed
// queuing delay) has no analogue in the spec's leaky bucket contract and is
// dropped.
const leakyBucketScript = `
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local leak_rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local cost = tonumber(ARGV[4])

local data = redis.call('HGETALL', key)
local level = 0
local last_leak = now

if #data > 0 then
  local fields = {}
  for i = 1, #data, 2 do
    fields[data[i]] = data[i + 1]
  end
  level = tonumber(fields['level']) or 0
  last_leak = tonumber(fields['last_leak']) or now
end

local elapsed = now - last_leak
if elapsed < 0 then
  elapsed = 0
end
local leaked = elapsed * leak_rate
level = math.max(0, level - leaked)

local allowed = 0
local retry_after = 0

if level + cost <= capacity then
  level = level + cost
  allowed = 1
else
  retry_after = math.ceil(1 / leak_rate)
end

if allowed == 1 then
  redis.call('HSET', key, 'level', tostring(level), 'last_leak', tostring(now))
  redis.call('EXPIRE', key, math.ceil(capacity / leak_rate) + 60)
end

return { allowed, tostring(level), retry_after }
`

// DecideLeakyBucket applies the leaky bucket algorithm for one unit of work
// from subject, with the given capacity and leakRate (units drained per
// second).
func (e *Engine) DecideLeakyBucket(ctx context.Context, subject string, capacity, leakRate float64) (Envelope, error) {
	return e.decideLeakyBucketN(ctx, subject, capacity, leakRate, 1)
}

func validateLeakyBucketParams(capacity, leakRate float64) error {
	if capacity <= 0 {
		return badRequest("leaky bucket capacity must be positive, got %v", capacity)
	}
	if leakRate <= 0 {
		return badRequest("leaky bucket leak_rate must be positive, got %v", leakRate)
	}
	return nil
}

func (e *Engine) decideLeakyBucketN(ctx context.Context, subject string, capacity, leakRate, cost float64) (Envelope, error) {
	if err := validateLeakyBucketParams(capacity, leakRate); err != nil {
		return Envelope{}, err
	}

	key := e.fullKey("lb", subject)
	now := e.clock.Now()

	reply, err := e.store.Eval(ctx, leakyBucketScript, []string{key}, capacity, leakRate, now, cost)
	if _, unsupported := err.(*store.ErrScriptNotSupported); unsupported {
		return e.leakyBucketFallback(ctx, key, capacity, leakRate, now, cost)
	}
	if err != nil {
		e.logStoreError("leaky_bucket", subject, err)
		if e.failOpen {
			return e.failOpenEnvelope(capacity), nil
		}
		return Envelope{}, storeUnavailable("leaky_bucket", err)
	}

	vals, ok := reply.([]interface{})
	if !ok || len(vals) != 3 {
		return Envelope{}, storeUnavailable("leaky_bucket", errUnexpectedReply)
	}
	allowed := toInt64(vals[0]) == 1
	level, _ := strconv.ParseFloat(toString(vals[1]), 64)
	retryAfterSec := toInt64(vals[2])

	return Envelope{
		Allowed:    allowed,
		Remaining:  math.Max(0, capacity-level),
		Limit:      capacity,
		RetryAfter: time.Duration(retryAfterSec) * time.Second,
	}, nil
}

func (e *Engine) leakyBucketFallback(ctx context.Context, key string, capacity, leakRate, now, cost float64) (Envelope, error) {
	lock := e.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	fields, err := e.store.HGetAll(ctx, key)
	if err != nil {
		if e.failOpen {
			return e.failOpenEnvelope(capacity), nil
		}
		return Envelope{}, storeUnavailable("leaky_bucket", err)
	}

	var level float64
	lastLeak := now
	if v, ok := fields["level"]; ok {
		if parsed, perr := strconv.ParseFloat(v, 64); perr == nil {
			level = parsed
		}
	}
	if v, ok := fields["last_leak"]; ok {
		if parsed, perr := strconv.ParseFloat(v, 64); perr == nil {
			lastLeak = parsed
		}
	}

	elapsed := now - lastLeak
	if elapsed < 0 {
		elapsed = 0
	}
	level = math.Max(0, level-elapsed*leakRate)

	var allowed bool
	var retryAfter time.Duration
	if level+cost <= capacity {
		level += cost
		allowed = true
	} else {
		retryAfter = time.Duration(math.Ceil(1/leakRate)) * time.Second
	}

	if allowed {
		if err := e.store.HSet(ctx, key,
			"level", strconv.FormatFloat(level, 'f', -1, 64),
			"last_leak", strconv.FormatFloat(now, 'f', -1, 64),
		); err != nil {
			if e.failOpen {
				return e.failOpenEnvelope(capacity), nil
			}
			return Envelope{}, storeUnavailable("leaky_bucket", err)
		}
		if err := e.store.Expire(ctx, key, time.Duration(math.Ceil(capacity/leakRate)+60)*time.Second); err != nil {
			e.logStoreError("leaky_bucket", key, err)
		}
	}

	return Envelope{
		Allowed:    allowed,
		Remaining:  math.Max(0, capacity-level),
		Limit:      capacity,
		RetryAfter: retryAfter,
	}, nil
}
