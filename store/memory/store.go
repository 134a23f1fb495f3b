// Package memory provides an in-memory implementation of store.Store.
//
// This is useful for testing and single-process deployments. It does NOT
// support Lua scripting (Eval returns store.ErrScriptNotSupported) — callers
// that need atomic read-modify-write semantics against this backend must
// guard the sequence with their own lock, which is what the decision engine
// does for its in-memory fallback path.
//
//	s := memory.New()
//	defer s.Close()
package memory

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"context"

	"github.com/ratelimitd/decider/store"
)

// Store implements store.Store with in-memory state.
// All operations are thread-safe.
type Store struct {
	mu        sync.Mutex
	hashes    map[string]hashEntry
	sorted    map[string][]sortedEntry
	sortedTTL map[string]time.Time
	closed    bool
	closeCh   chan struct{}
}

type hashEntry struct {
	fields   map[string]string
	expireAt time.Time
}

type sortedEntry struct {
	score  float64
	member string
}

// New creates a new in-memory Store with a background sweep evicting
// expired keys once a second.
func New() *Store {
	s := &Store{
		hashes:    make(map[string]hashEntry),
		sorted:    make(map[string][]sortedEntry),
		sortedTTL: make(map[string]time.Time),
		closeCh:   make(chan struct{}),
	}
	go s.cleanupLoop()
	return s
}

func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.evictExpired()
		case <-s.closeCh:
			return
		}
	}
}

func (s *Store) evictExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for k, h := range s.hashes {
		if !h.expireAt.IsZero() && now.After(h.expireAt) {
			delete(s.hashes, k)
		}
	}
	for k, exp := range s.sortedTTL {
		if now.After(exp) {
			delete(s.sorted, k)
			delete(s.sortedTTL, k)
		}
	}
}

func (s *Store) isExpired(h hashEntry) bool {
	return !h.expireAt.IsZero() && time.Now().After(h.expireAt)
}

// Eval always fails: the in-memory store has no scripting engine.
func (s *Store) Eval(_ context.Context, _ string, _ []string, _ ...interface{}) (interface{}, error) {
	return nil, &store.ErrScriptNotSupported{}
}

// Expire sets a TTL on whichever namespace (hash or sorted set) holds key.
func (s *Store) Expire(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h, ok := s.hashes[key]; ok {
		h.expireAt = time.Now().Add(ttl)
		s.hashes[key] = h
	}
	if _, ok := s.sorted[key]; ok {
		s.sortedTTL[key] = time.Now().Add(ttl)
	}
	return nil
}

// HGetAll returns a copy of the hash's fields, or an empty map if absent or
// expired.
func (s *Store) HGetAll(_ context.Context, key string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.hashes[key]
	if !ok || s.isExpired(h) {
		return map[string]string{}, nil
	}
	out := make(map[string]string, len(h.fields))
	for k, v := range h.fields {
		out[k] = v
	}
	return out, nil
}

// HSet sets field/value pairs in the hash at key, preserving any TTL
// already on the key. values must be field, value, field, value...
func (s *Store) HSet(_ context.Context, key string, values ...interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.hashes[key]
	if !ok {
		h = hashEntry{fields: make(map[string]string)}
	}
	for i := 0; i+1 < len(values); i += 2 {
		h.fields[toString(values[i])] = toString(values[i+1])
	}
	s.hashes[key] = h
	return nil
}

// Del deletes keys from both the hash and sorted-set namespaces.
func (s *Store) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range keys {
		delete(s.hashes, k)
		delete(s.sorted, k)
		delete(s.sortedTTL, k)
	}
	return nil
}

// ZAdd adds or repositions a member in the sorted set at key.
func (s *Store) ZAdd(_ context.Context, key string, score float64, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.sorted[key]
	for i, e := range entries {
		if e.member == member {
			entries = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	entries = append(entries, sortedEntry{score: score, member: member})
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].score < entries[j].score
	})
	s.sorted[key] = entries
	return nil
}

// ZCard returns the member count of the sorted set at key.
func (s *Store) ZCard(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.sorted[key])), nil
}

// ZRemRangeByScore removes members whose score falls in [min, max].
func (s *Store) ZRemRangeByScore(_ context.Context, key, min, max string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var minF, maxF float64
	fmt.Sscanf(min, "%f", &minF)
	fmt.Sscanf(max, "%f", &maxF)

	entries := s.sorted[key]
	filtered := entries[:0]
	for _, e := range entries {
		if e.score < minF || e.score > maxF {
			filtered = append(filtered, e)
		}
	}
	s.sorted[key] = filtered
	return nil
}

// Ping always succeeds; the in-memory store has no connection to lose.
func (s *Store) Ping(_ context.Context) error {
	return nil
}

// Close stops the background cleanup loop.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.closeCh)
	}
	return nil
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case float64:
		return fmt.Sprintf("%v", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
