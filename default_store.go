package decider

import "github.com/ratelimitd/decider/store/memory"

// defaultMemoryStore returns a fresh in-memory store.Store for engines
// constructed with no backend configured.
func defaultMemoryStore() *memory.Store {
	return memory.New()
}
