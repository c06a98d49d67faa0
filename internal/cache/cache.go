package cache

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Cache provides thread-safe in-memory caching with TTL. Values are stored
// as JSON so callers deserialize into their own types.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	clock   clockwork.Clock
}

type entry struct {
	data      []byte
	expiresAt time.Time
}

// New creates an empty cache. Pass nil for the real clock; tests inject a
// fake to control expiry deterministically.
func New(clock clockwork.Clock) *Cache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Cache{
		entries: make(map[string]entry),
		clock:   clock,
	}
}

// Set stores a value with the given TTL.
func (c *Cache) Set(key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: failed to marshal value: %w", err)
	}

	c.mu.Lock()
	c.entries[key] = entry{
		data:      data,
		expiresAt: c.clock.Now().Add(ttl),
	}
	c.mu.Unlock()
	return nil
}

// Get deserializes the cached value into result if present and not expired.
func (c *Cache) Get(key string, result any) (bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || c.clock.Now().After(e.expiresAt) {
		c.evict(key)
		return false, nil
	}

	if err := json.Unmarshal(e.data, result); err != nil {
		return false, fmt.Errorf("cache: failed to unmarshal value: %w", err)
	}
	return true, nil
}

// evict drops an expired entry so the map does not grow unbounded.
func (c *Cache) evict(key string) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && c.clock.Now().After(e.expiresAt) {
		delete(c.entries, key)
	}
	c.mu.Unlock()
}

// Len returns the number of live entries, counting not-yet-evicted stale ones.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
