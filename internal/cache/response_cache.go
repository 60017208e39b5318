// Package cache implements the in-memory, TTL-bounded response cache
// supplemented from original_source/src/services/cache.py (spec.md's
// distillation dropped it; it is not "persistence" in the Non-goals sense —
// no durable store, no cross-restart state). Disabled by default.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"
)

type entry struct {
	response  json.RawMessage
	timestamp time.Time
}

// ResponseCache caches non-streaming responses keyed on a canonicalized hash
// of the request body, evicting the oldest entry once at capacity and
// expiring entries older than ttl on read.
type ResponseCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	maxSize int
	entries map[string]entry
}

// New creates a ResponseCache. A ttl of zero or less disables the cache:
// Get always misses and nothing is kept, so call sites need no special case.
func New(ttl time.Duration, maxSize int) *ResponseCache {
	return &ResponseCache{
		ttl:     ttl,
		maxSize: maxSize,
		entries: make(map[string]entry),
	}
}

// Key canonicalizes request data (dropping the non-deterministic "metadata"
// and "stream" fields) and hashes it to a cache key.
func Key(requestData map[string]any) string {
	clone := make(map[string]any, len(requestData))
	for k, v := range requestData {
		if k == "metadata" || k == "stream" {
			continue
		}
		clone[k] = v
	}
	// json.Marshal on a map sorts keys alphabetically, matching Python's
	// json.dumps(..., sort_keys=True) used by the original cache key scheme.
	serialized, err := json.Marshal(clone)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(serialized)
	return hex.EncodeToString(sum[:])
}

// Get returns the cached response for key if present and not expired.
func (c *ResponseCache) Get(key string) (json.RawMessage, bool) {
	if c.ttl <= 0 || key == "" {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Since(e.timestamp) >= c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return e.response, true
}

// Set caches response under key, evicting the oldest entry if at capacity.
func (c *ResponseCache) Set(key string, response json.RawMessage) {
	if c.ttl <= 0 || key == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxSize {
		var oldestKey string
		var oldestTime time.Time
		first := true
		for k, e := range c.entries {
			if first || e.timestamp.Before(oldestTime) {
				oldestKey, oldestTime = k, e.timestamp
				first = false
			}
		}
		if oldestKey != "" {
			delete(c.entries, oldestKey)
		}
	}

	c.entries[key] = entry{response: response, timestamp: time.Now()}
}

// Clear empties the cache.
func (c *ResponseCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

// Stats reports cache occupancy for diagnostics.
type Stats struct {
	Size          int `json:"size"`
	MaxSize       int `json:"max_size"`
	ActiveEntries int `json:"active_entries"`
	TTLSeconds    int `json:"ttl_seconds"`
}

func (c *ResponseCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	active := 0
	for _, e := range c.entries {
		if time.Since(e.timestamp) < c.ttl {
			active++
		}
	}
	return Stats{
		Size:          len(c.entries),
		MaxSize:       c.maxSize,
		ActiveEntries: active,
		TTLSeconds:    int(c.ttl.Seconds()),
	}
}
