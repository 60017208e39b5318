package cache_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/gabrielmaialva33/anthropic-proxy/internal/cache"
)

func TestResponseCache_SetAndGet(t *testing.T) {
	c := cache.New(time.Minute, 10)
	key := cache.Key(map[string]any{"model": "gpt-4o"})

	if _, ok := c.Get(key); ok {
		t.Fatal("Get() on empty cache returned a hit")
	}

	c.Set(key, json.RawMessage(`{"ok":true}`))

	got, ok := c.Get(key)
	if !ok {
		t.Fatal("Get() after Set() returned a miss")
	}
	if string(got) != `{"ok":true}` {
		t.Errorf("Get() = %s", got)
	}
}

func TestResponseCache_ZeroTTLDisables(t *testing.T) {
	c := cache.New(0, 10)
	key := cache.Key(map[string]any{"model": "gpt-4o"})
	c.Set(key, json.RawMessage(`{"ok":true}`))

	if _, ok := c.Get(key); ok {
		t.Fatal("Get() returned a hit with ttl=0, want disabled cache")
	}
}

func TestResponseCache_ExpiresAfterTTL(t *testing.T) {
	c := cache.New(10*time.Millisecond, 10)
	key := cache.Key(map[string]any{"model": "gpt-4o"})
	c.Set(key, json.RawMessage(`{"ok":true}`))

	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get(key); ok {
		t.Fatal("Get() returned a hit after the entry should have expired")
	}
}

func TestResponseCache_EvictsOldestAtCapacity(t *testing.T) {
	c := cache.New(time.Minute, 2)

	keyA := cache.Key(map[string]any{"model": "a"})
	keyB := cache.Key(map[string]any{"model": "b"})
	keyC := cache.Key(map[string]any{"model": "c"})

	c.Set(keyA, json.RawMessage(`"a"`))
	time.Sleep(time.Millisecond)
	c.Set(keyB, json.RawMessage(`"b"`))
	time.Sleep(time.Millisecond)
	c.Set(keyC, json.RawMessage(`"c"`))

	if _, ok := c.Get(keyA); ok {
		t.Error("oldest entry should have been evicted once at capacity")
	}
	if _, ok := c.Get(keyB); !ok {
		t.Error("keyB should still be present")
	}
	if _, ok := c.Get(keyC); !ok {
		t.Error("keyC should still be present")
	}
}

func TestKey_DropsMetadataAndStreamFields(t *testing.T) {
	a := cache.Key(map[string]any{"model": "gpt-4o", "metadata": map[string]any{"x": 1}, "stream": true})
	b := cache.Key(map[string]any{"model": "gpt-4o", "stream": false})
	if a != b {
		t.Errorf("keys differ despite only metadata/stream fields differing: %q != %q", a, b)
	}
}

func TestKey_DifferentModelsDifferentKeys(t *testing.T) {
	a := cache.Key(map[string]any{"model": "gpt-4o"})
	b := cache.Key(map[string]any{"model": "gpt-4o-mini"})
	if a == b {
		t.Error("keys should differ for different request bodies")
	}
}

func TestResponseCache_Clear(t *testing.T) {
	c := cache.New(time.Minute, 10)
	key := cache.Key(map[string]any{"model": "gpt-4o"})
	c.Set(key, json.RawMessage(`"x"`))

	c.Clear()

	if _, ok := c.Get(key); ok {
		t.Fatal("Get() returned a hit after Clear()")
	}
}
