package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(maxItems int, ttl time.Duration) *Cache {
	return New(Config{
		DefaultTTL:      ttl,
		CleanupInterval: time.Hour, // sweeps driven manually in tests
		MaxItems:        maxItems,
	})
}

func TestCache_SetGet(t *testing.T) {
	c := newTestCache(10, time.Minute)
	defer c.Close()

	c.Set("a", []byte("1"), 0)

	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, []byte("1"), got)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestCache_Expiration(t *testing.T) {
	c := newTestCache(10, time.Minute)
	defer c.Close()

	c.Set("short", []byte("x"), 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	_, ok := c.Get("short")
	assert.False(t, ok)
}

func TestCache_LRUEviction(t *testing.T) {
	c := newTestCache(2, time.Minute)
	defer c.Close()

	c.Set("a", []byte("1"), 0)
	c.Set("b", []byte("2"), 0)

	// Touch "a" so "b" becomes the eviction candidate.
	_, _ = c.Get("a")
	c.Set("c", []byte("3"), 0)

	_, ok := c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestCache_DeletePrefix(t *testing.T) {
	c := newTestCache(10, time.Minute)
	defer c.Close()

	c.Set("context:u1", []byte("1"), 0)
	c.Set("context:u2", []byte("2"), 0)
	c.Set("other:u1", []byte("3"), 0)

	removed := c.DeletePrefix("context:")
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, c.Len())
}

func TestCache_CleanupExpired(t *testing.T) {
	c := newTestCache(10, time.Minute)
	defer c.Close()

	c.Set("a", []byte("1"), 5*time.Millisecond)
	c.Set("b", []byte("2"), time.Minute)
	time.Sleep(10 * time.Millisecond)

	removed := c.CleanupExpired()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, c.Len())
}

func TestCache_OnEviction(t *testing.T) {
	var evicted []string
	c := New(Config{
		DefaultTTL:      time.Minute,
		CleanupInterval: time.Hour,
		MaxItems:        1,
		OnEviction:      func(key string) { evicted = append(evicted, key) },
	})
	defer c.Close()

	c.Set("a", []byte("1"), 0)
	c.Set("b", []byte("2"), 0)

	assert.Equal(t, []string{"a"}, evicted)
}
