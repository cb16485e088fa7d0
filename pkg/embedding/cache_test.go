package embedding

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCacheGetPut(t *testing.T) {
	c := NewCache(time.Hour)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	vec := []float32{0.1, 0.2, 0.3}
	c.Put("k", vec)

	got, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, vec, got)
	assert.Equal(t, 1, c.Len())
}

func TestCacheLazyExpiry(t *testing.T) {
	c := NewCache(time.Nanosecond)
	c.Put("k", []float32{1})
	assert.Equal(t, 1, c.Len())

	time.Sleep(time.Millisecond)

	_, ok := c.Get("k")
	assert.False(t, ok)
	// The stale entry is removed by the read itself.
	assert.Equal(t, 0, c.Len())
}

func TestCacheClear(t *testing.T) {
	c := NewCache(time.Hour)
	c.Put("a", []float32{1})
	c.Put("b", []float32{2})
	assert.Equal(t, 2, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())

	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestCacheKey(t *testing.T) {
	t.Run("stable for same text", func(t *testing.T) {
		assert.Equal(t, CacheKey("hello world"), CacheKey("hello world"))
	})

	t.Run("differs for different text", func(t *testing.T) {
		assert.NotEqual(t, CacheKey("hello"), CacheKey("goodbye"))
	})

	t.Run("only the bounded prefix participates", func(t *testing.T) {
		prefix := strings.Repeat("x", keyPrefixBytes)
		assert.Equal(t, CacheKey(prefix+"tail one"), CacheKey(prefix+"tail two"))
	})
}
