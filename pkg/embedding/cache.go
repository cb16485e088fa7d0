package embedding

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// keyPrefixBytes bounds how much of the input text participates in the cache
// key. Texts sharing their first 512 bytes share an entry.
const keyPrefixBytes = 512

// Cache is a content-addressed vector cache with TTL-based staleness.
// Expired entries are evicted lazily when read; there is no background sweep
// and no size cap.
type Cache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

type cacheEntry struct {
	vector    []float32
	createdAt time.Time
}

// NewCache creates a cache whose entries expire ttl after insertion.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the cached vector for key. A stale entry is deleted and
// reported as a miss.
func (c *Cache) Get(key string) ([]float32, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}

	if time.Since(entry.createdAt) > c.ttl {
		c.mu.Lock()
		// Re-check under the write lock: another goroutine may have
		// refreshed the entry in the meantime.
		if cur, ok := c.entries[key]; ok && time.Since(cur.createdAt) > c.ttl {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}

	return entry.vector, true
}

// Put stores a vector under key, resetting its TTL.
func (c *Cache) Put(key string, vector []float32) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{vector: vector, createdAt: time.Now()}
	c.mu.Unlock()
}

// Clear drops all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

// Len returns the number of live entries, including any not yet lazily evicted.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// CacheKey derives the cache key for a text: hex SHA-256 of its bounded prefix.
func CacheKey(text string) string {
	if len(text) > keyPrefixBytes {
		text = text[:keyPrefixBytes]
	}
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
