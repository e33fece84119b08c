package embed

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// EmbeddingCache is an in-memory cache for embedding vectors with TTL-based
// expiry and size-bounded eviction. Keys include the task type so a document
// vector is never served for a query and vice versa.
type EmbeddingCache struct {
	mu      sync.RWMutex
	entries map[string]cachedEmbedding
	maxSize int
	ttl     time.Duration
}

type cachedEmbedding struct {
	vector    []float32
	createdAt time.Time
}

// NewEmbeddingCache creates a cache holding up to maxSize entries, each valid
// for ttl. A zero ttl means entries never expire.
func NewEmbeddingCache(maxSize int, ttl time.Duration) *EmbeddingCache {
	if maxSize <= 0 {
		maxSize = 1024
	}
	return &EmbeddingCache{
		entries: make(map[string]cachedEmbedding),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// Key derives the cache key for a text under a task type.
func (c *EmbeddingCache) Key(text string, task TaskType) string {
	h := sha256.Sum256([]byte(string(task) + "\x00" + text))
	return hex.EncodeToString(h[:16])
}

// Get returns the cached vector for text under task, if present and fresh.
func (c *EmbeddingCache) Get(text string, task TaskType) ([]float32, bool) {
	c.mu.RLock()
	entry, ok := c.entries[c.Key(text, task)]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if c.ttl > 0 && time.Since(entry.createdAt) > c.ttl {
		return nil, false
	}
	return entry.vector, true
}

// Set stores a vector for text under task, evicting the oldest entry when full.
func (c *EmbeddingCache) Set(text string, task TaskType, vector []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	c.entries[c.Key(text, task)] = cachedEmbedding{
		vector:    vector,
		createdAt: time.Now(),
	}
}

// evictOldest removes the entry with the oldest creation time.
// Caller must hold the lock.
func (c *EmbeddingCache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	for key, entry := range c.entries {
		if oldestKey == "" || entry.createdAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.createdAt
		}
	}

	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

// Size returns the current number of cached entries.
func (c *EmbeddingCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear removes all entries.
func (c *EmbeddingCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cachedEmbedding)
}
