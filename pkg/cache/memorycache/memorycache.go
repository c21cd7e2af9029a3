package memorycache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/hkcm91/stickernest-access/pkg/cache"
)

// entry represents a cache entry with value and metadata
type entry struct {
	key       string
	value     interface{}
	expiresAt time.Time
	size      int64 // Approximate memory size in bytes
}

// Cache implements an LRU cache with TTL support.
type Cache struct {
	mu sync.RWMutex

	// LRU tracking
	items     map[string]*list.Element // key -> list element
	evictList *list.List               // front = most recent, back = least recent

	maxSize     int64 // Maximum total size in bytes
	currentSize int64

	metrics cacheMetrics
}

type cacheMetrics struct {
	hits        uint64
	misses      uint64
	keysAdded   uint64
	keysEvicted uint64
}

// Config holds configuration for the memory cache.
type Config struct {
	// MaxSizeBytes is the maximum total size of cached items in bytes.
	// When this limit is exceeded, least recently used items are evicted.
	MaxSizeBytes int64
}

// New creates a new in-memory LRU cache.
func New(cfg Config) *Cache {
	maxSize := cfg.MaxSizeBytes
	if maxSize <= 0 {
		maxSize = 16 * 1024 * 1024
	}
	return &Cache{
		items:     make(map[string]*list.Element),
		evictList: list.New(),
		maxSize:   maxSize,
	}
}

// Get retrieves a value, honoring per-entry TTL.
func (c *Cache) Get(ctx context.Context, key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.metrics.misses++
		return nil, false
	}

	ent := elem.Value.(*entry)
	if !ent.expiresAt.IsZero() && time.Now().After(ent.expiresAt) {
		c.removeElement(elem)
		c.metrics.misses++
		return nil, false
	}

	c.evictList.MoveToFront(elem)
	c.metrics.hits++
	return ent.value, true
}

// Set stores a value with the given TTL. A zero TTL means no expiry.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	size := entrySize(key, value)

	if elem, ok := c.items[key]; ok {
		ent := elem.Value.(*entry)
		c.currentSize += size - ent.size
		ent.value = value
		ent.expiresAt = expiresAt
		ent.size = size
		c.evictList.MoveToFront(elem)
	} else {
		ent := &entry{key: key, value: value, expiresAt: expiresAt, size: size}
		c.items[key] = c.evictList.PushFront(ent)
		c.currentSize += size
		c.metrics.keysAdded++
	}

	// Evict least recently used entries until under the limit
	for c.currentSize > c.maxSize && c.evictList.Len() > 0 {
		if back := c.evictList.Back(); back != nil {
			c.removeElement(back)
			c.metrics.keysEvicted++
		}
	}

	return nil
}

// Delete removes a value from cache.
func (c *Cache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
	return nil
}

// Clear removes all entries from cache.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.evictList.Init()
	c.currentSize = 0
	return nil
}

// Close releases resources held by the cache.
func (c *Cache) Close() error {
	return c.Clear(context.Background())
}

// Metrics returns cache statistics.
func (c *Cache) Metrics() *cache.Metrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return &cache.Metrics{
		Hits:        c.metrics.hits,
		Misses:      c.metrics.misses,
		KeysAdded:   c.metrics.keysAdded,
		KeysEvicted: c.metrics.keysEvicted,
	}
}

// Len returns the current number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.evictList.Len()
}

// Size returns the approximate memory usage in bytes.
func (c *Cache) Size() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentSize
}

// removeElement removes an element; callers must hold the lock.
func (c *Cache) removeElement(elem *list.Element) {
	ent := elem.Value.(*entry)
	c.evictList.Remove(elem)
	delete(c.items, ent.key)
	c.currentSize -= ent.size
}

// entrySize approximates the memory footprint of an entry.
func entrySize(key string, value interface{}) int64 {
	size := int64(len(key)) + 64 // struct and pointer overhead
	if s, ok := value.(string); ok {
		size += int64(len(s))
	}
	return size
}
