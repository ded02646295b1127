package sermons

import (
	"container/list"
	"sync"
	"time"

	"github.com/vinodhsukumarvictor/Church-Bible-App/models"
)

// cacheEntry represents a single cache entry with TTL
type cacheEntry struct {
	key        string
	sermons    []models.Sermon
	insertedAt time.Time
	element    *list.Element
}

// FeedCache is an in-memory LRU cache with TTL for feed results
type FeedCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	lruList *list.List
	maxSize int
	ttl     time.Duration
	now     func() time.Time
	hits    uint64
	misses  uint64
}

// CacheStats represents cache statistics
type CacheStats struct {
	Size    int
	MaxSize int
	Hits    uint64
	Misses  uint64
}

// NewFeedCache creates a cache holding at most maxSize feeds for ttl each
func NewFeedCache(maxSize int, ttl time.Duration) *FeedCache {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &FeedCache{
		entries: make(map[string]*cacheEntry),
		lruList: list.New(),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached feed, or false when missing or expired
func (c *FeedCache) Get(key string) ([]models.Sermon, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[key]
	if !exists || c.now().Sub(entry.insertedAt) > c.ttl {
		c.misses++
		if exists {
			c.removeEntry(key)
		}
		return nil, false
	}

	c.lruList.MoveToFront(entry.element)
	c.hits++
	return entry.sermons, true
}

// Set stores a feed, evicting the least recently used one when full
func (c *FeedCache) Set(key string, sermons []models.Sermon) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, exists := c.entries[key]; exists {
		entry.sermons = sermons
		entry.insertedAt = c.now()
		c.lruList.MoveToFront(entry.element)
		return
	}

	if c.lruList.Len() >= c.maxSize {
		if back := c.lruList.Back(); back != nil {
			c.removeEntry(back.Value.(string))
		}
	}

	entry := &cacheEntry{key: key, sermons: sermons, insertedAt: c.now()}
	entry.element = c.lruList.PushFront(key)
	c.entries[key] = entry
}

// Clear removes all entries
func (c *FeedCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.lruList.Init()
}

// Stats returns cache statistics
func (c *FeedCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return CacheStats{
		Size:    c.lruList.Len(),
		MaxSize: c.maxSize,
		Hits:    c.hits,
		Misses:  c.misses,
	}
}

// removeEntry must be called with the lock held
func (c *FeedCache) removeEntry(key string) {
	if entry, exists := c.entries[key]; exists {
		c.lruList.Remove(entry.element)
		delete(c.entries, key)
	}
}
