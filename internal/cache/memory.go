package cache

import (
	"sync"
	"time"
)

// CacheEntry represents a cached item with expiration
type CacheEntry struct {
	Value      interface{}
	Expiration time.Time
}

// IsExpired checks if the cache entry has expired
func (e *CacheEntry) IsExpired() bool {
	return time.Now().After(e.Expiration)
}

// MemoryCache implements a simple in-memory cache with a background janitor
type MemoryCache struct {
	items map[string]*CacheEntry
	mutex sync.RWMutex
	ttl   time.Duration

	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemoryCache creates a new memory cache; cleanupEvery <= 0 disables the janitor
func NewMemoryCache(ttl, cleanupEvery time.Duration) *MemoryCache {
	cache := &MemoryCache{
		items: make(map[string]*CacheEntry),
		ttl:   ttl,
		stop:  make(chan struct{}),
	}

	if cleanupEvery > 0 {
		go cache.cleanupExpired(cleanupEvery)
	}

	return cache
}

// Set stores a value in the cache
func (c *MemoryCache) Set(key string, value interface{}) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.items[key] = &CacheEntry{
		Value:      value,
		Expiration: time.Now().Add(c.ttl),
	}
}

// Get retrieves a value from the cache
func (c *MemoryCache) Get(key string) (interface{}, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, exists := c.items[key]
	if !exists || entry.IsExpired() {
		return nil, false
	}

	return entry.Value, true
}

// Delete removes a value from the cache
func (c *MemoryCache) Delete(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.items, key)
}

// Size returns the number of items in the cache, expired ones included until swept
func (c *MemoryCache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return len(c.items)
}

// Sweep removes expired entries now
func (c *MemoryCache) Sweep() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for key, entry := range c.items {
		if entry.IsExpired() {
			delete(c.items, key)
		}
	}
}

// Close stops the janitor goroutine
func (c *MemoryCache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// cleanupExpired removes expired entries periodically
func (c *MemoryCache) cleanupExpired(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Sweep()
		case <-c.stop:
			return
		}
	}
}

// ArtCache holds album art bytes keyed by content hash
type ArtCache struct {
	*MemoryCache
}

// NewArtCache creates an album art cache; art outlives a typical listening session
func NewArtCache() *ArtCache {
	return &ArtCache{
		MemoryCache: NewMemoryCache(2*time.Hour, 10*time.Minute),
	}
}

// SetArt caches album art bytes
func (ac *ArtCache) SetArt(id string, data []byte) {
	ac.Set(id, data)
}

// GetArt retrieves cached album art
func (ac *ArtCache) GetArt(id string) ([]byte, bool) {
	value, exists := ac.Get(id)
	if !exists {
		return nil, false
	}

	data, ok := value.([]byte)
	return data, ok
}
