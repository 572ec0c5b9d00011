package cache

import (
	"context"
	"sync"
	"time"
)

// entry represents a cached value with expiration
type entry struct {
	value     []byte
	expiresAt time.Time
}

func (e *entry) isExpired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// MemoryCache is an in-process cache with TTL support
type MemoryCache struct {
	data   map[string]*entry
	mutex  sync.RWMutex
	config Config
	stop   chan struct{}
	once   sync.Once
}

// NewMemoryCache creates a new in-memory cache and starts its cleanup routine
func NewMemoryCache(config Config) *MemoryCache {
	if config.DefaultTTL <= 0 {
		config.DefaultTTL = DefaultConfig().DefaultTTL
	}
	c := &MemoryCache{
		data:   make(map[string]*entry),
		config: config,
		stop:   make(chan struct{}),
	}

	go c.cleanupExpired(time.Minute)

	return c
}

// Get retrieves a value from the cache
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mutex.RLock()
	e, exists := c.data[key]
	c.mutex.RUnlock()

	if !exists {
		return nil, ErrCacheMiss{Key: key}
	}
	if e.isExpired(time.Now()) {
		c.mutex.Lock()
		if current, ok := c.data[key]; ok && current == e {
			delete(c.data, key)
		}
		c.mutex.Unlock()
		return nil, ErrCacheMiss{Key: key}
	}

	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

// Set stores a value in the cache
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.config.DefaultTTL
	}
	stored := make([]byte, len(value))
	copy(stored, value)

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.data[key] = &entry{
		value:     stored,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// Delete removes a value from the cache
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.data, key)
	return nil
}

// Clear removes all entries from the cache
func (c *MemoryCache) Clear(ctx context.Context) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.data = make(map[string]*entry)
	return nil
}

// Size returns the number of items in the cache, expired ones included
func (c *MemoryCache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return len(c.data)
}

// Close stops the cleanup routine
func (c *MemoryCache) Close() error {
	c.once.Do(func() { close(c.stop) })
	return nil
}

// cleanupExpired removes expired entries until Close is called
func (c *MemoryCache) cleanupExpired(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.removeExpired(time.Now())
		}
	}
}

func (c *MemoryCache) removeExpired(now time.Time) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for key, e := range c.data {
		if e.isExpired(now) {
			delete(c.data, key)
		}
	}
}
