// Package cache provides a small in-memory TTL cache used by the store to
// avoid re-reading hot rows on every request.
package cache

import (
	"context"
	"sync"
	"time"
)

// Config holds the cache settings.
type Config struct {
	DefaultTTL      time.Duration // TTL applied to every entry
	CleanupInterval time.Duration // How often expired entries are swept
	MaxItems        int           // Soft cap; oldest entries are evicted past it
	OnEviction      func(key string, value any)
}

type item struct {
	value     any
	expiresAt time.Time
}

// Cache is a TTL cache safe for concurrent use.
type Cache struct {
	mu     sync.RWMutex
	config Config
	items  map[string]item
	done   chan struct{}
	once   sync.Once
}

// New creates a cache and starts its cleanup goroutine.
func New(config Config) *Cache {
	if config.DefaultTTL <= 0 {
		config.DefaultTTL = 10 * time.Minute
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}
	c := &Cache{
		config: config,
		items:  make(map[string]item),
		done:   make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

// Get returns the cached value for key, or false when absent or expired.
func (c *Cache) Get(_ context.Context, key string) (any, bool) {
	c.mu.RLock()
	it, ok := c.items[key]
	c.mu.RUnlock()
	if !ok || time.Now().After(it.expiresAt) {
		return nil, false
	}
	return it.value, true
}

// Set stores value under key with the default TTL.
func (c *Cache) Set(_ context.Context, key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.config.MaxItems > 0 && len(c.items) >= c.config.MaxItems {
		c.evictOldestLocked()
	}
	c.items[key] = item{value: value, expiresAt: time.Now().Add(c.config.DefaultTTL)}
}

// Delete removes key from the cache.
func (c *Cache) Delete(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if it, ok := c.items[key]; ok {
		delete(c.items, key)
		if c.config.OnEviction != nil {
			c.config.OnEviction(key, it.value)
		}
	}
}

// Close stops the cleanup goroutine.
func (c *Cache) Close() {
	c.once.Do(func() { close(c.done) })
}

func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(c.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.done:
			return
		}
	}
}

func (c *Cache) removeExpired() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, it := range c.items {
		if now.After(it.expiresAt) {
			delete(c.items, key)
			if c.config.OnEviction != nil {
				c.config.OnEviction(key, it.value)
			}
		}
	}
}

// evictOldestLocked drops the entry closest to expiry. Callers hold the lock.
func (c *Cache) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	for key, it := range c.items {
		if oldestKey == "" || it.expiresAt.Before(oldest) {
			oldestKey, oldest = key, it.expiresAt
		}
	}
	if oldestKey != "" {
		it := c.items[oldestKey]
		delete(c.items, oldestKey)
		if c.config.OnEviction != nil {
			c.config.OnEviction(oldestKey, it.value)
		}
	}
}
