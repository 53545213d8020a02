package cache

import (
	"context"
	"sync"
	"time"
)

// entry represents a stored fingerprint with expiration
type entry struct {
	expiresAt time.Time
}

// InMemoryDedupeCache is a single-instance dedupe fast path. It serves the
// same contract as the Redis cache for deployments without one, and tests.
type InMemoryDedupeCache struct {
	mu        sync.Mutex
	entries   map[string]entry
	ttl       time.Duration
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryDedupeCache creates an in-memory dedupe cache and starts a
// background goroutine that evicts expired fingerprints
func NewInMemoryDedupeCache(ttl time.Duration) *InMemoryDedupeCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	cache := &InMemoryDedupeCache{
		entries:  make(map[string]entry),
		ttl:      ttl,
		stopChan: make(chan struct{}),
	}

	cache.wg.Add(1)
	go cache.cleanupLoop()

	return cache
}

// Seen records the fingerprint and reports whether it was already present
func (c *InMemoryDedupeCache) Seen(ctx context.Context, dedupeKey string) (bool, error) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, exists := c.entries[dedupeKey]; exists && now.Before(e.expiresAt) {
		return true, nil
	}
	c.entries[dedupeKey] = entry{expiresAt: now.Add(c.ttl)}
	return false, nil
}

// Close stops the cleanup goroutine
func (c *InMemoryDedupeCache) Close() error {
	c.closeOnce.Do(func() {
		close(c.stopChan)
	})
	c.wg.Wait()
	return nil
}

func (c *InMemoryDedupeCache) cleanupLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

func (c *InMemoryDedupeCache) evictExpired() {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
		}
	}
}
