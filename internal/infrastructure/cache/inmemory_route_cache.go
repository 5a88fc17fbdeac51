package cache

import (
	"context"
	"sync"
	"time"

	"github.com/logtower/backend/internal/domain/routing"
)

type entry struct {
	route     routing.Route
	expiresAt time.Time
}

// InMemoryRouteCache implements routing.Cache using an in-memory map.
// Entries expire after the TTL; when the cache is full the entry closest to
// expiry is evicted.
type InMemoryRouteCache struct {
	mu         sync.RWMutex
	entries    map[string]entry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	stopChan   chan struct{}
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

// NewInMemoryRouteCache creates a new in-memory route cache.
// It starts a background goroutine to clean up expired entries.
func NewInMemoryRouteCache(ttl time.Duration, maxEntries int) *InMemoryRouteCache {
	c := newInMemoryRouteCache(ttl, maxEntries, time.Now)
	c.wg.Add(1)
	go c.cleanupLoop()
	return c
}

func newInMemoryRouteCache(ttl time.Duration, maxEntries int, now func() time.Time) *InMemoryRouteCache {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	return &InMemoryRouteCache{
		entries:    make(map[string]entry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        now,
		stopChan:   make(chan struct{}),
	}
}

// Get returns the cached route for key
func (c *InMemoryRouteCache) Get(ctx context.Context, key string) (routing.Route, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || c.expired(e) {
		return routing.Route{}, false, nil
	}
	return e.route, true, nil
}

// Set stores a route under key
func (c *InMemoryRouteCache) Set(ctx context.Context, key string, route routing.Route) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictLocked()
	}
	var expiresAt time.Time
	if c.ttl > 0 {
		expiresAt = c.now().Add(c.ttl)
	}
	c.entries[key] = entry{route: route, expiresAt: expiresAt}
	return nil
}

func (c *InMemoryRouteCache) expired(e entry) bool {
	return !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt)
}

// evictLocked drops expired entries, or the one closest to expiry when none
// has expired yet
func (c *InMemoryRouteCache) evictLocked() {
	var (
		victim string
		oldest time.Time
	)
	for key, e := range c.entries {
		if c.expired(e) {
			delete(c.entries, key)
			continue
		}
		if victim == "" || e.expiresAt.Before(oldest) {
			victim, oldest = key, e.expiresAt
		}
	}
	if len(c.entries) >= c.maxEntries && victim != "" {
		delete(c.entries, victim)
	}
}

// Close stops the cleanup goroutine and releases resources.
// Safe to call multiple times.
func (c *InMemoryRouteCache) Close() error {
	c.closeOnce.Do(func() {
		close(c.stopChan)
		c.wg.Wait()
	})
	return nil
}

func (c *InMemoryRouteCache) cleanupLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

func (c *InMemoryRouteCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, e := range c.entries {
		if c.expired(e) {
			delete(c.entries, key)
		}
	}
}

// Size returns the number of entries in the cache, expired ones included
func (c *InMemoryRouteCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Ensure InMemoryRouteCache implements routing.Cache
var _ routing.Cache = (*InMemoryRouteCache)(nil)
