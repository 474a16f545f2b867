package reputation

import (
	"strings"
	"sync"
)

// Cache is the in-memory set of domains known to be active scams. It only
// remembers positives; absence means unknown. It can always be rebuilt from the store.
type Cache struct {
	mu      sync.RWMutex
	domains map[string]struct{}
}

func NewCache() *Cache {
	return &Cache{domains: make(map[string]struct{})}
}

func cacheKey(domain string) string {
	return strings.ToLower(strings.TrimSpace(domain))
}

func (c *Cache) Contains(domain string) bool {
	key := cacheKey(domain)
	if key == "" {
		return false
	}

	c.mu.RLock()
	_, ok := c.domains[key]
	c.mu.RUnlock()
	return ok
}

func (c *Cache) Add(domains ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, domain := range domains {
		if key := cacheKey(domain); key != "" {
			c.domains[key] = struct{}{}
		}
	}
}

func (c *Cache) Remove(domains ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, domain := range domains {
		delete(c.domains, cacheKey(domain))
	}
}

func (c *Cache) Clear() {
	c.mu.Lock()
	c.domains = make(map[string]struct{})
	c.mu.Unlock()
}

// Reload replaces the whole set in one step; readers see either the old or the new set.
func (c *Cache) Reload(domains []string) {
	next := make(map[string]struct{}, len(domains))
	for _, domain := range domains {
		if key := cacheKey(domain); key != "" {
			next[key] = struct{}{}
		}
	}

	c.mu.Lock()
	c.domains = next
	c.mu.Unlock()
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.domains)
}
