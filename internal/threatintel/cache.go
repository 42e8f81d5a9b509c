package threatintel

import (
	"sync"
	"time"

	"github.com/vigilo/platform/internal/domain"
)

// reputationCache bounds external reputation calls: one lookup per IP per
// TTL. It is an owned state object created with the gateway; stale entries
// are evicted lazily on read, there is no background sweep.
type reputationCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
}

type cacheEntry struct {
	assessment domain.ThreatAssessment
	storedAt   time.Time
}

func newReputationCache(ttl time.Duration) *reputationCache {
	return &reputationCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
	}
}

// get returns the cached assessment for ip when present and fresh. An
// expired entry is deleted on the spot.
func (c *reputationCache) get(ip string, now time.Time) (domain.ThreatAssessment, bool) {
	c.mu.RLock()
	entry, ok := c.entries[ip]
	c.mu.RUnlock()
	if !ok {
		return domain.ThreatAssessment{}, false
	}
	if now.Sub(entry.storedAt) >= c.ttl {
		c.mu.Lock()
		// Re-check under the write lock; another goroutine may have
		// refreshed the entry meanwhile.
		if e, ok := c.entries[ip]; ok && now.Sub(e.storedAt) >= c.ttl {
			delete(c.entries, ip)
		}
		c.mu.Unlock()
		return domain.ThreatAssessment{}, false
	}
	return entry.assessment, true
}

func (c *reputationCache) put(ip string, assessment domain.ThreatAssessment, now time.Time) {
	c.mu.Lock()
	c.entries[ip] = cacheEntry{assessment: assessment, storedAt: now}
	c.mu.Unlock()
}

func (c *reputationCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
