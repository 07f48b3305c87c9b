package service

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/timmy/threatforge/internal/domain"
)

// Fingerprint derives the cache key for req. Only fields that change the
// generated output take part: trimmed content, canonical framework, file id
// and the lower-cased provider hint.
func Fingerprint(req domain.ThreatModelJobRequest) string {
	h := sha256.New()
	for _, part := range []string{
		strings.TrimSpace(req.Content),
		string(domain.CanonicalFramework(string(req.Framework))),
		req.FileID,
		strings.ToLower(strings.TrimSpace(req.LLMProvider)),
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ResultCache memoizes completed generations by fingerprint. Its lock is
// never held together with the job store's.
type ResultCache struct {
	mu      sync.Mutex
	entries map[string]*domain.CacheEntry
	hits    int64
	misses  int64
	clock   Clock
}

// NewResultCache creates an empty cache. A nil clock uses the system clock.
func NewResultCache(clock Clock) *ResultCache {
	if clock == nil {
		clock = SystemClock{}
	}
	return &ResultCache{entries: make(map[string]*domain.CacheEntry), clock: clock}
}

// Get returns a copy of the entry and records the access.
func (c *ResultCache) Get(key string) (domain.CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return domain.CacheEntry{}, false
	}
	c.hits++
	e.AccessCount++
	e.LastAccessed = c.clock.Now()
	return *e, true
}

// Put inserts or replaces the entry for key.
func (c *ResultCache) Put(key string, result domain.ThreatModelResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	c.entries[key] = &domain.CacheEntry{
		Key:          key,
		Result:       result,
		CreatedAt:    now,
		AccessCount:  1,
		LastAccessed: now,
	}
}

// EvictOlderThan removes entries created before now-age regardless of how
// recently they were read.
func (c *ResultCache) EvictOlderThan(age time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.clock.Now().Add(-age)
	removed := 0
	for k, e := range c.entries {
		if e.CreatedAt.Before(cutoff) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of entries.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats reports size and hit counters.
func (c *ResultCache) Stats() domain.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := domain.CacheStats{Entries: len(c.entries), Hits: c.hits, Misses: c.misses}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}
