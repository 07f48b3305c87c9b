package domain

import "time"

// CacheEntry is a memoized generation keyed by request fingerprint.
type CacheEntry struct {
	Key          string            `json:"cache_key"`
	Result       ThreatModelResult `json:"threat_model"`
	CreatedAt    time.Time         `json:"created_at"`
	AccessCount  int               `json:"access_count"`
	LastAccessed time.Time         `json:"last_accessed"`
}

// CacheStats summarises the result cache.
type CacheStats struct {
	Entries int     `json:"entries"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}
