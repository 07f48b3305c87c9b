package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/threatforge/internal/domain"
)

func TestFingerprint(t *testing.T) {
	base := domain.ThreatModelJobRequest{Content: "Web app with DB", Framework: domain.FrameworkSTRIDE}

	tests := []struct {
		name  string
		other domain.ThreatModelJobRequest
		same  bool
	}{
		{"identical", base, true},
		{"surrounding whitespace", domain.ThreatModelJobRequest{Content: "  Web app with DB\n", Framework: domain.FrameworkSTRIDE}, true},
		{"default framework", domain.ThreatModelJobRequest{Content: "Web app with DB"}, true},
		{"priority ignored", domain.ThreatModelJobRequest{Content: "Web app with DB", Framework: domain.FrameworkSTRIDE, Priority: domain.PriorityHigh}, true},
		{"different content", domain.ThreatModelJobRequest{Content: "Mobile app", Framework: domain.FrameworkSTRIDE}, false},
		{"different framework", domain.ThreatModelJobRequest{Content: "Web app with DB", Framework: domain.FrameworkPASTA}, false},
		{"file id", domain.ThreatModelJobRequest{Content: "Web app with DB", Framework: domain.FrameworkSTRIDE, FileID: "abc"}, false},
		{"provider hint", domain.ThreatModelJobRequest{Content: "Web app with DB", Framework: domain.FrameworkSTRIDE, LLMProvider: "mock"}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.same, Fingerprint(base) == Fingerprint(tc.other))
		})
	}
}

func TestFingerprintNormalizesAliasesAndCase(t *testing.T) {
	a := domain.ThreatModelJobRequest{Content: "x", Framework: "ATTACK_TREES", LLMProvider: "OpenAI"}
	b := domain.ThreatModelJobRequest{Content: "x", Framework: domain.FrameworkAttackTrees, LLMProvider: "openai"}
	assert.Equal(t, Fingerprint(a), Fingerprint(b))
	assert.Len(t, Fingerprint(a), 64)
}

func TestFingerprintFieldBoundaries(t *testing.T) {
	a := domain.ThreatModelJobRequest{Content: "ab", FileID: "c"}
	b := domain.ThreatModelJobRequest{Content: "a", FileID: "bc"}
	assert.NotEqual(t, Fingerprint(a), Fingerprint(b))
}

func TestResultCacheGetPut(t *testing.T) {
	clock := newManualClock()
	cache := NewResultCache(clock)

	_, ok := cache.Get("k")
	assert.False(t, ok)

	cache.Put("k", domain.ThreatModelResult{ThreatModel: "tm"})
	clock.Advance(time.Minute)

	entry, ok := cache.Get("k")
	require.True(t, ok)
	assert.Equal(t, "tm", entry.Result.ThreatModel)
	assert.Equal(t, 2, entry.AccessCount)
	assert.Equal(t, clock.Now(), entry.LastAccessed)

	entry, _ = cache.Get("k")
	assert.Equal(t, 3, entry.AccessCount)

	stats := cache.Stats()
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 2.0/3.0, stats.HitRate, 0.0001)
}

func TestResultCachePutReplaces(t *testing.T) {
	cache := NewResultCache(nil)
	cache.Put("k", domain.ThreatModelResult{ThreatModel: "one"})
	cache.Put("k", domain.ThreatModelResult{ThreatModel: "two"})

	entry, _ := cache.Get("k")
	assert.Equal(t, "two", entry.Result.ThreatModel)
	assert.Equal(t, 1, cache.Len())
}

func TestResultCacheEvictUsesCreationTime(t *testing.T) {
	clock := newManualClock()
	cache := NewResultCache(clock)
	cache.Put("old", domain.ThreatModelResult{})
	clock.Advance(10 * time.Hour)
	cache.Put("new", domain.ThreatModelResult{})

	// Reading does not refresh the entry's age.
	_, _ = cache.Get("old")

	assert.Equal(t, 1, cache.EvictOlderThan(5*time.Hour))
	_, ok := cache.Get("old")
	assert.False(t, ok)
	_, ok = cache.Get("new")
	assert.True(t, ok)
}
