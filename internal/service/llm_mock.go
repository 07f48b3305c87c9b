package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/timmy/threatforge/internal/domain"
)

// MockGenerator returns deterministic text without network access.
type MockGenerator struct {
	delay time.Duration
	calls atomic.Int64
}

// NewMockGenerator creates a mock that waits delay before answering.
func NewMockGenerator(delay time.Duration) *MockGenerator {
	return &MockGenerator{delay: delay}
}

func (g *MockGenerator) Provider() domain.Provider { return domain.ProviderMock }

// Generate honours ctx while waiting so cancellation and timeouts are observable.
func (g *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.calls.Add(1)
	if g.delay > 0 {
		t := time.NewTimer(g.delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-t.C:
		}
	}
	sum := sha256.Sum256([]byte(prompt))
	return fmt.Sprintf("# Mock Analysis\n\nDigest: %s\nPrompt length: %d characters\n",
		hex.EncodeToString(sum[:8]), len(prompt)), nil
}

// EstimateCost is always zero.
func (g *MockGenerator) EstimateCost(string) float64 { return 0 }

// Calls reports how many times Generate was invoked.
func (g *MockGenerator) Calls() int64 { return g.calls.Load() }
