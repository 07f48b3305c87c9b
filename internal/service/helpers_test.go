package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/timmy/threatforge/internal/domain"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// stubGenerator answers with a fixed text after an optional delay or gate.
type stubGenerator struct {
	provider domain.Provider
	text     string
	err      error
	cost     float64
	delay    time.Duration
	gate     chan struct{}
	panicMsg string
	calls    atomic.Int64
}

func (g *stubGenerator) Provider() domain.Provider { return g.provider }

func (g *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.calls.Add(1)
	if g.panicMsg != "" {
		panic(g.panicMsg)
	}
	if g.gate != nil {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-g.gate:
		}
	}
	if g.delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(g.delay):
		}
	}
	if g.err != nil {
		return "", g.err
	}
	return g.text, nil
}

func (g *stubGenerator) EstimateCost(string) float64 { return g.cost }

type staticFiles map[string]*domain.UploadedFile

func (f staticFiles) Lookup(_ context.Context, id string) (*domain.UploadedFile, error) {
	return f[id], nil
}

// blockingFiles holds every lookup until the caller's context ends.
type blockingFiles struct{}

func (blockingFiles) Lookup(ctx context.Context, _ string) (*domain.UploadedFile, error) {
	<-ctx.Done()
	return nil, nil
}
