package service

import (
	"context"
	"fmt"
	"math"

	"github.com/timmy/threatforge/internal/config"
	"github.com/timmy/threatforge/internal/domain"
	"github.com/timmy/threatforge/internal/logger"
)

// Generator produces text from a prompt using one provider.
type Generator interface {
	Provider() domain.Provider
	Generate(ctx context.Context, prompt string) (string, error)
	EstimateCost(prompt string) float64
}

// Pricing holds per-1K-token prices in USD.
type Pricing struct {
	InputPer1K  float64
	OutputPer1K float64
}

// EstimateCost applies the rough four-characters-per-token heuristic to the
// prompt and assumes the full maxTokens budget is spent on output.
// The result is rounded to 4 decimals.
func EstimateCost(prompt string, maxTokens int, p Pricing) float64 {
	promptTokens := float64(len(prompt)) / 4
	cost := promptTokens/1000*p.InputPer1K + float64(maxTokens)/1000*p.OutputPer1K
	return math.Round(cost*10000) / 10000
}

// ProviderRegistry resolves provider hints to configured generators.
// It is immutable after construction and safe for concurrent use.
type ProviderRegistry struct {
	generators map[domain.Provider]Generator
	order      []domain.Provider
}

// NewProviderRegistry registers generators in the fixed resolution order,
// skipping nil entries.
func NewProviderRegistry(generators ...Generator) *ProviderRegistry {
	r := &ProviderRegistry{generators: make(map[domain.Provider]Generator)}
	for _, g := range generators {
		if g == nil {
			continue
		}
		r.generators[g.Provider()] = g
	}
	for _, p := range domain.ProviderOrder {
		if _, ok := r.generators[p]; ok {
			r.order = append(r.order, p)
		}
	}
	return r
}

// NewProviderRegistryFromConfig builds generators for every provider whose
// API key resolves, plus the mock generator when enabled.
func NewProviderRegistryFromConfig(cfg config.LLMConfig) *ProviderRegistry {
	var gens []Generator

	if cfg.OpenAI.Available() {
		gens = append(gens, NewOpenAIGenerator(cfg.OpenAI, cfg))
	} else {
		logger.Info("Skipping provider: no API key configured, name=openai")
	}

	if cfg.Anthropic.Available() {
		gens = append(gens, NewAnthropicGenerator(cfg.Anthropic, cfg))
	} else {
		logger.Info("Skipping provider: no API key configured, name=anthropic")
	}

	if cfg.Mock.Enabled {
		gens = append(gens, NewMockGenerator(cfg.Mock.Delay))
	}

	r := NewProviderRegistry(gens...)
	logger.Info("Registered LLM providers: %v", r.Available())
	return r
}

// Available lists configured providers in resolution order.
func (r *ProviderRegistry) Available() []domain.Provider {
	out := make([]domain.Provider, len(r.order))
	copy(out, r.order)
	return out
}

// Resolve returns the generator for hint. An empty hint selects the first
// available provider.
func (r *ProviderRegistry) Resolve(hint string) (Generator, error) {
	if len(r.order) == 0 {
		return nil, ErrNoProviders
	}
	if hint == "" {
		return r.generators[r.order[0]], nil
	}
	p, _ := domain.ParseProvider(hint)
	g, ok := r.generators[p]
	if !ok {
		return nil, fmt.Errorf("provider %s %w", hint, ErrProviderUnavailable)
	}
	return g, nil
}

// EstimateAll returns a cost estimate for prompt from every available provider.
func (r *ProviderRegistry) EstimateAll(prompt string) []domain.CostEstimate {
	out := make([]domain.CostEstimate, 0, len(r.order))
	for _, p := range r.order {
		cost := r.generators[p].EstimateCost(prompt)
		out = append(out, domain.CostEstimate{Provider: p, EstimatedCost: &cost})
	}
	return out
}
