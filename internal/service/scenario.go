package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/timmy/threatforge/internal/domain"
	"github.com/timmy/threatforge/internal/logger"
	"github.com/timmy/threatforge/internal/prompts"
)

// ScenarioService generates tabletop exercise scenarios.
type ScenarioService struct {
	providers *ProviderRegistry
}

func NewScenarioService(providers *ProviderRegistry) *ScenarioService {
	return &ScenarioService{providers: providers}
}

func (s *ScenarioService) Providers() []domain.Provider {
	return s.providers.Available()
}

// Generate produces a full scenario.
func (s *ScenarioService) Generate(ctx context.Context, req domain.ScenarioRequest) (*domain.ScenarioResult, error) {
	req.Normalize()
	gen, err := s.providers.Resolve(req.LLMProvider)
	if err != nil {
		return nil, err
	}
	ctx = logger.SetProvider(ctx, string(gen.Provider()))

	prompt := prompts.ScenarioPrompt(req)
	text, err := gen.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	result := &domain.ScenarioResult{
		ID:            uuid.NewString(),
		Scenario:      text,
		EstimatedCost: gen.EstimateCost(prompt),
		ProviderUsed:  gen.Provider(),
	}
	logger.With(logger.Fields{}).WithCost(result.EstimatedCost).Info(ctx, "Scenario generated for %s", req.CompanyName)
	return result, nil
}

func (s *ScenarioService) EstimateCosts(_ context.Context, req domain.ScenarioRequest) ([]domain.CostEstimate, error) {
	req.Normalize()
	if len(s.providers.Available()) == 0 {
		return nil, ErrNoProviders
	}
	return s.providers.EstimateAll(prompts.ScenarioPrompt(req)), nil
}

// RerollSection rewrites one section of an existing scenario.
func (s *ScenarioService) RerollSection(ctx context.Context, req domain.RerollSectionRequest) (*domain.RerollSectionResult, error) {
	gen, err := s.providers.Resolve(req.LLMProvider)
	if err != nil {
		return nil, err
	}
	ctx = logger.SetProvider(ctx, string(gen.Provider()))

	prompt := prompts.RerollSectionPrompt(req)
	text, err := gen.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	logger.CtxInfo(ctx, "Rerolled scenario section %q", req.SectionTitle)
	return &domain.RerollSectionResult{
		SectionTitle:  req.SectionTitle,
		NewContent:    text,
		EstimatedCost: gen.EstimateCost(prompt),
		ProviderUsed:  gen.Provider(),
	}, nil
}
