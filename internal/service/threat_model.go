package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/timmy/threatforge/internal/domain"
	"github.com/timmy/threatforge/internal/logger"
	"github.com/timmy/threatforge/internal/prompts"
)

// ThreatModelService generates threat models inline with the request.
type ThreatModelService struct {
	providers *ProviderRegistry
	files     FileLookup
	clock     Clock
}

// NewThreatModelService creates the synchronous generator. files may be nil.
func NewThreatModelService(providers *ProviderRegistry, files FileLookup, clock Clock) *ThreatModelService {
	if clock == nil {
		clock = SystemClock{}
	}
	return &ThreatModelService{providers: providers, files: files, clock: clock}
}

// Providers lists the configured providers.
func (s *ThreatModelService) Providers() []domain.Provider {
	return s.providers.Available()
}

// Generate runs one threat model generation and waits for it.
func (s *ThreatModelService) Generate(ctx context.Context, req domain.ThreatModelRequest) (*domain.ThreatModelResult, error) {
	req.Normalize()
	start := s.clock.Now()

	gen, err := s.providers.Resolve(req.LLMProvider)
	if err != nil {
		return nil, err
	}
	ctx = logger.SetProvider(ctx, string(gen.Provider()))

	prompt, err := s.buildPrompt(ctx, req)
	if err != nil {
		return nil, err
	}

	text, err := gen.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	elapsed := now.Sub(start).Milliseconds()
	result := &domain.ThreatModelResult{
		ID:               uuid.NewString(),
		ThreatModel:      text,
		EstimatedCost:    gen.EstimateCost(prompt),
		ProviderUsed:     gen.Provider(),
		Framework:        req.Framework,
		ContentAnalyzed:  req.Content,
		GeneratedAt:      now,
		ProcessingTimeMs: &elapsed,
	}
	logger.With(logger.Fields{}).WithDuration(elapsed).WithCost(result.EstimatedCost).
		Info(ctx, "Threat model generated")
	return result, nil
}

// EstimateCosts prices the request against every available provider.
func (s *ThreatModelService) EstimateCosts(ctx context.Context, req domain.ThreatModelRequest) ([]domain.CostEstimate, error) {
	req.Normalize()
	if len(s.providers.Available()) == 0 {
		return nil, ErrNoProviders
	}
	prompt, err := s.buildPrompt(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.providers.EstimateAll(prompt), nil
}

func (s *ThreatModelService) buildPrompt(ctx context.Context, req domain.ThreatModelRequest) (string, error) {
	var fileDescription string
	if req.FileID != "" {
		if s.files == nil {
			return "", fmt.Errorf("%w: %s", ErrFileNotFound, req.FileID)
		}
		meta, err := s.files.Lookup(ctx, req.FileID)
		if err != nil {
			return "", err
		}
		if meta == nil {
			return "", fmt.Errorf("%w: %s", ErrFileNotFound, req.FileID)
		}
		fileDescription = prompts.DescribeFile(meta)
	}
	return prompts.ThreatModelPrompt(req, fileDescription), nil
}
