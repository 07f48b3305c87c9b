package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/threatforge/internal/config"
	"github.com/timmy/threatforge/internal/domain"
	"github.com/timmy/threatforge/internal/prompts"
)

// OpenAIGenerator calls an OpenAI-compatible chat completions endpoint.
type OpenAIGenerator struct {
	client      *resty.Client
	model       string
	endpoint    string
	maxTokens   int
	temperature float64
	pricing     Pricing
}

// NewOpenAIGenerator creates a generator from provider and shared LLM settings.
func NewOpenAIGenerator(p config.ProviderConfig, llm config.LLMConfig) *OpenAIGenerator {
	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+p.APIKey)
	client.SetHeader("Content-Type", "application/json")
	if llm.Timeout > 0 {
		client.SetTimeout(llm.Timeout)
	} else {
		client.SetTimeout(90 * time.Second)
	}

	baseURL := strings.TrimSuffix(p.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := p.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	return &OpenAIGenerator{
		client:      client,
		model:       model,
		endpoint:    baseURL + "/chat/completions",
		maxTokens:   llm.MaxTokens,
		temperature: llm.Temperature,
		pricing:     Pricing{InputPer1K: p.InputPricePer1K, OutputPer1K: p.OutputPricePer1K},
	}
}

func (g *OpenAIGenerator) Provider() domain.Provider { return domain.ProviderOpenAI }

// Model returns the model name being used.
func (g *OpenAIGenerator) Model() string { return g.model }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Generate sends the system persona plus prompt and returns the first choice.
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	text, err := g.generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("OpenAI generation failed: %w", err)
	}
	return text, nil
}

func (g *OpenAIGenerator) generate(ctx context.Context, prompt string) (string, error) {
	req := chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: prompts.SystemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	}

	var resp chatResponse
	httpResp, err := g.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		SetError(&resp).
		Post(g.endpoint)
	if err != nil {
		return "", err
	}

	if httpResp.IsError() {
		if resp.Error != nil {
			return "", fmt.Errorf("HTTP %d: %s", httpResp.StatusCode(), resp.Error.Message)
		}
		return "", fmt.Errorf("HTTP %d: %s", httpResp.StatusCode(), string(httpResp.Body()))
	}
	if resp.Error != nil {
		return "", fmt.Errorf("API error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response (status: %d)", httpResp.StatusCode())
	}

	return resp.Choices[0].Message.Content, nil
}

func (g *OpenAIGenerator) EstimateCost(prompt string) float64 {
	return EstimateCost(prompt, g.maxTokens, g.pricing)
}
