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

const anthropicVersion = "2023-06-01"

// AnthropicGenerator calls the Anthropic Messages API.
type AnthropicGenerator struct {
	client      *resty.Client
	model       string
	endpoint    string
	maxTokens   int
	temperature float64
	pricing     Pricing
}

// NewAnthropicGenerator creates a generator from provider and shared LLM settings.
func NewAnthropicGenerator(p config.ProviderConfig, llm config.LLMConfig) *AnthropicGenerator {
	client := resty.New()
	client.SetHeader("x-api-key", p.APIKey)
	client.SetHeader("anthropic-version", anthropicVersion)
	client.SetHeader("Content-Type", "application/json")
	if llm.Timeout > 0 {
		client.SetTimeout(llm.Timeout)
	} else {
		client.SetTimeout(90 * time.Second)
	}

	baseURL := strings.TrimSuffix(p.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	model := p.Model
	if model == "" {
		model = "claude-3-5-sonnet-20241022"
	}

	return &AnthropicGenerator{
		client:      client,
		model:       model,
		endpoint:    baseURL + "/v1/messages",
		maxTokens:   llm.MaxTokens,
		temperature: llm.Temperature,
		pricing:     Pricing{InputPer1K: p.InputPricePer1K, OutputPer1K: p.OutputPricePer1K},
	}
}

func (g *AnthropicGenerator) Provider() domain.Provider { return domain.ProviderAnthropic }

type messagesRequest struct {
	Model       string        `json:"model"`
	System      string        `json:"system"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate returns the concatenated text blocks of the reply.
func (g *AnthropicGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	text, err := g.generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("Anthropic generation failed: %w", err)
	}
	return text, nil
}

func (g *AnthropicGenerator) generate(ctx context.Context, prompt string) (string, error) {
	req := messagesRequest{
		Model:       g.model,
		System:      prompts.SystemPrompt,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	}

	var resp messagesResponse
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

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("no text content in response")
	}
	return b.String(), nil
}

func (g *AnthropicGenerator) EstimateCost(prompt string) float64 {
	return EstimateCost(prompt, g.maxTokens, g.pricing)
}
