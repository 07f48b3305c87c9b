package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/threatforge/internal/config"
	"github.com/timmy/threatforge/internal/domain"
	"github.com/timmy/threatforge/internal/prompts"
)

func testLLMConfig() config.LLMConfig {
	return config.LLMConfig{MaxTokens: 2000, Temperature: 0.7, Timeout: 5 * time.Second}
}

func TestEstimateCost(t *testing.T) {
	prompt := string(make([]byte, 4000)) // 1000 prompt tokens

	assert.InDelta(t, 0.07, EstimateCost(prompt, 2000, Pricing{InputPer1K: 0.01, OutputPer1K: 0.03}), 1e-9)
	assert.InDelta(t, 0.033, EstimateCost(prompt, 2000, Pricing{InputPer1K: 0.003, OutputPer1K: 0.015}), 1e-9)
	assert.Equal(t, 0.0, EstimateCost(prompt, 2000, Pricing{}))
	// Rounded to 4 decimals.
	assert.Equal(t, 0.0001, EstimateCost("abcd", 0, Pricing{InputPer1K: 0.1}))
}

func TestOpenAIGenerator(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"# Threats"}}]}`))
	}))
	defer srv.Close()

	gen := NewOpenAIGenerator(config.ProviderConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1/"}, testLLMConfig())
	text, err := gen.Generate(context.Background(), "analyse this")
	require.NoError(t, err)
	assert.Equal(t, "# Threats", text)

	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.Equal(t, 2000, got.MaxTokens)
	assert.InDelta(t, 0.7, got.Temperature, 1e-9)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, prompts.SystemPrompt, got.Messages[0].Content)
	assert.Equal(t, "analyse this", got.Messages[1].Content)
	assert.Equal(t, domain.ProviderOpenAI, gen.Provider())
}

func TestOpenAIGeneratorErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"api error", http.StatusUnauthorized, `{"error":{"message":"bad key","type":"auth"}}`, "OpenAI generation failed: HTTP 401: bad key"},
		{"no choices", http.StatusOK, `{"choices":[]}`, "OpenAI generation failed: no choices in response"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			gen := NewOpenAIGenerator(config.ProviderConfig{APIKey: "k", BaseURL: srv.URL}, testLLMConfig())
			_, err := gen.Generate(context.Background(), "p")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestAnthropicGenerator(t *testing.T) {
	var got messagesRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "ak-test", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"part one, "},{"type":"tool_use"},{"type":"text","text":"part two"}]}`))
	}))
	defer srv.Close()

	gen := NewAnthropicGenerator(config.ProviderConfig{APIKey: "ak-test", BaseURL: srv.URL}, testLLMConfig())
	text, err := gen.Generate(context.Background(), "scenario")
	require.NoError(t, err)
	assert.Equal(t, "part one, part two", text)
	assert.Equal(t, "claude-3-5-sonnet-20241022", got.Model)
	assert.Equal(t, prompts.SystemPrompt, got.System)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
}

func TestAnthropicGeneratorError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	defer srv.Close()

	gen := NewAnthropicGenerator(config.ProviderConfig{APIKey: "k", BaseURL: srv.URL}, testLLMConfig())
	_, err := gen.Generate(context.Background(), "p")
	require.Error(t, err)
	assert.Equal(t, "Anthropic generation failed: HTTP 429: slow down", err.Error())
}

func TestMockGenerator(t *testing.T) {
	gen := NewMockGenerator(0)
	a, err := gen.Generate(context.Background(), "same")
	require.NoError(t, err)
	b, _ := gen.Generate(context.Background(), "same")
	assert.Equal(t, a, b)
	assert.Equal(t, int64(2), gen.Calls())
	assert.Equal(t, 0.0, gen.EstimateCost("same"))

	slow := NewMockGenerator(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = slow.Generate(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProviderRegistryResolve(t *testing.T) {
	openai := &stubGenerator{provider: domain.ProviderOpenAI}
	mock := &stubGenerator{provider: domain.ProviderMock}
	reg := NewProviderRegistry(mock, nil, openai)

	assert.Equal(t, []domain.Provider{domain.ProviderOpenAI, domain.ProviderMock}, reg.Available())

	g, err := reg.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderOpenAI, g.Provider())

	g, err = reg.Resolve("MOCK")
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderMock, g.Provider())

	_, err = reg.Resolve("anthropic")
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.EqualError(t, err, "provider anthropic not available")

	_, err = reg.Resolve("nonexistent")
	assert.EqualError(t, err, "provider nonexistent not available")

	_, err = NewProviderRegistry().Resolve("")
	assert.ErrorIs(t, err, ErrNoProviders)
}

func TestProviderRegistryFromConfig(t *testing.T) {
	cfg := testLLMConfig()
	cfg.Anthropic = config.ProviderConfig{APIKey: "k", InputPricePer1K: 0.003, OutputPricePer1K: 0.015}
	cfg.Mock.Enabled = true

	reg := NewProviderRegistryFromConfig(cfg)
	assert.Equal(t, []domain.Provider{domain.ProviderAnthropic, domain.ProviderMock}, reg.Available())

	estimates := reg.EstimateAll(string(make([]byte, 4000)))
	require.Len(t, estimates, 2)
	assert.Equal(t, domain.ProviderAnthropic, estimates[0].Provider)
	require.NotNil(t, estimates[0].EstimatedCost)
	assert.InDelta(t, 0.033, *estimates[0].EstimatedCost, 1e-9)
	assert.Equal(t, 0.0, *estimates[1].EstimatedCost)
}
