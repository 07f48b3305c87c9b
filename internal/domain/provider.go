package domain

import "strings"

// Provider identifies a text generation backend.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderMock      Provider = "mock"
)

// ProviderOrder is the resolution order used when no provider is requested.
var ProviderOrder = []Provider{ProviderOpenAI, ProviderAnthropic, ProviderMock}

// ParseProvider normalizes a provider hint. Unknown names are returned as-is
// with ok=false so callers can report them.
func ParseProvider(s string) (Provider, bool) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case ProviderOpenAI, ProviderAnthropic, ProviderMock:
		return p, true
	}
	return p, false
}

// CostEstimate is the per-provider cost of a prompt. Error is set instead of
// EstimatedCost when the provider could not produce an estimate.
type CostEstimate struct {
	Provider      Provider `json:"provider"`
	EstimatedCost *float64 `json:"estimated_cost"`
	Error         string   `json:"error,omitempty"`
}
