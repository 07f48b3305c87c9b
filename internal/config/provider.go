package config

import (
	"fmt"
	"os"
)

// ProviderConfig configures one hosted text generation provider.
// A provider is considered available once an API key resolves.
type ProviderConfig struct {
	Name             string  `mapstructure:"-"`
	Model            string  `mapstructure:"model"`
	APIKey           string  `mapstructure:"api_key"`      // API key (can be set directly or via env var)
	APIKeyEnv        string  `mapstructure:"api_key_env"`  // Environment variable name for API key
	BaseURL          string  `mapstructure:"base_url"`     // Base URL, overridable for compatible gateways
	BaseURLEnv       string  `mapstructure:"base_url_env"` // Environment variable name for base URL
	InputPricePer1K  float64 `mapstructure:"input_price_per_1k"`
	OutputPricePer1K float64 `mapstructure:"output_price_per_1k"`
}

// ResolveEnvVars loads APIKey and BaseURL from the named environment
// variables. Direct values take precedence if already set.
func (c *ProviderConfig) ResolveEnvVars() {
	if c.APIKeyEnv != "" && c.APIKey == "" {
		if val := os.Getenv(c.APIKeyEnv); val != "" {
			c.APIKey = val
		}
	}

	if c.BaseURLEnv != "" {
		if val := os.Getenv(c.BaseURLEnv); val != "" {
			c.BaseURL = val
		}
	}
}

// Available reports whether the provider has credentials.
func (c ProviderConfig) Available() bool {
	return c.APIKey != ""
}

// Validate checks the static fields. Missing credentials are not an error;
// the provider is simply unavailable.
func (c ProviderConfig) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("llm %q: model is required", c.Name)
	}
	if c.BaseURL == "" {
		return fmt.Errorf("llm %q: base_url is required", c.Name)
	}
	if c.InputPricePer1K < 0 || c.OutputPricePer1K < 0 {
		return fmt.Errorf("llm %q: prices must not be negative", c.Name)
	}
	return nil
}
