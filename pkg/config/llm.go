package config

import (
	"fmt"
	"time"

	"github.com/lexlanka/gavel/pkg/faults"
)

// LLMProvider identifies the LLM provider type.
type LLMProvider string

const (
	LLMProviderGemini       LLMProvider = "gemini"
	LLMProviderOpenAICompat LLMProvider = "openai-compat"
)

// LLMConfig configures the LLM provider used for answer generation.
type LLMConfig struct {
	// Provider type (gemini, openai-compat).
	Provider LLMProvider `yaml:"provider,omitempty" json:"provider,omitempty" jsonschema:"title=Provider,description=LLM provider,enum=gemini,enum=openai-compat,default=gemini"`

	// Model name (e.g., "gemini-2.0-flash-exp", "gpt-4o-mini").
	Model string `yaml:"model,omitempty" json:"model,omitempty" jsonschema:"title=Model,description=Model identifier"`

	// APIKey for authentication. Supports ${VAR} expansion.
	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty" jsonschema:"title=API Key,description=API key for authentication (use ${ENV_VAR})"`

	// BaseURL overrides the default endpoint for openai-compat.
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty" jsonschema:"title=Base URL,description=Custom base URL for the chat completions endpoint"`

	// Timeout for a single generation request.
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty" jsonschema:"title=Timeout,description=Per-request timeout,default=30s"`
}

// SetDefaults applies default values.
func (c *LLMConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = detectProviderFromEnv()
	}

	if c.Model == "" {
		switch c.Provider {
		case LLMProviderGemini:
			c.Model = "gemini-2.0-flash-exp"
		case LLMProviderOpenAICompat:
			c.Model = "gpt-4o-mini"
		}
	}

	if c.APIKey == "" {
		c.APIKey = GetProviderAPIKey(string(c.Provider))
	}

	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
}

// Validate checks the LLM configuration. A missing API key for the
// selected provider is a startup-fatal configuration fault.
func (c *LLMConfig) Validate() error {
	validProviders := map[LLMProvider]bool{
		LLMProviderGemini:       true,
		LLMProviderOpenAICompat: true,
	}

	if !validProviders[c.Provider] {
		return fmt.Errorf("invalid provider %q (valid: gemini, openai-compat)", c.Provider)
	}

	if c.APIKey == "" {
		return faults.Newf(faults.ConfigMissing, "config", "validate",
			"api_key is required for provider %q", c.Provider)
	}

	return nil
}
