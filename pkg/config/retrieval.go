package config

import (
	"fmt"
	"time"
)

// EmbedderConfig configures the local sentence encoder.
type EmbedderConfig struct {
	// Model name. Model files are expected under
	// <data>/models/<basename of the model name>.
	Model string `yaml:"model,omitempty" json:"model,omitempty" jsonschema:"title=Model,description=Sentence encoder model,default=BAAI/bge-small-en-v1.5"`

	// MaxLength caps input tokens per text.
	MaxLength int `yaml:"max_length,omitempty" json:"max_length,omitempty" jsonschema:"title=Max Length,description=Token cap per input,default=512"`
}

// SetDefaults applies default values.
func (c *EmbedderConfig) SetDefaults() {
	if c.Model == "" {
		c.Model = "BAAI/bge-small-en-v1.5"
	}
	if c.MaxLength == 0 {
		c.MaxLength = 512
	}
}

// Validate checks the embedder configuration.
func (c *EmbedderConfig) Validate() error {
	if c.MaxLength < 1 {
		return fmt.Errorf("max_length must be positive, got %d", c.MaxLength)
	}
	return nil
}

// TranslatorConfig configures query translation. An empty endpoint
// leaves translation in identity mode.
type TranslatorConfig struct {
	// Endpoint of the local translation sidecar. Empty disables
	// translation; queries pass through unchanged.
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty" jsonschema:"title=Endpoint,description=Translation sidecar base URL (empty disables)"`

	// Model name, used to locate model files under <data>/models.
	Model string `yaml:"model,omitempty" json:"model,omitempty" jsonschema:"title=Model,description=Translation model,default=m2m100_418M"`

	// Timeout for a single translation request.
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty" jsonschema:"title=Timeout,description=Per-request timeout,default=10s"`
}

// SetDefaults applies default values.
func (c *TranslatorConfig) SetDefaults() {
	if c.Model == "" {
		c.Model = "m2m100_418M"
	}
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
}

// Validate checks the translator configuration.
func (c *TranslatorConfig) Validate() error {
	return nil
}

// RetrieverConfig configures hybrid retrieval.
type RetrieverConfig struct {
	// TopK results returned per query.
	TopK int `yaml:"top_k,omitempty" json:"top_k,omitempty" jsonschema:"title=Top K,description=Results per query,minimum=1,default=5"`
}

// SetDefaults applies default values.
func (c *RetrieverConfig) SetDefaults() {
	if c.TopK == 0 {
		c.TopK = 5
	}
}

// Validate checks the retriever configuration.
func (c *RetrieverConfig) Validate() error {
	if c.TopK < 1 {
		return fmt.Errorf("top_k must be positive, got %d", c.TopK)
	}
	return nil
}
