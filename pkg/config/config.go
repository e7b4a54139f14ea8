// Package config defines the Gavel service configuration and its
// loader. Configuration comes from a YAML file with ${ENV_VAR}
// expansion, overlaid by GAVEL_-prefixed environment variables and a
// small set of contract environment keys used by deployments.
package config

import (
	"fmt"
)

// Config is the root configuration for the Gavel service.
type Config struct {
	Server        ServerConfig        `yaml:"server,omitempty" json:"server,omitempty" jsonschema:"title=Server,description=HTTP server settings"`
	Data          DataConfig          `yaml:"data,omitempty" json:"data,omitempty" jsonschema:"title=Data,description=Data volume settings"`
	LLM           LLMConfig           `yaml:"llm,omitempty" json:"llm,omitempty" jsonschema:"title=LLM,description=Language model provider settings"`
	Embedder      EmbedderConfig      `yaml:"embedder,omitempty" json:"embedder,omitempty" jsonschema:"title=Embedder,description=Local sentence encoder settings"`
	Translator    TranslatorConfig    `yaml:"translator,omitempty" json:"translator,omitempty" jsonschema:"title=Translator,description=Query translation settings"`
	Retriever     RetrieverConfig     `yaml:"retriever,omitempty" json:"retriever,omitempty" jsonschema:"title=Retriever,description=Hybrid retrieval settings"`
	Sessions      SessionsConfig      `yaml:"sessions,omitempty" json:"sessions,omitempty" jsonschema:"title=Sessions,description=Session checkpoint and archive settings"`
	Auth          AuthConfig          `yaml:"auth,omitempty" json:"auth,omitempty" jsonschema:"title=Auth,description=JWT validation for history routes"`
	Observability ObservabilityConfig `yaml:"observability,omitempty" json:"observability,omitempty" jsonschema:"title=Observability,description=Tracing and metrics settings"`
}

// SetDefaults applies default values to every section.
func (c *Config) SetDefaults() {
	c.Server.SetDefaults()
	c.Data.SetDefaults()
	c.LLM.SetDefaults()
	c.Embedder.SetDefaults()
	c.Translator.SetDefaults()
	c.Retriever.SetDefaults()
	c.Sessions.SetDefaults()
	c.Auth.SetDefaults()
	c.Observability.SetDefaults()
}

// Validate checks every section and returns the first failure.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Data.Validate(); err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	if err := c.Embedder.Validate(); err != nil {
		return fmt.Errorf("embedder: %w", err)
	}
	if err := c.Translator.Validate(); err != nil {
		return fmt.Errorf("translator: %w", err)
	}
	if err := c.Retriever.Validate(); err != nil {
		return fmt.Errorf("retriever: %w", err)
	}
	if err := c.Sessions.Validate(); err != nil {
		return fmt.Errorf("sessions: %w", err)
	}
	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("observability: %w", err)
	}
	return nil
}
