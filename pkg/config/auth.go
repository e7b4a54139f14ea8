package config

import (
	"fmt"
	"net/url"
)

// AuthConfig configures JWT validation for the chat history routes.
// An empty JWKS URL disables auth; history routes are then served
// openly and a warning is logged at startup.
type AuthConfig struct {
	// JWKSURL is the JSON Web Key Set endpoint.
	JWKSURL string `yaml:"jwks_url,omitempty" json:"jwks_url,omitempty" jsonschema:"title=JWKS URL,description=JSON Web Key Set endpoint (empty disables auth)"`

	// Issuer expected in tokens.
	Issuer string `yaml:"issuer,omitempty" json:"issuer,omitempty" jsonschema:"title=Issuer,description=Expected token issuer"`

	// Audience expected in tokens.
	Audience string `yaml:"audience,omitempty" json:"audience,omitempty" jsonschema:"title=Audience,description=Expected token audience"`
}

// Enabled reports whether JWT validation is configured.
func (c *AuthConfig) Enabled() bool {
	return c.JWKSURL != ""
}

// SetDefaults applies default values.
func (c *AuthConfig) SetDefaults() {}

// Validate checks the auth configuration.
func (c *AuthConfig) Validate() error {
	if !c.Enabled() {
		return nil
	}
	if _, err := url.ParseRequestURI(c.JWKSURL); err != nil {
		return fmt.Errorf("jwks_url is not a valid URL: %w", err)
	}
	return nil
}
