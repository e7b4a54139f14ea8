package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// Host to bind.
	Host string `yaml:"host,omitempty" json:"host,omitempty" jsonschema:"title=Host,description=Bind address,default=0.0.0.0"`

	// Port to listen on.
	Port int `yaml:"port,omitempty" json:"port,omitempty" jsonschema:"title=Port,description=Listen port,minimum=1,maximum=65535,default=8000"`

	// AllowedOrigins for CORS. The ALLOWED_ORIGINS environment
	// variable overrides with a comma-separated list.
	AllowedOrigins []string `yaml:"allowed_origins,omitempty" json:"allowed_origins,omitempty" jsonschema:"title=Allowed Origins,description=CORS allowed origins"`
}

// SetDefaults applies default values.
func (c *ServerConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8000
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
}

// Validate checks the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	return nil
}

// Address returns the host:port listen address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DataConfig locates the data volume holding indexes, corpora and
// model files.
type DataConfig struct {
	// Dir is the data volume root. Resolution order: explicit value
	// (flag, yaml or DATA_DIR) > /app/data when present > ./data.
	Dir string `yaml:"dir,omitempty" json:"dir,omitempty" jsonschema:"title=Directory,description=Data volume root"`

	// Watch enables automatic index reload on data volume changes.
	Watch bool `yaml:"watch,omitempty" json:"watch,omitempty" jsonschema:"title=Watch,description=Reload indexes when the data volume changes,default=false"`
}

// SetDefaults applies default values.
func (c *DataConfig) SetDefaults() {
	if c.Dir == "" {
		if info, err := os.Stat("/app/data"); err == nil && info.IsDir() {
			c.Dir = "/app/data"
		} else {
			c.Dir = "./data"
		}
	}
}

// Validate checks the data configuration.
func (c *DataConfig) Validate() error {
	if c.Dir == "" {
		return fmt.Errorf("dir is required")
	}
	return nil
}

// IndicesDir returns the directory scanned for index artifacts.
func (c *DataConfig) IndicesDir() string {
	return filepath.Join(c.Dir, "indices")
}

// ModelsDir returns the directory holding local model files.
func (c *DataConfig) ModelsDir() string {
	return filepath.Join(c.Dir, "models")
}
