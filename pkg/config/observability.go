package config

import (
	"fmt"
	"os"
)

// ObservabilityConfig groups tracing and metrics settings.
type ObservabilityConfig struct {
	Tracing TracingConfig        `yaml:"tracing,omitempty" json:"tracing,omitempty" jsonschema:"title=Tracing,description=OTLP tracing settings"`
	Metrics MetricsServingConfig `yaml:"metrics,omitempty" json:"metrics,omitempty" jsonschema:"title=Metrics,description=Prometheus metrics settings"`
}

// SetDefaults applies default values.
func (c *ObservabilityConfig) SetDefaults() {
	c.Tracing.SetDefaults()
	c.Metrics.SetDefaults()
}

// Validate checks the observability configuration.
func (c *ObservabilityConfig) Validate() error {
	if err := c.Tracing.Validate(); err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	return nil
}

// TracingConfig configures the OTLP trace exporter. An absent
// endpoint silently disables tracing.
type TracingConfig struct {
	// Enabled turns tracing on. Setting OTEL_EXPORTER_OTLP_ENDPOINT
	// enables it implicitly.
	Enabled bool `yaml:"enabled,omitempty" json:"enabled,omitempty" jsonschema:"title=Enabled,description=Enable OTLP tracing,default=false"`

	// Endpoint of the OTLP/gRPC collector.
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty" jsonschema:"title=Endpoint,description=OTLP collector endpoint"`

	// ServiceName reported on spans.
	ServiceName string `yaml:"service_name,omitempty" json:"service_name,omitempty" jsonschema:"title=Service Name,description=service.name resource attribute,default=gavel"`

	// SamplingRate between 0 and 1.
	SamplingRate float64 `yaml:"sampling_rate,omitempty" json:"sampling_rate,omitempty" jsonschema:"title=Sampling Rate,description=Trace sampling ratio,minimum=0,maximum=1,default=1"`
}

// SetDefaults applies default values.
func (c *TracingConfig) SetDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	if c.Endpoint != "" {
		c.Enabled = true
	}
	if c.ServiceName == "" {
		c.ServiceName = "gavel"
	}
	if c.SamplingRate == 0 {
		c.SamplingRate = 1.0
	}
}

// Validate checks the tracing configuration.
func (c *TracingConfig) Validate() error {
	if c.Enabled && c.Endpoint == "" {
		return fmt.Errorf("endpoint is required when tracing is enabled")
	}
	if c.SamplingRate < 0 || c.SamplingRate > 1 {
		return fmt.Errorf("sampling_rate must be between 0 and 1")
	}
	return nil
}

// MetricsServingConfig configures the Prometheus endpoint.
type MetricsServingConfig struct {
	// Enabled serves Prometheus metrics.
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty" jsonschema:"title=Enabled,description=Serve Prometheus metrics,default=true"`

	// Path of the metrics endpoint.
	Path string `yaml:"path,omitempty" json:"path,omitempty" jsonschema:"title=Path,description=Metrics route,default=/metrics"`
}

// SetDefaults applies default values.
func (c *MetricsServingConfig) SetDefaults() {
	if c.Enabled == nil {
		enabled := true
		c.Enabled = &enabled
	}
	if c.Path == "" {
		c.Path = "/metrics"
	}
}

// Validate checks the metrics configuration.
func (c *MetricsServingConfig) Validate() error {
	return nil
}

// MetricsEnabled reports the effective metrics switch.
func (c *MetricsServingConfig) MetricsEnabled() bool {
	return c.Enabled != nil && *c.Enabled
}
