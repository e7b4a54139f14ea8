package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPath is the config file looked up when no --config
// flag is given. The service runs env-only when it is absent.
const DefaultConfigPath = "gavel.yaml"

// EnvPrefix marks environment variables that override config paths,
// e.g. GAVEL_SERVER_PORT=9000 sets server.port.
const EnvPrefix = "GAVEL_"

// Load reads the YAML file at path, expands ${VAR} references,
// overlays GAVEL_-prefixed environment variables and the deployment
// contract keys, then applies defaults and validates.
//
// A missing file is an error unless path is DefaultConfigPath, in
// which case the service configures itself from the environment
// alone.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path == "" {
		path = DefaultConfigPath
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if path != DefaultConfigPath {
			return nil, fmt.Errorf("config file %s not found", path)
		}
	} else {
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	expanded, err := expandKoanf(k)
	if err != nil {
		return nil, fmt.Errorf("failed to expand environment variables: %w", err)
	}
	k = expanded

	if err := k.Load(env.Provider(EnvPrefix, ".", envKeyToPath), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyContractEnv(cfg)
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// expandKoanf rebuilds the koanf tree with ${VAR} references expanded
// in every string value.
func expandKoanf(k *koanf.Koanf) (*koanf.Koanf, error) {
	expandedMap, ok := ExpandEnvVarsInData(k.Raw()).(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected type after env var expansion")
	}

	expanded := koanf.New(".")
	if err := expanded.Load(confmap.Provider(expandedMap, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load expanded config: %w", err)
	}
	return expanded, nil
}

// envKeyToPath maps a GAVEL_-prefixed environment variable to a
// config path. The first underscore separates the section from the
// field; known subsections split once more so nested keys resolve:
//
//	GAVEL_SERVER_ALLOWED_ORIGINS      -> server.allowed_origins
//	GAVEL_SESSIONS_ARCHIVE_DRIVER     -> sessions.archive.driver
//	GAVEL_OBSERVABILITY_TRACING_ENDPOINT -> observability.tracing.endpoint
func envKeyToPath(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}

	section, rest := parts[0], parts[1]
	for _, sub := range []string{"tracing", "metrics", "archive"} {
		if strings.HasPrefix(rest, sub+"_") {
			rest = sub + "." + strings.TrimPrefix(rest, sub+"_")
			break
		}
	}
	return section + "." + rest
}

// applyContractEnv applies the flat environment keys that deployments
// of this service use, overriding any file-sourced values.
func applyContractEnv(cfg *Config) {
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = LLMProvider(v)
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Data.Dir = v
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.Server.AllowedOrigins = origins
	}
	// OTEL_EXPORTER_OTLP_ENDPOINT is honored in TracingConfig.SetDefaults.
}
