package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of service-specific environment variables.
const EnvPrefix = "GENIEIQ_"

// platformPrefixes are injected by the hosting platform and map 1:1 onto
// config keys (LAKEBASE_HOST -> lakebase_host).
var platformPrefixes = []string{"LAKEBASE_", "DATABRICKS_"}

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if GENIEIQ_CONFIG is set
//  3. platform env (LAKEBASE_*, DATABRICKS_*)
//  4. service env (GENIEIQ_*)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(EnvPrefix + "CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	for _, prefix := range platformPrefixes {
		if err := k.Load(env.Provider(prefix, ".", strings.ToLower), nil); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// GENIEIQ_SCAN_DELAY_MS -> scan_delay_ms; underscores are kept to match koanf tags.
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.DatabricksHost = normalizeHost(cfg.DatabricksHost)
	return &cfg, nil
}

// Validate checks invariants that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if c.LakebasePort < 1 || c.LakebasePort > 65535 {
		return fmt.Errorf("%w: lakebase_port %d out of range", ErrInvalidConfig, c.LakebasePort)
	}
	if (c.DatabricksClientID == "") != (c.DatabricksClientSecret == "") {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, ErrPartialOAuth)
	}
	return nil
}

func normalizeHost(host string) string {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if host == "" {
		return ""
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}
	return host
}
