// Package config loads a2actl's server configuration from YAML,
// following the teacher's configuration-as-data approach (session/
// artifact/memory service URIs in pkg/cli/app.go's commonServiceFlags)
// generalized onto the A2A dispatcher + registry catalog.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ServeConfig is the top-level shape of a2actl serve's --config file.
// Command-line flags that are given explicitly take precedence over the
// file, even when given a zero value; a flag not given falls back to the
// loaded config, which in turn falls back to its struct defaults.
type ServeConfig struct {
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	APIKey      string   `yaml:"api_key"`
	RegistryDB  string   `yaml:"registry_db"`
	CORSOrigins []string `yaml:"cors_origins"`
	Metrics     bool     `yaml:"metrics"`

	// SupportsFollowUp mirrors the demo worker's advertised
	// capabilities.supports_follow_up (SPEC_FULL.md "Supplemented
	// features"): whether a follow-up tasks/send against a running task
	// is delivered to the worker's input channel. Defaults to true.
	SupportsFollowUp bool `yaml:"supports_follow_up"`
}

// DefaultServeConfig mirrors serveCommand's flag defaults.
func DefaultServeConfig() ServeConfig {
	return ServeConfig{Host: "127.0.0.1", Port: 8080, SupportsFollowUp: true}
}

// Load reads and parses a YAML config file. Environment variables are
// not expanded here; AGENTVAULT_*-prefixed overrides belong to the
// credential resolver (pkg/auth), not this file, per spec §4.2/§6.
func Load(path string) (ServeConfig, error) {
	cfg := DefaultServeConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
