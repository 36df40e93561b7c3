// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/beamline/services/refine"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "30s" or "2m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// BackendConfig configures one generation backend.
type BackendConfig struct {
	// Model overrides the adapter's default model.
	Model string `yaml:"model"`

	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `yaml:"api_key_env"`

	// RequestsPerMinute rate-limits outgoing calls. 0 disables.
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
}

// Config is the top-level beamline configuration, loaded from YAML
// with environment variables supplying the secrets.
type Config struct {
	// Backends maps backend identities to their settings. Identities
	// missing here fall back to adapter defaults.
	Backends map[string]BackendConfig `yaml:"backends"`

	// Rotation orders the bootstrap backends. Empty means the default
	// openai, anthropic, mistral order.
	Rotation []string `yaml:"rotation"`

	// Judge selects the backend and model for all evaluation calls.
	Judge struct {
		Backend string `yaml:"backend"`
		Model   string `yaml:"model"`
	} `yaml:"judge"`

	Run struct {
		// Timeout bounds a whole refinement run. 0 means no deadline.
		Timeout Duration `yaml:"timeout"`

		// MaxTokens caps each LLM reply. 0 uses adapter defaults.
		MaxTokens int `yaml:"max_tokens"`

		// Temperature for generation backends.
		Temperature float64 `yaml:"temperature"`

		// MaxToolIterations bounds the tool loop per generation call.
		MaxToolIterations int `yaml:"max_tool_iterations"`
	} `yaml:"run"`

	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
		JSON  bool   `yaml:"json"`
	} `yaml:"logging"`
}

// defaultConfig returns the configuration used when no file is given.
func defaultConfig() Config {
	var cfg Config
	cfg.Backends = map[string]BackendConfig{
		"openai":    {APIKeyEnv: "OPENAI_API_KEY"},
		"anthropic": {APIKeyEnv: "ANTHROPIC_API_KEY"},
		"mistral":   {APIKeyEnv: "MISTRAL_API_KEY"},
	}
	cfg.Judge.Backend = "openai"
	cfg.Judge.Model = "gpt-4o-mini"
	cfg.Run.Timeout = Duration(10 * time.Minute)
	cfg.Logging.Level = "info"
	return cfg
}

// LoadConfig reads the YAML file at path, layered over the defaults.
// An empty path returns the defaults unchanged.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// apiKey resolves a backend's API key from its configured environment
// variable, defaulting to the conventional name for the identity.
func (c Config) apiKey(backend string) string {
	envName := defaultKeyEnv(backend)
	if bc, ok := c.Backends[backend]; ok && bc.APIKeyEnv != "" {
		envName = bc.APIKeyEnv
	}
	return os.Getenv(envName)
}

func defaultKeyEnv(backend string) string {
	switch backend {
	case "openai":
		return "OPENAI_API_KEY"
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "mistral":
		return "MISTRAL_API_KEY"
	default:
		return ""
	}
}

// rotationOrder resolves the configured rotation to backend IDs.
func (c Config) rotationOrder() ([]refine.BackendID, error) {
	if len(c.Rotation) == 0 {
		return refine.DefaultRotationOrder(), nil
	}
	order := make([]refine.BackendID, 0, len(c.Rotation))
	for _, name := range c.Rotation {
		switch name {
		case "openai", "anthropic", "mistral":
			order = append(order, refine.BackendID(name))
		default:
			return nil, fmt.Errorf("unknown backend %q in rotation", name)
		}
	}
	return order, nil
}
