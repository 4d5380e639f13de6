// Package config loads the export configuration from defaults, an optional
// YAML file and the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables read by ApplyEnv.
const (
	EnvAPIKey   = "VAAS_API_KEY"
	EnvURL      = "VAAS_URL"
	EnvRegion   = "VAAS_REGION"
	EnvPageSize = "VAAS_PAGE_SIZE"
	EnvTimeout  = "VAAS_TIMEOUT"
	EnvLogLevel = "LOG_LEVEL"
)

// LookupFunc reads one environment variable; os.LookupEnv fits.
type LookupFunc func(key string) (string, bool)

// Load reads a YAML file on top of the defaults. It does not validate, since
// environment and flags may still fill in the API key.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// ApplyEnv applies environment variable overrides
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	if apiKey, ok := lookup(EnvAPIKey); ok && apiKey != "" {
		c.Service.APIKey = apiKey
	}

	if u, ok := lookup(EnvURL); ok && u != "" {
		c.Service.URL = u
	}

	if region, ok := lookup(EnvRegion); ok && region != "" {
		c.Service.Region = region
	}

	if v, ok := lookup(EnvPageSize); ok && v != "" {
		size, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPageSize, err)
		}
		c.Search.PageSize = size
	}

	if v, ok := lookup(EnvTimeout); ok && v != "" {
		timeout, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		c.Service.Timeout = timeout
	}

	if level, ok := lookup(EnvLogLevel); ok && level != "" {
		c.Logging.Level = level
	}

	return nil
}

// LoadWithEnv loads configuration from a file, applies environment variable
// overrides, then each of overrides in order, and validates the result.
func LoadWithEnv(path string, lookup LookupFunc, overrides ...func(*Config)) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.ApplyEnv(lookup); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	for _, override := range overrides {
		override(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
