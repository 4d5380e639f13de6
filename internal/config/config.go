package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/Sternrassler/vaas-cert-export/pkg/client"
	"github.com/Sternrassler/vaas-cert-export/pkg/logging"
	"github.com/Sternrassler/vaas-cert-export/pkg/search"
)

// ErrMissingAPIKey is returned when no API key was configured anywhere.
var ErrMissingAPIKey = errors.New("API key not set: export VAAS_API_KEY with the key from your tenant's user preferences")

// Config holds all configuration for the export
type Config struct {
	Service ServiceConfig `yaml:"service"`
	Search  SearchConfig  `yaml:"search"`
	Output  OutputConfig  `yaml:"output"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServiceConfig locates and authenticates against the inventory service
type ServiceConfig struct {
	// URL overrides Region when set
	URL     string        `yaml:"url"`
	Region  string        `yaml:"region"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// SearchConfig selects and orders the certificates
type SearchConfig struct {
	StatusFilter  string `yaml:"status_filter"`
	SortField     string `yaml:"sort_field"`
	SortDirection string `yaml:"sort_direction"`
	PageSize      int    `yaml:"page_size"`
}

// OutputConfig contains file output configuration
type OutputConfig struct {
	Dir         string `yaml:"dir"`
	MetricsFile string `yaml:"metrics_file"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns the stock export configuration: active
// certificates from the US region, 250 per page, newest name first.
func Default() *Config {
	criteria := search.DefaultCriteria()
	return &Config{
		Service: ServiceConfig{
			Region:  client.RegionUS,
			Timeout: 30 * time.Second,
		},
		Search: SearchConfig{
			StatusFilter:  criteria.StatusFilter,
			SortField:     criteria.SortField,
			SortDirection: string(criteria.SortDirection),
			PageSize:      criteria.PageSize,
		},
		Output: OutputConfig{
			Dir: ".",
		},
		Logging: LoggingConfig{
			Level: string(logging.LevelInfo),
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Service.APIKey == "" {
		return ErrMissingAPIKey
	}

	if _, err := c.BaseURL(); err != nil {
		return err
	}

	if c.Service.Timeout <= 0 {
		return fmt.Errorf("service.timeout must be > 0 (got %s)", c.Service.Timeout)
	}

	criteria, err := c.Criteria()
	if err != nil {
		return err
	}
	if err := criteria.Validate(); err != nil {
		return fmt.Errorf("search: %w", err)
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}

	return nil
}

// BaseURL resolves the service base URL from URL or Region.
// Plain http is only accepted for loopback hosts.
func (c *Config) BaseURL() (string, error) {
	raw := c.Service.URL
	if raw == "" {
		return client.RegionBaseURL(c.Service.Region)
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("service.url %q is not an absolute URL", raw)
	}

	switch u.Scheme {
	case "https":
	case "http":
		if !isLoopback(u.Hostname()) {
			return "", fmt.Errorf("service.url %q must use https", raw)
		}
	default:
		return "", fmt.Errorf("service.url %q must use https", raw)
	}

	return raw, nil
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// Criteria returns the search criteria.
func (c *Config) Criteria() (search.Criteria, error) {
	direction, err := search.ParseDirection(c.Search.SortDirection)
	if err != nil {
		return search.Criteria{}, fmt.Errorf("search.sort_direction: %w", err)
	}
	return search.Criteria{
		StatusFilter:  c.Search.StatusFilter,
		SortField:     c.Search.SortField,
		SortDirection: direction,
		PageSize:      c.Search.PageSize,
	}, nil
}

// ClientConfig returns the search client configuration.
func (c *Config) ClientConfig() (client.Config, error) {
	baseURL, err := c.BaseURL()
	if err != nil {
		return client.Config{}, err
	}

	cfg := client.DefaultConfig(c.Service.APIKey)
	cfg.BaseURL = baseURL
	cfg.Timeout = c.Service.Timeout
	return cfg, nil
}

// LoggerConfig returns the logger configuration tagged with runID.
func (c *Config) LoggerConfig(runID string) logging.Config {
	cfg := logging.DefaultConfig()
	if level, err := logging.ParseLevel(c.Logging.Level); err == nil {
		cfg.Level = level
	}
	cfg.Pretty = c.Logging.Pretty
	cfg.RunID = runID
	return cfg
}
