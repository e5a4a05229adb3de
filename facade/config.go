// File: facade/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Network configuration: defaults, YAML loading and validation.

package facade

import (
	"fmt"
	"os"
	"time"

	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/internal/transfer"
	"github.com/momentics/hioload-net/internal/transport"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Config holds parameters immutable per Network.
type Config struct {
	UserAgent      string        `yaml:"user_agent"`      // User-Agent header for HTTP requests
	FollowLocation bool          `yaml:"follow_location"` // Follow HTTP redirects
	EnableHTTP2    bool          `yaml:"enable_http2"`    // Negotiate HTTP/2 over TLS
	ResolveTimeout time.Duration `yaml:"resolve_timeout"` // Bound on host lookups in Connect
	NoDelay        bool          `yaml:"no_delay"`        // TCP_NODELAY on dialed sockets
	EnableMetrics  bool          `yaml:"enable_metrics"`  // Emit go-metrics counters and gauges
	MetricsService string        `yaml:"metrics_service"` // Metric name prefix
	LogLevel       string        `yaml:"log_level"`       // zerolog level name
}

// DefaultConfig returns default configuration values.
func DefaultConfig() *Config {
	return &Config{
		UserAgent:      transfer.DefaultUserAgent,
		FollowLocation: true,
		EnableHTTP2:    true,
		ResolveTimeout: transport.DefaultResolveTimeout,
		NoDelay:        true,
		EnableMetrics:  false,
		MetricsService: "hioload_net",
		LogLevel:       "info",
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig. Keys absent from
// the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field ranges.
func (c *Config) Validate() error {
	if c.ResolveTimeout < 0 {
		return invalidConfig("resolve_timeout", c.ResolveTimeout)
	}
	if c.EnableMetrics && c.MetricsService == "" {
		return invalidConfig("metrics_service", c.MetricsService)
	}
	if _, err := c.Level(); err != nil {
		return invalidConfig("log_level", c.LogLevel)
	}
	return nil
}

// Level parses LogLevel; an empty value means info.
func (c *Config) Level() (zerolog.Level, error) {
	if c.LogLevel == "" {
		return zerolog.InfoLevel, nil
	}
	return zerolog.ParseLevel(c.LogLevel)
}

func invalidConfig(field string, value any) error {
	return api.NewError(api.ErrCodeInvalidArgument, fmt.Sprintf("invalid %s: %v", field, value)).
		WithOp("config")
}
