package config

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// DefaultStreamURL is the public sample stream.
const DefaultStreamURL = "https://stream.twitter.com/1.1/statuses/sample.json"

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes configuration from YAML content.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) applyDefaults() {
	if c.Stream.URL == "" {
		c.Stream.URL = DefaultStreamURL
	}
	c.Stream.Method = strings.ToUpper(c.Stream.Method)
	if c.Stream.Method == "" {
		c.Stream.Method = http.MethodGet
	}
	if c.Stream.IdleTimeout == 0 {
		c.Stream.IdleTimeout = 90 * time.Second
	}
	if c.Backoff.ErrorRetry == 0 {
		c.Backoff.ErrorRetry = 5 * time.Second
	}
	if c.Backoff.RateLimited == 0 {
		c.Backoff.RateLimited = 60 * time.Second
	}
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	c.Logging.Format = strings.ToLower(c.Logging.Format)
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks settings that have no sensible default.
func (c *AppConfig) Validate() error {
	switch c.Stream.Method {
	case http.MethodGet, http.MethodPost:
	default:
		return fmt.Errorf("invalid stream method %q", c.Stream.Method)
	}
	if c.Decode.Shards < 0 {
		return fmt.Errorf("decode shards must not be negative")
	}
	if c.Stream.IdleTimeout < 0 {
		return fmt.Errorf("idle timeout must not be negative")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid logging level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid logging format %q", c.Logging.Format)
	}
	return nil
}
