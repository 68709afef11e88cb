package config

import (
	"time"

	"github.com/vietddude/firehose/internal/infra/twitter"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Stream      StreamConfig        `yaml:"stream"`
	Credentials twitter.Credentials `yaml:"credentials"`
	Decode      DecodeConfig        `yaml:"decode"`
	Backoff     BackoffConfig       `yaml:"backoff"`
	Replay      ReplayConfig        `yaml:"replay"`
	Server      ServerConfig        `yaml:"server"`
	Logging     LoggingConfig       `yaml:"logging"`
}

// StreamConfig holds the streaming endpoint settings.
type StreamConfig struct {
	URL         string            `yaml:"url"`
	Method      string            `yaml:"method"` // GET or POST
	Params      map[string]string `yaml:"params"` // e.g. track, language
	IdleTimeout time.Duration     `yaml:"idle_timeout"`
	ChunkSize   int               `yaml:"chunk_size"`
	TweetsOnly  bool              `yaml:"tweets_only"`
}

// DecodeConfig holds decoder pool settings.
type DecodeConfig struct {
	Shards int `yaml:"shards"` // 0 = one per CPU
	Buffer int `yaml:"buffer"`
}

// BackoffConfig overrides reconnect delays.
type BackoffConfig struct {
	ErrorRetry  time.Duration `yaml:"error_retry"`
	RateLimited time.Duration `yaml:"rate_limited"`
}

// ReplayConfig holds capture replay settings.
type ReplayConfig struct {
	Path     string        `yaml:"path"`
	Interval time.Duration `yaml:"interval"`
	Loop     bool          `yaml:"loop"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"` // 0 disables the health server
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}
