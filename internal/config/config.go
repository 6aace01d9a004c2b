package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// WatcherConfig holds all configuration for the hold stream watcher
type WatcherConfig struct {
	Watcher WatcherSettings `yaml:"watcher"`
	Stream  StreamConfig    `yaml:"stream"`
	Logging LoggingConfig   `yaml:"logging"`
}

// WatcherSettings identifies the watcher process
type WatcherSettings struct {
	ID string `yaml:"id"`
}

// StreamConfig contains connection settings for the hold event stream
type StreamConfig struct {
	URL                  string        `yaml:"url"`
	AuthToken            string        `yaml:"auth_token"`
	ConnectTimeout       time.Duration `yaml:"connect_timeout"`
	ReconnectInterval    time.Duration `yaml:"reconnect_interval"`
	MaxReconnectInterval time.Duration `yaml:"max_reconnect_interval"`
	PingInterval         time.Duration `yaml:"ping_interval"`
	PongTimeout          time.Duration `yaml:"pong_timeout"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `yaml:"level"`       // debug, info, warn, error
	Format     string `yaml:"format"`      // json or console
	FilePath   string `yaml:"file_path"`   // empty = stdout only
	MaxSizeMB  int    `yaml:"max_size_mb"` // rotation threshold
	MaxBackups int    `yaml:"max_backups"`
}

// LoadWatcherConfig loads watcher configuration from a YAML file
func LoadWatcherConfig(path string) (*WatcherConfig, error) {
	var config WatcherConfig
	if path != "" {
		yamlData, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(yamlData, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	config.ApplyDefaults()
	config.OverrideFromEnv()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &config, nil
}

// ApplyDefaults sets default values for any unset fields
func (c *WatcherConfig) ApplyDefaults() {
	if c.Watcher.ID == "" {
		if host, err := os.Hostname(); err == nil {
			c.Watcher.ID = host
		} else {
			c.Watcher.ID = "watcher"
		}
	}
	if c.Stream.URL == "" {
		c.Stream.URL = "ws://localhost:8081/api/stream/holds"
	}
	if c.Stream.ConnectTimeout == 0 {
		c.Stream.ConnectTimeout = 10 * time.Second
	}
	if c.Stream.ReconnectInterval == 0 {
		c.Stream.ReconnectInterval = 1 * time.Second
	}
	if c.Stream.MaxReconnectInterval == 0 {
		c.Stream.MaxReconnectInterval = 5 * time.Minute
	}
	if c.Stream.PingInterval == 0 {
		c.Stream.PingInterval = 30 * time.Second
	}
	if c.Stream.PongTimeout == 0 {
		c.Stream.PongTimeout = 10 * time.Second
	}
	c.Logging.applyDefaults()
}

func (l *LoggingConfig) applyDefaults() {
	if l.Level == "" {
		l.Level = "info"
	}
	if l.Format == "" {
		l.Format = "json"
	}
	if l.MaxSizeMB == 0 {
		l.MaxSizeMB = 100
	}
	if l.MaxBackups == 0 {
		l.MaxBackups = 10
	}
}

// OverrideFromEnv overrides config values from environment variables
func (c *WatcherConfig) OverrideFromEnv() {
	if v := os.Getenv("WATCHER_ID"); v != "" {
		c.Watcher.ID = v
	}
	if v := os.Getenv("STREAM_URL"); v != "" {
		c.Stream.URL = v
	}
	if v := os.Getenv("STREAM_TOKEN"); v != "" {
		c.Stream.AuthToken = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks if the configuration is valid
func (c *WatcherConfig) Validate() error {
	if c.Watcher.ID == "" {
		return fmt.Errorf("watcher ID is required")
	}
	if !strings.HasPrefix(c.Stream.URL, "ws://") && !strings.HasPrefix(c.Stream.URL, "wss://") {
		return fmt.Errorf("stream URL must start with ws:// or wss://")
	}
	if c.Stream.ReconnectInterval < 100*time.Millisecond {
		return fmt.Errorf("reconnect interval must be at least 100ms")
	}
	if c.Stream.MaxReconnectInterval < c.Stream.ReconnectInterval {
		return fmt.Errorf("max reconnect interval must not be below reconnect interval")
	}
	if c.Stream.PingInterval <= 0 {
		return fmt.Errorf("ping interval must be positive")
	}
	return c.Logging.Validate()
}

// Validate checks the logging level and format
func (l *LoggingConfig) Validate() error {
	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", l.Level)
	}
	switch l.Format {
	case "json", "console":
	default:
		return fmt.Errorf("unknown log format %q", l.Format)
	}
	return nil
}

// String returns a safe string representation (hides auth token)
func (c *WatcherConfig) String() string {
	return fmt.Sprintf("WatcherConfig{Watcher: %+v, Stream: [URL=%s, Token=%s], Logging: %+v}",
		c.Watcher,
		c.Stream.URL,
		maskToken(c.Stream.AuthToken),
		c.Logging,
	)
}

// maskToken masks all but first 4 characters of a token
func maskToken(token string) string {
	if len(token) <= 4 {
		return "****"
	}
	return token[:4] + "****"
}
