package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Database drivers understood by the storage layer
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// AppConfig holds server configuration
type AppConfig struct {
	Server       ServerSettings      `yaml:"server"`
	Database     DatabaseSettings    `yaml:"database"`
	Catalog      CatalogSettings     `yaml:"catalog"`
	Measurements MeasurementSettings `yaml:"measurements"`
	Cleanup      CleanupSettings     `yaml:"cleanup"`
	Logging      LoggingConfig       `yaml:"logging"`
}

// ServerSettings contains HTTP server configuration
type ServerSettings struct {
	Port           int           `yaml:"port"`
	Host           string        `yaml:"host"`
	StreamToken    string        `yaml:"stream_token"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	StreamHistory  int           `yaml:"stream_history"`
}

// DatabaseSettings selects and configures the persistence driver
type DatabaseSettings struct {
	Driver       string `yaml:"driver"`
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// CatalogSettings configures the label/station catalog
type CatalogSettings struct {
	Path      string `yaml:"path"`       // optional YAML catalog file
	SeedCount int    `yaml:"seed_count"` // labels generated when no file is given
}

// MeasurementSettings configures the synthetic measurement source
type MeasurementSettings struct {
	Step time.Duration `yaml:"step"`
	Seed int64         `yaml:"seed"`
}

// CleanupSettings configures the orphaned hold cleaner
type CleanupSettings struct {
	Enabled bool          `yaml:"enabled"`
	Period  time.Duration `yaml:"period"`
}

// LoadAppConfig loads server configuration from a YAML file.
// A missing file yields the defaults.
func LoadAppConfig(path string) (*AppConfig, error) {
	var config AppConfig
	yamlData, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(yamlData, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	config.ApplyDefaults()
	if err := config.OverrideFromEnv(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &config, nil
}

// ApplyDefaults sets default values for server config
func (ac *AppConfig) ApplyDefaults() {
	if ac.Server.Port == 0 {
		ac.Server.Port = 8081
	}
	if ac.Server.Host == "" {
		ac.Server.Host = "localhost"
	}
	if ac.Server.ReadTimeout == 0 {
		ac.Server.ReadTimeout = 60 * time.Second
	}
	if ac.Server.WriteTimeout == 0 {
		ac.Server.WriteTimeout = 10 * time.Second
	}
	if ac.Server.StreamHistory == 0 {
		ac.Server.StreamHistory = 100
	}
	if ac.Database.Driver == "" {
		ac.Database.Driver = DriverSQLite
	}
	if ac.Database.DSN == "" && ac.Database.Driver == DriverSQLite {
		ac.Database.DSN = "./data/holdtrack.db"
	}
	if ac.Database.MaxOpenConns == 0 {
		ac.Database.MaxOpenConns = 10
	}
	if ac.Catalog.SeedCount == 0 {
		ac.Catalog.SeedCount = 9
	}
	if ac.Measurements.Step == 0 {
		ac.Measurements.Step = 10 * time.Minute
	}
	if ac.Cleanup.Period == 0 {
		ac.Cleanup.Period = 1 * time.Hour
	}
	ac.Logging.applyDefaults()
}

// OverrideFromEnv overrides config from environment variables
func (ac *AppConfig) OverrideFromEnv() error {
	if v := os.Getenv("SERVER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SERVER_PORT %q: %w", v, err)
		}
		ac.Server.Port = port
	}
	if v := os.Getenv("SERVER_HOST"); v != "" {
		ac.Server.Host = v
	}
	if v := os.Getenv("STREAM_TOKEN"); v != "" {
		ac.Server.StreamToken = v
	}
	if v := os.Getenv("DATABASE_DRIVER"); v != "" {
		ac.Database.Driver = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		ac.Database.DSN = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		ac.Logging.Level = v
	}
	return nil
}

// Validate checks if server configuration is valid
func (ac *AppConfig) Validate() error {
	if ac.Server.Port < 1 || ac.Server.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	switch ac.Database.Driver {
	case DriverSQLite, DriverMemory:
	case DriverPostgres:
		if ac.Database.DSN == "" {
			return fmt.Errorf("postgres driver requires a dsn")
		}
	default:
		return fmt.Errorf("unknown database driver %q", ac.Database.Driver)
	}
	if ac.Database.MaxOpenConns < 1 {
		return fmt.Errorf("max open conns must be at least 1")
	}
	if ac.Catalog.SeedCount < 0 || ac.Catalog.SeedCount > 9999 {
		return fmt.Errorf("catalog seed count must be between 0 and 9999")
	}
	if ac.Measurements.Step <= 0 {
		return fmt.Errorf("measurement step must be positive")
	}
	if ac.Cleanup.Enabled && ac.Cleanup.Period < time.Second {
		return fmt.Errorf("cleanup period must be at least 1 second")
	}
	if ac.Server.StreamHistory < 0 {
		return fmt.Errorf("stream history must not be negative")
	}
	return ac.Logging.Validate()
}

// String returns a safe string representation (hides stream token and dsn)
func (ac *AppConfig) String() string {
	return fmt.Sprintf("AppConfig{Server: [%s:%d, Token=%s], Database: [Driver=%s, DSN=%s], Catalog: %+v, Measurements: %+v, Cleanup: %+v, Logging: %+v}",
		ac.Server.Host,
		ac.Server.Port,
		maskToken(ac.Server.StreamToken),
		ac.Database.Driver,
		maskToken(ac.Database.DSN),
		ac.Catalog,
		ac.Measurements,
		ac.Cleanup,
		ac.Logging,
	)
}
