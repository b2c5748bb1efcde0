package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when PICKS_CONFIG is unset.
const DefaultPath = "config/stockpicks.yaml"

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for stockpicks.
type Config struct {
	Source   Source  `yaml:"source"`
	Server   Server  `yaml:"server"`
	Logging  Logging `yaml:"logging"`
	Refresh  Refresh `yaml:"refresh"`
	Quotes   Quotes  `yaml:"quotes"`
	Archive  Archive `yaml:"archive"`
	Timezone string  `yaml:"timezone"`
}

// Source says where the catalog and snapshot files come from.
type Source struct {
	Kind            string        `yaml:"kind"` // "http" or "dir"
	BaseURL         string        `yaml:"base_url"`
	DataDir         string        `yaml:"data_dir"`
	CatalogName     string        `yaml:"catalog_name"`
	Timeout         time.Duration `yaml:"timeout"`
	RateLimitPerMin int           `yaml:"rate_limit_per_min"`
	RepairJSON      bool          `yaml:"repair_json"`
	RetryAttempts   int           `yaml:"retry_attempts"` // 1 = no retries
	RetryDelay      time.Duration `yaml:"retry_delay"`
	Breaker         Breaker       `yaml:"breaker"`
}

// Breaker configures the circuit breaker around upstream fetches.
type Breaker struct {
	MaxFailures uint32        `yaml:"max_failures"`
	OpenTimeout time.Duration `yaml:"open_timeout"`
}

// Server holds network listener configuration.
type Server struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	GRPCPort int    `yaml:"grpc_port"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Refresh controls how often the server reloads the catalog.
type Refresh struct {
	Schedule string `yaml:"schedule"`
}

// Quotes enables last-trade enrichment from Alpaca market data.
type Quotes struct {
	Enabled   bool   `yaml:"enabled"`
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	DataURL   string `yaml:"data_url"`
}

// Archive configures the ranked-picks exporter.
type Archive struct {
	Format     string `yaml:"format"` // "parquet" or "sqlite"
	OutDir     string `yaml:"out_dir"`
	SQLitePath string `yaml:"sqlite_path"`
	Workers    int    `yaml:"workers"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Path returns the config file path from PICKS_CONFIG or DefaultPath.
func Path() string {
	if v := os.Getenv("PICKS_CONFIG"); v != "" {
		return v
	}
	return DefaultPath
}

// LoadEnv loads a .env file from the working directory if one exists.
func LoadEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}
	return nil
}

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, then applies environment variable overrides and defaults.
// A missing file is not an error: env vars and defaults still apply.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PICKS_SOURCE_URL"); v != "" {
		cfg.Source.Kind = "http"
		cfg.Source.BaseURL = v
	}
	if v := os.Getenv("PICKS_DATA_DIR"); v != "" {
		cfg.Source.Kind = "dir"
		cfg.Source.DataDir = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("PICKS_TIMEZONE"); v != "" {
		cfg.Timezone = v
	}

	// Standard Alpaca env vars used by the SDK.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Quotes.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Quotes.APISecret = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Source.Kind == "" {
		cfg.Source.Kind = "http"
	}
	if cfg.Source.CatalogName == "" {
		cfg.Source.CatalogName = "index.json"
	}
	if cfg.Source.Timeout == 0 {
		cfg.Source.Timeout = 10 * time.Second
	}
	if cfg.Source.RetryAttempts == 0 {
		cfg.Source.RetryAttempts = 1
	}
	if cfg.Source.RetryDelay == 0 {
		cfg.Source.RetryDelay = 250 * time.Millisecond
	}
	if cfg.Source.Breaker.MaxFailures == 0 {
		cfg.Source.Breaker.MaxFailures = 5
	}
	if cfg.Source.Breaker.OpenTimeout == 0 {
		cfg.Source.Breaker.OpenTimeout = 30 * time.Second
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.GRPCPort == 0 {
		cfg.Server.GRPCPort = 9090
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Refresh.Schedule == "" {
		cfg.Refresh.Schedule = "@every 5m"
	}
	if cfg.Archive.Format == "" {
		cfg.Archive.Format = "parquet"
	}
	if cfg.Archive.OutDir == "" {
		cfg.Archive.OutDir = "archive"
	}
	if cfg.Archive.SQLitePath == "" {
		cfg.Archive.SQLitePath = "archive/picks.db"
	}
	if cfg.Archive.Workers <= 0 {
		cfg.Archive.Workers = 4
	}
}

func (c *Config) validate() error {
	switch c.Source.Kind {
	case "http":
		if c.Source.BaseURL == "" {
			return errors.New("config: source.base_url is required for kind http")
		}
	case "dir":
		if c.Source.DataDir == "" {
			return errors.New("config: source.data_dir is required for kind dir")
		}
	default:
		return fmt.Errorf("config: unknown source.kind %q", c.Source.Kind)
	}
	switch c.Archive.Format {
	case "parquet", "sqlite":
	default:
		return fmt.Errorf("config: unknown archive.format %q", c.Archive.Format)
	}
	return nil
}

// Addr returns the HTTP listen address.
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// GRPCAddr returns the gRPC listen address.
func (s Server) GRPCAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.GRPCPort)
}
