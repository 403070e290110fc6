// Package config provides configuration loading and structs for the EMMA dashboard.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	envDatabasePath = "EMMA_DATABASE_PATH"
	envDatabaseDSN  = "EMMA_DATABASE_DSN"
	envServerPort   = "EMMA_SERVER_PORT"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig describes the term-mining database.
// Driver is "sqlite3" (Path) or "postgres" (DSN).
// ScoreTables maps a background query id to the table holding its pertinence scores.
type DatabaseConfig struct {
	Driver      string         `yaml:"driver"`
	Path        string         `yaml:"path"`
	DSN         string         `yaml:"dsn"`
	ScoreTables map[int]string `yaml:"score_tables"`
}

// DataSource returns the driver-specific connection string.
func (d DatabaseConfig) DataSource() string {
	if d.Driver == "postgres" {
		return d.DSN
	}
	return d.Path
}

// DashboardConfig holds presentation settings.
type DashboardConfig struct {
	Title             string `yaml:"title"`
	LastUpdated       string `yaml:"last_updated"`
	DefaultBackground int    `yaml:"default_background"`
	DefaultForeground int    `yaml:"default_foreground"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// WatchConfig controls the database file watcher.
type WatchConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load reads and parses the config file at path, applies defaults, environment
// overrides and path expansion, then validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if cfg.Database.Driver == "sqlite3" {
		cfg.Database.Path = expandPath(cfg.Database.Path, filepath.Dir(path))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks settings that would otherwise fail late or end up inside SQL text.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.DataSource() == "" {
		return fmt.Errorf("database %s connection is not configured", c.Database.Driver)
	}
	for bg, table := range c.Database.ScoreTables {
		if !identifierPattern.MatchString(table) {
			return fmt.Errorf("score table for background query %d is not a valid identifier: %q", bg, table)
		}
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(envDatabasePath); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv(envDatabaseDSN); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv(envServerPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
