// Package config loads tool configuration from a YAML file, a .env file and
// FINBOOK_-prefixed environment variables, in increasing priority.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DriverPostgres selects the server database backend.
	DriverPostgres = "postgres"
	// DriverSQLite selects the embedded database backend.
	DriverSQLite = "sqlite"
)

// Config is the resolved tool configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Owner    string         `yaml:"owner"`
}

// DatabaseConfig selects and configures the storage backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// Load resolves the configuration. The .env file in the working directory is
// loaded first (missing is fine), then the YAML file at path if given, then
// environment overrides.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			DSN:    "finbook.db",
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if v := os.Getenv("FINBOOK_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("FINBOOK_DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("FINBOOK_OWNER"); v != "" {
		cfg.Owner = v
	}

	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	switch cfg.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	return cfg, nil
}
