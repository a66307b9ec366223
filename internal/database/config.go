package database

import (
	"fmt"
	"net/url"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	PostgresConnectionString = "host=%s user=%s password=%s dbname=%s port=%s sslmode=disable"
)

type DatabaseConfig struct {
	Driver   string `yaml:"driver" env:"DB_DRIVER" env-default:"sqlite"`
	Path     string `yaml:"path" env:"DB_PATH"`
	User     string `yaml:"username" env:"DB_USERNAME"`
	Password string `yaml:"password" env:"DB_PASSWORD"`
	Name     string `yaml:"name" env:"DB_NAME" env-default:"REEL_DB"`
	Host     string `yaml:"host" env:"DB_HOST" env-default:"0.0.0.0"`
	Port     string `yaml:"port" env:"DB_PORT" env-default:"5432"`
}

// DSN returns the driver-specific data source name for this config.
func (config DatabaseConfig) DSN() (string, error) {
	switch config.Driver {
	case DriverSQLite:
		if config.Path == "" {
			return "", fmt.Errorf("sqlite database requires a path")
		}

		query := url.Values{}
		query.Add("_pragma", "busy_timeout(5000)")
		query.Add("_pragma", "journal_mode(WAL)")
		query.Set("_time_format", "sqlite")
		return fmt.Sprintf("file:%s?%s", config.Path, query.Encode()), nil
	case DriverPostgres:
		return fmt.Sprintf(PostgresConnectionString, config.Host, config.User, config.Password, config.Name, config.Port), nil
	}

	return "", fmt.Errorf("unsupported database driver %q", config.Driver)
}

// GooseDialect returns the dialect name goose uses for the configured driver.
func (config DatabaseConfig) GooseDialect() string {
	if config.Driver == DriverSQLite {
		return "sqlite3"
	}

	return DriverPostgres
}
