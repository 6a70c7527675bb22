// Package config loads server configuration from environment variables.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config contains all server configuration parameters.
//
// Everything comes from the environment (optionally seeded from a .env file
// by main). Defaults are development-friendly: embedded sqlite, debug-level
// logging. DATABASE_DSN switches the store to Postgres when set.
type Config struct {
	Addr     string   `env:"ADDR" envDefault:":8080"`
	LogLevel int      `env:"LOG_LEVEL" envDefault:"-4"` // slog levels: -4 debug, 0 info
	Database Database `envPrefix:"DATABASE_"`
	SQLite   SQLite   `envPrefix:"SQLITE_"`
	JWT      JWT      `envPrefix:"JWT_"`
}

// Database contains Postgres connection parameters. An empty DSN means the
// server runs on the embedded sqlite store instead.
type Database struct {
	DSN string `env:"DSN"`
}

// SQLite contains parameters for the embedded store.
type SQLite struct {
	Path string `env:"PATH" envDefault:"data/learnhub.db"`
}

// JWT contains parameters for verifying tokens issued by the identity
// provider. The secret must match the provider's HS256 signing key.
type JWT struct {
	Secret string `env:"SECRET"`
	Issuer string `env:"ISSUER" envDefault:"learnhub-idp"`
}

// New loads configuration from environment variables.
func New() (*Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, nil
}
