// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Sweeper  SweeperConfig
}

type ServerConfig struct {
	Port         string        `env:"PORT" envDefault:"8099"`
	Env          string        `env:"APP_ENV" envDefault:"development"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
}

type DatabaseConfig struct {
	DSN             string        `env:"DB_DSN" envDefault:"mzunguko:mzunguko@tcp(localhost:3306)/mzunguko?charset=utf8mb4&parseTime=True&loc=Local"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"100"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"1h"`
}

type JWTConfig struct {
	AccessSecret string        `env:"JWT_SECRET" envDefault:"change-me-in-production"`
	AccessExpiry time.Duration `env:"JWT_ACCESS_EXPIRY" envDefault:"15m"`
	Issuer       string        `env:"JWT_ISSUER" envDefault:"mzunguko"`
}

// SweeperConfig controls the lateness sweeper over active circles.
type SweeperConfig struct {
	Interval time.Duration `env:"SWEEP_INTERVAL" envDefault:"1h"`
	Enabled  bool          `env:"SWEEP_ENABLED" envDefault:"true"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}
