// Package config aggregates every component's settings into one struct
// parsed from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"

	"github.com/dmitrymomot/agora/internal/attachment"
	"github.com/dmitrymomot/agora/internal/database"
	"github.com/dmitrymomot/agora/internal/logger"
	"github.com/dmitrymomot/agora/internal/redis"
	"github.com/dmitrymomot/agora/internal/session"
)

// Config is the application configuration, one section per component.
type Config struct {
	// HTTP listen address.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	Log      logger.Config
	Database database.Config
	Session  session.Config
	Local    attachment.LocalConfig
	S3       attachment.S3Config

	// Redis is optional; when REDIS_URL is set, sessions live there
	// instead of Postgres.
	Redis redis.Config
}

// Load parses the configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
