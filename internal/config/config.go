// Package config loads relay settings from the environment. A local .env
// file is honoured when present.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds every tunable of the relay process. Leaving RedisAddr or
// DatabaseURL empty selects the in-memory registry or log; leaving NATSURL
// empty disables presence events.
type Config struct {
	ListenAddr      string        `envconfig:"LISTEN_ADDR" default:":8080"`
	RedisAddr       string        `envconfig:"REDIS_ADDR"`
	DatabaseURL     string        `envconfig:"DATABASE_URL"`
	NATSURL         string        `envconfig:"NATS_URL"`
	SweepInterval   time.Duration `envconfig:"SWEEP_INTERVAL" default:"15s"`
	StaleThreshold  time.Duration `envconfig:"STALE_THRESHOLD" default:"10s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"5s"`
}

// Load reads configuration from the environment. A missing .env file is not
// an error.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if cfg.SweepInterval <= 0 {
		return Config{}, fmt.Errorf("config: SWEEP_INTERVAL must be positive")
	}
	if cfg.StaleThreshold <= 0 {
		return Config{}, fmt.Errorf("config: STALE_THRESHOLD must be positive")
	}
	return cfg, nil
}
