// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the hashprng service configuration.
type Config struct {
	Addr      string `env:"HASHPRNG_ADDR" envDefault:":4040"`
	StorePath string `env:"HASHPRNG_STORE_PATH" envDefault:"store.json"`
	LogLevel  string `env:"HASHPRNG_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"HASHPRNG_LOG_FORMAT" envDefault:"console"`

	// Defaults for pools created without explicit parameters.
	Hash        string `env:"HASHPRNG_HASH" envDefault:"sha256"`
	CounterBits int    `env:"HASHPRNG_COUNTER_BITS" envDefault:"32"`
	PoolBytes   int    `env:"HASHPRNG_POOL_BYTES" envDefault:"32"`

	EntropyURLs    []string      `env:"HASHPRNG_ENTROPY_URLS" envSeparator:","`
	EntropyTimeout time.Duration `env:"HASHPRNG_ENTROPY_TIMEOUT" envDefault:"3s"`
	JitterRounds   int           `env:"HASHPRNG_JITTER_ROUNDS" envDefault:"64"`

	// MaxBits bounds a single bytes or stats request.
	MaxBits int `env:"HASHPRNG_MAX_BITS" envDefault:"8000000"`
}

// ParseEnv loads configuration from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load returns the Config read from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
