// Package config loads engine configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds everything the server needs at startup. DATABASE_URL and
// REDIS_URL are optional: absent, the journal runs in memory and
// uncached.
type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`

	EngineAccount string `env:"CURIO_ENGINE_ACCOUNT" envDefault:"marketplace"`
	AdminAccount  string `env:"CURIO_ADMIN_ACCOUNT" envDefault:"admin"`

	PrimaryFeePerMille   int64 `env:"CURIO_PRIMARY_FEE_PER_MILLE" envDefault:"25"`
	SecondaryFeePerMille int64 `env:"CURIO_SECONDARY_FEE_PER_MILLE" envDefault:"50"`

	MinAuctionDuration time.Duration `env:"CURIO_MIN_AUCTION_DURATION" envDefault:"10m"`
	MaxAuctionDuration time.Duration `env:"CURIO_MAX_AUCTION_DURATION" envDefault:"336h"`
	SnipeWindow        time.Duration `env:"CURIO_SNIPE_WINDOW" envDefault:"5m"`

	CacheTTL time.Duration `env:"CURIO_CACHE_TTL" envDefault:"30s"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
