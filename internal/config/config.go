// Package config reads the server configuration from the environment.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type GridConfig struct {
	LolURL            string        `env:"LOL_URL" envDefault:"https://lol.grid.gg"`
	APIURL            string        `env:"API_URL" envDefault:"https://api.grid.gg"`
	RequestsPerSecond float64       `env:"REQUESTS_PER_SECOND" envDefault:"5"`
	MaxRetries        int           `env:"MAX_RETRIES" envDefault:"5"`
	BackoffBase       time.Duration `env:"BACKOFF_BASE" envDefault:"1s"`
	// Token, when set, lets the server sync in the background without a login.
	Token string `env:"TOKEN"`
}

type SyncConfig struct {
	Interval    time.Duration `env:"INTERVAL" envDefault:"10m"`
	PageSize    int           `env:"PAGE_SIZE" envDefault:"50"`
	Concurrency int           `env:"CONCURRENCY" envDefault:"4"`
}

type NATSConfig struct {
	URL     string `env:"URL"`
	Subject string `env:"SUBJECT" envDefault:"scrims.sync"`
}

type Config struct {
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	DBDriver    string `env:"DB_DRIVER" envDefault:"sqlite"`
	SQLitePath  string `env:"SQLITE_PATH"`
	DatabaseURL string `env:"DATABASE_URL"`
	DDragonURL  string `env:"DDRAGON_URL" envDefault:"https://ddragon.leagueoflegends.com"`

	Grid GridConfig `envPrefix:"GRID_"`
	Sync SyncConfig `envPrefix:"SYNC_"`
	NATS NATSConfig `envPrefix:"NATS_"`
}

// Load reads .env files when present, then the environment.
func Load(files ...string) (Config, error) {
	_ = godotenv.Load(files...)

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.SQLitePath == "" {
		cfg.SQLitePath = DefaultSQLitePath()
	}
	return cfg, nil
}

// DefaultSQLitePath is where the desktop app kept its database.
func DefaultSQLitePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "LOLScrimExporter", "database.sqlite")
}
