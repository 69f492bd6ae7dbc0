package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all strata configuration. Every field can be set from the
// environment; a .env file in the working directory is read first if present.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Decay    DecayConfig
	Log      LogConfig
}

type ServerConfig struct {
	Bind string `env:"STRATA_BIND" envDefault:"127.0.0.1"`
	Port int    `env:"STRATA_PORT" envDefault:"37778"`
}

type DatabaseConfig struct {
	Path string `env:"STRATA_DB"` // resolved at runtime via store.DefaultDBPath() when empty
}

type DecayConfig struct {
	Path string `env:"STRATA_DECAY_CONFIG"` // YAML file; empty means built-in defaults
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"text"` // text or json
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37778,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads dotenv (if envFile exists) and then the process environment.
// Variables already set in the environment win over the file.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	return parse(env.Options{})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return Config{}, fmt.Errorf("parse config: STRATA_PORT %d out of range", cfg.Server.Port)
	}
	return cfg, nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
