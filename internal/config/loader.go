package config

import (
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies OPTENGINE_* environment variable overrides, and
// returns the final Config. The caller should invoke Config.Validate() after
// Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known OPTENGINE_* environment variables and
// overwrites the corresponding Config fields when set. This lets operators
// inject secrets at deploy time without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Venue.Host, "OPTENGINE_VENUE_HOST")
	setStr(&cfg.Venue.APIKey, "OPTENGINE_VENUE_API_KEY")

	setStr(&cfg.Postgres.DSN, "OPTENGINE_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "OPTENGINE_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "OPTENGINE_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "OPTENGINE_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "OPTENGINE_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "OPTENGINE_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "OPTENGINE_POSTGRES_SSL_MODE")

	setStr(&cfg.Redis.Addr, "OPTENGINE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "OPTENGINE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "OPTENGINE_REDIS_DB")

	setStr(&cfg.LogLevel, "OPTENGINE_LOG_LEVEL")
}

func setStr(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func setInt(dst *int, env string) {
	if v := os.Getenv(env); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
