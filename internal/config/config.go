// Package config defines the configuration surface of the strategy execution
// engine and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by OPTENGINE_* environment
// variables.
type Config struct {
	Venue    VenueConfig    `toml:"venue"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	Strategy StrategyConfig `toml:"strategy"`
	Exit     ExitConfig     `toml:"exit"`
	Engine   EngineConfig   `toml:"engine"`
	LogLevel string         `toml:"log_level"`
}

// VenueConfig holds the venue gateway endpoint and credentials.
type VenueConfig struct {
	Host           string `toml:"host"`
	APIKey         string `toml:"api_key"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// PostgresConfig holds journal database parameters. Leave DSN and Host empty
// to run without persistence; the engine then journals to logs only.
type PostgresConfig struct {
	DSN      string `toml:"dsn"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Database string `toml:"database"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	SSLMode  string `toml:"ssl_mode"`
	MaxConns int    `toml:"pool_max_conns"`
	MinConns int    `toml:"pool_min_conns"`
}

// Enabled reports whether a database connection is configured.
func (c PostgresConfig) Enabled() bool {
	return strings.TrimSpace(c.DSN) != "" || strings.TrimSpace(c.Host) != ""
}

// RedisConfig holds Redis connection parameters for distributed instance
// locks and event publishing. Leave Addr empty to run without Redis.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// Enabled reports whether a Redis connection is configured.
func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

// LegConfig describes one blueprint leg.
type LegConfig struct {
	Side         string `toml:"side"`          // buy | sell
	Kind         string `toml:"kind"`          // call | put | future
	StrikeOffset *int   `toml:"strike_offset"` // omitted for futures
	Ratio        int    `toml:"ratio"`
}

// StrategyConfig describes the blueprint the engine runs.
type StrategyConfig struct {
	Name            string `toml:"name"`
	Underlying      string `toml:"underlying"`
	Exchange        string `toml:"exchange"`
	OptionsExchange string `toml:"options_exchange"`
	// Expiry is the venue tag (DDMMMYY). Empty selects the coming weekly
	// expiry automatically.
	Expiry     string      `toml:"expiry"`
	LotSize    int         `toml:"lot_size"`
	StrikeStep int         `toml:"strike_step"`
	Legs       []LegConfig `toml:"legs"`
}

// ExitConfig holds the exit policy thresholds.
type ExitConfig struct {
	TargetProfit      float64 `toml:"target_profit"`
	MaxLoss           float64 `toml:"max_loss"`
	TargetDelta       float64 `toml:"target_delta"`
	DeltaTolerance    float64 `toml:"delta_tolerance"`
	ExpiryHorizonDays int     `toml:"expiry_horizon_days"`
	DTEExitDays       int     `toml:"dte_exit_days"`
}

// EngineConfig tunes the supervision loop and rate budget.
type EngineConfig struct {
	RebalancePollIntervalSeconds int     `toml:"rebalance_poll_interval_seconds"`
	OrdersPerSecondBudget        float64 `toml:"orders_per_second_budget"`
	SmartOrdersPerSecondBudget   float64 `toml:"smart_orders_per_second_budget"`
	ErrorBackoffMaxSeconds       int     `toml:"error_backoff_max_seconds"`
	CompensationRetries          int     `toml:"compensation_retries"`
}

// PollInterval returns the supervision cycle interval.
func (c EngineConfig) PollInterval() time.Duration {
	return time.Duration(c.RebalancePollIntervalSeconds) * time.Second
}

// Defaults returns the built-in configuration baseline.
func Defaults() Config {
	return Config{
		Venue: VenueConfig{
			Host:           "http://127.0.0.1:5000",
			TimeoutSeconds: 15,
		},
		Strategy: StrategyConfig{
			Exchange:        "NSE_INDEX",
			OptionsExchange: "NFO",
			LotSize:         75,
			StrikeStep:      50,
		},
		Exit: ExitConfig{
			DeltaTolerance:    10,
			ExpiryHorizonDays: 7,
			DTEExitDays:       1,
		},
		Engine: EngineConfig{
			RebalancePollIntervalSeconds: 60,
			OrdersPerSecondBudget:        2,
			SmartOrdersPerSecondBudget:   0.5,
			ErrorBackoffMaxSeconds:       30,
			CompensationRetries:          2,
		},
		LogLevel: "info",
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Venue.Host) == "" {
		return fmt.Errorf("config: venue.host is required")
	}
	if strings.TrimSpace(c.Venue.APIKey) == "" {
		return fmt.Errorf("config: venue.api_key is required")
	}
	if strings.TrimSpace(c.Strategy.Underlying) == "" {
		return fmt.Errorf("config: strategy.underlying is required")
	}
	if len(c.Strategy.Legs) == 0 {
		return fmt.Errorf("config: strategy.legs must declare at least one leg")
	}
	for i, leg := range c.Strategy.Legs {
		switch leg.Side {
		case "buy", "sell":
		default:
			return fmt.Errorf("config: strategy.legs[%d].side must be buy or sell, got %q", i, leg.Side)
		}
		switch leg.Kind {
		case "call", "put", "future":
		default:
			return fmt.Errorf("config: strategy.legs[%d].kind must be call, put or future, got %q", i, leg.Kind)
		}
		if leg.Ratio <= 0 {
			return fmt.Errorf("config: strategy.legs[%d].ratio must be positive", i)
		}
	}
	if c.Strategy.LotSize <= 0 {
		return fmt.Errorf("config: strategy.lot_size must be positive")
	}
	if c.Strategy.StrikeStep <= 0 {
		return fmt.Errorf("config: strategy.strike_step must be positive")
	}
	if c.Exit.TargetProfit <= 0 {
		return fmt.Errorf("config: exit.target_profit must be positive")
	}
	if c.Exit.MaxLoss <= 0 {
		return fmt.Errorf("config: exit.max_loss must be positive")
	}
	if c.Exit.DTEExitDays > c.Exit.ExpiryHorizonDays {
		return fmt.Errorf("config: exit.dte_exit_days cannot exceed exit.expiry_horizon_days")
	}
	if c.Engine.RebalancePollIntervalSeconds <= 0 {
		return fmt.Errorf("config: engine.rebalance_poll_interval_seconds must be positive")
	}
	if c.Engine.OrdersPerSecondBudget <= 0 {
		return fmt.Errorf("config: engine.orders_per_second_budget must be positive")
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log_level %q", c.LogLevel)
	}
	return nil
}
