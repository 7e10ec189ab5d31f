// Package config defines the top-level configuration for the decision
// engine and provides validation helpers.
package config

import (
	"fmt"
	"strings"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by SEED_* environment variables.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	Curve    CurveConfig    `toml:"curve"`
	Limits   LimitsConfig   `toml:"limits"`
	Sweep    SweepConfig    `toml:"sweep"`
	Rules    RulesConfig    `toml:"rules"`
	LogLevel string         `toml:"log_level"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// DatabaseConfig holds PostgreSQL connection parameters. An empty URL
// selects the in-memory store, for development and tests.
type DatabaseConfig struct {
	URL          string `toml:"url"`
	PoolMaxConns int    `toml:"pool_max_conns"`
	PoolMinConns int    `toml:"pool_min_conns"`
}

// RedisConfig holds Redis cache parameters.
type RedisConfig struct {
	Enabled      bool   `toml:"enabled"`
	Addr         string `toml:"addr"`
	Password     string `toml:"password"`
	DB           int    `toml:"db"`
	CacheTTLSecs int    `toml:"cache_ttl_secs"`
}

// CurveConfig holds the bonding-curve calibration constants and the pool
// bootstrap defaults used when a decision is created without explicit
// calibration.
type CurveConfig struct {
	MinLiquidityRatio  float64 `toml:"min_liquidity_ratio"`
	MaxLiquidityRatio  float64 `toml:"max_liquidity_ratio"`
	ProbabilityDamping float64 `toml:"probability_damping"`
	ProbabilityFloor   float64 `toml:"probability_floor"`

	DefaultGhostSupply float64 `toml:"default_ghost_supply"`
	DefaultSlope       float64 `toml:"default_slope"`
}

// LimitsConfig holds the anti-concentration stake caps.
type LimitsConfig struct {
	MaxStakePerDecision float64 `toml:"max_stake_per_decision"`
	MaxStakePerCategory float64 `toml:"max_stake_per_category"`
}

// SweepConfig holds the cron schedules for the background sweeps.
type SweepConfig struct {
	Enabled        bool   `toml:"enabled"`
	ResolutionCron string `toml:"resolution_cron"`
	SettlementCron string `toml:"settlement_cron"`
}

// RulesConfig points at the resolution rules and indicator catalog files.
// Empty paths fall back to built-in defaults (rules) or fail startup
// (catalog, which has no sensible default).
type RulesConfig struct {
	RulesPath   string `toml:"rules_path"`
	CatalogPath string `toml:"catalog_path"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Database: DatabaseConfig{
			URL:          "",
			PoolMaxConns: 10,
			PoolMinConns: 2,
		},
		Redis: RedisConfig{
			Enabled:      false,
			Addr:         "localhost:6379",
			DB:           0,
			CacheTTLSecs: 30,
		},
		Curve: CurveConfig{
			MinLiquidityRatio:  0.3,
			MaxLiquidityRatio:  1.0,
			ProbabilityDamping: 0.8,
			ProbabilityFloor:   0.1,
			DefaultGhostSupply: 5000,
			DefaultSlope:       0.01,
		},
		Limits: LimitsConfig{
			MaxStakePerDecision: 1000,
			MaxStakePerCategory: 5000,
		},
		Sweep: SweepConfig{
			Enabled:        true,
			ResolutionCron: "*/10 * * * *",
			SettlementCron: "*/10 * * * *",
		},
		Rules: RulesConfig{
			CatalogPath: "indicators.toml",
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and
// returns a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}

	if c.Database.URL != "" {
		if c.Database.PoolMaxConns < 1 {
			errs = append(errs, "database: pool_max_conns must be >= 1")
		}
		if c.Database.PoolMinConns < 0 {
			errs = append(errs, "database: pool_min_conns must be >= 0")
		}
		if c.Database.PoolMinConns > c.Database.PoolMaxConns {
			errs = append(errs, "database: pool_min_conns must not exceed pool_max_conns")
		}
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when enabled")
		}
		if c.Redis.CacheTTLSecs < 1 {
			errs = append(errs, "redis: cache_ttl_secs must be >= 1")
		}
	}

	if c.Curve.MinLiquidityRatio <= 0 || c.Curve.MinLiquidityRatio > c.Curve.MaxLiquidityRatio {
		errs = append(errs, "curve: min_liquidity_ratio must be positive and <= max_liquidity_ratio")
	}
	if c.Curve.MaxLiquidityRatio > 1 {
		errs = append(errs, "curve: max_liquidity_ratio must not exceed 1")
	}
	if c.Curve.ProbabilityDamping < 0 {
		errs = append(errs, "curve: probability_damping must be >= 0")
	}
	if c.Curve.ProbabilityFloor <= 0 || c.Curve.ProbabilityFloor > 1 {
		errs = append(errs, "curve: probability_floor must be in (0, 1]")
	}
	if c.Curve.DefaultGhostSupply <= 0 {
		errs = append(errs, "curve: default_ghost_supply must be > 0")
	}
	if c.Curve.DefaultSlope <= 0 {
		errs = append(errs, "curve: default_slope must be > 0")
	}

	if c.Limits.MaxStakePerDecision <= 0 {
		errs = append(errs, "limits: max_stake_per_decision must be > 0")
	}
	if c.Limits.MaxStakePerCategory < c.Limits.MaxStakePerDecision {
		errs = append(errs, "limits: max_stake_per_category must be >= max_stake_per_decision")
	}

	if c.Sweep.Enabled {
		if c.Sweep.ResolutionCron == "" {
			errs = append(errs, "sweep: resolution_cron must not be empty when enabled")
		}
		if c.Sweep.SettlementCron == "" {
			errs = append(errs, "sweep: settlement_cron must not be empty when enabled")
		}
	}

	if c.Rules.CatalogPath == "" {
		errs = append(errs, "rules: catalog_path must not be empty")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
