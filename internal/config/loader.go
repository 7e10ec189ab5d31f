package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies SEED_* environment variable overrides, and
// returns the final Config. An empty path skips the file and uses defaults
// plus environment only. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known SEED_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	setInt(&cfg.Server.Port, "SEED_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "SEED_SERVER_CORS_ORIGINS")

	setStr(&cfg.Database.URL, "SEED_DATABASE_URL")
	setStr(&cfg.Database.URL, "DATABASE_URL") // compatibility alias
	setInt(&cfg.Database.PoolMaxConns, "SEED_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "SEED_DATABASE_POOL_MIN_CONNS")

	setBool(&cfg.Redis.Enabled, "SEED_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "SEED_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SEED_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SEED_REDIS_DB")
	setInt(&cfg.Redis.CacheTTLSecs, "SEED_REDIS_CACHE_TTL_SECS")

	setFloat64(&cfg.Curve.MinLiquidityRatio, "SEED_CURVE_MIN_LIQUIDITY_RATIO")
	setFloat64(&cfg.Curve.MaxLiquidityRatio, "SEED_CURVE_MAX_LIQUIDITY_RATIO")
	setFloat64(&cfg.Curve.ProbabilityDamping, "SEED_CURVE_PROBABILITY_DAMPING")
	setFloat64(&cfg.Curve.ProbabilityFloor, "SEED_CURVE_PROBABILITY_FLOOR")
	setFloat64(&cfg.Curve.DefaultGhostSupply, "SEED_CURVE_DEFAULT_GHOST_SUPPLY")
	setFloat64(&cfg.Curve.DefaultSlope, "SEED_CURVE_DEFAULT_SLOPE")

	setFloat64(&cfg.Limits.MaxStakePerDecision, "SEED_LIMITS_MAX_STAKE_PER_DECISION")
	setFloat64(&cfg.Limits.MaxStakePerCategory, "SEED_LIMITS_MAX_STAKE_PER_CATEGORY")

	setBool(&cfg.Sweep.Enabled, "SEED_SWEEP_ENABLED")
	setStr(&cfg.Sweep.ResolutionCron, "SEED_SWEEP_RESOLUTION_CRON")
	setStr(&cfg.Sweep.SettlementCron, "SEED_SWEEP_SETTLEMENT_CRON")

	setStr(&cfg.Rules.RulesPath, "SEED_RULES_PATH")
	setStr(&cfg.Rules.CatalogPath, "SEED_CATALOG_PATH")

	setStr(&cfg.LogLevel, "SEED_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
