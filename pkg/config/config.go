// Package config loads btc15m-maker's configuration from the environment,
// following the teacher's pkg/config convention: a flat Config struct decoded
// from its struct tags in a single caarlos0/env pass, and a Validate() that
// fails fast on bad input.
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all application configuration (spec.md §6's option table plus
// the ambient stack's connection settings).
type Config struct {
	// Application
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	HTTPPort string `env:"HTTP_PORT" envDefault:"8080"`

	// Decision engine knobs (spec.md §6 "Configuration"), struct-tag decoded.
	Knobs

	// BTC spot feed
	SpotFeedURL       string `env:"SPOTFEED_URL" envDefault:"wss://ws-feed.exchange.coinbase.com"`
	SpotFeedProductID string `env:"SPOTFEED_PRODUCT_ID" envDefault:"BTC-USD"`

	// Prediction-market collaborator
	MarketBaseURL string `env:"MARKET_BASE_URL"`
	MarketAPIKey  string `env:"MARKET_API_KEY"`

	// Storage
	StorageMode  string `env:"STORAGE_MODE" envDefault:"console"` // "postgres" or "console"
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort string `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"btc15m"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"btc15m"`
	PostgresDB   string `env:"POSTGRES_DB" envDefault:"btc15m_maker"`
	PostgresSSL  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`

	// Hot-reload pub/sub for matrix snapshot changes (pkg/spotcache)
	RedisAddr string `env:"REDIS_ADDR"` // empty disables the pub/sub
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Matrix Store
	MatrixSnapshotPath string `env:"MATRIX_SNAPSHOT_PATH" envDefault:"./matrix-snapshots"`
	MatrixSchemePath   string `env:"MATRIX_SCHEME_PATH" envDefault:"./bucketing-scheme.yaml"`
}

// Knobs is the subset of Config corresponding directly to spec.md §6's option
// table. It is embedded in Config and decoded by the same env.Parse call as
// the rest of the struct.
type Knobs struct {
	PollingIntervalMS int `env:"POLLING_INTERVAL_MS" envDefault:"500"`

	EdgeMinStrong   float64 `env:"EDGE_MIN_STRONG" envDefault:"0.05"`
	EdgeMinModerate float64 `env:"EDGE_MIN_MODERATE" envDefault:"0.07"`
	EdgeMinWeak     float64 `env:"EDGE_MIN_WEAK" envDefault:"0.15"`

	SizingKellyFractionStrong   float64 `env:"SIZING_KELLY_FRACTION_STRONG" envDefault:"0.50"`
	SizingKellyFractionModerate float64 `env:"SIZING_KELLY_FRACTION_MODERATE" envDefault:"0.25"`
	SizingKellyFractionWeak     float64 `env:"SIZING_KELLY_FRACTION_WEAK" envDefault:"0.10"`
	SizingMaxBetPct             float64 `env:"SIZING_MAX_BET_PCT" envDefault:"0.10"`
	SizingMaxBetUSDC            float64 `env:"SIZING_MAX_BET_USDC" envDefault:"100"`
	SizingMinBetUSDC            float64 `env:"SIZING_MIN_BET_USDC" envDefault:"1"`

	TimingMinSecondsElapsed   int `env:"TIMING_MIN_SECONDS_ELAPSED" envDefault:"60"`
	TimingMinSecondsRemaining int `env:"TIMING_MIN_SECONDS_REMAINING" envDefault:"15"`

	FiltersRequireMomentumAlignment bool   `env:"FILTERS_REQUIRE_MOMENTUM_ALIGNMENT" envDefault:"true"`
	FiltersMinConfidence             string `env:"FILTERS_MIN_CONFIDENCE" envDefault:"moderate"`

	ExecutionSlippageBPS int `env:"EXECUTION_SLIPPAGE_BPS" envDefault:"50"`
	ExecutionMaxRetries  int `env:"EXECUTION_MAX_RETRIES" envDefault:"3"`

	RiskMaxBetsPerWindow   int     `env:"RISK_MAX_BETS_PER_WINDOW" envDefault:"1"`
	RiskDailyLossLimitPct  float64 `env:"RISK_DAILY_LOSS_LIMIT_PCT" envDefault:"0.20"`
	RiskLossReductionFactor float64 `env:"RISK_LOSS_REDUCTION_FACTOR" envDefault:"1.0"`
	RiskConsecutiveWinsToReset int  `env:"RISK_CONSECUTIVE_WINS_TO_RESET" envDefault:"3"`
	RiskCooldownAfterLosses    int     `env:"RISK_COOLDOWN_AFTER_LOSSES" envDefault:"0"`
	RiskCooldownEdgeMultiplier float64 `env:"RISK_COOLDOWN_EDGE_MULTIPLIER" envDefault:"1.0"`

	BankrollStartingUSDC float64 `env:"BANKROLL_STARTING_USDC" envDefault:"1000"`

	// Sell-side exit strategy (spec.md §4.G "sell_profit_threshold"; exit_ev is
	// the supplemented first-passage strategy, SPEC_FULL.md item 3).
	SellProfitThreshold       float64 `env:"SELL_PROFIT_THRESHOLD" envDefault:"0"` // 0 disables, hold-to-expiry
	SellStrategy              string  `env:"SELL_STRATEGY" envDefault:"hold"`      // "hold" or "exit_ev"
	ExitContinuationThreshold float64 `env:"EXIT_CONTINUATION_THRESHOLD" envDefault:"0.5"`
}

// LoadFromEnv loads a .env file if present (teacher's joho/godotenv
// convention) then decodes the environment into Config via caarlos0/env.
func LoadFromEnv() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are coherent, failing fast the
// way the teacher's Config.Validate does.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}

	if c.StorageMode != "postgres" && c.StorageMode != "console" {
		return fmt.Errorf("STORAGE_MODE must be 'postgres' or 'console', got %q", c.StorageMode)
	}

	if c.MarketBaseURL == "" {
		return fmt.Errorf("MARKET_BASE_URL cannot be empty")
	}

	if c.EdgeMinStrong >= c.EdgeMinModerate || c.EdgeMinModerate >= c.EdgeMinWeak {
		return fmt.Errorf("edge thresholds must satisfy min_strong < min_moderate < min_weak, got %f/%f/%f",
			c.EdgeMinStrong, c.EdgeMinModerate, c.EdgeMinWeak)
	}

	if c.SizingMaxBetPct <= 0 || c.SizingMaxBetPct > 1.0 {
		return fmt.Errorf("SIZING_MAX_BET_PCT must be in (0, 1.0], got %f", c.SizingMaxBetPct)
	}

	if c.TimingMinSecondsElapsed < 0 || c.TimingMinSecondsRemaining < 0 {
		return fmt.Errorf("timing gates must be non-negative")
	}

	if c.RiskDailyLossLimitPct <= 0 || c.RiskDailyLossLimitPct >= 1.0 {
		return fmt.Errorf("RISK_DAILY_LOSS_LIMIT_PCT must be between 0 and 1.0, got %f", c.RiskDailyLossLimitPct)
	}

	if c.SellStrategy != "hold" && c.SellStrategy != "exit_ev" {
		return fmt.Errorf("SELL_STRATEGY must be 'hold' or 'exit_ev', got %q", c.SellStrategy)
	}

	return nil
}
