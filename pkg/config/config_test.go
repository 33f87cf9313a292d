package config

import (
	"os"
	"testing"
)

func TestConfigDefaults(t *testing.T) {
	os.Setenv("MARKET_BASE_URL", "https://example.invalid")
	t.Cleanup(func() { os.Unsetenv("MARKET_BASE_URL") })

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.PollingIntervalMS != 500 {
		t.Errorf("expected default PollingIntervalMS 500, got %d", cfg.PollingIntervalMS)
	}
	if cfg.EdgeMinStrong != 0.05 {
		t.Errorf("expected default EdgeMinStrong 0.05, got %f", cfg.EdgeMinStrong)
	}
	if cfg.RiskMaxBetsPerWindow != 1 {
		t.Errorf("expected default RiskMaxBetsPerWindow 1, got %d", cfg.RiskMaxBetsPerWindow)
	}
	if !cfg.FiltersRequireMomentumAlignment {
		t.Error("expected FiltersRequireMomentumAlignment to default true")
	}
}

func TestConfigOverridesFromEnv(t *testing.T) {
	os.Setenv("MARKET_BASE_URL", "https://example.invalid")
	os.Setenv("TIMING_MIN_SECONDS_ELAPSED", "120")
	os.Setenv("SIZING_MAX_BET_USDC", "1000")
	t.Cleanup(func() {
		os.Unsetenv("MARKET_BASE_URL")
		os.Unsetenv("TIMING_MIN_SECONDS_ELAPSED")
		os.Unsetenv("SIZING_MAX_BET_USDC")
	})

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.TimingMinSecondsElapsed != 120 {
		t.Errorf("expected TimingMinSecondsElapsed 120, got %d", cfg.TimingMinSecondsElapsed)
	}
	if cfg.SizingMaxBetUSDC != 1000 {
		t.Errorf("expected SizingMaxBetUSDC 1000, got %f", cfg.SizingMaxBetUSDC)
	}
}

func TestConfigValidateRejectsBadEdgeOrdering(t *testing.T) {
	cfg := &Config{
		HTTPPort:      "8080",
		MarketBaseURL: "https://example.invalid",
		StorageMode:   "console",
		Knobs: Knobs{
			EdgeMinStrong:           0.05,
			EdgeMinModerate:         0.08,
			EdgeMinWeak:             0.04, // must be > moderate
			SizingMaxBetPct:         0.10,
			RiskDailyLossLimitPct:   0.20,
		},
	}

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for inverted edge thresholds, got nil")
	}
}

func TestConfigValidateRejectsBadStorageMode(t *testing.T) {
	cfg := &Config{
		HTTPPort:      "8080",
		MarketBaseURL: "https://example.invalid",
		StorageMode:   "nonsense",
		Knobs: Knobs{
			EdgeMinStrong:         0.05,
			EdgeMinModerate:       0.07,
			EdgeMinWeak:           0.15,
			SizingMaxBetPct:       0.10,
			RiskDailyLossLimitPct: 0.20,
		},
	}

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid STORAGE_MODE, got nil")
	}
}

func TestConfigValidateRequiresMarketBaseURL(t *testing.T) {
	cfg := &Config{
		HTTPPort:    "8080",
		StorageMode: "console",
		Knobs: Knobs{
			EdgeMinStrong:         0.05,
			EdgeMinModerate:       0.07,
			EdgeMinWeak:           0.15,
			SizingMaxBetPct:       0.10,
			RiskDailyLossLimitPct: 0.20,
		},
	}

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing MARKET_BASE_URL, got nil")
	}
}
