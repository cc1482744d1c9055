package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, 100*time.Millisecond, cfg.EvalInterval)
	assert.Equal(t, 0.003, cfg.SumTo100MinEdge)
	assert.Equal(t, 100.0, cfg.SumTo100TargetVolume)
	assert.Equal(t, 500*time.Millisecond, cfg.SumTo100MaxBookAge)
	assert.Equal(t, 0.01, cfg.TakerFeeRate)
	assert.Equal(t, 100.0, cfg.RiskMaxPosition)
	assert.Equal(t, 500.0, cfg.RiskMaxNotional)
	assert.Equal(t, 200.0, cfg.RiskMaxDailyLoss)
	assert.Equal(t, 0.50, cfg.SniperMinPrice)
	assert.Equal(t, 0.95, cfg.SniperMaxPrice)
	assert.Equal(t, "paper", cfg.ExecutionMode)
	assert.Equal(t, 500*time.Millisecond, cfg.OrderTimeout)
	assert.True(t, cfg.SumTo100Enabled)
	assert.False(t, cfg.SniperEnabled)
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("EVAL_INTERVAL", "250ms")
	t.Setenv("SUMTO100_MIN_EDGE", "0.01")
	t.Setenv("EXECUTION_MODE", "dry_run")
	t.Setenv("MARKET_SLUGS", "nfl-chiefs-bills, nba-lakers-celtics")
	t.Setenv("PRIVATE_KEY", "0xabc123")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.EvalInterval)
	assert.Equal(t, 0.01, cfg.SumTo100MinEdge)
	assert.Equal(t, "dry_run", cfg.ExecutionMode)
	assert.Equal(t, []string{"nfl-chiefs-bills", "nba-lakers-celtics"}, cfg.MarketSlugs)
	assert.Equal(t, "abc123", cfg.PrivateKey, "0x prefix should be stripped")
}

func TestLoadFromEnv_MalformedValueFallsBack(t *testing.T) {
	t.Setenv("RISK_MAX_POSITION", "lots")
	t.Setenv("EVAL_INTERVAL", "fast")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 100.0, cfg.RiskMaxPosition)
	assert.Equal(t, 100*time.Millisecond, cfg.EvalInterval)
}

func TestConfig_Validate(t *testing.T) {
	base := func() *Config {
		cfg, err := LoadFromEnv()
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{
			name:   "valid_defaults",
			mutate: func(c *Config) {},
		},
		{
			name:   "zero_eval_interval",
			mutate: func(c *Config) { c.EvalInterval = 0 },
			errMsg: "EVAL_INTERVAL",
		},
		{
			name:   "edge_out_of_range",
			mutate: func(c *Config) { c.SumTo100MinEdge = 1.5 },
			errMsg: "SUMTO100_MIN_EDGE",
		},
		{
			name:   "inverted_sniper_window",
			mutate: func(c *Config) { c.SniperMinPrice = 0.96 },
			errMsg: "sniper price window",
		},
		{
			name:   "bad_log_format",
			mutate: func(c *Config) { c.LogFormat = "logfmt" },
			errMsg: "LOG_FORMAT",
		},
		{
			name:   "bad_execution_mode",
			mutate: func(c *Config) { c.ExecutionMode = "backtest" },
			errMsg: "EXECUTION_MODE",
		},
		{
			name:   "live_requires_private_key",
			mutate: func(c *Config) { c.ExecutionMode = "live"; c.PrivateKey = "" },
			errMsg: "PRIVATE_KEY",
		},
		{
			name:   "negative_daily_loss_limit",
			mutate: func(c *Config) { c.RiskMaxDailyLoss = -5 },
			errMsg: "risk limits",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
