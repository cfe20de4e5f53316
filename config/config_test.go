package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polypaper/config"
	"github.com/alejandrodnm/polypaper/internal/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "https://clob.polymarket.com", cfg.API.CLOBBase)
	assert.Equal(t, 15*time.Second, cfg.Timeout())
	assert.Equal(t, "default", cfg.Paper.Portfolio)
	assert.Equal(t, 10000.0, cfg.Paper.StartingBalance)
	assert.Equal(t, "flat", cfg.Paper.FeeModel)
	assert.Equal(t, domain.DefaultRiskConfig(), cfg.Risk)
	assert.Equal(t, 0.045, cfg.Analytics.RiskFreeRate)
	assert.Equal(t, 20, cfg.Analytics.Readiness.MinClosedTrades)
	assert.Equal(t, 0.5, cfg.Executor.MinConfidence)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_YAMLOverridesAndPartialRisk(t *testing.T) {
	path := writeConfig(t, `
paper:
  portfolio: swing
  starting_balance: 2500
  fee_model: curve
risk:
  max_position_pct: 0.05
  max_concurrent_positions: 8
analytics:
  readiness:
    min_closed_trades: 40
executor:
  kelly_cap: 0.05
daemon:
  metrics_addr: "127.0.0.1:9200"
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "swing", cfg.Paper.Portfolio)
	assert.Equal(t, 2500.0, cfg.Paper.StartingBalance)
	assert.Equal(t, "curve", cfg.Paper.FeeModel)
	assert.Equal(t, 0.05, cfg.Risk.MaxPositionPct)
	assert.Equal(t, 8, cfg.Risk.MaxConcurrentPositions)
	assert.Equal(t, 0.30, cfg.Risk.MaxDrawdownPct)
	assert.Equal(t, 40, cfg.Analytics.Readiness.MinClosedTrades)
	assert.Equal(t, 0.55, cfg.Analytics.Readiness.MinWinRate)
	assert.Equal(t, 0.05, cfg.Executor.KellyCap)
	assert.Equal(t, "127.0.0.1:9200", cfg.Daemon.MetricsAddr)
	assert.Equal(t, 40, cfg.Report().Readiness.MinClosedTrades)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("POLYPAPER_DB", ":memory:")
	t.Setenv("POLYPAPER_PORTFOLIO", "env-portfolio")
	t.Setenv("POLYPAPER_FEE_RATE", "0.02")

	cfg, err := config.Load(writeConfig(t, "log:\n  level: warn\n"))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, ":memory:", cfg.Storage.DSN)
	assert.Equal(t, "env-portfolio", cfg.Paper.Portfolio)
	assert.Equal(t, 0.02, cfg.Paper.FeeRate)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad yaml", "paper: [unclosed"},
		{"bad fee model", "paper:\n  fee_model: tiered\n"},
		{"tiers not increasing", "risk:\n  drawdown_warn_pct: 0.25\n"},
		{"pct above one", "risk:\n  max_position_pct: 1.5\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_ExampleMatchesDefaults(t *testing.T) {
	example, err := config.Load("config.example.yaml")
	require.NoError(t, err)
	defaults, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, defaults, example)
}
