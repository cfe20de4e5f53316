package analytics_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polypaper/internal/analytics"
)

func series(values ...float64) []analytics.Point {
	days := []string{"2026-03-01", "2026-03-02", "2026-03-03", "2026-03-04", "2026-03-05", "2026-03-06", "2026-03-07"}
	out := make([]analytics.Point, len(values))
	for i, v := range values {
		out[i] = analytics.Point{Date: days[i], Value: v}
	}
	return out
}

var noRiskFree = analytics.RatioConfig{RiskFreeRate: 0, PeriodsPerYear: 1}

// --- ComputeDrawdown ---

func TestComputeDrawdown_RecoveredToNewPeak(t *testing.T) {
	dd := analytics.ComputeDrawdown(series(1000, 1100, 900, 950, 1200))

	assert.InDelta(t, 0.181818, dd.MaxDrawdownPct, 1e-6)
	assert.Equal(t, 200.0, dd.MaxDrawdownUSD)
	assert.Equal(t, 1100.0, dd.PeakValue)
	assert.Equal(t, "2026-03-02", dd.PeakDate)
	assert.Equal(t, 900.0, dd.TroughValue)
	assert.Equal(t, "2026-03-03", dd.TroughDate)
	assert.Equal(t, 3, dd.DurationPeriods)
	assert.Zero(t, dd.CurrentDrawdownPct)
	assert.Zero(t, dd.CurrentDrawdownUSD)
}

func TestComputeDrawdown_TrailingUnrecovered(t *testing.T) {
	dd := analytics.ComputeDrawdown(series(1000, 900, 950))

	assert.InDelta(t, 0.10, dd.MaxDrawdownPct, 1e-9)
	assert.Equal(t, 2, dd.DurationPeriods)
	assert.InDelta(t, 0.05, dd.CurrentDrawdownPct, 1e-9)
	assert.Equal(t, 50.0, dd.CurrentDrawdownUSD)
}

func TestComputeDrawdown_Monotonic(t *testing.T) {
	dd := analytics.ComputeDrawdown(series(1000, 1010, 1020))
	assert.Zero(t, dd.MaxDrawdownPct)
	assert.Zero(t, dd.DurationPeriods)
	assert.Equal(t, 1020.0, dd.PeakValue)

	assert.Equal(t, analytics.DrawdownStats{}, analytics.ComputeDrawdown(nil))
}

// --- returns & ratios ---

func TestDailyReturns(t *testing.T) {
	got := analytics.DailyReturns([]float64{1000, 1100, 0, 500})
	require.Len(t, got, 2)
	assert.InDelta(t, 0.1, got[0], 1e-12)
	assert.InDelta(t, -1.0, got[1], 1e-12)
	assert.Empty(t, analytics.DailyReturns([]float64{1000}))
}

func TestSharpe(t *testing.T) {
	assert.InDelta(t, 0.7071, float64(analytics.Sharpe([]float64{0.02, 0}, noRiskFree)), 1e-4)
	assert.Zero(t, analytics.Sharpe([]float64{0.05}, noRiskFree))
	assert.Zero(t, analytics.Sharpe([]float64{0.01, -0.01}, noRiskFree))
	assert.True(t, analytics.Sharpe([]float64{0.01, 0.01, 0.01}, noRiskFree).IsInf())
	assert.Zero(t, analytics.Sharpe([]float64{0, 0, 0}, noRiskFree))
}

func TestSharpe_RiskFreeAnnualized(t *testing.T) {
	// 4.5%/365 diario: un retorno constante por debajo da mean < 0 y σ = 0
	cfg := analytics.DefaultRatioConfig()
	assert.Zero(t, analytics.Sharpe([]float64{0.0001, 0.0001}, cfg))
	assert.True(t, analytics.Sharpe([]float64{0.001, 0.001}, cfg).IsInf())
}

func TestSortino(t *testing.T) {
	assert.InDelta(t, 0.7071, float64(analytics.Sortino([]float64{0.02, -0.01}, noRiskFree)), 1e-4)
	assert.True(t, analytics.Sortino([]float64{0.02, 0}, noRiskFree).IsInf())
	assert.Zero(t, analytics.Sortino([]float64{0.02}, noRiskFree))
}
