package analytics_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polypaper/internal/analytics"
	"github.com/alejandrodnm/polypaper/internal/domain"
)

func reportView() domain.PortfolioView {
	return domain.PortfolioView{
		ID:               1,
		Name:             "default",
		StartingBalance:  1000,
		Cash:             900,
		PositionsValue:   150,
		TotalValue:       1050,
		PnL:              50,
		PnLPct:           5,
		PeakValue:        1050,
		NumOpenPositions: 1,
		Positions: []domain.PositionView{
			{Position: domain.Position{TokenID: tokenB, Side: domain.SideNo, Shares: 300, AvgEntryPrice: 0.50}},
		},
		Risk:      domain.DefaultRiskConfig(),
		CreatedAt: t0,
	}
}

func reportInput() analytics.ReportInput {
	return analytics.ReportInput{
		View: reportView(),
		Trades: []domain.Trade{
			trade(1, tokenA, domain.SideYes, domain.ActionBuy, 500, 0.50, 0, 0, "[value] (conf=70%) cheap"),
			trade(2, tokenA, domain.SideYes, domain.ActionSell, 500, 0.56, 0, 24*time.Hour, "exit"),
			trade(3, tokenB, domain.SideNo, domain.ActionBuy, 300, 0.50, 0, 30*time.Hour, "[news] (conf=60%) headline"),
		},
		Snapshots: []domain.DailySnapshot{
			{PortfolioID: 1, Date: "2026-03-03", TotalValue: 1020},
			{PortfolioID: 1, Date: "2026-03-04", TotalValue: 990},
		},
		Now:    t0.Add(72 * time.Hour),
		Config: analytics.DefaultConfig(),
	}
}

// --- BuildReport ---

func TestBuildReport_Full(t *testing.T) {
	r := analytics.BuildReport(reportInput())

	assert.Equal(t, "default", r.Summary.Portfolio)
	assert.Equal(t, 50.0, r.Summary.TotalReturnUSD)
	assert.Equal(t, 3.0, r.Summary.DaysActive)
	assert.Greater(t, r.Summary.AnnualizedReturnPct, 5.0)

	// 1000 → 1020 → 990 → 1050 (valor actual, hoy sin snapshot)
	assert.Equal(t, 3, r.Risk.Periods)
	assert.InDelta(t, 30.0/1020, r.Risk.Drawdown.MaxDrawdownPct, 1e-9)
	assert.Equal(t, 2, r.Risk.Drawdown.DurationPeriods)
	assert.Equal(t, domain.TierNone, r.Risk.Tier)

	assert.Equal(t, 1, r.Stats.ClosedTrades)
	assert.Equal(t, 30.0, r.Stats.TotalPnL)
	require.Contains(t, r.Strategies, "value")
	assert.Len(t, r.Best, 1)
	require.Len(t, r.OpenEntries, 1)
	assert.Equal(t, "news", r.OpenEntries[0].Strategy)
	assert.Empty(t, r.Orphans)

	require.Len(t, r.Violations, 1)
	assert.Equal(t, "oversized_trade", r.Violations[0].Type)
	assert.Equal(t, domain.SeverityMedium, r.Violations[0].Severity)

	assert.False(t, r.Readiness.Ready)
	assert.Contains(t, r.Readiness.Gaps[0], "more closed trades")
	assert.Nil(t, r.Since)
	assert.Equal(t, []string{analytics.HealthySuggestion}, r.Suggestions)
}

func TestBuildReport_SinceWindow(t *testing.T) {
	in := reportInput()
	in.Since = t0.Add(48 * time.Hour) // 2026-03-04

	r := analytics.BuildReport(in)

	require.NotNil(t, r.Since)
	assert.Zero(t, r.Stats.ClosedTrades)
	require.Len(t, r.OpenEntries, 1, "open lots are current holdings, not windowed")
	assert.Equal(t, tokenB, r.OpenEntries[0].TokenID)
	// 990 → 1050
	assert.Equal(t, 1, r.Risk.Periods)
	assert.Zero(t, r.Risk.Drawdown.MaxDrawdownPct)
}

func TestBuildReport_SnapshotTodayNotDuplicated(t *testing.T) {
	in := reportInput()
	in.Snapshots = append(in.Snapshots, domain.DailySnapshot{PortfolioID: 1, Date: "2026-03-05", TotalValue: 1050})
	r := analytics.BuildReport(in)
	assert.Equal(t, 3, r.Risk.Periods)
}

func TestBuildReport_ComplianceViolations(t *testing.T) {
	tests := []struct {
		name     string
		drawdown float64
		open     int
		want     []string
	}{
		{"clean", 0, 1, nil},
		{"too many positions", 0, 6, []string{"max_concurrent_positions"}},
		{"alert tier", 0.16, 1, []string{"drawdown_tier"}},
		{"halted", 0.31, 1, []string{"max_drawdown"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := analytics.ReportInput{View: reportView(), Now: t0.Add(time.Hour)}
			in.View.DrawdownPct = tt.drawdown
			in.View.NumOpenPositions = tt.open

			r := analytics.BuildReport(in)

			var got []string
			for _, v := range r.Violations {
				got = append(got, v.Type)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildReport_JSONWithInfiniteRatios(t *testing.T) {
	in := reportInput()
	in.Trades = in.Trades[:2]
	r := analytics.BuildReport(in)
	require.True(t, r.Stats.ProfitFactor.IsInf())

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"profit_factor":"inf"`)
}

func TestBuildReport_SinceWindowPairsAcrossBoundary(t *testing.T) {
	in := reportInput()
	// el BUY de tokenA (t0) queda fuera de la ventana; el SELL (t0+24h) dentro
	in.Since = t0.Add(12 * time.Hour)

	r := analytics.BuildReport(in)

	assert.Empty(t, r.Orphans)
	require.Equal(t, 1, r.Stats.ClosedTrades)
	assert.Equal(t, 30.0, r.Stats.TotalPnL)
}

func TestBuildReport_OrphansWindowed(t *testing.T) {
	in := reportInput()
	in.Trades = append(in.Trades,
		trade(4, "orphan-early", domain.SideYes, domain.ActionSell, 10, 0.5, 0, time.Hour, ""),
		trade(5, "orphan-late", domain.SideYes, domain.ActionSell, 10, 0.5, 0, 50*time.Hour, ""),
	)
	in.Since = t0.Add(48 * time.Hour)

	r := analytics.BuildReport(in)

	require.Len(t, r.Orphans, 1)
	assert.Equal(t, int64(5), r.Orphans[0].TradeID)
}

func TestBuildReport_DropsLotsWithoutOpenPosition(t *testing.T) {
	in := reportInput()
	// cierre contra un book fino: la posición se cerró pero el log sólo
	// registra parte de la venta
	in.View.Positions = nil
	in.View.NumOpenPositions = 0

	r := analytics.BuildReport(in)

	assert.Empty(t, r.OpenEntries)
	assert.Equal(t, 1, r.Stats.ClosedTrades)
}
