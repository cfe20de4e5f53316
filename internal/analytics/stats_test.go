package analytics_test

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polypaper/internal/analytics"
)

func trips(pnls ...float64) []analytics.RoundTrip {
	out := make([]analytics.RoundTrip, 0, len(pnls))
	for i, p := range pnls {
		out = append(out, analytics.RoundTrip{
			PnL:       p,
			CostBasis: 50,
			ReturnPct: p / 50 * 100,
			EntryFee:  0.5,
			Hold:      time.Duration(i+1) * time.Hour,
			Strategy:  []string{"value", "momentum"}[i%2],
		})
	}
	return out
}

// --- ComputeStats ---

func TestComputeStats_Mixed(t *testing.T) {
	s := analytics.ComputeStats(trips(10, -5, 0, 20))

	assert.Equal(t, 4, s.ClosedTrades)
	assert.Equal(t, 2, s.Winners)
	assert.Equal(t, 1, s.Losers)
	assert.Equal(t, 1, s.Breakeven)
	assert.Equal(t, 0.5, s.WinRate)
	assert.Equal(t, 25.0, s.TotalPnL)
	assert.Equal(t, 6.25, s.AvgPnL)
	assert.Equal(t, 15.0, s.AvgWin)
	assert.Equal(t, -5.0, s.AvgLoss)
	assert.Equal(t, 20.0, s.LargestWin)
	assert.Equal(t, -5.0, s.LargestLoss)
	assert.Equal(t, 30.0, s.GrossProfit)
	assert.Equal(t, 5.0, s.GrossLoss)
	assert.Equal(t, analytics.Ratio(6), s.ProfitFactor)
	assert.Equal(t, 2.0, s.TotalFees)
	assert.Equal(t, 2.5, s.AvgHoldHours)
}

func TestComputeStats_ProfitFactorEdges(t *testing.T) {
	assert.True(t, analytics.ComputeStats(trips(5, 3)).ProfitFactor.IsInf())
	assert.Equal(t, analytics.Ratio(0), analytics.ComputeStats(trips(0)).ProfitFactor)
	assert.Equal(t, analytics.Ratio(0), analytics.ComputeStats(trips(-4)).ProfitFactor)
	assert.Equal(t, analytics.Stats{}, analytics.ComputeStats(nil))
}

func TestRatio_MarshalJSON(t *testing.T) {
	s := analytics.ComputeStats(trips(5))
	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"profit_factor":"inf"`)

	data, err = json.Marshal(analytics.Ratio(1.25))
	require.NoError(t, err)
	assert.Equal(t, "1.25", string(data))

	data, err = json.Marshal(analytics.Ratio(math.NaN()))
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))
}

func TestByStrategy(t *testing.T) {
	got := analytics.ByStrategy(trips(10, -5, 0, 20))
	require.Len(t, got, 2)
	assert.Equal(t, 2, got["value"].ClosedTrades)
	assert.Equal(t, 10.0, got["value"].TotalPnL)
	assert.Equal(t, 2, got["momentum"].ClosedTrades)
	assert.Equal(t, 15.0, got["momentum"].TotalPnL)
	assert.Equal(t, 0.5, got["momentum"].WinRate)
}

func TestExtremes(t *testing.T) {
	best, worst := analytics.Extremes(trips(10, -5, 0, 20, -8), 3)
	require.Len(t, best, 3)
	require.Len(t, worst, 3)
	assert.Equal(t, []float64{20, 10, 0}, []float64{best[0].PnL, best[1].PnL, best[2].PnL})
	assert.Equal(t, []float64{-8, -5, 0}, []float64{worst[0].PnL, worst[1].PnL, worst[2].PnL})

	best, worst = analytics.Extremes(trips(1), 3)
	assert.Len(t, best, 1)
	assert.Len(t, worst, 1)
}
