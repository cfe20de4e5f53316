package notify_test

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polypaper/internal/adapters/notify"
	"github.com/alejandrodnm/polypaper/internal/analytics"
	"github.com/alejandrodnm/polypaper/internal/domain"
	"github.com/alejandrodnm/polypaper/internal/ports"
)

var (
	_ ports.Notifier = (*notify.Console)(nil)
	_ ports.Notifier = (*notify.JSON)(nil)
)

func makeView(question string) domain.PortfolioView {
	pos := domain.Position{
		TokenID:        "123456789012345678901234",
		MarketQuestion: question,
		Side:           domain.SideYes,
		Shares:         100,
		AvgEntryPrice:  0.40,
		CurrentPrice:   0.45,
	}
	return domain.NewPortfolioView(domain.Portfolio{
		Name:            "default",
		StartingBalance: 1000,
		CashBalance:     960,
		PeakValue:       1000,
		Risk:            domain.DefaultRiskConfig(),
	}, []domain.PositionView{domain.NewPositionView(pos, domain.PriceCached)})
}

func TestConsole_Portfolio(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf)

	require.NoError(t, n.Portfolio(context.Background(), makeView("Will Trump win?")))

	out := buf.String()
	assert.Contains(t, out, "Will Trump win?")
	assert.Contains(t, out, "1005.00")
	assert.Contains(t, out, "+$5.00")
	assert.Contains(t, out, "cached")
}

func TestConsole_Portfolio_LongQuestionTruncated(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf)

	require.NoError(t, n.Portfolio(context.Background(), makeView(strings.Repeat("A", 80))))
	assert.Contains(t, buf.String(), "...")
}

func TestConsole_TradesEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, notify.NewConsoleWriter(&buf).Trades(context.Background(), nil))
	assert.Contains(t, buf.String(), "No trades yet")
}

func TestConsole_ExecutionSell(t *testing.T) {
	var buf bytes.Buffer
	exec := domain.Execution{
		Trade: domain.Trade{
			Action:         domain.ActionSell,
			Side:           domain.SideNo,
			Shares:         10,
			Price:          0.44,
			MarketQuestion: "Fed cut in June?",
			ExecutedAt:     time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC),
		},
		Fill:        domain.Fill{LevelsConsumed: 2, FullyFilled: false},
		RealizedPnL: -0.6,
		Cash:        999.4,
	}
	require.NoError(t, notify.NewConsoleWriter(&buf).Execution(context.Background(), exec))

	out := buf.String()
	assert.Contains(t, out, "SELL 10.00 NO @ 0.4400")
	assert.Contains(t, out, "realized -$0.60")
	assert.Contains(t, out, "PARTIAL")
}

func TestConsole_Results(t *testing.T) {
	var buf bytes.Buffer
	mid, spread := 0.43, 0.06
	results := []domain.RecommendationResult{
		{Status: domain.StatusExecuted, Action: domain.RecBuy, SizeUSD: 50},
		{Status: domain.StatusRejected, Reason: "risk check failed"},
		{Status: domain.StatusSkipped, Reason: "Trading halted due to drawdown limit"},
		{Status: domain.StatusDryRun, Action: domain.RecBuy, CurrentPrice: &mid, Spread: &spread},
	}
	require.NoError(t, notify.NewConsoleWriter(&buf).Results(context.Background(), results))
	out := buf.String()
	assert.Contains(t, out, "1 executed | 1 rejected | 1 skipped")
	assert.Contains(t, out, "0.4300")
	assert.Contains(t, out, "0.0600")
}

func TestConsole_ReportInfiniteRatios(t *testing.T) {
	var buf bytes.Buffer
	rep := analytics.Report{
		Summary:   analytics.Summary{Portfolio: "default"},
		Stats:     analytics.Stats{ClosedTrades: 1, Winners: 1, ProfitFactor: analytics.Ratio(math.Inf(1))},
		Readiness: analytics.Readiness{Gaps: []string{"need 19 more closed trades (1/20)"}},
	}
	require.NoError(t, notify.NewConsoleWriter(&buf).Report(context.Background(), rep))

	out := buf.String()
	assert.Contains(t, out, "INF")
	assert.Contains(t, out, "need 19 more closed trades")
	assert.Contains(t, out, "NOT READY")
	assert.NotContains(t, out, "SUGGESTIONS")
}

func TestConsole_ReportSuggestions(t *testing.T) {
	var buf bytes.Buffer
	rep := analytics.Report{
		Summary: analytics.Summary{Portfolio: "default"},
		Suggestions: []string{
			"Profit factor is 0.80 (below 1.0 = losing money).",
			"Average hold time is 72 hours.",
		},
	}
	require.NoError(t, notify.NewConsoleWriter(&buf).Report(context.Background(), rep))

	out := buf.String()
	assert.Contains(t, out, "--- SUGGESTIONS ---")
	assert.Contains(t, out, "  1. Profit factor is 0.80")
	assert.Contains(t, out, "  2. Average hold time is 72 hours.")
}

// --- JSON ---

func TestJSON_Report(t *testing.T) {
	var buf bytes.Buffer
	rep := analytics.Report{Stats: analytics.Stats{ProfitFactor: analytics.Ratio(math.Inf(1))}}
	require.NoError(t, notify.NewJSONWriter(&buf).Report(context.Background(), rep))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	stats := decoded["trade_stats"].(map[string]any)
	assert.Equal(t, "inf", stats["profit_factor"])
}

func TestJSON_EmptyTradesIsArray(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, notify.NewJSONWriter(&buf).Trades(context.Background(), nil))
	assert.Equal(t, "[]\n", buf.String())
}
