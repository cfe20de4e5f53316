package analytics

import (
	"fmt"
	"math"
	"sort"

	"github.com/alejandrodnm/polypaper/internal/domain"
)

// Umbrales de las sugerencias de ajuste.
const (
	suggestMinTradesWinRate  = 10
	suggestMinTradesPF       = 5
	suggestMinStrategyTrades = 5
	suggestLowWinRate        = 0.40
	suggestHighWinRate       = 0.70
	suggestStrategyWinRate   = 0.35
	suggestCurrentDrawdown   = 0.15
	suggestMaxDrawdown       = 0.10
	suggestMaxHoldHours      = 48
)

// HealthySuggestion es la sugerencia cuando no hay nada que ajustar.
const HealthySuggestion = "Performance looks healthy. Continue with current parameters. " +
	"Review again after 20+ more trades for statistical significance."

// SuggestionInput is what Suggestions reads from an already built report.
type SuggestionInput struct {
	Stats         Stats
	Strategies    map[string]Stats
	Drawdown      DrawdownStats
	OpenPositions int
	MaxPositions  int
}

// Suggestions devuelve ajustes de parámetros accionables. Nunca está vacía:
// sin nada que señalar devuelve un mensaje de estado sano.
func Suggestions(in SuggestionInput) []string {
	st := in.Stats
	if st.ClosedTrades == 0 {
		return []string{"No closed trades in this period. Run the advisor to find " +
			"opportunities and execute paper trades."}
	}

	var out []string
	switch {
	case st.ClosedTrades >= suggestMinTradesWinRate && st.WinRate < suggestLowWinRate:
		out = append(out, fmt.Sprintf("Win rate is %.0f%% (below 40%% threshold). Tighten entry "+
			"criteria: require a larger edge or raise minimum confidence to 0.7.", st.WinRate*100))
	case st.ClosedTrades >= suggestMinTradesWinRate && st.WinRate > suggestHighWinRate:
		out = append(out, fmt.Sprintf("Win rate is %.0f%% (strong). Consider slightly increasing "+
			"position sizes if risk limits allow.", st.WinRate*100))
	}

	if st.ClosedTrades >= suggestMinTradesPF && float64(st.ProfitFactor) < 1 {
		out = append(out, fmt.Sprintf("Profit factor is %.2f (below 1.0 = losing money). Review: "+
			"are stop losses being honored? Are winners being closed too early?", float64(st.ProfitFactor)))
	}

	if st.AvgWin != 0 && st.AvgLoss != 0 && math.Abs(st.AvgWin/st.AvgLoss) < 1 {
		out = append(out, fmt.Sprintf("Average winner ($%.2f) is smaller than average loser ($%.2f). "+
			"Widen profit targets or tighten stop losses.", st.AvgWin, st.AvgLoss))
	}

	names := make([]string, 0, len(in.Strategies))
	for name := range in.Strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ss := in.Strategies[name]
		if ss.ClosedTrades >= suggestMinStrategyTrades && ss.WinRate < suggestStrategyWinRate {
			out = append(out, fmt.Sprintf("Strategy '%s' has %.0f%% win rate over %d trades. Consider "+
				"pausing it or reviewing its entry criteria.", name, ss.WinRate*100, ss.ClosedTrades))
		}
	}

	dd := in.Drawdown
	switch {
	case dd.CurrentDrawdownPct > suggestCurrentDrawdown:
		out = append(out, fmt.Sprintf("Current drawdown is %.1f%%. Approaching the 20%% stop-trading "+
			"threshold. Reduce position sizes by 50%% immediately.", dd.CurrentDrawdownPct*100))
	case dd.MaxDrawdownPct > suggestMaxDrawdown:
		out = append(out, fmt.Sprintf("Max drawdown reached %.1f%% this period. Review whether "+
			"position sizing is appropriate.", dd.MaxDrawdownPct*100))
	}

	if in.MaxPositions > 0 && in.OpenPositions >= in.MaxPositions {
		out = append(out, fmt.Sprintf("Currently at %d open positions (maximum). Close existing "+
			"positions before opening new ones.", in.OpenPositions))
	}

	if st.AvgHoldHours > suggestMaxHoldHours {
		out = append(out, fmt.Sprintf("Average hold time is %.0f hours. Momentum and news-driven trades "+
			"should exit within 48 hours. Review whether time-based exits are enforced.", st.AvgHoldHours))
	}

	if len(out) == 0 {
		out = append(out, HealthySuggestion)
	}
	return out
}

// suggestionInput reúne lo que Suggestions necesita del informe.
func suggestionInput(r Report, view domain.PortfolioView) SuggestionInput {
	return SuggestionInput{
		Stats:         r.Stats,
		Strategies:    r.Strategies,
		Drawdown:      r.Risk.Drawdown,
		OpenPositions: view.NumOpenPositions,
		MaxPositions:  view.Risk.WithDefaults().MaxConcurrentPositions,
	}
}
