package analytics

import (
	"fmt"
	"math"
	"time"

	"github.com/alejandrodnm/polypaper/internal/domain"
)

const (
	defaultOversizedPct = 0.20
	extremesCount       = 3
	daysPerYear         = 365.25
)

// Config parametriza el informe.
type Config struct {
	Ratios       RatioConfig
	Readiness    Thresholds
	OversizedPct float64 // un round trip con coste > OversizedPct del valor se marca
}

// DefaultConfig devuelve la configuración por defecto del informe.
func DefaultConfig() Config {
	return Config{
		Ratios:       DefaultRatioConfig(),
		Readiness:    DefaultThresholds(),
		OversizedPct: defaultOversizedPct,
	}
}

// ReportInput is everything BuildReport reads. Trades should be the whole
// log so that lots opened before Since still pair; Since, when set, keeps
// the round trips closed inside the window and the snapshots from that day.
type ReportInput struct {
	View      domain.PortfolioView
	Trades    []domain.Trade
	Snapshots []domain.DailySnapshot
	Since     time.Time
	Now       time.Time
	Config    Config
}

// Summary is the headline performance of the portfolio.
type Summary struct {
	Portfolio           string    `json:"portfolio"`
	StartingBalance     float64   `json:"starting_balance"`
	CurrentValue        float64   `json:"current_value"`
	Cash                float64   `json:"cash_balance"`
	PositionsValue      float64   `json:"positions_value"`
	TotalReturnUSD      float64   `json:"total_return_usd"`
	TotalReturnPct      float64   `json:"total_return_pct"`
	AnnualizedReturnPct float64   `json:"annualized_return_pct"`
	DaysActive          float64   `json:"days_active"`
	CreatedAt           time.Time `json:"created_at"`
	Stale               bool      `json:"stale_prices"`
}

// RiskMetrics son las métricas de riesgo sobre la curva de equity.
type RiskMetrics struct {
	Sharpe   Ratio               `json:"sharpe_ratio"`
	Sortino  Ratio               `json:"sortino_ratio"`
	Drawdown DrawdownStats       `json:"drawdown"`
	Tier     domain.DrawdownTier `json:"drawdown_tier"`
	Periods  int                 `json:"return_periods"`
}

// Report is the full performance report of one portfolio.
type Report struct {
	GeneratedAt time.Time             `json:"generated_at"`
	Since       *time.Time            `json:"since,omitempty"`
	Summary     Summary               `json:"summary"`
	Risk        RiskMetrics           `json:"risk_metrics"`
	Stats       Stats                 `json:"trade_stats"`
	Strategies  map[string]Stats      `json:"strategy_breakdown"`
	Best        []RoundTrip           `json:"best_trades"`
	Worst       []RoundTrip           `json:"worst_trades"`
	OpenEntries []OpenEntry           `json:"open_entries"`
	Orphans     []Orphan              `json:"orphans"`
	Positions   []domain.PositionView `json:"open_positions"`
	Violations  []domain.Alert        `json:"violations"`
	Readiness   Readiness             `json:"live_readiness"`
	Suggestions []string              `json:"suggestions"`
}

// BuildReport calcula el informe completo. No hace I/O: el caller reúne
// trades, snapshots y la vista valorada.
func BuildReport(in ReportInput) Report {
	cfg := in.Config
	if cfg.OversizedPct <= 0 {
		cfg.OversizedPct = defaultOversizedPct
	}
	if in.Now.IsZero() {
		in.Now = time.Now().UTC()
	}

	snaps := filterSnapshots(in.Snapshots, in.Since)

	pairing := PairTrades(in.Trades)
	trips := tripsClosedSince(pairing.Trips, in.Since)
	stats := ComputeStats(trips)
	best, worst := Extremes(trips, extremesCount)

	curve := equitySeries(in.View, snaps, in.Since, in.Now)
	values := make([]float64, len(curve))
	for i, p := range curve {
		values[i] = p.Value
	}
	returns := DailyReturns(values)
	dd := ComputeDrawdown(curve)
	sharpe := Sharpe(returns, cfg.Ratios)

	r := Report{
		GeneratedAt: in.Now,
		Summary:     summarize(in.View, in.Now),
		Risk: RiskMetrics{
			Sharpe:   sharpe,
			Sortino:  Sortino(returns, cfg.Ratios),
			Drawdown: dd,
			Tier:     in.View.Risk.WithDefaults().Tier(in.View.DrawdownPct),
			Periods:  len(returns),
		},
		Stats:       stats,
		Strategies:  ByStrategy(trips),
		Best:        best,
		Worst:       worst,
		OpenEntries: heldEntries(pairing.Open, in.View.Positions),
		Orphans:     orphansSince(pairing.Orphans, in.Since),
		Positions:   in.View.Positions,
		Violations:  complianceViolations(in.View, trips, cfg.OversizedPct),
		Readiness:   AssessReadiness(stats, sharpe, dd, cfg.Readiness),
	}
	r.Suggestions = Suggestions(suggestionInput(r, in.View))
	if r.Positions == nil {
		r.Positions = []domain.PositionView{}
	}
	if !in.Since.IsZero() {
		since := in.Since
		r.Since = &since
	}
	return r
}

func tripsClosedSince(trips []RoundTrip, since time.Time) []RoundTrip {
	if since.IsZero() {
		return trips
	}
	out := make([]RoundTrip, 0, len(trips))
	for _, t := range trips {
		if !t.ExitTime.Before(since) {
			out = append(out, t)
		}
	}
	return out
}

func orphansSince(orphans []Orphan, since time.Time) []Orphan {
	if since.IsZero() {
		return orphans
	}
	out := make([]Orphan, 0, len(orphans))
	for _, o := range orphans {
		if !o.ExecutedAt.Before(since) {
			out = append(out, o)
		}
	}
	return out
}

// heldEntries descarta los lotes abiertos sin posición abierta detrás: un
// cierre contra un book fino da de baja las shares que no llegó a vender.
func heldEntries(open []OpenEntry, positions []domain.PositionView) []OpenEntry {
	held := make(map[domain.PositionKey]bool, len(positions))
	for _, p := range positions {
		held[p.Key()] = true
	}
	out := make([]OpenEntry, 0, len(open))
	for _, o := range open {
		if held[domain.PositionKey{TokenID: o.TokenID, Side: o.Side}] {
			out = append(out, o)
		}
	}
	return out
}

func filterSnapshots(snaps []domain.DailySnapshot, since time.Time) []domain.DailySnapshot {
	if since.IsZero() {
		return snaps
	}
	from := since.UTC().Format(domain.SnapshotDateLayout)
	out := make([]domain.DailySnapshot, 0, len(snaps))
	for _, s := range snaps {
		if s.Date >= from {
			out = append(out, s)
		}
	}
	return out
}

// equitySeries: balance inicial (sin ventana), snapshots, y el valor actual
// si hoy aún no tiene snapshot.
func equitySeries(view domain.PortfolioView, snaps []domain.DailySnapshot, since, now time.Time) []Point {
	curve := make([]Point, 0, len(snaps)+2)
	if since.IsZero() && view.StartingBalance > 0 {
		curve = append(curve, Point{
			Date:  view.CreatedAt.UTC().Format(domain.SnapshotDateLayout),
			Value: view.StartingBalance,
		})
	}
	curve = append(curve, EquityCurve(snaps)...)

	today := now.UTC().Format(domain.SnapshotDateLayout)
	if len(snaps) == 0 || snaps[len(snaps)-1].Date != today {
		if view.TotalValue > 0 {
			curve = append(curve, Point{Date: today, Value: view.TotalValue})
		}
	}
	return curve
}

func summarize(view domain.PortfolioView, now time.Time) Summary {
	s := Summary{
		Portfolio:       view.Name,
		StartingBalance: view.StartingBalance,
		CurrentValue:    view.TotalValue,
		Cash:            view.Cash,
		PositionsValue:  view.PositionsValue,
		TotalReturnUSD:  view.PnL,
		TotalReturnPct:  view.PnLPct,
		CreatedAt:       view.CreatedAt,
		Stale:           view.Stale,
	}
	if view.CreatedAt.IsZero() {
		return s
	}
	days := now.Sub(view.CreatedAt).Hours() / 24
	s.DaysActive = domain.Round(days, 1)
	s.AnnualizedReturnPct = annualizedReturn(view.StartingBalance, view.TotalValue, days)
	return s
}

// annualizedReturn compone el retorno total a un año. Con menos de un día
// de historia no se extrapola.
func annualizedReturn(start, current, days float64) float64 {
	if start <= 0 || current <= 0 || days < 1 {
		return 0
	}
	growth := math.Pow(current/start, daysPerYear/days) - 1
	if math.IsInf(growth, 0) || math.IsNaN(growth) {
		return 0
	}
	return domain.Round(growth*100, 2)
}

// complianceViolations revisa el estado actual contra los límites de riesgo.
func complianceViolations(view domain.PortfolioView, trips []RoundTrip, oversizedPct float64) []domain.Alert {
	risk := view.Risk.WithDefaults()
	out := []domain.Alert{}

	if view.NumOpenPositions > risk.MaxConcurrentPositions {
		out = append(out, domain.Alert{
			Severity: domain.SeverityHigh,
			Type:     "max_concurrent_positions",
			Message: fmt.Sprintf("%d open positions exceed limit of %d",
				view.NumOpenPositions, risk.MaxConcurrentPositions),
		})
	}

	dd := view.DrawdownPct
	switch {
	case dd >= risk.MaxDrawdownPct:
		out = append(out, domain.Alert{
			Severity: domain.SeverityCritical,
			Type:     "max_drawdown",
			Message:  fmt.Sprintf("drawdown %.1f%% at or above halt limit %.0f%%", dd*100, risk.MaxDrawdownPct*100),
		})
	case risk.Tier(dd) != domain.TierNone:
		tier := risk.Tier(dd)
		sev := domain.SeverityMedium
		switch tier {
		case domain.TierCritical:
			sev = domain.SeverityCritical
		case domain.TierAlert:
			sev = domain.SeverityHigh
		}
		out = append(out, domain.Alert{
			Severity: sev,
			Type:     "drawdown_tier",
			Message:  fmt.Sprintf("drawdown %.1f%% in tier %s: %s", dd*100, tier, tier.Action()),
		})
	}

	if view.TotalValue > 0 {
		for _, t := range trips {
			if t.CostBasis/view.TotalValue <= oversizedPct {
				continue
			}
			out = append(out, domain.Alert{
				Severity: domain.SeverityMedium,
				Type:     "oversized_trade",
				Message: fmt.Sprintf("%s %s cost $%.2f is %.1f%% of portfolio (limit %.0f%%)",
					truncate(t.MarketQuestion, 40), t.Side, t.CostBasis,
					t.CostBasis/view.TotalValue*100, oversizedPct*100),
			})
		}
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
