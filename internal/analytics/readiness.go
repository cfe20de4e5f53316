package analytics

import (
	"fmt"
	"math"
)

// Thresholds son los mínimos para considerar una estrategia lista para dinero real.
type Thresholds struct {
	MinClosedTrades int     `yaml:"min_closed_trades"`
	MinWinRate      float64 `yaml:"min_win_rate"`
	MinSharpe       float64 `yaml:"min_sharpe"`
	MaxDrawdown     float64 `yaml:"max_drawdown"` // estricto: debe quedar por debajo
}

// DefaultThresholds: 20 trades cerrados, 55% de acierto, Sharpe 0.5, drawdown < 15%.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinClosedTrades: 20,
		MinWinRate:      0.55,
		MinSharpe:       0.5,
		MaxDrawdown:     0.15,
	}
}

// WithDefaults rellena los campos a cero.
func (t Thresholds) WithDefaults() Thresholds {
	d := DefaultThresholds()
	if t.MinClosedTrades <= 0 {
		t.MinClosedTrades = d.MinClosedTrades
	}
	if t.MinWinRate <= 0 {
		t.MinWinRate = d.MinWinRate
	}
	if t.MinSharpe <= 0 {
		t.MinSharpe = d.MinSharpe
	}
	if t.MaxDrawdown <= 0 {
		t.MaxDrawdown = d.MaxDrawdown
	}
	return t
}

// Criterion is one readiness check. Gap is how far Actual is from Required;
// zero when the criterion passes.
type Criterion struct {
	Name     string  `json:"name"`
	Required float64 `json:"required"`
	Actual   Ratio   `json:"actual"`
	Passed   bool    `json:"passed"`
	Gap      float64 `json:"gap"`
}

// Readiness is the live-trading verdict: Ready only if every criterion passed.
type Readiness struct {
	Ready    bool        `json:"ready"`
	Passed   int         `json:"passed"`
	Total    int         `json:"total"`
	Criteria []Criterion `json:"criteria"`
	Gaps     []string    `json:"gaps"`
}

// AssessReadiness evalúa los cuatro criterios. Cada criterio fallido añade
// exactamente una entrada en Gaps.
func AssessReadiness(stats Stats, sharpe Ratio, dd DrawdownStats, th Thresholds) Readiness {
	th = th.WithDefaults()

	criteria := []Criterion{
		atLeast("closed_trades", float64(th.MinClosedTrades), Ratio(stats.ClosedTrades)),
		atLeast("win_rate", th.MinWinRate, Ratio(stats.WinRate)),
		atLeast("sharpe_ratio", th.MinSharpe, sharpe),
		below("max_drawdown", th.MaxDrawdown, Ratio(dd.MaxDrawdownPct)),
	}

	r := Readiness{Total: len(criteria), Criteria: criteria, Gaps: []string{}}
	for _, c := range criteria {
		if c.Passed {
			r.Passed++
			continue
		}
		r.Gaps = append(r.Gaps, gapMessage(c))
	}
	r.Ready = r.Passed == r.Total
	return r
}

func atLeast(name string, required float64, actual Ratio) Criterion {
	c := Criterion{Name: name, Required: required, Actual: actual}
	a := float64(actual)
	c.Passed = !math.IsNaN(a) && a >= required
	if !c.Passed {
		c.Gap = roundGap(required - a)
	}
	return c
}

func below(name string, limit float64, actual Ratio) Criterion {
	c := Criterion{Name: name, Required: limit, Actual: actual}
	a := float64(actual)
	c.Passed = a < limit
	if !c.Passed {
		c.Gap = roundGap(a - limit)
	}
	return c
}

func roundGap(g float64) float64 {
	if math.IsNaN(g) || math.IsInf(g, 0) {
		return 0
	}
	return math.Round(g*10000) / 10000
}

func gapMessage(c Criterion) string {
	switch c.Name {
	case "closed_trades":
		return fmt.Sprintf("need %.0f more closed trades (%.0f/%.0f)", c.Gap, float64(c.Actual), c.Required)
	case "win_rate":
		return fmt.Sprintf("win rate %.1f%% is %.1f pts below %.0f%%", float64(c.Actual)*100, c.Gap*100, c.Required*100)
	case "sharpe_ratio":
		return fmt.Sprintf("sharpe %.2f is %.2f below %.2f", float64(c.Actual), c.Gap, c.Required)
	case "max_drawdown":
		return fmt.Sprintf("max drawdown %.1f%% must be below %.0f%%", float64(c.Actual)*100, c.Required*100)
	}
	return fmt.Sprintf("%s: %v vs required %v", c.Name, float64(c.Actual), c.Required)
}
