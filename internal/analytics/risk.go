package analytics

import (
	"math"

	"github.com/alejandrodnm/polypaper/internal/domain"
)

const (
	DefaultRiskFreeRate   = 0.045 // anual
	DefaultPeriodsPerYear = 365   // los mercados de predicción operan todos los días

	// por debajo de esto la desviación se considera cero
	zeroDeviation = 1e-12
)

// Point is one observation of the equity curve.
type Point struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// EquityCurve builds the curve from daily snapshots.
func EquityCurve(snaps []domain.DailySnapshot) []Point {
	out := make([]Point, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, Point{Date: s.Date, Value: s.TotalValue})
	}
	return out
}

// DrawdownStats describes the drawdowns of an equity curve. Percentages are
// fractions. Duration counts periods from a peak until the next new peak,
// including a drawdown still open at the end of the series.
type DrawdownStats struct {
	MaxDrawdownPct     float64 `json:"max_drawdown_pct"`
	MaxDrawdownUSD     float64 `json:"max_drawdown_usd"`
	PeakValue          float64 `json:"peak_value"`
	PeakDate           string  `json:"peak_date,omitempty"`
	TroughValue        float64 `json:"trough_value"`
	TroughDate         string  `json:"trough_date,omitempty"`
	CurrentDrawdownPct float64 `json:"current_drawdown_pct"`
	CurrentDrawdownUSD float64 `json:"current_drawdown_usd"`
	DurationPeriods    int     `json:"duration_periods"`
}

// ComputeDrawdown walks the series once keeping the running peak.
func ComputeDrawdown(series []Point) DrawdownStats {
	var st DrawdownStats
	if len(series) == 0 {
		return st
	}

	peak, peakDate, peakIdx := series[0].Value, series[0].Date, 0
	st.PeakValue, st.PeakDate = peak, peakDate
	st.TroughValue, st.TroughDate = peak, peakDate
	underwater := false

	for i, p := range series {
		if p.Value >= peak {
			if underwater {
				st.DurationPeriods = max(st.DurationPeriods, i-peakIdx)
				underwater = false
			}
			peak, peakDate, peakIdx = p.Value, p.Date, i
			continue
		}
		underwater = true
		dd := domain.Drawdown(peak, p.Value)
		if dd > st.MaxDrawdownPct {
			st.MaxDrawdownPct = dd
			st.MaxDrawdownUSD = domain.RoundMoney(peak - p.Value)
			st.PeakValue, st.PeakDate = peak, peakDate
			st.TroughValue, st.TroughDate = p.Value, p.Date
		}
	}
	if underwater {
		st.DurationPeriods = max(st.DurationPeriods, len(series)-1-peakIdx)
	}

	last := series[len(series)-1].Value
	st.CurrentDrawdownPct = domain.Drawdown(peak, last)
	st.CurrentDrawdownUSD = domain.RoundMoney(math.Max(0, peak-last))
	if st.MaxDrawdownPct == 0 {
		st.PeakValue, st.PeakDate = peak, peakDate
		st.TroughValue, st.TroughDate = peak, peakDate
	}
	return st
}

// DailyReturns returns the simple return between consecutive values,
// skipping periods whose previous value is not positive.
func DailyReturns(values []float64) []float64 {
	out := make([]float64, 0, max(len(values)-1, 0))
	for i := 1; i < len(values); i++ {
		if values[i-1] > 0 {
			out = append(out, (values[i]-values[i-1])/values[i-1])
		}
	}
	return out
}

// RatioConfig parametrizes Sharpe and Sortino.
type RatioConfig struct {
	RiskFreeRate   float64 // anual
	PeriodsPerYear float64
}

// DefaultRatioConfig is 4.5% risk-free annualized over 365 periods.
func DefaultRatioConfig() RatioConfig {
	return RatioConfig{RiskFreeRate: DefaultRiskFreeRate, PeriodsPerYear: DefaultPeriodsPerYear}
}

func (c RatioConfig) withDefaults() RatioConfig {
	if c.PeriodsPerYear <= 0 {
		c.PeriodsPerYear = DefaultPeriodsPerYear
	}
	if c.RiskFreeRate < 0 {
		c.RiskFreeRate = 0
	}
	return c
}

func (c RatioConfig) excess(returns []float64) (ex []float64, mean float64) {
	rf := c.RiskFreeRate / c.PeriodsPerYear
	ex = make([]float64, len(returns))
	for i, r := range returns {
		ex[i] = r - rf
		mean += ex[i]
	}
	return ex, mean / float64(len(ex))
}

// Sharpe is mean(excess)/stdev(excess)*sqrt(periods) with sample stdev.
// It is 0 with fewer than two returns; with zero deviation it is +Inf when
// the mean excess is positive and 0 otherwise.
func Sharpe(returns []float64, cfg RatioConfig) Ratio {
	if len(returns) < 2 {
		return 0
	}
	cfg = cfg.withDefaults()
	ex, mean := cfg.excess(returns)

	var ss float64
	for _, e := range ex {
		ss += (e - mean) * (e - mean)
	}
	sd := math.Sqrt(ss / float64(len(ex)-1))
	return annualize(mean, sd, cfg.PeriodsPerYear)
}

// Sortino is like Sharpe with the downside deviation
// sqrt(mean(min(0, excess)^2)) as denominator.
func Sortino(returns []float64, cfg RatioConfig) Ratio {
	if len(returns) < 2 {
		return 0
	}
	cfg = cfg.withDefaults()
	ex, mean := cfg.excess(returns)

	var ss float64
	for _, e := range ex {
		d := math.Min(0, e)
		ss += d * d
	}
	dd := math.Sqrt(ss / float64(len(ex)))
	return annualize(mean, dd, cfg.PeriodsPerYear)
}

func annualize(mean, deviation, periods float64) Ratio {
	if deviation < zeroDeviation {
		if mean > 0 {
			return Ratio(math.Inf(1))
		}
		return 0
	}
	return Ratio(domain.Round(mean/deviation*math.Sqrt(periods), 4))
}
