package analytics

import (
	"encoding/json"
	"math"
	"sort"
	"time"

	"github.com/alejandrodnm/polypaper/internal/domain"
)

// Ratio is a float that may be +Inf. It marshals infinities as the string
// "inf", which encoding/json cannot represent as a number.
type Ratio float64

func (r Ratio) MarshalJSON() ([]byte, error) {
	f := float64(r)
	switch {
	case math.IsInf(f, 1):
		return []byte(`"inf"`), nil
	case math.IsInf(f, -1):
		return []byte(`"-inf"`), nil
	case math.IsNaN(f):
		return []byte(`null`), nil
	}
	return json.Marshal(f)
}

// IsInf reports whether r is +Inf.
func (r Ratio) IsInf() bool { return math.IsInf(float64(r), 1) }

// Stats summarizes closed round trips.
type Stats struct {
	ClosedTrades int           `json:"closed_trades"`
	Winners      int           `json:"winners"`
	Losers       int           `json:"losers"`
	Breakeven    int           `json:"breakeven"`
	WinRate      float64       `json:"win_rate"`
	TotalPnL     float64       `json:"total_pnl"`
	AvgPnL       float64       `json:"avg_pnl"`
	AvgWin       float64       `json:"avg_win"`
	AvgLoss      float64       `json:"avg_loss"`
	LargestWin   float64       `json:"largest_win"`
	LargestLoss  float64       `json:"largest_loss"`
	GrossProfit  float64       `json:"gross_profit"`
	GrossLoss    float64       `json:"gross_loss"`
	ProfitFactor Ratio         `json:"profit_factor"`
	AvgReturnPct float64       `json:"avg_return_pct"`
	AvgHold      time.Duration `json:"-"`
	AvgHoldHours float64       `json:"avg_hold_hours"`
	TotalFees    float64       `json:"total_fees"`
}

// ComputeStats aggregates trips. Profit factor is +Inf when there are
// profits and no losses, and 0 when there are neither.
func ComputeStats(trips []RoundTrip) Stats {
	s := Stats{ClosedTrades: len(trips)}
	if len(trips) == 0 {
		return s
	}

	var returns float64
	var hold time.Duration
	var held int
	for _, t := range trips {
		s.TotalPnL += t.PnL
		s.TotalFees += t.EntryFee + t.ExitFee
		returns += t.ReturnPct
		if t.Hold > 0 {
			hold += t.Hold
			held++
		}
		switch {
		case t.PnL > 0:
			s.Winners++
			s.GrossProfit += t.PnL
			s.LargestWin = math.Max(s.LargestWin, t.PnL)
		case t.PnL < 0:
			s.Losers++
			s.GrossLoss += -t.PnL
			s.LargestLoss = math.Min(s.LargestLoss, t.PnL)
		default:
			s.Breakeven++
		}
	}

	n := float64(len(trips))
	s.WinRate = domain.Round(float64(s.Winners)/n, 4)
	s.AvgPnL = domain.RoundMoney(s.TotalPnL / n)
	s.AvgReturnPct = domain.Round(returns/n, 2)
	if s.Winners > 0 {
		s.AvgWin = domain.RoundMoney(s.GrossProfit / float64(s.Winners))
	}
	if s.Losers > 0 {
		s.AvgLoss = domain.RoundMoney(-s.GrossLoss / float64(s.Losers))
	}
	if held > 0 {
		s.AvgHold = hold / time.Duration(held)
		s.AvgHoldHours = domain.Round(s.AvgHold.Hours(), 1)
	}
	s.ProfitFactor = profitFactor(s.GrossProfit, s.GrossLoss)

	s.TotalPnL = domain.RoundMoney(s.TotalPnL)
	s.GrossProfit = domain.RoundMoney(s.GrossProfit)
	s.GrossLoss = domain.RoundMoney(s.GrossLoss)
	s.TotalFees = domain.RoundMoney(s.TotalFees)
	return s
}

func profitFactor(grossProfit, grossLoss float64) Ratio {
	switch {
	case grossLoss > 0:
		return Ratio(domain.Round(grossProfit/grossLoss, 4))
	case grossProfit > 0:
		return Ratio(math.Inf(1))
	}
	return 0
}

// ByStrategy groups trips by strategy tag and computes Stats per group.
func ByStrategy(trips []RoundTrip) map[string]Stats {
	groups := map[string][]RoundTrip{}
	for _, t := range trips {
		groups[t.Strategy] = append(groups[t.Strategy], t)
	}
	out := make(map[string]Stats, len(groups))
	for name, g := range groups {
		out[name] = ComputeStats(g)
	}
	return out
}

// Extremes returns up to n best trips (highest P&L first) and n worst
// (lowest first).
func Extremes(trips []RoundTrip, n int) (best, worst []RoundTrip) {
	sorted := make([]RoundTrip, len(trips))
	copy(sorted, trips)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].PnL > sorted[j].PnL })

	k := min(n, len(sorted))
	best = append([]RoundTrip{}, sorted[:k]...)
	worst = make([]RoundTrip, 0, k)
	for i := len(sorted) - 1; i >= len(sorted)-k; i-- {
		worst = append(worst, sorted[i])
	}
	return best, worst
}
