package domain

import (
	"fmt"
	"math"
)

// fillEpsilon is the residual demand under which an order counts as satisfied.
const fillEpsilon = 1e-9

// FeeModel returns the fee rate charged on a fill executed at price.
type FeeModel interface {
	Rate(price float64) float64
}

// FlatFee charges the same rate regardless of price. Most Polymarket markets are 0.
type FlatFee float64

func (f FlatFee) Rate(float64) float64 { return float64(f) }

// CurveFee models the dynamic taker fee of short-horizon crypto markets:
// rate × min(p, 1-p), highest at 0.50 and vanishing at the extremes.
type CurveFee float64

func (f CurveFee) Rate(price float64) float64 {
	return float64(f) * math.Min(price, 1-price)
}

// Demand is what an order wants from the book. Notional is USD, Shares is a
// share count; when both are set the first one exhausted stops the walk.
type Demand struct {
	Notional float64
	Shares   float64
}

// NotionalDemand wants size USD worth of shares.
func NotionalDemand(usd float64) Demand { return Demand{Notional: usd} }

// ShareDemand wants n shares.
func ShareDemand(n float64) Demand { return Demand{Shares: n} }

// valid exige cantidades finitas y no negativas, con al menos una positiva.
func (d Demand) valid() bool {
	if !IsFinite(d.Notional) || !IsFinite(d.Shares) || d.Notional < 0 || d.Shares < 0 {
		return false
	}
	return d.Notional > 0 || d.Shares > 0
}

// Fill is the realized result of walking the book.
type Fill struct {
	AvgPrice       float64 `json:"avg_price"`
	SharesFilled   float64 `json:"shares_filled"`
	TotalCost      float64 `json:"total_cost"` // notional exchanged, before fees
	Fee            float64 `json:"fee"`
	LevelsConsumed int     `json:"levels_consumed"`
	FullyFilled    bool    `json:"fully_filled"`
}

// Debit is the cash a BUY fill takes out of the portfolio.
func (f Fill) Debit() float64 { return f.TotalCost + f.Fee }

// Proceeds is the cash a SELL fill credits to the portfolio.
func (f Fill) Proceeds() float64 { return f.TotalCost - f.Fee }

// SimulateFill walks levels in matching order (asks ascending for BUY, bids
// descending for SELL) taking min(level size, remaining demand) at each one.
// A partial fill is reported through FullyFilled, never as an error.
func SimulateFill(levels []BookEntry, action Action, demand Demand, fees FeeModel) (Fill, error) {
	if !demand.valid() {
		return Fill{}, ErrInvalidSize
	}
	if len(levels) == 0 {
		side := "bids"
		if action == ActionBuy {
			side = "asks"
		}
		return Fill{}, fmt.Errorf("%w: no %s in order book, market may be illiquid or closed",
			ErrInsufficientLiquidity, side)
	}

	ordered := SortLevels(usableLevels(levels), action == ActionBuy)

	remainingShares := demand.Shares
	remainingNotional := demand.Notional
	satisfied := func() bool {
		return (demand.Shares > 0 && remainingShares <= fillEpsilon) ||
			(demand.Notional > 0 && remainingNotional <= fillEpsilon)
	}

	var fill Fill
	for _, level := range ordered {
		take := level.Size
		if demand.Shares > 0 {
			take = math.Min(take, remainingShares)
		}
		if demand.Notional > 0 {
			take = math.Min(take, remainingNotional/level.Price)
		}
		if take <= 0 {
			break
		}
		cost := take * level.Price
		fill.SharesFilled += take
		fill.TotalCost += cost
		fill.LevelsConsumed++
		remainingShares -= take
		remainingNotional -= cost
		if satisfied() {
			break
		}
	}

	if fill.SharesFilled <= 0 {
		return Fill{}, fmt.Errorf("%w: check order size and book depth", ErrNoFill)
	}

	fill.AvgPrice = fill.TotalCost / fill.SharesFilled
	fill.FullyFilled = satisfied()
	if fees != nil {
		fill.Fee = fill.TotalCost * fees.Rate(fill.AvgPrice)
	}
	return fill, nil
}

// usableLevels descarta niveles con precio o tamaño no positivo o no finito.
func usableLevels(levels []BookEntry) []BookEntry {
	out := make([]BookEntry, 0, len(levels))
	for _, l := range levels {
		if l.Price > 0 && l.Size > 0 && IsFinite(l.Price) && IsFinite(l.Size) {
			out = append(out, l)
		}
	}
	return out
}

// LimitFill is the deterministic fill of an order with an explicit limit price:
// shares = notional / price, capped by demand.Shares when set.
func LimitFill(price float64, demand Demand, fees FeeModel) (Fill, error) {
	if !(price > 0) || price > 1 {
		return Fill{}, fmt.Errorf("%w: limit price must be in (0, 1], got %g", ErrValidation, price)
	}
	if !demand.valid() {
		return Fill{}, ErrInvalidSize
	}

	shares := demand.Shares
	if demand.Notional > 0 {
		shares = demand.Notional / price
		if demand.Shares > 0 {
			shares = math.Min(shares, demand.Shares)
		}
	}

	fill := Fill{
		AvgPrice:       price,
		SharesFilled:   shares,
		TotalCost:      shares * price,
		LevelsConsumed: 0,
		FullyFilled:    true,
	}
	if fees != nil {
		fill.Fee = fill.TotalCost * fees.Rate(price)
	}
	return fill, nil
}
