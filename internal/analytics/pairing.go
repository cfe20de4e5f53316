// Package analytics computes performance statistics from the trade log and
// the equity curve of a paper portfolio. Every function is pure: inputs are
// never modified and the same inputs always produce the same output.
package analytics

import (
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/alejandrodnm/polypaper/internal/domain"
)

// shareEpsilon es el residuo por debajo del cual un lote se considera agotado.
const shareEpsilon = 1e-4

// RoundTrip is a BUY lot (or part of one) matched FIFO against a SELL.
// Fees are attributed proportionally to the matched shares.
type RoundTrip struct {
	TokenID        string        `json:"token_id"`
	Side           domain.Side   `json:"side"`
	MarketQuestion string        `json:"market_question"`
	Strategy       string        `json:"strategy"`
	Shares         float64       `json:"shares"`
	EntryPrice     float64       `json:"entry_price"`
	ExitPrice      float64       `json:"exit_price"`
	EntryFee       float64       `json:"entry_fee"`
	ExitFee        float64       `json:"exit_fee"`
	CostBasis      float64       `json:"cost_basis"`
	Proceeds       float64       `json:"proceeds"`
	PnL            float64       `json:"pnl"`
	ReturnPct      float64       `json:"return_pct"`
	EntryTime      time.Time     `json:"entry_time"`
	ExitTime       time.Time     `json:"exit_time"`
	Hold           time.Duration `json:"-"`
	HoldHours      float64       `json:"hold_hours"`
}

// OpenEntry is the unmatched remainder of a BUY lot.
type OpenEntry struct {
	TokenID        string      `json:"token_id"`
	Side           domain.Side `json:"side"`
	MarketQuestion string      `json:"market_question"`
	Strategy       string      `json:"strategy"`
	Shares         float64     `json:"shares"`
	EntryPrice     float64     `json:"entry_price"`
	CostBasis      float64     `json:"cost_basis"`
	EntryTime      time.Time   `json:"entry_time"`
}

// Orphan is a SELL (or the part of one) with no queued BUY to match. It
// signals a data-integrity problem in the log, not a fatal error.
type Orphan struct {
	TradeID    int64       `json:"trade_id"`
	Ref        string      `json:"ref"`
	TokenID    string      `json:"token_id"`
	Side       domain.Side `json:"side"`
	Shares     float64     `json:"shares"`
	Price      float64     `json:"price"`
	ExecutedAt time.Time   `json:"executed_at"`
}

// Pairing is the result of PairTrades.
type Pairing struct {
	Trips   []RoundTrip `json:"round_trips"`
	Open    []OpenEntry `json:"open_entries"`
	Orphans []Orphan    `json:"orphans"`
}

type lot struct {
	shares   float64
	price    float64
	fee      float64 // fee aún no atribuida
	question string
	strategy string
	executed time.Time
}

// PairTrades matches BUYs and SELLs FIFO per (token, side). Trades are
// processed in execution order regardless of the input order.
func PairTrades(trades []domain.Trade) Pairing {
	ordered := make([]domain.Trade, len(trades))
	copy(ordered, trades)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].ExecutedAt.Equal(ordered[j].ExecutedAt) {
			return ordered[i].ExecutedAt.Before(ordered[j].ExecutedAt)
		}
		return ordered[i].ID < ordered[j].ID
	})

	out := Pairing{Trips: []RoundTrip{}, Open: []OpenEntry{}, Orphans: []Orphan{}}
	queues := map[domain.PositionKey][]*lot{}
	var keys []domain.PositionKey // orden de aparición, para un resultado determinista

	for _, t := range ordered {
		key := t.Key()
		if _, seen := queues[key]; !seen {
			queues[key] = nil
			keys = append(keys, key)
		}

		if t.Action == domain.ActionBuy {
			queues[key] = append(queues[key], &lot{
				shares:   t.Shares,
				price:    t.Price,
				fee:      t.Fee,
				question: t.MarketQuestion,
				strategy: domain.StrategyFromReasoning(t.Reasoning),
				executed: t.ExecutedAt,
			})
			continue
		}

		remaining := t.Shares
		for remaining > shareEpsilon && len(queues[key]) > 0 {
			l := queues[key][0]
			matched := math.Min(remaining, l.shares)

			entryFee := 0.0
			if l.shares > 0 {
				entryFee = l.fee * matched / l.shares
			}
			exitFee := 0.0
			if t.Shares > 0 {
				exitFee = t.Fee * matched / t.Shares
			}
			pnl := (t.Price-l.price)*matched - entryFee - exitFee
			cost := l.price*matched + entryFee

			trip := RoundTrip{
				TokenID:        t.TokenID,
				Side:           t.Side,
				MarketQuestion: l.question,
				Strategy:       l.strategy,
				Shares:         domain.RoundMoney(matched),
				EntryPrice:     l.price,
				ExitPrice:      t.Price,
				EntryFee:       domain.RoundMoney(entryFee),
				ExitFee:        domain.RoundMoney(exitFee),
				CostBasis:      domain.RoundMoney(cost),
				Proceeds:       domain.RoundMoney(t.Price*matched - exitFee),
				PnL:            domain.RoundMoney(pnl),
				EntryTime:      l.executed,
				ExitTime:       t.ExecutedAt,
				Hold:           t.ExecutedAt.Sub(l.executed),
			}
			trip.HoldHours = domain.Round(trip.Hold.Hours(), 1)
			if cost > 0 {
				trip.ReturnPct = domain.Round(pnl/cost*100, 2)
			}
			out.Trips = append(out.Trips, trip)

			l.shares -= matched
			l.fee -= entryFee
			remaining -= matched
			if l.shares < shareEpsilon {
				queues[key] = queues[key][1:]
			}
		}

		if remaining > shareEpsilon {
			o := Orphan{
				TradeID:    t.ID,
				Ref:        t.Ref,
				TokenID:    t.TokenID,
				Side:       t.Side,
				Shares:     domain.RoundMoney(remaining),
				Price:      t.Price,
				ExecutedAt: t.ExecutedAt,
			}
			out.Orphans = append(out.Orphans, o)
			slog.Warn("orphan sell in trade log",
				"trade_id", t.ID,
				"key", key.String(),
				"unmatched_shares", o.Shares,
			)
		}
	}

	for _, key := range keys {
		for _, l := range queues[key] {
			if l.shares <= shareEpsilon {
				continue
			}
			out.Open = append(out.Open, OpenEntry{
				TokenID:        key.TokenID,
				Side:           key.Side,
				MarketQuestion: l.question,
				Strategy:       l.strategy,
				Shares:         domain.RoundMoney(l.shares),
				EntryPrice:     l.price,
				CostBasis:      domain.RoundMoney(l.price * l.shares),
				EntryTime:      l.executed,
			})
		}
	}
	return out
}
