package domain

import (
	"fmt"
	"math"
	"time"
)

// HealthStatus is the overall verdict of a health check.
type HealthStatus string

const (
	HealthGreen  HealthStatus = "GREEN"
	HealthYellow HealthStatus = "YELLOW"
	HealthRed    HealthStatus = "RED"
)

// Severity of a single health alert.
type Severity string

const (
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Alert is one finding of a health check.
type Alert struct {
	Severity Severity `json:"severity"`
	Type     string   `json:"type"`
	Message  string   `json:"message"`
}

// PositionHealth is a position checked against its trailing stop.
type PositionHealth struct {
	PositionView
	StopPrice     float64 `json:"stop_price"`
	StopTriggered bool    `json:"stop_triggered"`
}

// HealthInput is everything AssessHealth needs; the ledger gathers it.
type HealthInput struct {
	View              PortfolioView
	PrevValue         float64 // last snapshot before today, or starting balance
	DailyRealizedPnL  float64
	WeeklyRealizedPnL float64
	CheckedAt         time.Time
}

// HealthReport is the session-start view of a portfolio's risk state.
type HealthReport struct {
	Status      HealthStatus     `json:"status"`
	CheckedAt   time.Time        `json:"checked_at"`
	Portfolio   PortfolioView    `json:"portfolio"`
	Positions   []PositionHealth `json:"positions"`
	StalePrices []string         `json:"stale_prices"`
	Alerts      []Alert          `json:"alerts"`

	DailyPnL    float64 `json:"daily_pnl"`
	DailyPnLPct float64 `json:"daily_pnl_pct"`

	Tier       DrawdownTier `json:"drawdown_tier"`
	TierAction string       `json:"drawdown_action"`

	DailyLoss          float64 `json:"daily_loss"`
	DailyLossLimit     float64 `json:"daily_loss_limit"`
	DailyLossBreached  bool    `json:"daily_loss_breached"`
	WeeklyLoss         float64 `json:"weekly_loss"`
	WeeklyLossLimit    float64 `json:"weekly_loss_limit"`
	WeeklyLossBreached bool    `json:"weekly_loss_breached"`

	MaxConcentrationPct    float64 `json:"max_concentration_pct"`
	MaxConcentrationMarket string  `json:"max_concentration_market"`
	PositionCount          int     `json:"position_count"`
	PositionLimit          int     `json:"position_limit"`
	StopsTriggered         int     `json:"stops_triggered"`
}

// AssessHealth evaluates stops, drawdown tier, loss limits, concentration and
// position count, and derives the overall status. Any HIGH or CRITICAL alert
// makes the status RED; MEDIUM alerts alone make it YELLOW.
func AssessHealth(in HealthInput) HealthReport {
	view := in.View
	cfg := view.Risk.WithDefaults()

	rep := HealthReport{
		CheckedAt:     in.CheckedAt,
		Portfolio:     view,
		PositionCount: view.NumOpenPositions,
		PositionLimit: cfg.MaxConcurrentPositions,
		StalePrices:   []string{},
		Alerts:        []Alert{},
	}

	// stops
	for _, pv := range view.Positions {
		stop := pv.AvgEntryPrice * (1 - cfg.TrailingStopPct)
		ph := PositionHealth{
			PositionView:  pv,
			StopPrice:     RoundPrice(stop),
			StopTriggered: pv.CurrentPrice <= stop,
		}
		rep.Positions = append(rep.Positions, ph)
		if pv.PriceSource == PriceCached {
			rep.StalePrices = append(rep.StalePrices, pv.TokenID)
		}
		if ph.StopTriggered {
			rep.StopsTriggered++
			rep.Alerts = append(rep.Alerts, Alert{
				Severity: SeverityHigh,
				Type:     "STOP_LOSS",
				Message: fmt.Sprintf("stop-loss triggered for %s position in %q: current $%.4f <= stop $%.4f",
					pv.Side, truncate(pv.MarketQuestion, 60), pv.CurrentPrice, stop),
			})
		}
	}

	if n := len(rep.StalePrices); n > 0 {
		rep.Alerts = append(rep.Alerts, Alert{
			Severity: SeverityMedium,
			Type:     "STALE_PRICE",
			Message:  fmt.Sprintf("failed to fetch live prices for %d position(s), using cached prices", n),
		})
	}

	// daily P&L vs previous close
	rep.DailyPnL = RoundMoney(view.TotalValue - in.PrevValue)
	if in.PrevValue > 0 {
		rep.DailyPnLPct = Round(rep.DailyPnL/in.PrevValue*100, 2)
	}

	// drawdown tier
	rep.Tier = cfg.Tier(view.DrawdownPct)
	rep.TierAction = rep.Tier.Action()
	switch rep.Tier {
	case TierWarn:
		rep.Alerts = append(rep.Alerts, drawdownAlert(SeverityMedium, "DRAWDOWN_WARN", view.DrawdownPct, rep.TierAction))
	case TierAlert:
		rep.Alerts = append(rep.Alerts, drawdownAlert(SeverityHigh, "DRAWDOWN_ALERT", view.DrawdownPct, rep.TierAction))
	case TierCritical:
		rep.Alerts = append(rep.Alerts, drawdownAlert(SeverityCritical, "DRAWDOWN_CRITICAL", view.DrawdownPct, rep.TierAction))
	}

	// loss limits
	rep.DailyLoss = RoundMoney(math.Abs(math.Min(0, in.DailyRealizedPnL)))
	rep.DailyLossLimit = RoundMoney(view.StartingBalance * cfg.DailyLossLimitPct)
	rep.DailyLossBreached = rep.DailyLoss > 0 && rep.DailyLoss >= rep.DailyLossLimit
	if rep.DailyLossBreached {
		rep.Alerts = append(rep.Alerts, Alert{
			Severity: SeverityHigh,
			Type:     "DAILY_LOSS_LIMIT",
			Message: fmt.Sprintf("daily loss limit breached: $%.2f realized (limit $%.2f), new entries blocked until next UTC day",
				rep.DailyLoss, rep.DailyLossLimit),
		})
	}
	rep.WeeklyLoss = RoundMoney(math.Abs(math.Min(0, in.WeeklyRealizedPnL)))
	rep.WeeklyLossLimit = RoundMoney(view.StartingBalance * cfg.WeeklyLossLimitPct)
	rep.WeeklyLossBreached = rep.WeeklyLoss > 0 && rep.WeeklyLoss >= rep.WeeklyLossLimit
	if rep.WeeklyLossBreached {
		rep.Alerts = append(rep.Alerts, Alert{
			Severity: SeverityHigh,
			Type:     "WEEKLY_LOSS_LIMIT",
			Message: fmt.Sprintf("weekly loss limit breached: $%.2f realized (limit $%.2f), new entries blocked until next Monday",
				rep.WeeklyLoss, rep.WeeklyLossLimit),
		})
	}

	// concentration by token
	byToken := map[string]float64{}
	question := map[string]string{}
	for _, pv := range view.Positions {
		byToken[pv.TokenID] += pv.Position.Value()
		question[pv.TokenID] = pv.MarketQuestion
	}
	if view.TotalValue > 0 {
		for tok, v := range byToken {
			pct := v / view.TotalValue
			if pct > rep.MaxConcentrationPct {
				rep.MaxConcentrationPct = pct
				rep.MaxConcentrationMarket = question[tok]
			}
		}
	}
	if rep.MaxConcentrationPct > cfg.MaxSingleMarketPct {
		rep.Alerts = append(rep.Alerts, Alert{
			Severity: SeverityMedium,
			Type:     "CONCENTRATION",
			Message: fmt.Sprintf("single market concentration at %.1f%% (limit %.0f%%) in %q",
				rep.MaxConcentrationPct*100, cfg.MaxSingleMarketPct*100, truncate(rep.MaxConcentrationMarket, 60)),
		})
	}

	if rep.PositionCount >= rep.PositionLimit {
		rep.Alerts = append(rep.Alerts, Alert{
			Severity: SeverityMedium,
			Type:     "MAX_POSITIONS",
			Message: fmt.Sprintf("at maximum concurrent positions: %d/%d, no new positions allowed",
				rep.PositionCount, rep.PositionLimit),
		})
	}

	rep.Status = HealthGreen
	for _, a := range rep.Alerts {
		switch a.Severity {
		case SeverityHigh, SeverityCritical:
			rep.Status = HealthRed
		case SeverityMedium:
			if rep.Status == HealthGreen {
				rep.Status = HealthYellow
			}
		}
	}
	return rep
}

func drawdownAlert(sev Severity, typ string, drawdown float64, action string) Alert {
	return Alert{
		Severity: sev,
		Type:     typ,
		Message:  fmt.Sprintf("drawdown at %.1f%% from peak, action: %s", drawdown*100, action),
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
