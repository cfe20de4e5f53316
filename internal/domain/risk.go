package domain

import (
	"fmt"
	"strings"
)

// DrawdownTier is the graduated response to the current drawdown.
type DrawdownTier string

const (
	TierNone     DrawdownTier = "NONE"
	TierWarn     DrawdownTier = "WARN"
	TierAlert    DrawdownTier = "ALERT"
	TierCritical DrawdownTier = "CRITICAL"
)

// Tier classifies drawdown (a fraction) against the configured tiers.
func (c RiskConfig) Tier(drawdown float64) DrawdownTier {
	switch {
	case drawdown >= c.DrawdownCriticalPct:
		return TierCritical
	case drawdown >= c.DrawdownAlertPct:
		return TierAlert
	case drawdown >= c.DrawdownWarnPct:
		return TierWarn
	}
	return TierNone
}

// SizeMultiplier scales new position sizes while in the tier.
func (t DrawdownTier) SizeMultiplier() float64 {
	switch t {
	case TierWarn:
		return 0.5
	case TierAlert:
		return 0.25
	case TierCritical:
		return 0
	}
	return 1
}

// Action is the operator guidance for the tier.
func (t DrawdownTier) Action() string {
	switch t {
	case TierWarn:
		return "reduce new position sizes by 50%"
	case TierAlert:
		return "reduce sizes by 75%, no momentum or news entries"
	case TierCritical:
		return "halt all new entries, review and close losing positions"
	}
	return "normal trading"
}

// AllowsStrategy reports whether new entries from strategy are allowed in the tier.
func (t DrawdownTier) AllowsStrategy(strategy string) bool {
	switch t {
	case TierCritical:
		return false
	case TierAlert:
		s := strings.ToLower(strategy)
		return !strings.Contains(s, "momentum") && !strings.Contains(s, "news")
	}
	return true
}

// Exposure is the current value held in one (token, side).
type Exposure struct {
	Key   PositionKey
	Value float64
}

// RiskState is the portfolio state the RiskEngine evaluates an order against,
// taken before the order fills. Realized P&L figures are signed (losses < 0).
type RiskState struct {
	StartingBalance   float64
	TotalValue        float64
	PeakValue         float64
	Open              []Exposure
	DailyRealizedPnL  float64
	WeeklyRealizedPnL float64
}

// Drawdown returns the fractional drawdown from the peak.
func (s RiskState) Drawdown() float64 {
	return Drawdown(s.PeakValue, s.TotalValue)
}

// OrderIntent is a BUY the RiskEngine is asked to approve.
type OrderIntent struct {
	TokenID  string
	Side     Side
	Size     float64 // USD
	Approved bool
}

// RiskEngine evaluates orders against a RiskConfig. It holds no state.
type RiskEngine struct {
	cfg RiskConfig
}

// NewRiskEngine builds an engine; unset thresholds take their defaults.
func NewRiskEngine(cfg RiskConfig) *RiskEngine {
	return &RiskEngine{cfg: cfg.WithDefaults()}
}

// Config returns the thresholds in effect.
func (r *RiskEngine) Config() RiskConfig { return r.cfg }

// Evaluate runs the rules in order and returns the first rejection as a
// *RiskError, or nil. Size limits reject only when strictly exceeded; loss
// and drawdown limits reject once reached.
func (r *RiskEngine) Evaluate(state RiskState, order OrderIntent) error {
	cfg := r.cfg
	total := state.TotalValue

	if total <= 0 {
		return reject(RulePortfolioValue, "portfolio value is zero or negative")
	}

	maxPosition := total * cfg.MaxPositionPct
	if order.Size > maxPosition {
		return reject(RuleMaxPosition,
			"position size $%.2f exceeds max %.0f%% of portfolio ($%.2f)",
			order.Size, cfg.MaxPositionPct*100, maxPosition)
	}

	drawdown := state.Drawdown()
	if drawdown >= cfg.MaxDrawdownPct {
		return reject(RuleMaxDrawdown,
			"portfolio drawdown %.1f%% exceeds max %.0f%%, trading halted",
			drawdown*100, cfg.MaxDrawdownPct*100)
	}
	if cfg.Tier(drawdown) == TierCritical {
		return reject(RuleDrawdownCritical,
			"drawdown %.1f%% reached CRITICAL tier (%.0f%%), new entries halted",
			drawdown*100, cfg.DrawdownCriticalPct*100)
	}

	key := PositionKey{TokenID: order.TokenID, Side: order.Side}
	existing := false
	var marketValue float64
	for _, e := range state.Open {
		if e.Key == key {
			existing = true
		}
		if e.Key.TokenID == order.TokenID {
			marketValue += e.Value
		}
	}
	if !existing && len(state.Open) >= cfg.MaxConcurrentPositions {
		return reject(RuleMaxConcurrent,
			"already at max %d concurrent positions", cfg.MaxConcurrentPositions)
	}

	maxMarket := total * cfg.MaxSingleMarketPct
	if marketValue+order.Size > maxMarket {
		return reject(RuleMaxSingleMarket,
			"market exposure $%.2f would exceed max %.0f%% of portfolio ($%.2f)",
			marketValue+order.Size, cfg.MaxSingleMarketPct*100, maxMarket)
	}

	approvalLimit := total * cfg.HumanApprovalPct
	if order.Size > approvalLimit && !order.Approved {
		return reject(RuleHumanApproval,
			"order $%.2f is above %.0f%% of portfolio ($%.2f) and needs approval",
			order.Size, cfg.HumanApprovalPct*100, approvalLimit)
	}

	dailyLimit := state.StartingBalance * cfg.DailyLossLimitPct
	if loss := -state.DailyRealizedPnL; loss > 0 && loss >= dailyLimit {
		return reject(RuleDailyLossLimit,
			"daily realized loss $%.2f reached limit $%.2f (%.0f%% of starting balance)",
			loss, dailyLimit, cfg.DailyLossLimitPct*100)
	}

	weeklyLimit := state.StartingBalance * cfg.WeeklyLossLimitPct
	if loss := -state.WeeklyRealizedPnL; loss > 0 && loss >= weeklyLimit {
		return reject(RuleWeeklyLossLimit,
			"weekly realized loss $%.2f reached limit $%.2f (%.0f%% of starting balance)",
			loss, weeklyLimit, cfg.WeeklyLossLimitPct*100)
	}

	return nil
}

func reject(rule RiskRule, format string, args ...any) *RiskError {
	return &RiskError{Rule: rule, Reason: fmt.Sprintf(format, args...)}
}
