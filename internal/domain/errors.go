package domain

import (
	"errors"
	"fmt"
)

// Errores tipados del engine. Los callers usan errors.Is / errors.As.
var (
	ErrValidation            = errors.New("validation error")
	ErrInvalidSide           = fmt.Errorf("%w: side must be YES or NO", ErrValidation)
	ErrInvalidSize           = fmt.Errorf("%w: size must be positive", ErrValidation)
	ErrInvalidToken          = fmt.Errorf("%w: token id must be 20-120 digits", ErrValidation)
	ErrMarketDataUnavailable = errors.New("market data unavailable")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrNoFill                = errors.New("no shares could be filled")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrRiskCheckFailed       = errors.New("risk check failed")
	ErrNotFound              = errors.New("not found")
	ErrConflict              = errors.New("ledger changed concurrently, retry")
)

// RiskRule identifies which RiskEngine rule rejected an order.
type RiskRule string

const (
	RulePortfolioValue   RiskRule = "portfolio_value"
	RuleMaxPosition      RiskRule = "max_position_pct"
	RuleMaxDrawdown      RiskRule = "max_drawdown_pct"
	RuleDrawdownCritical RiskRule = "drawdown_critical"
	RuleMaxConcurrent    RiskRule = "max_concurrent_positions"
	RuleMaxSingleMarket  RiskRule = "max_single_market_pct"
	RuleHumanApproval    RiskRule = "human_approval_pct"
	RuleDailyLossLimit   RiskRule = "daily_loss_limit_pct"
	RuleWeeklyLossLimit  RiskRule = "weekly_loss_limit_pct"
	RuleStrategyBlocked  RiskRule = "drawdown_strategy_block"
)

// RiskError is returned when a RiskEngine rule rejects an order.
// errors.Is(err, ErrRiskCheckFailed) reports true for it.
type RiskError struct {
	Rule   RiskRule
	Reason string
}

func (e *RiskError) Error() string {
	return fmt.Sprintf("risk check failed: %s", e.Reason)
}

func (e *RiskError) Unwrap() error { return ErrRiskCheckFailed }

// IsDrawdownHalt reports whether err is a risk rejection caused by drawdown.
func IsDrawdownHalt(err error) bool {
	var re *RiskError
	if !errors.As(err, &re) {
		return false
	}
	return re.Rule == RuleMaxDrawdown || re.Rule == RuleDrawdownCritical
}
