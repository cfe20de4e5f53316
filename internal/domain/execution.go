package domain

// Execution is the committed result of one simulated order.
type Execution struct {
	Trade       Trade    `json:"trade"`
	Fill        Fill     `json:"fill"`
	Position    Position `json:"position"`
	RealizedPnL float64  `json:"realized_pnl"`
	Cash        float64  `json:"cash_balance"`
}

// ResultStatus is the outcome of executing one recommendation.
type ResultStatus string

const (
	StatusExecuted ResultStatus = "executed"
	StatusRejected ResultStatus = "rejected"
	StatusSkipped  ResultStatus = "skipped"
	StatusDryRun   ResultStatus = "dry_run"
)

// PortfolioSummary is the compact portfolio state attached to results.
type PortfolioSummary struct {
	TotalValue   float64 `json:"total_value"`
	Cash         float64 `json:"cash_balance"`
	PnL          float64 `json:"pnl"`
	PnLPct       float64 `json:"pnl_pct"`
	NumPositions int     `json:"num_positions"`
}

// Summary compacts a PortfolioView.
func (v PortfolioView) Summary() PortfolioSummary {
	return PortfolioSummary{
		TotalValue:   v.TotalValue,
		Cash:         v.Cash,
		PnL:          v.PnL,
		PnLPct:       v.PnLPct,
		NumPositions: v.NumOpenPositions,
	}
}

// RecommendationResult reports what happened to one recommendation.
type RecommendationResult struct {
	Status       ResultStatus           `json:"status"`
	Reason       string                 `json:"reason,omitempty"`
	Action       RecAction              `json:"action,omitempty"`
	TokenID      string                 `json:"token_id,omitempty"`
	Side         Side                   `json:"side,omitempty"`
	Strategy     string                 `json:"strategy,omitempty"`
	SizeUSD      float64                `json:"size_usd,omitempty"`
	LimitPrice   *float64               `json:"limit_price,omitempty"`
	CurrentPrice *float64               `json:"current_price,omitempty"`
	Spread       *float64               `json:"spread,omitempty"`
	Tier         DrawdownTier           `json:"drawdown_tier,omitempty"`
	Executions   []Execution            `json:"executions,omitempty"`
	Portfolio    *PortfolioSummary      `json:"portfolio,omitempty"`
	Payload      *RecommendationPayload `json:"recommendation,omitempty"`
}
