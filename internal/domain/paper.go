package domain

import (
	"fmt"
	"math"
	"time"
)

// DefaultPortfolioName es el portfolio usado cuando el caller no indica otro.
const DefaultPortfolioName = "default"

// RiskConfig agrupa los umbrales de riesgo de un portfolio.
// Todos los porcentajes son fracciones (0.10 = 10%).
type RiskConfig struct {
	MaxPositionPct         float64 `yaml:"max_position_pct" json:"max_position_pct"`
	MaxDrawdownPct         float64 `yaml:"max_drawdown_pct" json:"max_drawdown_pct"`
	MaxConcurrentPositions int     `yaml:"max_concurrent_positions" json:"max_concurrent_positions"`
	MaxSingleMarketPct     float64 `yaml:"max_single_market_pct" json:"max_single_market_pct"`
	HumanApprovalPct       float64 `yaml:"human_approval_pct" json:"human_approval_pct"`
	DailyLossLimitPct      float64 `yaml:"daily_loss_limit_pct" json:"daily_loss_limit_pct"`
	WeeklyLossLimitPct     float64 `yaml:"weekly_loss_limit_pct" json:"weekly_loss_limit_pct"`
	DrawdownWarnPct        float64 `yaml:"drawdown_warn_pct" json:"drawdown_warn_pct"`
	DrawdownAlertPct       float64 `yaml:"drawdown_alert_pct" json:"drawdown_alert_pct"`
	DrawdownCriticalPct    float64 `yaml:"drawdown_critical_pct" json:"drawdown_critical_pct"`
	TrailingStopPct        float64 `yaml:"trailing_stop_pct" json:"trailing_stop_pct"`
}

// DefaultRiskConfig devuelve los umbrales por defecto.
func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		MaxPositionPct:         0.10,
		MaxDrawdownPct:         0.30,
		MaxConcurrentPositions: 5,
		MaxSingleMarketPct:     0.20,
		HumanApprovalPct:       0.15,
		DailyLossLimitPct:      0.05,
		WeeklyLossLimitPct:     0.10,
		DrawdownWarnPct:        0.10,
		DrawdownAlertPct:       0.15,
		DrawdownCriticalPct:    0.20,
		TrailingStopPct:        0.15,
	}
}

// WithDefaults rellena con el valor por defecto cada umbral no configurado.
func (c RiskConfig) WithDefaults() RiskConfig {
	d := DefaultRiskConfig()
	fill := func(v *float64, def float64) {
		if *v <= 0 {
			*v = def
		}
	}
	fill(&c.MaxPositionPct, d.MaxPositionPct)
	fill(&c.MaxDrawdownPct, d.MaxDrawdownPct)
	fill(&c.MaxSingleMarketPct, d.MaxSingleMarketPct)
	fill(&c.HumanApprovalPct, d.HumanApprovalPct)
	fill(&c.DailyLossLimitPct, d.DailyLossLimitPct)
	fill(&c.WeeklyLossLimitPct, d.WeeklyLossLimitPct)
	fill(&c.DrawdownWarnPct, d.DrawdownWarnPct)
	fill(&c.DrawdownAlertPct, d.DrawdownAlertPct)
	fill(&c.DrawdownCriticalPct, d.DrawdownCriticalPct)
	fill(&c.TrailingStopPct, d.TrailingStopPct)
	if c.MaxConcurrentPositions <= 0 {
		c.MaxConcurrentPositions = d.MaxConcurrentPositions
	}
	return c
}

// Validate comprueba que los umbrales están en (0, 1] y que los tiers son crecientes.
func (c RiskConfig) Validate() error {
	pcts := map[string]float64{
		"max_position_pct":      c.MaxPositionPct,
		"max_drawdown_pct":      c.MaxDrawdownPct,
		"max_single_market_pct": c.MaxSingleMarketPct,
		"human_approval_pct":    c.HumanApprovalPct,
		"daily_loss_limit_pct":  c.DailyLossLimitPct,
		"weekly_loss_limit_pct": c.WeeklyLossLimitPct,
		"drawdown_warn_pct":     c.DrawdownWarnPct,
		"drawdown_alert_pct":    c.DrawdownAlertPct,
		"drawdown_critical_pct": c.DrawdownCriticalPct,
		"trailing_stop_pct":     c.TrailingStopPct,
	}
	for name, v := range pcts {
		if v <= 0 || v > 1 {
			return fmt.Errorf("%w: %s must be in (0, 1], got %g", ErrValidation, name, v)
		}
	}
	if c.MaxConcurrentPositions <= 0 {
		return fmt.Errorf("%w: max_concurrent_positions must be positive", ErrValidation)
	}
	if !(c.DrawdownWarnPct < c.DrawdownAlertPct && c.DrawdownAlertPct < c.DrawdownCriticalPct) {
		return fmt.Errorf("%w: drawdown tiers must be increasing (warn < alert < critical)", ErrValidation)
	}
	return nil
}

// Portfolio es una cuenta virtual con su caja y sus límites de riesgo.
type Portfolio struct {
	ID              int64
	Name            string
	StartingBalance float64
	CashBalance     float64
	PeakValue       float64
	Risk            RiskConfig
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Position es la tenencia de un token (YES o NO) dentro de un portfolio.
// Una vez cerrada no vuelve a modificarse.
type Position struct {
	ID             int64      `json:"id"`
	PortfolioID    int64      `json:"portfolio_id"`
	TokenID        string     `json:"token_id"`
	MarketQuestion string     `json:"market_question"`
	Side           Side       `json:"side"`
	Shares         float64    `json:"shares"`
	AvgEntryPrice  float64    `json:"avg_entry_price"`
	CurrentPrice   float64    `json:"current_price"`
	OpenedAt       time.Time  `json:"opened_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`
	Closed         bool       `json:"closed"`
}

func (p Position) Key() PositionKey {
	return PositionKey{TokenID: p.TokenID, Side: p.Side}
}

// Value devuelve el valor mark-to-market de la posición.
func (p Position) Value() float64 { return p.Shares * p.CurrentPrice }

// CostBasis devuelve lo invertido según el precio medio de entrada.
func (p Position) CostBasis() float64 { return p.Shares * p.AvgEntryPrice }

// UnrealizedPnL devuelve la ganancia latente al precio actual.
func (p Position) UnrealizedPnL() float64 {
	return (p.CurrentPrice - p.AvgEntryPrice) * p.Shares
}

// WeightedAverage devuelve el precio medio tras añadir addShares a addPrice
// a una posición de prevShares con media prevAvg.
func WeightedAverage(prevShares, prevAvg, addShares, addPrice float64) float64 {
	total := prevShares + addShares
	if total <= 0 {
		return 0
	}
	return (prevShares*prevAvg + addShares*addPrice) / total
}

// ApplyBuy fusiona un fill de compra en la posición.
func (p *Position) ApplyBuy(shares, price float64, at time.Time) {
	p.AvgEntryPrice = RoundPrice(WeightedAverage(p.Shares, p.AvgEntryPrice, shares, price))
	p.Shares += shares
	p.CurrentPrice = price
	p.UpdatedAt = at
}

// ApplySell reduce la posición; al llegar a cero queda cerrada.
func (p *Position) ApplySell(shares, price float64, at time.Time) {
	p.Shares -= shares
	if p.Shares <= fillEpsilon {
		p.Shares = 0
	}
	p.CurrentPrice = price
	p.UpdatedAt = at
	if p.Shares == 0 {
		p.Close(at)
	}
}

// Close marca la posición como cerrada (estado terminal).
func (p *Position) Close(at time.Time) {
	p.Shares = 0
	p.Closed = true
	closedAt := at
	p.ClosedAt = &closedAt
	p.UpdatedAt = at
}

// PriceSource indica de dónde sale el precio usado para valorar una posición.
type PriceSource string

const (
	PriceLive   PriceSource = "live"
	PriceCached PriceSource = "cached"
)

// PositionView es una posición valorada para lectura.
type PositionView struct {
	Position
	Value         float64     `json:"value"`
	UnrealizedPnL float64     `json:"unrealized_pnl"`
	UnrealizedPct float64     `json:"unrealized_pct"`
	PriceSource   PriceSource `json:"price_source"`
}

// NewPositionView valora p con su CurrentPrice.
func NewPositionView(p Position, src PriceSource) PositionView {
	v := PositionView{
		Position:      p,
		Value:         RoundMoney(p.Value()),
		UnrealizedPnL: RoundMoney(p.UnrealizedPnL()),
		PriceSource:   src,
	}
	if cost := p.CostBasis(); cost > 0 {
		v.UnrealizedPct = Round(p.UnrealizedPnL()/cost*100, 2)
	}
	return v
}

// PortfolioView es el estado valorado de un portfolio. Stale indica que al
// menos una posición se valoró con el último precio guardado.
type PortfolioView struct {
	ID               int64          `json:"id"`
	Name             string         `json:"name"`
	StartingBalance  float64        `json:"starting_balance"`
	Cash             float64        `json:"cash_balance"`
	PositionsValue   float64        `json:"positions_value"`
	TotalValue       float64        `json:"total_value"`
	PnL              float64        `json:"pnl"`
	PnLPct           float64        `json:"pnl_pct"`
	PeakValue        float64        `json:"peak_value"`
	DrawdownPct      float64        `json:"drawdown_pct"`
	Positions        []PositionView `json:"positions"`
	NumOpenPositions int            `json:"num_open_positions"`
	Stale            bool           `json:"stale"`
	Risk             RiskConfig     `json:"risk"`
	CreatedAt        time.Time      `json:"created_at"`
}

// NewPortfolioView calcula totales, P&L y drawdown a partir de las posiciones
// ya valoradas. El pico se eleva si el total lo supera.
func NewPortfolioView(p Portfolio, positions []PositionView) PortfolioView {
	view := PortfolioView{
		ID:               p.ID,
		Name:             p.Name,
		StartingBalance:  p.StartingBalance,
		Cash:             p.CashBalance,
		Positions:        positions,
		NumOpenPositions: len(positions),
		Risk:             p.Risk,
		CreatedAt:        p.CreatedAt,
	}
	var posValue float64
	for _, pv := range positions {
		posValue += pv.Position.Value()
		if pv.PriceSource == PriceCached {
			view.Stale = true
		}
	}
	view.PositionsValue = RoundMoney(posValue)
	view.TotalValue = RoundMoney(p.CashBalance + posValue)
	view.PnL = RoundMoney(view.TotalValue - p.StartingBalance)
	if p.StartingBalance > 0 {
		view.PnLPct = Round(view.PnL/p.StartingBalance*100, 2)
	}
	view.PeakValue = math.Max(p.PeakValue, view.TotalValue)
	view.DrawdownPct = Drawdown(view.PeakValue, view.TotalValue)
	return view
}

// Exposures devuelve el valor de cada posición abierta.
func (v PortfolioView) Exposures() []Exposure {
	out := make([]Exposure, 0, len(v.Positions))
	for _, pv := range v.Positions {
		out = append(out, Exposure{Key: pv.Key(), Value: pv.Position.Value()})
	}
	return out
}

// Drawdown devuelve la caída fraccional desde peak; 0 si no hay pico.
func Drawdown(peak, value float64) float64 {
	if peak <= 0 || value >= peak {
		return 0
	}
	return (peak - value) / peak
}
