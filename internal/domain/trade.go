package domain

import "time"

// Trade es una ejecución simulada. Append-only: nunca se modifica.
// TotalCost es la caja movida: notional+fee en BUY, notional-fee en SELL.
// EntryAvg es el precio medio de entrada vigente al ejecutar.
type Trade struct {
	ID             int64     `json:"id"`
	Ref            string    `json:"ref"`
	PortfolioID    int64     `json:"portfolio_id"`
	TokenID        string    `json:"token_id"`
	MarketQuestion string    `json:"market_question"`
	Side           Side      `json:"side"`
	Action         Action    `json:"action"`
	Shares         float64   `json:"shares"`
	Price          float64   `json:"price"`
	Fee            float64   `json:"fee"`
	TotalCost      float64   `json:"total_cost"`
	Reasoning      string    `json:"reasoning"`
	ExecutedAt     time.Time `json:"executed_at"`
	EntryAvg       float64   `json:"entry_avg"`
}

// Key devuelve la clave (token, side) del trade.
func (t Trade) Key() PositionKey {
	return PositionKey{TokenID: t.TokenID, Side: t.Side}
}

// Notional devuelve shares × price, sin fee.
func (t Trade) Notional() float64 { return t.Shares * t.Price }

// RealizedPnL devuelve el P&L realizado de un SELL contra el EntryAvg
// registrado. Los BUY no realizan P&L.
func (t Trade) RealizedPnL() float64 {
	if t.Action != ActionSell {
		return 0
	}
	return (t.Price-t.EntryAvg)*t.Shares - t.Fee
}

// DailySnapshot es un punto de la curva de equity: uno por portfolio y día (UTC).
type DailySnapshot struct {
	PortfolioID    int64     `json:"portfolio_id"`
	Date           string    `json:"date"` // YYYY-MM-DD
	Cash           float64   `json:"cash_balance"`
	PositionsValue float64   `json:"positions_value"`
	TotalValue     float64   `json:"total_value"`
	DailyPnL       float64   `json:"daily_pnl"`
	CreatedAt      time.Time `json:"created_at"`
}

// SnapshotDateLayout es el formato de DailySnapshot.Date.
const SnapshotDateLayout = "2006-01-02"

// DayStart devuelve las 00:00 UTC del día de t.
func DayStart(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// WeekStart devuelve el lunes 00:00 UTC más reciente (inclusive) respecto a t.
func WeekStart(t time.Time) time.Time {
	day := DayStart(t)
	offset := (int(day.Weekday()) + 6) % 7 // lunes=0
	return day.AddDate(0, 0, -offset)
}
