package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/alejandrodnm/polypaper/internal/domain"
	"github.com/alejandrodnm/polypaper/internal/ports"
)

// Ledger es la interfaz mínima que el executor necesita del engine de paper
// trading. Desacopla el executor de *paper.Engine concreto.
type Ledger interface {
	Portfolio(ctx context.Context, name string, refresh bool) (domain.PortfolioView, error)
	PlaceOrder(ctx context.Context, req OrderRequest) (domain.Execution, error)
	Sell(ctx context.Context, req OrderRequest) (domain.Execution, error)
	ClosePosition(ctx context.Context, req CloseRequest) ([]domain.Execution, error)
}

// OrderRequest es una orden BUY o SELL simulada.
// Size es USD; en SELL, Shares (opcional) limita cuántas shares vender.
// LimitPrice fija el precio de ejecución en lugar de recorrer el book.
type OrderRequest struct {
	Portfolio  string
	TokenID    string
	Side       domain.Side
	Size       float64
	Shares     float64
	LimitPrice *float64
	Reasoning  string
	Force      bool // salta el RiskEngine
	Approved   bool // aprobación humana para órdenes grandes
	FeeRate    *float64
}

// CloseRequest cierra las posiciones abiertas de un token. Side vacío cierra
// ambos lados.
type CloseRequest struct {
	Portfolio string
	TokenID   string
	Side      domain.Side
	Reasoning string
	FeeRate   *float64
}

// Midpoint devuelve el midpoint del token. Si /midpoint falla lo calcula
// desde el book; sin book con ambos lados devuelve el error original.
func Midpoint(ctx context.Context, market ports.MarketData, tokenID string) (float64, error) {
	mid, err := market.FetchMidpoint(ctx, tokenID)
	if err == nil {
		return mid, nil
	}
	book, bookErr := market.FetchOrderBook(ctx, tokenID)
	if bookErr != nil {
		return 0, err
	}
	if m := book.Midpoint(); m > 0 && m <= 1 {
		slog.Debug("midpoint from order book", "token", tokenID, "mid", m, "err", err)
		return m, nil
	}
	return 0, err
}

// Clock devuelve la hora actual en UTC. Los tests inyectan una fija.
type Clock func() time.Time

// SystemClock es el reloj real.
func SystemClock() time.Time { return time.Now().UTC() }

// TruncateStr trunca un string a maxLen caracteres añadiendo "..." si es necesario.
func TruncateStr(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
