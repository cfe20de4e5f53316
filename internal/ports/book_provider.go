package ports

import (
	"context"

	"github.com/alejandrodnm/polypaper/internal/domain"
)

// BookProvider obtiene el orderbook de un token del CLOB.
type BookProvider interface {
	// FetchOrderBook devuelve bids (mayor a menor) y asks (menor a mayor).
	// Los fallos de red devuelven domain.ErrMarketDataUnavailable.
	FetchOrderBook(ctx context.Context, tokenID string) (domain.OrderBook, error)
}
