package polymarket

// clob.go — Polymarket CLOB API adapter (orderbook y midpoint).
//
// Los token_ids se validan antes de construir cualquier URL. Todo fallo de red,
// 5xx, timeout o breaker abierto se devuelve como domain.ErrMarketDataUnavailable.

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/alejandrodnm/polypaper/internal/domain"
	"github.com/alejandrodnm/polypaper/internal/metrics"
)

const (
	bookPath     = "/book"
	midpointPath = "/midpoint"
)

// FetchOrderBook obtiene el orderbook de un token con GET /book.
func (c *Client) FetchOrderBook(ctx context.Context, tokenID string) (domain.OrderBook, error) {
	if err := domain.ValidateTokenID(tokenID); err != nil {
		return domain.OrderBook{}, fmt.Errorf("clob.FetchOrderBook: %w", err)
	}

	start := time.Now()
	var resp orderBookResponse
	u := fmt.Sprintf("%s%s?token_id=%s", c.clobBase, bookPath, url.QueryEscape(tokenID))
	err := c.get(ctx, c.booksLimiter, u, &resp)
	metrics.ObserveGateway("book", start, err)
	if err != nil {
		return domain.OrderBook{}, fmt.Errorf("clob.FetchOrderBook: %w: %w", domain.ErrMarketDataUnavailable, err)
	}

	book := mapOrderBook(tokenID, resp)
	slog.Debug("order book fetched",
		"token", tokenID,
		"bids", len(book.Bids),
		"asks", len(book.Asks),
	)
	return book, nil
}

// FetchMidpoint obtiene el midpoint de un token con GET /midpoint.
func (c *Client) FetchMidpoint(ctx context.Context, tokenID string) (float64, error) {
	if err := domain.ValidateTokenID(tokenID); err != nil {
		return 0, fmt.Errorf("clob.FetchMidpoint: %w", err)
	}

	start := time.Now()
	var resp midpointResponse
	u := fmt.Sprintf("%s%s?token_id=%s", c.clobBase, midpointPath, url.QueryEscape(tokenID))
	err := c.get(ctx, c.clobLimiter, u, &resp)
	metrics.ObserveGateway("midpoint", start, err)
	if err != nil {
		return 0, fmt.Errorf("clob.FetchMidpoint: %w: %w", domain.ErrMarketDataUnavailable, err)
	}

	mid, err := parseMidpoint(resp)
	if err != nil {
		return 0, fmt.Errorf("clob.FetchMidpoint: %w: %w", domain.ErrMarketDataUnavailable, err)
	}
	return mid, nil
}
