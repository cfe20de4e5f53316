package polymarket

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/alejandrodnm/polypaper/internal/domain"
	"github.com/alejandrodnm/polypaper/internal/metrics"
)

const gammaMarketsPath = "/markets"

// LookupQuestion devuelve la pregunta del mercado que contiene el token,
// usando GET /markets?clob_token_ids=...&limit=1 de Gamma.
func (c *Client) LookupQuestion(ctx context.Context, tokenID string) (string, error) {
	if err := domain.ValidateTokenID(tokenID); err != nil {
		return "", fmt.Errorf("gamma.LookupQuestion: %w", err)
	}

	start := time.Now()
	var resp gammaMarketsResponse
	u := fmt.Sprintf("%s%s?clob_token_ids=%s&limit=1", c.gammaBase, gammaMarketsPath, url.QueryEscape(tokenID))
	err := c.get(ctx, c.gammaLimiter, u, &resp)
	metrics.ObserveGateway("markets", start, err)
	if err != nil {
		return "", fmt.Errorf("gamma.LookupQuestion: %w: %w", domain.ErrMarketDataUnavailable, err)
	}

	if len(resp) == 0 || strings.TrimSpace(resp[0].Question) == "" {
		return "", fmt.Errorf("gamma.LookupQuestion: market for token %s: %w", tokenID, domain.ErrNotFound)
	}
	return resp[0].Question, nil
}
