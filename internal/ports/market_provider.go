package ports

import "context"

// MarketProvider obtiene precios de referencia y metadatos de un mercado.
type MarketProvider interface {
	// FetchMidpoint devuelve el midpoint actual del token.
	FetchMidpoint(ctx context.Context, tokenID string) (float64, error)

	// LookupQuestion devuelve la pregunta del mercado al que pertenece el token.
	LookupQuestion(ctx context.Context, tokenID string) (string, error)
}

// MarketData es el gateway completo que usa el ledger.
type MarketData interface {
	BookProvider
	MarketProvider
}
