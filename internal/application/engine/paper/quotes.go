package paper

import (
	"context"
	"log/slog"
	"sync"

	"github.com/alejandrodnm/polypaper/internal/application/engine"
	"github.com/alejandrodnm/polypaper/internal/ports"
)

// quoteWorkers limita las peticiones de midpoint en vuelo; el rate limiter
// del cliente sigue aplicando por encima.
const quoteWorkers = 8

type quote struct {
	mid float64
	err error
}

// fetchMidpoints consulta el midpoint de cada token con un worker pool,
// con el book como respaldo. Los tokens repetidos se consultan una sola vez.
func fetchMidpoints(ctx context.Context, market ports.MarketData, tokens []string) map[string]quote {
	unique := make([]string, 0, len(tokens))
	seen := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		if !seen[t] {
			seen[t] = true
			unique = append(unique, t)
		}
	}

	out := make(map[string]quote, len(unique))
	if len(unique) == 0 {
		return out
	}

	workers := min(quoteWorkers, len(unique))
	workCh := make(chan string, len(unique))
	type result struct {
		token string
		q     quote
	}
	resultCh := make(chan result, len(unique))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for token := range workCh {
				mid, err := engine.Midpoint(ctx, market, token)
				resultCh <- result{token: token, q: quote{mid: mid, err: err}}
			}
		}()
	}

	for _, t := range unique {
		workCh <- t
	}
	close(workCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	for r := range resultCh {
		out[r.token] = r.q
	}
	slog.Debug("midpoints fetched", "tokens", len(unique), "workers", workers)
	return out
}
