package polymarket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const (
	defaultCLOBBase  = "https://clob.polymarket.com"
	defaultGammaBase = "https://gamma-api.polymarket.com"

	// Rate limits al 60% de los límites reales documentados.
	// CLOB /book: 500/10s → 300/10s → 30/s
	booksRatePerSec = 30
	// Gamma /markets: 300/10s → 180/10s → 18/s
	gammaRatePerSec = 18
	// CLOB general (midpoint, etc.): 9000/10s → 5400/10s → 540/s
	generalRatePerSec = 540

	defaultTimeout       = 15 * time.Second
	defaultMaxRetries    = 3
	defaultBaseRetryWait = 500 * time.Millisecond

	// El breaker abre tras N fallos consecutivos y prueba de nuevo tras breakerTimeout.
	defaultBreakerFailures = 5
	defaultBreakerTimeout  = 30 * time.Second
)

// statusError es una respuesta 4xx: el request es inválido, el servicio está sano.
type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("client error %d: %s", e.Code, e.Body)
}

// Client es el HTTP client de Polymarket con rate limiting, retries y
// circuit breaker.
type Client struct {
	http          *http.Client
	clobBase      string
	gammaBase     string
	clobLimiter   *rate.Limiter
	gammaLimiter  *rate.Limiter
	booksLimiter  *rate.Limiter
	breaker       *gobreaker.CircuitBreaker
	maxRetries    int
	baseRetryWait time.Duration

	breakerFailures uint32
	breakerTimeout  time.Duration
}

// Option configura un Client.
type Option func(*Client)

// WithTimeout fija el timeout por request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithRetry fija el número de reintentos y la espera base del backoff.
func WithRetry(maxRetries int, baseWait time.Duration) Option {
	return func(c *Client) {
		if maxRetries >= 0 {
			c.maxRetries = maxRetries
		}
		if baseWait > 0 {
			c.baseRetryWait = baseWait
		}
	}
}

// WithBreaker fija cuántos fallos consecutivos abren el breaker y cuánto
// tiempo permanece abierto.
func WithBreaker(failures uint32, openFor time.Duration) Option {
	return func(c *Client) {
		if failures > 0 {
			c.breakerFailures = failures
		}
		if openFor > 0 {
			c.breakerTimeout = openFor
		}
	}
}

// NewClient crea un Client con los base URLs dados.
// Si clobBase o gammaBase están vacíos, usa los URLs de producción.
func NewClient(clobBase, gammaBase string, opts ...Option) *Client {
	if clobBase == "" {
		clobBase = defaultCLOBBase
	}
	if gammaBase == "" {
		gammaBase = defaultGammaBase
	}
	c := &Client{
		http:            &http.Client{Timeout: defaultTimeout},
		clobBase:        clobBase,
		gammaBase:       gammaBase,
		clobLimiter:     rate.NewLimiter(generalRatePerSec, 50),
		gammaLimiter:    rate.NewLimiter(gammaRatePerSec, 10),
		booksLimiter:    rate.NewLimiter(booksRatePerSec, 5),
		maxRetries:      defaultMaxRetries,
		baseRetryWait:   defaultBaseRetryWait,
		breakerFailures: defaultBreakerFailures,
		breakerTimeout:  defaultBreakerTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "polymarket",
		MaxRequests: 1,
		Timeout:     c.breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= c.breakerFailures
		},
		IsSuccessful: func(err error) bool {
			var se *statusError
			return err == nil || errors.As(err, &se) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})
	return c
}

// get hace un GET con circuit breaker, rate limiting y retries.
func (c *Client) get(ctx context.Context, limiter *rate.Limiter, url string, out any) error {
	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.doWithRetry(ctx, limiter, func() (*http.Response, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return nil, err
			}
			req.Header.Set("Accept", "application/json")
			return c.http.Do(req)
		}, out)
	})
	return err
}

// doWithRetry ejecuta la función con backoff exponencial, respetando el contexto.
func (c *Client) doWithRetry(ctx context.Context, limiter *rate.Limiter, fn func() (*http.Response, error), out any) error {
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		resp, err := fn()
		if err != nil {
			if attempt == c.maxRetries || ctx.Err() != nil {
				return fmt.Errorf("request failed after %d retries: %w", attempt, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			slog.Warn("rate limited by API", "attempt", attempt+1)
			if attempt == c.maxRetries {
				return fmt.Errorf("rate limited after %d retries", attempt)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == c.maxRetries {
				return fmt.Errorf("server error %d after %d retries", resp.StatusCode, attempt)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			return &statusError{Code: resp.StatusCode, Body: string(body)}
		}

		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", c.maxRetries)
}

// sleep espera con backoff exponencial, respetando el contexto.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * c.baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
