package polymarket_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alejandrodnm/polypaper/internal/adapters/polymarket"
	"github.com/alejandrodnm/polypaper/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "71321045679252212594626385532706912750332728571942532289631379312455583992563"

func newTestClient(clobSrv, gammaSrv *httptest.Server, opts ...polymarket.Option) *polymarket.Client {
	clobURL := ""
	gammaURL := ""
	if clobSrv != nil {
		clobURL = clobSrv.URL
	}
	if gammaSrv != nil {
		gammaURL = gammaSrv.URL
	}
	opts = append([]polymarket.Option{polymarket.WithRetry(1, time.Millisecond)}, opts...)
	return polymarket.NewClient(clobURL, gammaURL, opts...)
}

func TestFetchOrderBook_Success(t *testing.T) {
	data, err := os.ReadFile("../../../testdata/fixtures/clob_book.json")
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/book", r.URL.Path)
		assert.Equal(t, testToken, r.URL.Query().Get("token_id"))
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	}))
	defer srv.Close()

	client := newTestClient(srv, nil)
	book, err := client.FetchOrderBook(context.Background(), testToken)

	require.NoError(t, err)
	assert.Equal(t, testToken, book.TokenID)
	require.Len(t, book.Bids, 3)
	require.Len(t, book.Asks, 3)
	assert.InDelta(t, 0.50, book.BestBid(), 0.001)
	assert.InDelta(t, 0.52, book.BestAsk(), 0.001)
	assert.InDelta(t, 0.51, book.Midpoint(), 0.001)
	assert.InDelta(t, 134.5, domain.Depth(book.Bids), 0.001)
}

func TestFetchOrderBook_InvalidTokenNeverHitsNetwork(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	client := newTestClient(srv, nil)
	_, err := client.FetchOrderBook(context.Background(), "../etc/passwd")

	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Zero(t, calls.Load())
}

func TestFetchOrderBook_ServerErrorIsUnavailable(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(srv, nil)
	_, err := client.FetchOrderBook(context.Background(), testToken)

	assert.ErrorIs(t, err, domain.ErrMarketDataUnavailable)
	assert.Equal(t, int32(2), calls.Load(), "1 intento + 1 retry")
}

func TestFetchOrderBook_NotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"No orderbook exists for the requested token id"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv, nil)
	_, err := client.FetchOrderBook(context.Background(), testToken)

	assert.ErrorIs(t, err, domain.ErrMarketDataUnavailable)
	assert.Contains(t, err.Error(), "404")
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := newTestClient(srv, nil,
		polymarket.WithRetry(0, time.Millisecond),
		polymarket.WithBreaker(2, time.Minute),
	)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := client.FetchMidpoint(ctx, testToken)
		assert.ErrorIs(t, err, domain.ErrMarketDataUnavailable)
	}
	require.Equal(t, int32(2), calls.Load())

	// breaker abierto: falla sin tocar la red
	_, err := client.FetchOrderBook(ctx, testToken)
	assert.ErrorIs(t, err, domain.ErrMarketDataUnavailable)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchMidpoint_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/midpoint", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"mid":"0.535"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv, nil)
	mid, err := client.FetchMidpoint(context.Background(), testToken)
	require.NoError(t, err)
	assert.Equal(t, 0.535, mid)
}

func TestFetchMidpoint_OutOfRange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"mid":"0"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv, nil)
	_, err := client.FetchMidpoint(context.Background(), testToken)
	assert.ErrorIs(t, err, domain.ErrMarketDataUnavailable)
}

func TestLookupQuestion(t *testing.T) {
	data, err := os.ReadFile("../../../testdata/fixtures/gamma_markets.json")
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/markets", r.URL.Path)
		assert.Equal(t, testToken, r.URL.Query().Get("clob_token_ids"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		w.Write(data)
	}))
	defer srv.Close()

	client := newTestClient(nil, srv)
	q, err := client.LookupQuestion(context.Background(), testToken)
	require.NoError(t, err)
	assert.Equal(t, "Will the Fed cut rates in March 2026?", q)
}

func TestLookupQuestion_EmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := newTestClient(nil, srv)
	_, err := client.LookupQuestion(context.Background(), testToken)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
