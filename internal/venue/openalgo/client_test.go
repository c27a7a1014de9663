package openalgo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeweave/optengine/internal/domain"
)

func TestGetQuote(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/quotes", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","data":{"ltp":21012.4}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", time.Second)
	quote, err := c.GetQuote(context.Background(), "NIFTY", "NSE_INDEX")
	require.NoError(t, err)

	assert.Equal(t, 21012.4, quote.LastPrice)
	assert.Equal(t, "NIFTY", quote.Symbol)
	assert.Equal(t, "test-key", gotBody["apikey"])
	assert.Equal(t, "NSE_INDEX", gotBody["exchange"])
}

func TestPlaceOrder(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/placeorder", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"status":"success","orderid":"250130000123456"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", time.Second)
	res, err := c.PlaceOrder(context.Background(), domain.OrderRequest{
		StrategyTag: "optengine",
		Symbol:      "NIFTY30JAN2521200CE",
		Exchange:    "NFO",
		Side:        domain.SideSell,
		Product:     domain.ProductIntraday,
		OrderType:   domain.OrderTypeMarket,
		Quantity:    75,
	})
	require.NoError(t, err)

	assert.Equal(t, "250130000123456", res.OrderID)
	assert.Equal(t, "SELL", gotBody["action"])
	assert.Equal(t, "MIS", gotBody["product"])
	assert.Equal(t, "MARKET", gotBody["pricetype"])
	assert.Equal(t, "75", gotBody["quantity"])
	assert.Equal(t, "optengine", gotBody["strategy"])
}

func TestPlaceOrderRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"error","message":"margin insufficient"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", time.Second)
	_, err := c.PlaceOrder(context.Background(), domain.OrderRequest{
		Symbol: "NIFTY30JAN2521200CE", Side: domain.SideBuy, Quantity: 75,
	})
	assert.ErrorIs(t, err, domain.ErrOrderRejected)
	assert.Contains(t, err.Error(), "margin insufficient")
}

func TestGetPositions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/positionbook", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"success","data":[
			{"symbol":"NIFTY30JAN2521200CE","exchange":"NFO","quantity":"-75","average_price":"120.5","ltp":"100.25","pnl":"1518.75"},
			{"symbol":"NIFTY30JAN25FUT","exchange":"NFO","quantity":150,"average_price":21010,"ltp":21050,"pnl":0}
		]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", time.Second)
	positions, err := c.GetPositions(context.Background())
	require.NoError(t, err)
	require.Len(t, positions, 2)

	// String and numeric quantity encodings both decode.
	assert.Equal(t, -75, positions[0].NetQuantity)
	assert.Equal(t, 120.5, positions[0].AveragePrice)
	assert.Equal(t, 100.25, positions[0].LastPrice)
	assert.Equal(t, 150, positions[1].NetQuantity)
}

func TestErrorTaxonomy(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, domain.ErrAuthFailure},
		{http.StatusForbidden, domain.ErrAuthFailure},
		{http.StatusTooManyRequests, domain.ErrRateLimited},
		{http.StatusInternalServerError, domain.ErrVenueUnavailable},
		{http.StatusBadGateway, domain.ErrVenueUnavailable},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tc.status)
		}))

		c := NewClient(srv.URL, "test-key", time.Second)
		_, err := c.GetQuote(context.Background(), "NIFTY", "NSE_INDEX")
		assert.ErrorIs(t, err, tc.want, "http %d", tc.status)
		srv.Close()
	}
}

func TestTransportFailureIsVenueUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // connection refused from here on

	c := NewClient(srv.URL, "test-key", time.Second)
	_, err := c.GetPositions(context.Background())
	assert.ErrorIs(t, err, domain.ErrVenueUnavailable)
}

func TestContextCancellationPassesThrough(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	c := NewClient(srv.URL, "test-key", time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.GetQuote(ctx, "NIFTY", "NSE_INDEX")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
