// Package openalgo implements the domain.Broker contract against an
// OpenAlgo-compatible REST venue gateway.
package openalgo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tradeweave/optengine/internal/domain"
)

// Client is the REST client for an OpenAlgo API server.
type Client struct {
	host       string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a Client for the given host, e.g. "http://127.0.0.1:5000".
func NewClient(host, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		host:   strings.TrimRight(host, "/"),
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// envelope is the common OpenAlgo response wrapper.
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	OrderID string          `json:"orderid"`
}

// GetQuote returns the last traded price for a symbol.
func (c *Client) GetQuote(ctx context.Context, symbol, exchange string) (domain.Quote, error) {
	env, err := c.post(ctx, "/api/v1/quotes", map[string]any{
		"apikey":   c.apiKey,
		"symbol":   symbol,
		"exchange": exchange,
	})
	if err != nil {
		return domain.Quote{}, fmt.Errorf("openalgo: quote %s: %w", symbol, err)
	}

	var data struct {
		LTP float64 `json:"ltp"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return domain.Quote{}, fmt.Errorf("openalgo: decode quote %s: %w", symbol, err)
	}
	return domain.Quote{Symbol: symbol, Exchange: exchange, LastPrice: data.LTP}, nil
}

// PlaceOrder submits a single order and returns the venue acknowledgement.
func (c *Client) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	action := "BUY"
	if req.Side == domain.SideSell {
		action = "SELL"
	}
	env, err := c.post(ctx, "/api/v1/placeorder", map[string]any{
		"apikey":    c.apiKey,
		"strategy":  req.StrategyTag,
		"symbol":    req.Symbol,
		"exchange":  req.Exchange,
		"action":    action,
		"pricetype": string(req.OrderType),
		"product":   string(req.Product),
		"quantity":  strconv.Itoa(req.Quantity),
	})
	if err != nil {
		if env.Status != "" && env.Status != "success" {
			return domain.OrderResult{}, fmt.Errorf("openalgo: place order %s: %w: %v", req.Symbol, domain.ErrOrderRejected, err)
		}
		return domain.OrderResult{}, fmt.Errorf("openalgo: place order %s: %w", req.Symbol, err)
	}
	return domain.OrderResult{OrderID: env.OrderID, Status: env.Status}, nil
}

// GetPositions returns the venue's aggregate position book.
func (c *Client) GetPositions(ctx context.Context) ([]domain.BrokerPosition, error) {
	env, err := c.post(ctx, "/api/v1/positionbook", map[string]any{
		"apikey": c.apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("openalgo: position book: %w", err)
	}

	var rows []struct {
		Symbol       string      `json:"symbol"`
		Exchange     string      `json:"exchange"`
		Quantity     json.Number `json:"quantity"`
		AveragePrice json.Number `json:"average_price"`
		LTP          json.Number `json:"ltp"`
		PnL          json.Number `json:"pnl"`
	}
	if err := json.Unmarshal(env.Data, &rows); err != nil {
		return nil, fmt.Errorf("openalgo: decode position book: %w", err)
	}

	positions := make([]domain.BrokerPosition, 0, len(rows))
	for _, row := range rows {
		qty, _ := row.Quantity.Int64()
		avg, _ := row.AveragePrice.Float64()
		ltp, _ := row.LTP.Float64()
		pnl, _ := row.PnL.Float64()
		positions = append(positions, domain.BrokerPosition{
			Symbol:       row.Symbol,
			Exchange:     row.Exchange,
			NetQuantity:  int(qty),
			AveragePrice: avg,
			LastPrice:    ltp,
			RealizedPnL:  pnl,
		})
	}
	return positions, nil
}

// post sends a JSON request and maps transport/HTTP failures onto the engine
// error taxonomy: 401/403 to ErrAuthFailure, 429 to ErrRateLimited, other
// non-2xx and transport errors to ErrVenueUnavailable.
func (c *Client) post(ctx context.Context, path string, payload map[string]any) (envelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return envelope{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+path, bytes.NewReader(body))
	if err != nil {
		return envelope{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return envelope{}, ctx.Err()
		}
		return envelope{}, fmt.Errorf("%w: %v", domain.ErrVenueUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return envelope{}, fmt.Errorf("%w: read response: %v", domain.ErrVenueUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return envelope{}, fmt.Errorf("%w: http %d", domain.ErrAuthFailure, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return envelope{}, fmt.Errorf("%w: http %d", domain.ErrRateLimited, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return envelope{}, fmt.Errorf("%w: http %d: %s", domain.ErrVenueUnavailable, resp.StatusCode, truncate(respBody))
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return envelope{}, fmt.Errorf("decode response: %w", err)
	}
	if env.Status != "success" {
		return env, fmt.Errorf("venue status %q: %s", env.Status, env.Message)
	}
	return env, nil
}

func truncate(b []byte) string {
	const max = 256
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}

// Compile-time interface check.
var _ domain.Broker = (*Client)(nil)
