// Package marketdata talks to the brokerage gateway: REST lookups with
// bounded retries, plus a websocket stream feeding the quote cache.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-resty/resty/v2"
	logger "github.com/sirupsen/logrus"
)

// Gateway is the engine's view of the brokerage/market-data boundary.
type Gateway interface {
	GetQuote(ctx context.Context, symbol string) (*Quote, error)
	GetOptionsChain(ctx context.Context, symbol, expiration string) ([]OptionContract, error)
	GetExpirations(ctx context.Context, symbol string) ([]string, error)
	PlaceOrder(ctx context.Context, req OrderRequest) (*OrderAck, error)
}

type apiResponse struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// Client talks to the gateway over REST with bounded retries, backed
// by the websocket quote cache when a stream is attached.
type Client struct {
	http  *resty.Client
	cache *QuoteCache
}

func isRetryableResp(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}

	if r == nil {
		return false
	}

	code := r.StatusCode()

	if code >= 500 && code <= 599 {
		return true
	}
	if code == 429 {
		return true
	}
	if code == 408 {
		return true
	}
	return false
}

// NewClient builds a gateway client from config.
func NewClient(cfg Config) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(cfg.RetryMaxWait).
		AddRetryCondition(isRetryableResp)

	if cfg.APIKey != "" {
		httpClient.SetHeader("X-Api-Key", cfg.APIKey)
	}

	return &Client{
		http:  httpClient,
		cache: NewQuoteCache(cfg.CacheTTL),
	}
}

// Cache exposes the quote cache so a stream can feed it.
func (c *Client) Cache() *QuoteCache {
	return c.cache
}

func (c *Client) get(ctx context.Context, path string, params map[string]string, out interface{}) error {
	var wrapper apiResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&wrapper).
		Get(path)
	if err != nil {
		return fmt.Errorf("gateway request %s failed: %w", path, err)
	}
	if resp.IsError() {
		return fmt.Errorf("gateway request %s failed with status %d", path, resp.StatusCode())
	}
	if wrapper.Code != 0 {
		return fmt.Errorf("gateway request %s rejected: %s", path, wrapper.Msg)
	}

	if err := json.Unmarshal(wrapper.Data, out); err != nil {
		return fmt.Errorf("gateway response %s malformed: %w", path, err)
	}
	return nil
}

// GetQuote returns the current quote for a symbol, equity or option.
// A response with no usable bid/ask/last is ErrQuoteUnavailable, never
// a zero-filled quote.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	if cached, ok := c.cache.Get(symbol); ok {
		return cached, nil
	}

	var quote Quote
	if err := c.get(ctx, "/v1/quote", map[string]string{"symbol": symbol}, &quote); err != nil {
		logger.WithFields(map[string]interface{}{
			"component": "marketdata",
			"op":        "GetQuote",
			"symbol":    symbol,
		}).WithError(err).Warn("quote lookup failed")

		return nil, fmt.Errorf("%w: %s", ErrQuoteUnavailable, symbol)
	}

	if !quote.Usable() {
		return nil, fmt.Errorf("%w: %s", ErrQuoteUnavailable, symbol)
	}

	quote.Symbol = symbol
	c.cache.Put(&quote)

	return &quote, nil
}

// GetOptionsChain returns the option contracts for one expiration.
func (c *Client) GetOptionsChain(ctx context.Context, symbol, expiration string) ([]OptionContract, error) {
	var chain []OptionContract

	err := c.get(ctx, "/v1/options/chain", map[string]string{
		"symbol":     symbol,
		"expiration": expiration,
	}, &chain)
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"component":  "marketdata",
			"op":         "GetOptionsChain",
			"symbol":     symbol,
			"expiration": expiration,
		}).WithError(err).Warn("chain lookup failed")

		return nil, err
	}

	return chain, nil
}

// GetExpirations returns the available option expirations (YYYY-MM-DD).
func (c *Client) GetExpirations(ctx context.Context, symbol string) ([]string, error) {
	var expirations []string

	err := c.get(ctx, "/v1/options/expirations", map[string]string{"symbol": symbol}, &expirations)
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"component": "marketdata",
			"op":        "GetExpirations",
			"symbol":    symbol,
		}).WithError(err).Warn("expirations lookup failed")

		return nil, err
	}

	return expirations, nil
}

// PlaceOrder forwards an order to the brokerage. Live mode only; paper
// fills never reach the gateway.
func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest) (*OrderAck, error) {
	var wrapper apiResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&wrapper).
		Post("/v1/orders")
	if err != nil {
		return nil, fmt.Errorf("order placement failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("order placement failed with status %d", resp.StatusCode())
	}
	if wrapper.Code != 0 {
		return nil, fmt.Errorf("order rejected by gateway: %s", wrapper.Msg)
	}

	var ack OrderAck
	if err := json.Unmarshal(wrapper.Data, &ack); err != nil {
		return nil, fmt.Errorf("order ack malformed: %w", err)
	}

	// A fill moves the traded instrument; drop its cached quote so the
	// next lookup reflects post-fill pricing.
	c.cache.Invalidate(req.Symbol)
	if req.OptionSymbol != "" {
		c.cache.Invalidate(req.OptionSymbol)
	}

	logger.WithFields(map[string]interface{}{
		"component":       "marketdata",
		"op":              "PlaceOrder",
		"client_order_id": req.ClientOrderID,
		"order_id":        ack.OrderID,
		"status":          ack.Status,
	}).Info("order placed")

	return &ack, nil
}
