// Package signals wraps the signal oracle. The scoring algorithm is
// opaque to the engine; this client only transports direction and
// confidence.
package signals

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	logger "github.com/sirupsen/logrus"
)

const (
	DirectionBullish = "bullish"
	DirectionBearish = "bearish"
)

// Params narrows what the oracle considers for one request.
type Params struct {
	MinConfidence float64 `json:"min_confidence"`
	StrategyType  string  `json:"strategy_type"`
}

// Signal is the oracle's verdict for one symbol.
type Signal struct {
	Symbol      string  `json:"symbol"`
	Direction   string  `json:"direction"` // bullish | bearish | neutral
	Confidence  float64 `json:"confidence"`
	Recommended bool    `json:"recommended"`
	Action      string  `json:"action"`
	Reason      string  `json:"reason"`
	Error       string  `json:"error,omitempty"`
}

// Bullish reports whether the signal points up.
func (s *Signal) Bullish() bool {
	return strings.EqualFold(s.Direction, DirectionBullish)
}

// Bearish reports whether the signal points down.
func (s *Signal) Bearish() bool {
	return strings.EqualFold(s.Direction, DirectionBearish)
}

// Oracle is the scanner's view of the signal service.
type Oracle interface {
	GenerateSignals(ctx context.Context, symbol string, params Params) (*Signal, error)
}

// Client is a resty client for the signal oracle.
type Client struct {
	http *resty.Client
}

// NewClient builds an oracle client from config.
func NewClient(cfg Config) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWait)

	return &Client{http: httpClient}
}

// GenerateSignals asks the oracle for a directional signal. An
// oracle-side {error: ...} payload surfaces as an error so callers can
// skip the automation rather than trade on a broken signal.
func (c *Client) GenerateSignals(ctx context.Context, symbol string, params Params) (*Signal, error) {
	var signal Signal

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{
			"symbol":         symbol,
			"min_confidence": params.MinConfidence,
			"strategy_type":  params.StrategyType,
		}).
		SetResult(&signal).
		Post("/v1/signals")
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"component": "signals",
			"op":        "GenerateSignals",
			"symbol":    symbol,
		}).WithError(err).Warn("signal request failed")

		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("signal oracle returned status %d for %s", resp.StatusCode(), symbol)
	}
	if signal.Error != "" {
		return nil, fmt.Errorf("signal oracle error for %s: %s", symbol, signal.Error)
	}

	signal.Symbol = symbol
	return &signal, nil
}
