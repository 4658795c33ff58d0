package marketdata

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	logger "github.com/sirupsen/logrus"
)

const (
	streamReconnectBase = time.Second
	streamReconnectMax  = 30 * time.Second
)

type streamFrame struct {
	Type   string  `json:"type"`
	Symbol string  `json:"symbol"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
	Last   float64 `json:"last"`
}

// QuoteStream keeps a websocket subscription to the gateway's quote
// feed and writes every tick into the shared QuoteCache, so the REST
// client can answer most lookups without an HTTP round trip.
type QuoteStream struct {
	url   string
	cache *QuoteCache

	mu      sync.Mutex
	symbols map[string]struct{}
	conn    *websocket.Conn
}

// NewQuoteStream builds a stream that feeds the given cache.
func NewQuoteStream(url string, cache *QuoteCache) *QuoteStream {
	return &QuoteStream{
		url:     url,
		cache:   cache,
		symbols: make(map[string]struct{}),
	}
}

// Subscribe adds symbols to the subscription set. Already-subscribed
// symbols are ignored; new ones are pushed on the live connection.
func (s *QuoteStream) Subscribe(symbols ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var added []string
	for _, symbol := range symbols {
		if _, ok := s.symbols[symbol]; ok {
			continue
		}
		s.symbols[symbol] = struct{}{}
		added = append(added, symbol)
	}

	if len(added) > 0 && s.conn != nil {
		if err := s.sendSubscribeLocked(added); err != nil {
			logger.WithError(err).Warn("[quotestream] subscribe push failed, will resend on reconnect")
		}
	}
}

func (s *QuoteStream) sendSubscribeLocked(symbols []string) error {
	payload := map[string]interface{}{"action": "subscribe", "symbols": symbols}
	return s.conn.WriteJSON(payload)
}

// Run maintains the connection until the context is canceled,
// reconnecting with capped backoff.
func (s *QuoteStream) Run(ctx context.Context) {
	backoff := streamReconnectBase

	for {
		if ctx.Err() != nil {
			return
		}

		err := s.connectAndConsume(ctx)
		if ctx.Err() != nil {
			return
		}

		logger.WithError(err).WithField("backoff", backoff.String()).
			Warn("[quotestream] connection lost, reconnecting")

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > streamReconnectMax {
			backoff = streamReconnectMax
		}
	}
}

func (s *QuoteStream) connectAndConsume(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	s.mu.Lock()
	s.conn = conn
	pending := make([]string, 0, len(s.symbols))
	for symbol := range s.symbols {
		pending = append(pending, symbol)
	}
	var subErr error
	if len(pending) > 0 {
		subErr = s.sendSubscribeLocked(pending)
	}
	s.mu.Unlock()

	if subErr != nil {
		return subErr
	}

	logger.WithField("symbols", len(pending)).Info("[quotestream] connected")

	// Close the connection when the context dies so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			s.conn = nil
			s.mu.Unlock()
			return err
		}

		var frame streamFrame
		if err := json.Unmarshal(msg, &frame); err != nil {
			logger.WithError(err).Debug("[quotestream] dropping malformed frame")
			continue
		}

		if frame.Type != "quote" || frame.Symbol == "" {
			continue
		}

		s.cache.Put(&Quote{
			Symbol: frame.Symbol,
			Bid:    frame.Bid,
			Ask:    frame.Ask,
			Last:   frame.Last,
		})
	}
}
