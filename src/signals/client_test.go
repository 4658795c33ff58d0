package signals

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(baseURL string) *Client {
	return NewClient(Config{
		BaseURL:    baseURL,
		Timeout:    2 * time.Second,
		RetryCount: 0,
		RetryWait:  time.Millisecond,
	})
}

func TestGenerateSignals(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/signals" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}

		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding request: %v", err)
			return
		}
		if body["symbol"] != "AAPL" || body["strategy_type"] != "momentum" {
			t.Errorf("unexpected request body: %v", body)
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(Signal{
			Direction:   DirectionBullish,
			Confidence:  0.82,
			Recommended: true,
			Reason:      "momentum breakout",
		}); err != nil {
			t.Errorf("encoding response: %v", err)
		}
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	signal, err := client.GenerateSignals(context.Background(), "AAPL", Params{MinConfidence: 0.65, StrategyType: "momentum"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if signal.Symbol != "AAPL" {
		t.Fatalf("expected the symbol to be stamped, got %q", signal.Symbol)
	}
	if !signal.Bullish() || !signal.Recommended || signal.Confidence != 0.82 {
		t.Fatalf("unexpected signal: %+v", signal)
	}
}

func TestGenerateSignalsOracleError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(Signal{Error: "insufficient history"}); err != nil {
			t.Errorf("encoding response: %v", err)
		}
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.GenerateSignals(context.Background(), "AAPL", Params{})
	if err == nil {
		t.Fatalf("expected an oracle error to surface")
	}
	if !strings.Contains(err.Error(), "insufficient history") {
		t.Fatalf("expected the oracle message in the error, got %v", err)
	}
}

func TestGenerateSignalsHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	if _, err := client.GenerateSignals(context.Background(), "AAPL", Params{}); err == nil {
		t.Fatalf("expected an error for a 503 response")
	}
}

func TestSignalDirectionHelpers(t *testing.T) {
	if !(&Signal{Direction: "Bullish"}).Bullish() {
		t.Fatalf("direction match must be case-insensitive")
	}
	if !(&Signal{Direction: "BEARISH"}).Bearish() {
		t.Fatalf("direction match must be case-insensitive")
	}
	neutral := &Signal{Direction: "neutral"}
	if neutral.Bullish() || neutral.Bearish() {
		t.Fatalf("neutral must be neither bullish nor bearish")
	}
}
