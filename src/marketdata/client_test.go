package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testClientConfig(baseURL string) Config {
	return Config{
		BaseURL:      baseURL,
		Timeout:      2 * time.Second,
		RetryCount:   1,
		RetryWait:    time.Millisecond,
		RetryMaxWait: 2 * time.Millisecond,
		CacheTTL:     time.Minute,
	}
}

func writeAPIResponse(t *testing.T, w http.ResponseWriter, code int, msg string, data interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	raw, err := json.Marshal(data)
	if err != nil {
		t.Errorf("marshaling payload: %v", err)
		return
	}
	if err := json.NewEncoder(w).Encode(apiResponse{Code: code, Msg: msg, Data: raw}); err != nil {
		t.Errorf("encoding response: %v", err)
	}
}

func TestClientGetQuote(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if r.URL.Path != "/v1/quote" || r.URL.Query().Get("symbol") != "AAPL" {
			t.Errorf("unexpected request %s %s", r.URL.Path, r.URL.RawQuery)
		}
		writeAPIResponse(t, w, 0, "", Quote{Bid: 100, Ask: 101})
	}))
	defer server.Close()

	client := NewClient(testClientConfig(server.URL))

	quote, err := client.GetQuote(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quote.Symbol != "AAPL" || quote.Mid() != 100.5 {
		t.Fatalf("unexpected quote: %+v", quote)
	}

	// Second lookup is served from the cache.
	if _, err := client.GetQuote(context.Background(), "AAPL"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hits != 1 {
		t.Fatalf("expected 1 gateway hit, got %d", hits)
	}
}

func TestClientGetQuoteUnusable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeAPIResponse(t, w, 0, "", Quote{})
	}))
	defer server.Close()

	client := NewClient(testClientConfig(server.URL))

	_, err := client.GetQuote(context.Background(), "AAPL")
	if !errors.Is(err, ErrQuoteUnavailable) {
		t.Fatalf("expected ErrQuoteUnavailable, got %v", err)
	}
}

func TestClientGetQuoteGatewayRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeAPIResponse(t, w, 1001, "unknown symbol", nil)
	}))
	defer server.Close()

	client := NewClient(testClientConfig(server.URL))

	_, err := client.GetQuote(context.Background(), "NOPE")
	if !errors.Is(err, ErrQuoteUnavailable) {
		t.Fatalf("expected ErrQuoteUnavailable, got %v", err)
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeAPIResponse(t, w, 0, "", []string{"2025-07-18", "2025-08-15"})
	}))
	defer server.Close()

	client := NewClient(testClientConfig(server.URL))

	expirations, err := client.GetExpirations(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(expirations) != 2 || expirations[0] != "2025-07-18" {
		t.Fatalf("unexpected expirations: %v", expirations)
	}
	if hits != 2 {
		t.Fatalf("expected a retry after 502, got %d hits", hits)
	}
}

func TestClientGetOptionsChain(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("expiration") != "2025-07-18" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		writeAPIResponse(t, w, 0, "", []OptionContract{
			{Symbol: "AAPL250718C00200000", Strike: 200, Type: "call", Bid: 5.00, Ask: 5.20},
		})
	}))
	defer server.Close()

	client := NewClient(testClientConfig(server.URL))

	chain, err := client.GetOptionsChain(context.Background(), "AAPL", "2025-07-18")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chain) != 1 || chain[0].Strike != 200 {
		t.Fatalf("unexpected chain: %+v", chain)
	}
}

func TestClientPlaceOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/orders" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}

		var req OrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding order: %v", err)
			return
		}
		if req.Symbol != "AAPL" || req.Quantity != 2 {
			t.Errorf("unexpected order: %+v", req)
		}

		writeAPIResponse(t, w, 0, "", OrderAck{OrderID: "ord-1", Status: "filled", Filled: 2, AvgFill: 5.10})
	}))
	defer server.Close()

	client := NewClient(testClientConfig(server.URL))

	ack, err := client.PlaceOrder(context.Background(), OrderRequest{
		ClientOrderID: "c-1",
		Symbol:        "AAPL",
		Action:        "buy",
		Quantity:      2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ack.OrderID != "ord-1" || ack.Filled != 2 {
		t.Fatalf("unexpected ack: %+v", ack)
	}
}

func TestClientPlaceOrderDropsCachedQuotes(t *testing.T) {
	var quoteHits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/quote":
			quoteHits++
			writeAPIResponse(t, w, 0, "", Quote{Bid: 100, Ask: 101})
		case "/v1/orders":
			writeAPIResponse(t, w, 0, "", OrderAck{OrderID: "ord-1", Status: "filled"})
		default:
			t.Errorf("unexpected request %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := NewClient(testClientConfig(server.URL))

	if _, err := client.GetQuote(context.Background(), "AAPL"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := client.PlaceOrder(context.Background(), OrderRequest{
		ClientOrderID: "c-1",
		Symbol:        "AAPL",
		OptionSymbol:  "AAPL250718C00200000",
		Action:        "buy",
		Quantity:      1,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The fill invalidated the cached quote, so this lookup goes back
	// to the gateway.
	if _, err := client.GetQuote(context.Background(), "AAPL"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quoteHits != 2 {
		t.Fatalf("expected a fresh lookup after the fill, got %d hits", quoteHits)
	}
}

func TestClientPlaceOrderRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeAPIResponse(t, w, 2001, "insufficient buying power", nil)
	}))
	defer server.Close()

	client := NewClient(testClientConfig(server.URL))

	if _, err := client.PlaceOrder(context.Background(), OrderRequest{Symbol: "AAPL"}); err == nil {
		t.Fatalf("expected a rejection error")
	}
}
