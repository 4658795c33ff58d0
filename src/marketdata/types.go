package marketdata

import (
	"errors"

	"optionsengine/src/model"
)

// ErrQuoteUnavailable marks a gateway response that carried no usable
// price. Callers fall back through the price-resolution tiers instead
// of treating it as a failure.
var ErrQuoteUnavailable = errors.New("no usable quote available")

// Quote is a validated gateway quote. The client never returns a quote
// whose bid, ask and last are all unusable.
type Quote struct {
	Symbol string  `json:"symbol"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
	Last   float64 `json:"last"`
}

// Usable reports whether at least one of bid/ask/last carries a price.
func (q *Quote) Usable() bool {
	return q != nil && (q.Bid > 0 || q.Ask > 0 || q.Last > 0)
}

// Mid returns the best single price the quote offers: the bid/ask mid
// when both sides exist, otherwise last, otherwise whichever side is set.
func (q *Quote) Mid() float64 {
	switch {
	case q.Bid > 0 && q.Ask > 0:
		return (q.Bid + q.Ask) / 2
	case q.Last > 0:
		return q.Last
	case q.Ask > 0:
		return q.Ask
	default:
		return q.Bid
	}
}

// SpreadPercent returns the bid/ask spread as a percent of the mid,
// or 0 when either side is missing.
func (q *Quote) SpreadPercent() float64 {
	if q.Bid <= 0 || q.Ask <= 0 {
		return 0
	}
	mid := (q.Bid + q.Ask) / 2
	if mid == 0 {
		return 0
	}
	return (q.Ask - q.Bid) / mid * 100
}

// OptionContract is one row of an options chain.
type OptionContract struct {
	Symbol       string       `json:"symbol"` // OCC-style option symbol
	Underlying   string       `json:"underlying"`
	Strike       float64      `json:"strike"`
	Type         string       `json:"type"` // call | put
	Expiration   string       `json:"expiration"`
	Bid          float64      `json:"bid"`
	Ask          float64      `json:"ask"`
	Last         float64      `json:"last"`
	Volume       int          `json:"volume"`
	OpenInterest int          `json:"open_interest"`
	Greeks       model.Greeks `json:"greeks"`
}

// Quote converts the chain row into a Quote.
func (c *OptionContract) Quote() Quote {
	return Quote{Symbol: c.Symbol, Bid: c.Bid, Ask: c.Ask, Last: c.Last}
}

// OrderRequest is forwarded to the brokerage in live mode.
type OrderRequest struct {
	ClientOrderID string  `json:"client_order_id"`
	Symbol        string  `json:"symbol"`
	OptionSymbol  string  `json:"option_symbol,omitempty"`
	Action        string  `json:"action"` // buy | sell
	Quantity      int     `json:"quantity"`
	Price         float64 `json:"price,omitempty"` // 0 = market
}

// OrderAck is the brokerage acknowledgement for a live order.
type OrderAck struct {
	OrderID string  `json:"order_id"`
	Status  string  `json:"status"`
	Filled  int     `json:"filled"`
	AvgFill float64 `json:"avg_fill_price"`
}
