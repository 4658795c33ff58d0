package executor

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"optionsengine/src/marketdata"
	"optionsengine/src/model"
)

// DefaultSanityCeiling is the per-unit price above which a resolved
// option quote is treated as a misrouted underlying-stock quote and
// discarded. It is a defensive assertion against an upstream routing
// defect, not a business rule.
const DefaultSanityCeiling = 50.0

// Price resolution sources, recorded for logging and audit notes.
const (
	PriceSourceExplicit = "explicit"
	PriceSourceQuote    = "quote"
	PriceSourceChain    = "chain"
	PriceSourceFallback = "entry_fallback"
)

// PriceResolver resolves an execution price through the tiered,
// option-aware lookup chain: explicit price, direct quote, chain scan,
// entry-price fallback.
type PriceResolver struct {
	logger  *logrus.Entry
	gateway marketdata.Gateway
	ceiling float64
}

// NewPriceResolver builds a resolver with the default sanity ceiling.
func NewPriceResolver(logger *logrus.Entry, gateway marketdata.Gateway) *PriceResolver {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &PriceResolver{logger: logger, gateway: gateway, ceiling: DefaultSanityCeiling}
}

// WithCeiling overrides the option price sanity ceiling.
func (r *PriceResolver) WithCeiling(ceiling float64) *PriceResolver {
	r.ceiling = ceiling
	return r
}

// Resolve returns the price to execute at and the tier that produced
// it. explicit > 0 is trusted as-is. For option legs the underlying's
// stock quote is never accepted: if neither the option quote nor the
// chain yields a usable price, entryPrice is substituted. A resolved
// option price above the sanity ceiling is rejected the same way.
func (r *PriceResolver) Resolve(ctx context.Context, symbol string, kind model.InstrumentKind, explicit, entryPrice float64) (float64, string) {
	if explicit > 0 {
		return explicit, PriceSourceExplicit
	}

	if !kind.IsOption() {
		quote, err := r.gateway.GetQuote(ctx, symbol)
		if err != nil {
			r.logger.WithFields(logrus.Fields{
				"symbol": symbol,
				"tier":   PriceSourceQuote,
			}).WithError(err).Warn("equity quote unavailable, using entry price")
			return entryPrice, PriceSourceFallback
		}
		return quote.Mid(), PriceSourceQuote
	}

	leg := kind.Leg()

	if leg.OptionSymbol != "" {
		quote, err := r.gateway.GetQuote(ctx, leg.OptionSymbol)
		if err == nil && quote.Usable() {
			if price, ok := r.sanityCheck(leg.OptionSymbol, quote.Mid(), entryPrice); ok {
				return price, PriceSourceQuote
			}
			return entryPrice, PriceSourceFallback
		}
	}

	if price, ok := r.scanChain(ctx, symbol, leg); ok {
		if checked, sane := r.sanityCheck(symbol, price, entryPrice); sane {
			return checked, PriceSourceChain
		}
		return entryPrice, PriceSourceFallback
	}

	r.logger.WithFields(logrus.Fields{
		"symbol":        symbol,
		"option_symbol": leg.OptionSymbol,
	}).Warn("option price unresolved, using entry price")

	return entryPrice, PriceSourceFallback
}

// scanChain searches the full chain for the leg's expiration for a
// contract matching strike and right.
func (r *PriceResolver) scanChain(ctx context.Context, symbol string, leg *model.OptionLeg) (float64, bool) {
	if leg.Expiration.IsZero() || leg.Strike <= 0 {
		return 0, false
	}

	expiration := leg.Expiration.Format("2006-01-02")
	chain, err := r.gateway.GetOptionsChain(ctx, symbol, expiration)
	if err != nil {
		r.logger.WithFields(logrus.Fields{
			"symbol":     symbol,
			"expiration": expiration,
			"tier":       PriceSourceChain,
		}).WithError(err).Warn("chain scan failed")
		return 0, false
	}

	for i := range chain {
		contract := &chain[i]
		if contract.Strike != leg.Strike {
			continue
		}
		if !strings.EqualFold(contract.Type, leg.Right) {
			continue
		}
		quote := contract.Quote()
		if quote.Usable() {
			return quote.Mid(), true
		}
	}

	return 0, false
}

// sanityCheck rejects option prices above the ceiling. Such a value
// signals a bug in price routing, so it is logged at error severity
// and never trusted.
func (r *PriceResolver) sanityCheck(symbol string, price, entryPrice float64) (float64, bool) {
	if r.ceiling > 0 && price > r.ceiling {
		r.logger.WithFields(logrus.Fields{
			"symbol":      symbol,
			"price":       price,
			"ceiling":     r.ceiling,
			"entry_price": entryPrice,
		}).Error("resolved option price above sanity ceiling, substituting entry price")
		return 0, false
	}
	return price, true
}
