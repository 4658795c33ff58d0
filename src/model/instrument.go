package model

import (
	"strings"
	"time"
)

const (
	RightCall = "call"
	RightPut  = "put"

	// EquityMultiplier and OptionMultiplier convert a per-unit price
	// into notional cost for one unit of the instrument.
	EquityMultiplier = 1.0
	OptionMultiplier = 100.0
)

// InstrumentKind classifies what a trade or position actually holds.
// It is resolved once at construction; downstream code switches on the
// kind instead of re-inferring it from whichever option fields happen
// to be set.
type InstrumentKind struct {
	optionLeg *OptionLeg
}

// OptionLeg describes a single option contract leg.
type OptionLeg struct {
	OptionSymbol string
	Strike       float64
	Expiration   time.Time
	Right        string // call | put
}

// Equity returns the kind for a plain stock instrument.
func Equity() InstrumentKind {
	return InstrumentKind{}
}

// Option returns the kind for an option leg.
func Option(leg OptionLeg) InstrumentKind {
	return InstrumentKind{optionLeg: &leg}
}

// ResolveInstrumentKind collapses the legacy overlapping signals for
// "is this an option" into one classification: an explicit option
// symbol, a contract type of call/put/option, or a simultaneous
// strike and expiration all mean an option leg.
func ResolveInstrumentKind(optionSymbol, contractType string, strike float64, expiration *time.Time, right string) InstrumentKind {
	ct := strings.ToLower(strings.TrimSpace(contractType))
	isOption := optionSymbol != "" ||
		ct == RightCall || ct == RightPut || ct == "option" ||
		(strike > 0 && expiration != nil)

	if !isOption {
		return Equity()
	}

	leg := OptionLeg{
		OptionSymbol: optionSymbol,
		Strike:       strike,
		Right:        right,
	}
	if leg.Right == "" && (ct == RightCall || ct == RightPut) {
		leg.Right = ct
	}
	if expiration != nil {
		leg.Expiration = *expiration
	}
	return Option(leg)
}

// IsOption reports whether the instrument carries an option leg.
func (k InstrumentKind) IsOption() bool {
	return k.optionLeg != nil
}

// Leg returns the option leg, or nil for equities.
func (k InstrumentKind) Leg() *OptionLeg {
	return k.optionLeg
}

// Multiplier returns the contract multiplier for the instrument.
func (k InstrumentKind) Multiplier() float64 {
	if k.optionLeg != nil {
		return OptionMultiplier
	}
	return EquityMultiplier
}

// DaysToExpiration returns whole days until the leg expires, measured
// from now. Equities return -1.
func (k InstrumentKind) DaysToExpiration(now time.Time) int {
	if k.optionLeg == nil || k.optionLeg.Expiration.IsZero() {
		return -1
	}
	return DaysBetween(now, k.optionLeg.Expiration)
}

// DaysBetween returns whole calendar days from a to b, negative when b
// is in the past.
func DaysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	start := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	end := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(end.Sub(start).Hours() / 24)
}
