package scanner

import (
	"math"
	"sort"
	"strings"
	"time"

	"optionsengine/src/marketdata"
	"optionsengine/src/model"
)

// SelectExpiration picks the available expiration within the
// automation's DTE bounds that sits closest to its preferred DTE.
// Returns the zero time when none qualifies.
func SelectExpiration(expirations []string, automation *model.Automation, now time.Time) (time.Time, bool) {
	best := time.Time{}
	bestDistance := math.MaxInt32

	for _, raw := range expirations {
		expiration, err := time.Parse("2006-01-02", raw)
		if err != nil {
			continue
		}

		dte := model.DaysBetween(now, expiration)
		if dte < automation.MinDTE || dte > automation.MaxDTE {
			continue
		}

		distance := dte - automation.PreferredDTE
		if distance < 0 {
			distance = -distance
		}
		if distance < bestDistance {
			bestDistance = distance
			best = expiration
		}
	}

	return best, !best.IsZero()
}

// contractRight maps signal direction to the option right to trade.
func contractRight(bullish bool) string {
	if bullish {
		return model.RightCall
	}
	return model.RightPut
}

// FilterContracts applies the automation's entry filters to a chain:
// direction, premium ceiling, liquidity floors, spread cap, delta band.
func FilterContracts(chain []marketdata.OptionContract, automation *model.Automation, bullish bool) []marketdata.OptionContract {
	right := contractRight(bullish)

	var survivors []marketdata.OptionContract
	for i := range chain {
		contract := chain[i]

		if !strings.EqualFold(contract.Type, right) {
			continue
		}

		quote := contract.Quote()
		premium := quote.Mid()
		if premium <= 0 {
			continue
		}
		if automation.MaxPremium > 0 && premium > automation.MaxPremium {
			continue
		}
		if contract.Volume < automation.MinVolume {
			continue
		}
		if contract.OpenInterest < automation.MinOpenInterest {
			continue
		}
		if automation.MaxSpreadPct > 0 && quote.SpreadPercent() > automation.MaxSpreadPct {
			continue
		}

		delta := math.Abs(contract.Greeks.Delta)
		if delta < automation.MinDelta || delta > automation.MaxDelta {
			continue
		}

		survivors = append(survivors, contract)
	}

	return survivors
}

// ScoreContract ranks a surviving contract: liquidity raises the
// score, a wide spread and a delta far from the band center lower it.
func ScoreContract(contract *marketdata.OptionContract, automation *model.Automation) float64 {
	quote := contract.Quote()

	score := math.Log1p(float64(contract.Volume)) +
		0.5*math.Log1p(float64(contract.OpenInterest))
	score -= 0.3 * quote.SpreadPercent()

	bandCenter := (automation.MinDelta + automation.MaxDelta) / 2
	score -= 2 * math.Abs(math.Abs(contract.Greeks.Delta)-bandCenter)

	return score
}

// BestContract returns the highest-scoring survivor, or nil.
func BestContract(survivors []marketdata.OptionContract, automation *model.Automation) *marketdata.OptionContract {
	if len(survivors) == 0 {
		return nil
	}

	sort.SliceStable(survivors, func(i, j int) bool {
		return ScoreContract(&survivors[i], automation) > ScoreContract(&survivors[j], automation)
	})

	best := survivors[0]
	return &best
}
