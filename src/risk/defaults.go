package risk

import (
	"github.com/shopspring/decimal"

	"optionsengine/src/model"
)

// Base limits for a moderate-tolerance paper account. Tolerance and
// trading mode scale from here.
var (
	baseMaxOpenPositions      = 10
	baseMaxPositionsPerSymbol = 2
	baseMaxPositionSizePct    = decimal.NewFromFloat(5)
	baseMaxPositionSizeUSD    = decimal.NewFromFloat(5000)
	baseMaxDailyLossPct       = decimal.NewFromFloat(3)
	baseMinDTE                = 7
	baseMaxDTE                = 60
	baseMaxPortfolioDelta     = decimal.NewFromFloat(50)
	baseMaxPortfolioTheta     = decimal.NewFromFloat(-100)
	baseMaxPortfolioVega      = decimal.NewFromFloat(200)
	baseMaxSingleTradeDelta   = decimal.NewFromFloat(0.8)
)

func toleranceScale(tolerance string) decimal.Decimal {
	switch tolerance {
	case model.RiskToleranceConservative:
		return decimal.NewFromFloat(0.5)
	case model.RiskToleranceAggressive:
		return decimal.NewFromFloat(2.0)
	default:
		return decimal.NewFromFloat(1.0)
	}
}

// DefaultLimitsFor builds the lazily created limits row for a user:
// tolerance scales the caps, live mode halves the dollar exposure.
func DefaultLimitsFor(user *model.User) *model.RiskLimits {
	scale := toleranceScale(user.RiskTolerance)

	sizeUSD := baseMaxPositionSizeUSD.Mul(scale)
	dailyLossPct := baseMaxDailyLossPct.Mul(scale)
	if !user.IsPaper() {
		sizeUSD = sizeUSD.Div(decimal.NewFromInt(2))
	}

	maxOpen := baseMaxOpenPositions
	perSymbol := baseMaxPositionsPerSymbol
	if user.RiskTolerance == model.RiskToleranceAggressive {
		maxOpen = baseMaxOpenPositions * 2
		perSymbol = baseMaxPositionsPerSymbol * 2
	} else if user.RiskTolerance == model.RiskToleranceConservative {
		maxOpen = baseMaxOpenPositions / 2
	}

	sizePct, _ := baseMaxPositionSizePct.Mul(scale).Float64()
	sizeDollars, _ := sizeUSD.Float64()
	lossPct, _ := dailyLossPct.Float64()
	delta, _ := baseMaxPortfolioDelta.Mul(scale).Float64()
	theta, _ := baseMaxPortfolioTheta.Mul(scale).Float64()
	vega, _ := baseMaxPortfolioVega.Mul(scale).Float64()
	tradeDelta, _ := baseMaxSingleTradeDelta.Float64()

	return &model.RiskLimits{
		UserID:                user.ID,
		MaxOpenPositions:      maxOpen,
		MaxPositionsPerSymbol: perSymbol,
		MaxPositionSizePct:    sizePct,
		MaxPositionSizeUSD:    sizeDollars,
		MaxDailyLossPct:       lossPct,
		MinDTE:                baseMinDTE,
		MaxDTE:                baseMaxDTE,
		MaxPortfolioDelta:     delta,
		MaxPortfolioTheta:     theta,
		MaxPortfolioVega:      vega,
		MaxSingleTradeDelta:   tradeDelta,
	}
}
