package risk

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"optionsengine/src/model"
	"optionsengine/src/utils"
)

type limitsStore interface {
	FindByUserID(ctx context.Context, userID uint) (*model.RiskLimits, error)
	Create(ctx context.Context, limits *model.RiskLimits) error
	Save(ctx context.Context, limits *model.RiskLimits) error
}

type positionStore interface {
	FindOpenByUser(ctx context.Context, userID uint) ([]model.Position, error)
	FindOpenByUserAndSymbol(ctx context.Context, userID uint, symbol string) ([]model.Position, error)
}

type tradeStore interface {
	RealizedPnlSince(ctx context.Context, userID uint, since time.Time) (float64, error)
}

// TradeRequest describes a candidate trade for validation.
type TradeRequest struct {
	Symbol   string
	Action   string // buy | sell
	Quantity int
	Price    float64
	Delta    float64
	Kind     model.InstrumentKind
}

// Verdict is the outcome of a validation. A failed check is an
// expected business outcome returned to the caller, not an error.
type Verdict struct {
	OK     bool
	Reason string
}

func reject(format string, args ...interface{}) Verdict {
	return Verdict{OK: false, Reason: fmt.Sprintf(format, args...)}
}

// PortfolioReport aggregates Greeks over open positions.
type PortfolioReport struct {
	OpenPositions int      `json:"open_positions"`
	Delta         float64  `json:"delta"`
	Theta         float64  `json:"theta"`
	Vega          float64  `json:"vega"`
	Violations    []string `json:"violations"`
}

// Manager enforces portfolio- and trade-level risk limits.
type Manager struct {
	logger    *logrus.Entry
	limits    limitsStore
	positions positionStore
	trades    tradeStore
	now       func() time.Time
}

// NewManager wires a risk manager over the given stores.
func NewManager(logger *logrus.Entry, limits limitsStore, positions positionStore, trades tradeStore) *Manager {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Manager{
		logger:    logger,
		limits:    limits,
		positions: positions,
		trades:    trades,
		now:       time.Now,
	}
}

// WithNow overrides the clock. Tests only.
func (m *Manager) WithNow(now func() time.Time) *Manager {
	m.now = now
	return m
}

// GetRiskLimits returns the user's limits row, lazily creating it with
// tolerance-scaled defaults on first access.
func (m *Manager) GetRiskLimits(ctx context.Context, user *model.User) (*model.RiskLimits, error) {
	if user == nil {
		return nil, fmt.Errorf("risk limits requested for nil user")
	}

	limits, err := m.limits.FindByUserID(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if limits != nil {
		return limits, nil
	}

	limits = DefaultLimitsFor(user)
	if err := m.limits.Create(ctx, limits); err != nil {
		return nil, err
	}

	m.logger.WithFields(logrus.Fields{
		"user_id":   user.ID,
		"tolerance": user.RiskTolerance,
	}).Info("risk limits lazily created")

	return limits, nil
}

// CascadeToleranceChange resets the user's limits to fresh defaults
// after a risk-tolerance change.
func (m *Manager) CascadeToleranceChange(ctx context.Context, user *model.User) (*model.RiskLimits, error) {
	existing, err := m.limits.FindByUserID(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	fresh := DefaultLimitsFor(user)
	if existing == nil {
		if err := m.limits.Create(ctx, fresh); err != nil {
			return nil, err
		}
		return fresh, nil
	}

	fresh.ID = existing.ID
	fresh.CreatedAt = existing.CreatedAt
	if err := m.limits.Save(ctx, fresh); err != nil {
		return nil, err
	}

	m.logger.WithField("user_id", user.ID).Info("risk limits cascaded after tolerance change")
	return fresh, nil
}

// ValidateTrade checks a candidate trade against the user's limits.
// Checks run in fixed order and the first failing one short-circuits:
// open-position cap, per-symbol cap, DTE bounds, Greeks caps, buy
// affordability, daily loss limit.
func (m *Manager) ValidateTrade(ctx context.Context, user *model.User, req TradeRequest) (Verdict, error) {
	if user == nil {
		return Verdict{}, fmt.Errorf("trade validation requested for nil user")
	}

	limits, err := m.GetRiskLimits(ctx, user)
	if err != nil {
		return Verdict{}, err
	}

	isBuy := req.Action == model.TradeActionBuy

	if isBuy {
		open, err := m.positions.FindOpenByUser(ctx, user.ID)
		if err != nil {
			return Verdict{}, err
		}
		if len(open) >= limits.MaxOpenPositions {
			return reject("maximum open positions (%d) reached", limits.MaxOpenPositions), nil
		}

		symbolOpen, err := m.positions.FindOpenByUserAndSymbol(ctx, user.ID, req.Symbol)
		if err != nil {
			return Verdict{}, err
		}
		if len(symbolOpen) >= limits.MaxPositionsPerSymbol {
			return reject("maximum positions for %s (%d) reached", req.Symbol, limits.MaxPositionsPerSymbol), nil
		}

		if req.Kind.IsOption() {
			dte := req.Kind.DaysToExpiration(m.now())
			if dte >= 0 && (dte < limits.MinDTE || dte > limits.MaxDTE) {
				return reject("expiration %d DTE outside allowed range %d-%d", dte, limits.MinDTE, limits.MaxDTE), nil
			}
		}

		if limits.MaxSingleTradeDelta > 0 && math.Abs(req.Delta) > limits.MaxSingleTradeDelta {
			return reject("trade delta %.2f exceeds cap %.2f", math.Abs(req.Delta), limits.MaxSingleTradeDelta), nil
		}

		projected := 0.0
		for i := range open {
			projected += open[i].CurrentGreeks.Delta * float64(open[i].Quantity)
		}
		projected += req.Delta * float64(req.Quantity)
		if limits.MaxPortfolioDelta > 0 && math.Abs(projected) > limits.MaxPortfolioDelta {
			return reject("portfolio delta %.1f would exceed cap %.1f", projected, limits.MaxPortfolioDelta), nil
		}

		cost := decimal.NewFromFloat(req.Price).
			Mul(decimal.NewFromInt(int64(req.Quantity))).
			Mul(decimal.NewFromFloat(req.Kind.Multiplier()))
		balance := decimal.NewFromFloat(user.PaperBalance)
		if cost.GreaterThan(balance) {
			return reject("insufficient balance: cost %s exceeds %s", cost.StringFixed(2), balance.StringFixed(2)), nil
		}
	}

	verdict, err := m.checkDailyLoss(ctx, user, limits)
	if err != nil {
		return Verdict{}, err
	}
	if !verdict.OK {
		return verdict, nil
	}

	return Verdict{OK: true}, nil
}

// checkDailyLoss compares realized losses since midnight against the
// daily limit. The denominator is max(starting, current) balance so
// the limit never shrinks as losses accrue.
func (m *Manager) checkDailyLoss(ctx context.Context, user *model.User, limits *model.RiskLimits) (Verdict, error) {
	if limits.MaxDailyLossPct <= 0 {
		return Verdict{OK: true}, nil
	}

	midnight := utils.ResetTime(m.now(), "day")

	realized, err := m.trades.RealizedPnlSince(ctx, user.ID, midnight)
	if err != nil {
		return Verdict{}, err
	}
	if realized >= 0 {
		return Verdict{OK: true}, nil
	}

	denominator := math.Max(user.PaperStartingBalance, user.PaperBalance)
	limit := decimal.NewFromFloat(denominator).
		Mul(decimal.NewFromFloat(limits.MaxDailyLossPct)).
		Div(decimal.NewFromInt(100))

	loss := decimal.NewFromFloat(-realized)
	if loss.GreaterThanOrEqual(limit) {
		return reject("daily loss %s has reached limit %s", loss.StringFixed(2), limit.StringFixed(2)), nil
	}

	return Verdict{OK: true}, nil
}

// CalculatePositionSize returns a quantity whose cost stays within
// min(balance x size percent, dollar cap), floored to one contract.
func (m *Manager) CalculatePositionSize(ctx context.Context, user *model.User, symbol string, price float64) (int, error) {
	if user == nil {
		return 0, fmt.Errorf("position sizing requested for nil user")
	}
	if price <= 0 {
		return 1, nil
	}

	limits, err := m.GetRiskLimits(ctx, user)
	if err != nil {
		return 0, err
	}

	budget := decimal.NewFromFloat(user.PaperBalance).
		Mul(decimal.NewFromFloat(limits.MaxPositionSizePct)).
		Div(decimal.NewFromInt(100))
	cap := decimal.NewFromFloat(limits.MaxPositionSizeUSD)
	if cap.GreaterThan(decimal.Zero) && budget.GreaterThan(cap) {
		budget = cap
	}

	costPerContract := decimal.NewFromFloat(price).Mul(decimal.NewFromFloat(model.OptionMultiplier))
	if costPerContract.LessThanOrEqual(decimal.Zero) {
		return 1, nil
	}

	quantity := int(budget.Div(costPerContract).IntPart())
	if quantity < 1 {
		quantity = 1
	}

	m.logger.WithFields(logrus.Fields{
		"user_id":  user.ID,
		"symbol":   symbol,
		"price":    price,
		"quantity": quantity,
	}).Debug("position size calculated")

	return quantity, nil
}

// CheckPortfolioLimits aggregates delta/theta/vega over open positions
// and lists cap violations.
func (m *Manager) CheckPortfolioLimits(ctx context.Context, user *model.User) (*PortfolioReport, error) {
	if user == nil {
		return nil, fmt.Errorf("portfolio check requested for nil user")
	}

	limits, err := m.GetRiskLimits(ctx, user)
	if err != nil {
		return nil, err
	}

	open, err := m.positions.FindOpenByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	report := &PortfolioReport{OpenPositions: len(open)}
	for i := range open {
		qty := float64(open[i].Quantity)
		report.Delta += open[i].CurrentGreeks.Delta * qty
		report.Theta += open[i].CurrentGreeks.Theta * qty
		report.Vega += open[i].CurrentGreeks.Vega * qty
	}

	if limits.MaxPortfolioDelta > 0 && math.Abs(report.Delta) > limits.MaxPortfolioDelta {
		report.Violations = append(report.Violations,
			fmt.Sprintf("portfolio delta %.1f exceeds cap %.1f", report.Delta, limits.MaxPortfolioDelta))
	}
	// Theta cap is negative: total decay must not drop below it.
	if limits.MaxPortfolioTheta < 0 && report.Theta < limits.MaxPortfolioTheta {
		report.Violations = append(report.Violations,
			fmt.Sprintf("portfolio theta %.1f below floor %.1f", report.Theta, limits.MaxPortfolioTheta))
	}
	if limits.MaxPortfolioVega > 0 && math.Abs(report.Vega) > limits.MaxPortfolioVega {
		report.Violations = append(report.Violations,
			fmt.Sprintf("portfolio vega %.1f exceeds cap %.1f", report.Vega, limits.MaxPortfolioVega))
	}

	return report, nil
}
