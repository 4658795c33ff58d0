// Package monitor refreshes open positions and drives the exit state
// machine: OPEN -> CLOSED once an exit condition fires, OPEN -> OPEN
// on a plain refresh.
package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"optionsengine/src/executor"
	"optionsengine/src/marketdata"
	"optionsengine/src/model"
)

// corruptPriceRatio flags a stored current price implausibly small
// against the entry price (a known corruption from a bad upstream
// fill), forcing a fresh lookup.
const corruptPriceRatio = 0.01

type positionStore interface {
	FindAllOpen(ctx context.Context) ([]model.Position, error)
	FindByID(ctx context.Context, id uint) (*model.Position, error)
	UpdateMarketData(ctx context.Context, position *model.Position) error
}

type userStore interface {
	FindByID(ctx context.Context, id uint) (*model.User, error)
}

type automationStore interface {
	FindByID(ctx context.Context, id uint) (*model.Automation, error)
	IncrementCloseCount(ctx context.Context, id uint) error
}

type ledger interface {
	ExecuteTrade(ctx context.Context, req executor.ExecuteRequest) (*model.Trade, error)
	ClosePosition(ctx context.Context, user *model.User, position *model.Position, exitPrice float64, reason, source string) (*model.Trade, error)
	Resolver() *executor.PriceResolver
}

// Result summarizes one monitor pass. Closed and Partial are the
// system-wide totals; the per-user maps break them down by position
// owner so downstream reporting never attributes one user's closes to
// another.
type Result struct {
	Checked int
	Closed  int
	Partial int
	Errors  []error

	ClosedByUser  map[uint]int
	PartialByUser map[uint]int
}

// ClosedFor returns the number of full closes for one user.
func (r Result) ClosedFor(userID uint) int {
	return r.ClosedByUser[userID]
}

// PartialFor returns the number of partial exits for one user.
func (r Result) PartialFor(userID uint) int {
	return r.PartialByUser[userID]
}

// Monitor owns the per-position refresh-then-check sequence.
type Monitor struct {
	logger      *logrus.Entry
	positions   positionStore
	users       userStore
	automations automationStore
	gateway     marketdata.Gateway
	ledger      ledger
	now         func() time.Time
}

// New wires a position monitor.
func New(logger *logrus.Entry, positions positionStore, users userStore, automations automationStore, gateway marketdata.Gateway, ledger ledger) *Monitor {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Monitor{
		logger:      logger,
		positions:   positions,
		users:       users,
		automations: automations,
		gateway:     gateway,
		ledger:      ledger,
		now:         time.Now,
	}
}

// WithNow overrides the clock. Tests only.
func (m *Monitor) WithNow(now func() time.Time) *Monitor {
	m.now = now
	return m
}

// UpdatePositionData refreshes price and Greeks through the same
// tiered resolution fills use, self-healing an implausibly small
// stored price by discarding it before the lookup.
func (m *Monitor) UpdatePositionData(ctx context.Context, position *model.Position) error {
	if position == nil || !position.IsOpen() {
		return nil
	}

	if position.CurrentPrice != nil && position.EntryPrice > 0 &&
		*position.CurrentPrice < position.EntryPrice*corruptPriceRatio {
		m.logger.WithFields(logrus.Fields{
			"position_id":   position.ID,
			"current_price": *position.CurrentPrice,
			"entry_price":   position.EntryPrice,
		}).Warn("implausible current price detected, forcing fresh lookup")
		position.CurrentPrice = nil
	}

	kind := position.Kind()
	price, source := m.ledger.Resolver().Resolve(ctx, position.Symbol, kind, 0, position.EntryPrice)
	if price <= 0 {
		return fmt.Errorf("position %d: %w", position.ID, marketdata.ErrQuoteUnavailable)
	}

	position.CurrentPrice = &price
	position.UnrealizedPnl = position.PnlAt(price)

	if kind.IsOption() {
		m.refreshGreeks(ctx, position, kind.Leg())
	}

	if err := m.positions.UpdateMarketData(ctx, position); err != nil {
		return err
	}

	m.logger.WithFields(logrus.Fields{
		"position_id":    position.ID,
		"price":          price,
		"price_source":   source,
		"unrealized_pnl": position.UnrealizedPnl,
	}).Debug("position refreshed")

	return nil
}

// refreshGreeks is best effort: a failed chain lookup keeps the last
// stored Greeks rather than blocking the price refresh.
func (m *Monitor) refreshGreeks(ctx context.Context, position *model.Position, leg *model.OptionLeg) {
	if leg.Expiration.IsZero() {
		return
	}

	chain, err := m.gateway.GetOptionsChain(ctx, position.Symbol, leg.Expiration.Format("2006-01-02"))
	if err != nil {
		m.logger.WithError(err).WithField("position_id", position.ID).
			Debug("greeks refresh skipped, chain unavailable")
		return
	}

	for i := range chain {
		if chain[i].Strike == leg.Strike && strings.EqualFold(chain[i].Type, leg.Right) {
			position.CurrentGreeks = chain[i].Greeks
			return
		}
	}
}

// CheckPosition runs the refresh-then-check sequence for one position
// and executes the exit when a rule fires. Safe to call concurrently
// with the scheduled loop: a position already closed by another pass
// is a no-op, never a double balance adjustment.
func (m *Monitor) CheckPosition(ctx context.Context, position *model.Position) (*ExitDecision, error) {
	// Re-read so an on-demand call racing the loop sees the latest state.
	fresh, err := m.positions.FindByID(ctx, position.ID)
	if err != nil {
		return nil, err
	}
	if fresh == nil || !fresh.IsOpen() {
		return nil, nil
	}
	position = fresh

	if err := m.UpdatePositionData(ctx, position); err != nil {
		return nil, err
	}

	var automation *model.Automation
	if position.AutomationID != nil {
		automation, err = m.automations.FindByID(ctx, *position.AutomationID)
		if err != nil {
			return nil, err
		}
	}

	decision := CheckExitConditions(position, automation, m.now())
	if decision == nil {
		return nil, nil
	}

	user, err := m.users.FindByID(ctx, position.UserID)
	if err != nil {
		return decision, err
	}
	if user == nil {
		return decision, fmt.Errorf("position %d: owner %d not found", position.ID, position.UserID)
	}

	exitPrice := 0.0
	if position.CurrentPrice != nil {
		exitPrice = *position.CurrentPrice
	}

	if decision.Partial {
		_, err = m.ledger.ExecuteTrade(ctx, executor.ExecuteRequest{
			User:          user,
			Symbol:        position.Symbol,
			Action:        model.TradeActionSell,
			Quantity:      decision.Quantity,
			Kind:          position.Kind(),
			Price:         exitPrice,
			Greeks:        position.CurrentGreeks,
			Source:        model.TradeSourceMonitor,
			AutomationID:  position.AutomationID,
			SkipRiskCheck: true,
		})
	} else {
		_, err = m.ledger.ClosePosition(ctx, user, position, exitPrice, decision.Reason, model.TradeSourceMonitor)
	}
	if err != nil {
		return decision, err
	}

	m.logger.WithFields(logrus.Fields{
		"position_id": position.ID,
		"rule":        decision.Rule,
		"partial":     decision.Partial,
		"quantity":    decision.Quantity,
	}).Info("exit condition met, position trimmed or closed")

	if position.AutomationID != nil {
		if err := m.automations.IncrementCloseCount(ctx, *position.AutomationID); err != nil {
			m.logger.WithError(err).WithField("automation_id", *position.AutomationID).
				Warn("failed to bump automation close count")
		}
	}

	return decision, nil
}

// MonitorAllPositions scans every open position system-wide. Failures
// are isolated per position so one bad position never aborts the rest.
func (m *Monitor) MonitorAllPositions(ctx context.Context) Result {
	result := Result{
		ClosedByUser:  map[uint]int{},
		PartialByUser: map[uint]int{},
	}

	positions, err := m.positions.FindAllOpen(ctx)
	if err != nil {
		result.Errors = append(result.Errors, err)
		return result
	}

	for i := range positions {
		position := positions[i]
		result.Checked++

		decision, err := m.CheckPosition(ctx, &position)
		if err != nil {
			m.logger.WithError(err).WithField("position_id", position.ID).
				Error("position check failed, continuing with the rest")
			result.Errors = append(result.Errors, fmt.Errorf("position %d: %w", position.ID, err))
			continue
		}

		if decision != nil {
			if decision.Partial {
				result.Partial++
				result.PartialByUser[position.UserID]++
			} else {
				result.Closed++
				result.ClosedByUser[position.UserID]++
			}
		}
	}

	m.logger.WithFields(logrus.Fields{
		"checked": result.Checked,
		"closed":  result.Closed,
		"partial": result.Partial,
		"errors":  len(result.Errors),
	}).Info("monitor pass finished")

	return result
}
