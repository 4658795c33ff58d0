// Package executor owns the trading ledger. Every balance, position
// and trade mutation in the system funnels through Executor.
package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"optionsengine/src/marketdata"
	"optionsengine/src/model"
	"optionsengine/src/repository"
	"optionsengine/src/risk"
)

type riskManager interface {
	ValidateTrade(ctx context.Context, user *model.User, req risk.TradeRequest) (risk.Verdict, error)
	CalculatePositionSize(ctx context.Context, user *model.User, symbol string, price float64) (int, error)
}

type automationCounter interface {
	IncrementExecutionCount(ctx context.Context, id uint, at time.Time) error
}

// ExecuteRequest describes one fill for the ledger.
type ExecuteRequest struct {
	User     *model.User
	Symbol   string
	Action   string // buy | sell
	Quantity int    // 0 = auto-size (buys only)
	Kind     model.InstrumentKind
	Price    float64 // 0 = resolve via market data
	Greeks   model.Greeks

	Source       string
	AutomationID *uint

	// SkipRiskCheck bypasses validation and sizing. Exits use this so
	// a close is never blocked by entry-side limits.
	SkipRiskCheck bool
}

// Executor is the sole ledger authority: it validates, resolves the
// execution price, simulates or places the order, and commits the
// Trade row together with its Position update in one transaction.
type Executor struct {
	logger      *logrus.Entry
	db          *gorm.DB
	positions   *repository.PositionRepository
	gateway     marketdata.Gateway
	resolver    *PriceResolver
	risk        riskManager
	automations automationCounter
	now         func() time.Time

	mu        sync.Mutex
	userLocks map[uint]*sync.Mutex
}

// New wires an executor. db is the main gorm handle used for fill
// transactions.
func New(logger *logrus.Entry, db *gorm.DB, gateway marketdata.Gateway, riskMgr riskManager, automations automationCounter) *Executor {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Executor{
		logger:      logger,
		db:          db,
		positions:   repository.NewPositionRepository().WithDB(db),
		gateway:     gateway,
		resolver:    NewPriceResolver(logger, gateway),
		risk:        riskMgr,
		automations: automations,
		now:         time.Now,
	}
}

// WithNow overrides the clock. Tests only.
func (e *Executor) WithNow(now func() time.Time) *Executor {
	e.now = now
	return e
}

// Resolver exposes the price resolver so the monitor refreshes prices
// through the exact same tiers as fills.
func (e *Executor) Resolver() *PriceResolver {
	return e.resolver
}

// userLock serializes ledger writes per user.
func (e *Executor) userLock(userID uint) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.userLocks == nil {
		e.userLocks = make(map[uint]*sync.Mutex)
	}
	lock, ok := e.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		e.userLocks[userID] = lock
	}
	return lock
}

// ExecuteTrade executes one fill: validate, resolve price, update
// ledger, record. The Trade row and its Position update commit
// together, so a crash mid-operation cannot split them.
func (e *Executor) ExecuteTrade(ctx context.Context, req ExecuteRequest) (*model.Trade, error) {
	if req.User == nil {
		return nil, fmt.Errorf("execute trade: nil user")
	}
	if req.Action != model.TradeActionBuy && req.Action != model.TradeActionSell {
		return nil, fmt.Errorf("execute trade: unknown action %q", req.Action)
	}
	if req.Symbol == "" {
		return nil, fmt.Errorf("execute trade: empty symbol")
	}

	lock := e.userLock(req.User.ID)
	lock.Lock()
	defer lock.Unlock()

	leg := req.Kind.Leg()
	position, err := e.findMatchingPosition(ctx, req)
	if err != nil {
		return nil, err
	}

	if req.Action == model.TradeActionSell && (position == nil || !position.IsOpen()) {
		return nil, &ValidationError{Reason: fmt.Sprintf("no open position in %s to sell", req.Symbol)}
	}

	entryPrice := 0.0
	if position != nil {
		entryPrice = position.EntryPrice
	}

	price, priceSource := e.resolver.Resolve(ctx, req.Symbol, req.Kind, req.Price, entryPrice)
	if price <= 0 {
		return nil, fmt.Errorf("execute trade: no price available for %s: %w", req.Symbol, marketdata.ErrQuoteUnavailable)
	}

	quantity := req.Quantity
	if !req.SkipRiskCheck {
		if quantity <= 0 && req.Action == model.TradeActionBuy {
			quantity, err = e.risk.CalculatePositionSize(ctx, req.User, req.Symbol, price)
			if err != nil {
				return nil, err
			}
		}

		verdict, err := e.risk.ValidateTrade(ctx, req.User, risk.TradeRequest{
			Symbol:   req.Symbol,
			Action:   req.Action,
			Quantity: quantity,
			Price:    price,
			Delta:    req.Greeks.Delta,
			Kind:     req.Kind,
		})
		if err != nil {
			return nil, err
		}
		if !verdict.OK {
			e.logger.WithFields(logrus.Fields{
				"user_id": req.User.ID,
				"symbol":  req.Symbol,
				"action":  req.Action,
				"reason":  verdict.Reason,
			}).Info("trade rejected by risk limits")
			return nil, &ValidationError{Reason: verdict.Reason}
		}
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("execute trade: no quantity for %s %s", req.Action, req.Symbol)
	}

	if req.Action == model.TradeActionSell && position != nil && quantity > position.Quantity {
		quantity = position.Quantity
	}

	clientOrderID := uuid.NewString()

	// Live mode forwards the order to the brokerage and skips the
	// paper-ledger simulation; the fill still lands in the ledger.
	if !req.User.IsPaper() {
		orderReq := marketdata.OrderRequest{
			ClientOrderID: clientOrderID,
			Symbol:        req.Symbol,
			Action:        req.Action,
			Quantity:      quantity,
		}
		if leg != nil {
			orderReq.OptionSymbol = leg.OptionSymbol
		}
		ack, err := e.gateway.PlaceOrder(ctx, orderReq)
		if err != nil {
			return nil, fmt.Errorf("live order placement failed: %w", err)
		}
		if ack.AvgFill > 0 {
			price = ack.AvgFill
		}
	}

	trade := &model.Trade{
		UserID:        req.User.ID,
		AutomationID:  req.AutomationID,
		Symbol:        req.Symbol,
		Action:        req.Action,
		Quantity:      quantity,
		Price:         price,
		GreeksAtTrade: req.Greeks,
		Source:        req.Source,
		ClientOrderID: clientOrderID,
		ExecutedAt:    e.now(),
	}
	if leg != nil {
		trade.OptionSymbol = leg.OptionSymbol
		trade.Strike = leg.Strike
		trade.Right = leg.Right
		if !leg.Expiration.IsZero() {
			expiration := leg.Expiration
			trade.Expiration = &expiration
		}
	}

	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if req.Action == model.TradeActionBuy {
			return e.applyBuy(tx, req.User, trade, position)
		}
		return e.applySell(tx, req.User, trade, position)
	})
	if err != nil {
		return nil, err
	}

	if req.AutomationID != nil && req.Action == model.TradeActionBuy && e.automations != nil {
		if err := e.automations.IncrementExecutionCount(ctx, *req.AutomationID, trade.ExecutedAt); err != nil {
			e.logger.WithError(err).WithField("automation_id", *req.AutomationID).
				Warn("failed to bump automation execution count")
		}
	}

	e.logger.WithFields(logrus.Fields{
		"user_id":      req.User.ID,
		"symbol":       req.Symbol,
		"action":       req.Action,
		"quantity":     quantity,
		"price":        price,
		"price_source": priceSource,
		"trade_id":     trade.ID,
	}).Info("trade executed")

	return trade, nil
}

// findMatchingPosition locates the open position this fill grows or
// shrinks, keyed by the instrument.
func (e *Executor) findMatchingPosition(ctx context.Context, req ExecuteRequest) (*model.Position, error) {
	if leg := req.Kind.Leg(); leg != nil {
		return e.positions.OpenPositionMatching(ctx, req.User.ID, req.Symbol, leg.OptionSymbol, leg.Strike, leg.Right)
	}
	return e.positions.OpenPositionMatching(ctx, req.User.ID, req.Symbol, "", 0, "")
}

// applyBuy opens or grows a position and debits the paper balance.
func (e *Executor) applyBuy(tx *gorm.DB, user *model.User, trade *model.Trade, position *model.Position) error {
	now := e.now()

	if position == nil {
		position = &model.Position{
			UserID:       user.ID,
			AutomationID: trade.AutomationID,
			Symbol:       trade.Symbol,
			OptionSymbol: trade.OptionSymbol,
			Strike:       trade.Strike,
			Expiration:   trade.Expiration,
			Right:        trade.Right,
			Quantity:     trade.Quantity,
			EntryPrice:   trade.Price,
			EntryGreeks:  trade.GreeksAtTrade,
			Status:       model.PositionStatusOpen,
			OpenedAt:     now,
		}
		if err := tx.Create(position).Error; err != nil {
			return err
		}
	} else {
		// Size-weighted average entry price across fills.
		oldQty := float64(position.Quantity)
		newQty := float64(trade.Quantity)
		position.EntryPrice = (oldQty*position.EntryPrice + newQty*trade.Price) / (oldQty + newQty)
		position.Quantity += trade.Quantity
		if err := tx.Model(&model.Position{}).
			Where("id = ?", position.ID).
			Updates(map[string]interface{}{
				"quantity":    position.Quantity,
				"entry_price": position.EntryPrice,
			}).Error; err != nil {
			return err
		}
	}

	trade.PositionID = &position.ID
	if err := tx.Create(trade).Error; err != nil {
		return err
	}

	if user.IsPaper() {
		user.PaperBalance -= trade.Notional()
		if err := tx.Model(&model.User{}).
			Where("id = ?", user.ID).
			Update("paper_balance", user.PaperBalance).Error; err != nil {
			return err
		}
	}

	return nil
}

// applySell shrinks or closes the position, stamps realized P&L, and
// credits the paper balance.
func (e *Executor) applySell(tx *gorm.DB, user *model.User, trade *model.Trade, position *model.Position) error {
	now := e.now()

	realized := (trade.Price - position.EntryPrice) * float64(trade.Quantity) * position.Multiplier()
	trade.RealizedPnl = &realized
	trade.PositionID = &position.ID

	remaining := position.Quantity - trade.Quantity
	updates := map[string]interface{}{
		"quantity": remaining,
	}
	if remaining <= 0 {
		updates["quantity"] = 0
		updates["status"] = model.PositionStatusClosed
		updates["closed_at"] = now
		updates["realized_pnl"] = realized
		updates["current_price"] = trade.Price
		updates["unrealized_pnl"] = 0.0
	}
	if err := tx.Model(&model.Position{}).
		Where("id = ? AND status = ?", position.ID, model.PositionStatusOpen).
		Updates(updates).Error; err != nil {
		return err
	}

	if err := tx.Create(trade).Error; err != nil {
		return err
	}

	if user.IsPaper() {
		user.PaperBalance += trade.Notional()
		if err := tx.Model(&model.User{}).
			Where("id = ?", user.ID).
			Update("paper_balance", user.PaperBalance).Error; err != nil {
			return err
		}
	}

	return nil
}

// ClosePosition sells the full remaining quantity through the same
// tiered price resolution, skipping entry-side risk checks. Closing an
// already-closed position is a no-op.
func (e *Executor) ClosePosition(ctx context.Context, user *model.User, position *model.Position, exitPrice float64, reason, source string) (*model.Trade, error) {
	if position == nil {
		return nil, fmt.Errorf("close position: nil position")
	}
	if !position.IsOpen() {
		e.logger.WithFields(logrus.Fields{
			"position_id": position.ID,
			"status":      position.Status,
		}).Debug("close requested for non-open position, skipping")
		return nil, nil
	}

	var expiration *time.Time
	if position.Expiration != nil {
		expiration = position.Expiration
	}
	kind := model.ResolveInstrumentKind(position.OptionSymbol, position.Right, position.Strike, expiration, position.Right)

	trade, err := e.ExecuteTrade(ctx, ExecuteRequest{
		User:          user,
		Symbol:        position.Symbol,
		Action:        model.TradeActionSell,
		Quantity:      position.Quantity,
		Kind:          kind,
		Price:         exitPrice,
		Greeks:        position.CurrentGreeks,
		Source:        source,
		AutomationID:  position.AutomationID,
		SkipRiskCheck: true,
	})
	if err != nil {
		return nil, err
	}

	if reason != "" {
		note := fmt.Sprintf("closed: %s", reason)
		if err := e.positions.AppendNote(ctx, position.ID, note); err != nil {
			e.logger.WithError(err).WithField("position_id", position.ID).
				Warn("failed to record close reason")
		}
	}

	return trade, nil
}
