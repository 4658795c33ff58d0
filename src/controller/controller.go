// Package controller drives the engine's variable-cadence loop:
// monitor open positions, scan for entries, execute, alert.
package controller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"optionsengine/src/alerts"
	"optionsengine/src/executor"
	"optionsengine/src/model"
	"optionsengine/src/monitor"
	"optionsengine/src/scanner"
)

type userStore interface {
	FindActiveTraders(ctx context.Context) ([]model.User, error)
}

type positionMonitor interface {
	MonitorAllPositions(ctx context.Context) monitor.Result
}

type opportunityScanner interface {
	Scan(ctx context.Context, user *model.User) ([]scanner.Opportunity, error)
}

type ledger interface {
	ExecuteTrade(ctx context.Context, req executor.ExecuteRequest) (*model.Trade, error)
}

type alertGenerator interface {
	Generate(ctx context.Context, summaries []alerts.CycleSummary) error
}

// Status is the controller's externally visible state.
type Status struct {
	Running      bool        `json:"running"`
	MarketState  MarketState `json:"market_state"`
	Cadence      string      `json:"cadence"`
	CycleCount   uint64      `json:"cycle_count"`
	LastCycleAt  *time.Time  `json:"last_cycle_at,omitempty"`
	LastCycleErr string      `json:"last_cycle_error,omitempty"`
}

// MasterController owns the scheduling loop. It is explicitly
// constructed and injected at the composition root; start and stop are
// instance state, not process globals.
type MasterController struct {
	logger  *logrus.Entry
	cfg     Config
	users   userStore
	monitor positionMonitor
	scanner opportunityScanner
	ledger  ledger
	alerts  alertGenerator
	now     func() time.Time

	// cycleMu guarantees exactly one cycle executes at a time, so
	// on-demand triggers are safely re-entrant with the loop.
	cycleMu sync.Mutex

	mu          sync.Mutex
	running     bool
	cancel      context.CancelFunc
	cycleCount  uint64
	lastCycleAt *time.Time
	lastErr     string
}

// New wires a controller.
func New(logger *logrus.Entry, cfg Config, users userStore, positionMonitor positionMonitor, opportunityScanner opportunityScanner, tradeLedger ledger, alertGen alertGenerator) *MasterController {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &MasterController{
		logger:  logger,
		cfg:     cfg,
		users:   users,
		monitor: positionMonitor,
		scanner: opportunityScanner,
		ledger:  tradeLedger,
		alerts:  alertGen,
		now:     time.Now,
	}
}

// WithNow overrides the clock. Tests only.
func (c *MasterController) WithNow(now func() time.Time) *MasterController {
	c.now = now
	return c
}

// cadence returns the sleep interval and whether the next cycle is a
// full one, given the market state.
func (c *MasterController) cadence(state MarketState) (time.Duration, bool) {
	switch state {
	case MarketOpen:
		return c.cfg.FullCycleInterval, true
	case MarketPremarket, MarketAfterHours:
		return c.cfg.LightCycleInterval, false
	default:
		return c.cfg.ClosedCycleInterval, false
	}
}

// Start launches the scheduling loop. Starting a running controller is
// a no-op.
func (c *MasterController) Start(ctx context.Context) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	c.running = true
	c.cancel = cancel
	c.mu.Unlock()

	c.logger.Info("master controller started")
	go c.loop(loopCtx)
}

// Stop halts the loop. The in-flight cycle, if any, finishes first.
func (c *MasterController) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	c.cancel()
	c.running = false
	c.logger.Info("master controller stopped")
}

// Status reports the controller's current state.
func (c *MasterController) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := CurrentMarketState(c.now())
	interval, full := c.cadence(state)
	cadence := fmt.Sprintf("light every %s", interval)
	if full {
		cadence = fmt.Sprintf("full every %s", interval)
	}

	return Status{
		Running:      c.running,
		MarketState:  state,
		Cadence:      cadence,
		CycleCount:   c.cycleCount,
		LastCycleAt:  c.lastCycleAt,
		LastCycleErr: c.lastErr,
	}
}

// loop runs until the context dies. Every iteration re-inspects the
// market state, runs the right cycle, and sleeps for the cadence
// interval; a failed cycle is logged and followed by the cooldown,
// never a crash.
func (c *MasterController) loop(ctx context.Context) {
	for {
		state := CurrentMarketState(c.now())
		interval, full := c.cadence(state)

		err := c.RunCycle(ctx, full)

		wait := interval
		if err != nil && ctx.Err() == nil {
			c.logger.WithError(err).Warn("cycle failed, applying cooldown")
			wait = c.cfg.ErrorCooldown
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// RunCycle executes one cycle: monitor, then (full cycles only) scan,
// execute and alert. Exactly one cycle runs at a time; a panic inside
// is recovered and surfaced as the cycle error.
func (c *MasterController) RunCycle(ctx context.Context, full bool) (err error) {
	c.cycleMu.Lock()
	defer c.cycleMu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panic: %v", r)
		}

		now := c.now()
		c.mu.Lock()
		c.cycleCount++
		c.lastCycleAt = &now
		c.lastErr = ""
		if err != nil {
			c.lastErr = err.Error()
		}
		c.mu.Unlock()
	}()

	started := c.now()
	kind := "light"
	if full {
		kind = "full"
	}
	c.logger.WithField("kind", kind).Info("cycle started")

	monitorResult := c.monitor.MonitorAllPositions(ctx)

	if !full {
		c.logger.WithFields(logrus.Fields{
			"kind":     kind,
			"duration": c.now().Sub(started).String(),
		}).Info("cycle finished")
		return nil
	}

	users, err := c.users.FindActiveTraders(ctx)
	if err != nil {
		return fmt.Errorf("loading active traders: %w", err)
	}

	summaries := make([]alerts.CycleSummary, 0, len(users))
	for i := range users {
		user := users[i]
		summary := c.scanAndExecute(ctx, &user)
		summary.PositionsClosed = monitorResult.ClosedFor(user.ID)
		summary.PartialExits = monitorResult.PartialFor(user.ID)
		summaries = append(summaries, summary)
	}

	if err := c.alerts.Generate(ctx, summaries); err != nil {
		c.logger.WithError(err).Warn("alert generation failed")
	}

	c.logger.WithFields(logrus.Fields{
		"kind":     kind,
		"users":    len(users),
		"duration": c.now().Sub(started).String(),
	}).Info("cycle finished")

	return nil
}

// scanAndExecute runs the entry half of a full cycle for one user.
// Each opportunity executes in isolation: a rejection or failure on
// one never blocks the others.
func (c *MasterController) scanAndExecute(ctx context.Context, user *model.User) alerts.CycleSummary {
	summary := alerts.CycleSummary{UserID: user.ID}

	opportunities, err := c.scanner.Scan(ctx, user)
	if err != nil {
		c.logger.WithError(err).WithField("user_id", user.ID).Error("scan failed")
		summary.Errors++
		return summary
	}

	for i := range opportunities {
		opportunity := opportunities[i]

		automationID := opportunity.Automation.ID
		contractQuote := opportunity.Contract.Quote()
		_, err := c.ledger.ExecuteTrade(ctx, executor.ExecuteRequest{
			User:         user,
			Symbol:       opportunity.Symbol,
			Action:       model.TradeActionBuy,
			Quantity:     opportunity.Quantity,
			Kind:         opportunity.Kind(),
			Price:        contractQuote.Mid(),
			Greeks:       opportunity.Contract.Greeks,
			Source:       model.TradeSourceAutomation,
			AutomationID: &automationID,
		})
		if err != nil {
			if executor.IsValidationError(err) {
				c.logger.WithFields(logrus.Fields{
					"user_id":       user.ID,
					"automation_id": automationID,
					"reason":        err.Error(),
				}).Info("opportunity rejected by risk limits")
				summary.RiskViolations = append(summary.RiskViolations, err.Error())
			} else {
				c.logger.WithError(err).WithFields(logrus.Fields{
					"user_id":       user.ID,
					"automation_id": automationID,
				}).Error("opportunity execution failed, continuing")
				summary.Errors++
			}
			continue
		}

		summary.TradesExecuted++
	}

	return summary
}
