// Package scanner turns active automations into concrete trade
// candidates. Pure selection: it never writes, the controller hands
// its opportunities to the executor.
package scanner

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"optionsengine/src/marketdata"
	"optionsengine/src/model"
	"optionsengine/src/signals"
)

type automationStore interface {
	FindActiveByUser(ctx context.Context, userID uint) ([]model.Automation, error)
	FindByID(ctx context.Context, id uint) (*model.Automation, error)
}

type positionStore interface {
	FindOpenByUser(ctx context.Context, userID uint) ([]model.Position, error)
	FindOpenByUserAndSymbol(ctx context.Context, userID uint, symbol string) ([]model.Position, error)
}

type limitsProvider interface {
	GetRiskLimits(ctx context.Context, user *model.User) (*model.RiskLimits, error)
}

// Opportunity is an ephemeral trade candidate, consumed within the
// cycle that produced it and never persisted.
type Opportunity struct {
	User       *model.User
	Automation *model.Automation
	Symbol     string
	Contract   marketdata.OptionContract
	Expiration time.Time
	Signal     *signals.Signal
	Quantity   int // 0 = auto-size at execution
	Rationale  string
}

// Kind returns the instrument the opportunity trades.
func (o *Opportunity) Kind() model.InstrumentKind {
	return model.Option(model.OptionLeg{
		OptionSymbol: o.Contract.Symbol,
		Strike:       o.Contract.Strike,
		Expiration:   o.Expiration,
		Right:        o.Contract.Type,
	})
}

// Scanner evaluates automations against signals and option chains.
type Scanner struct {
	logger      *logrus.Entry
	automations automationStore
	positions   positionStore
	limits      limitsProvider
	oracle      signals.Oracle
	gateway     marketdata.Gateway
	now         func() time.Time
}

// New wires a scanner.
func New(logger *logrus.Entry, automations automationStore, positions positionStore, limits limitsProvider, oracle signals.Oracle, gateway marketdata.Gateway) *Scanner {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Scanner{
		logger:      logger,
		automations: automations,
		positions:   positions,
		limits:      limits,
		oracle:      oracle,
		gateway:     gateway,
		now:         time.Now,
	}
}

// WithNow overrides the clock. Tests only.
func (s *Scanner) WithNow(now func() time.Time) *Scanner {
	s.now = now
	return s
}

// Scan evaluates every active, unpaused automation for the user and
// returns the opportunities found this cycle. A failed evaluation
// skips that automation, never the scan.
func (s *Scanner) Scan(ctx context.Context, user *model.User) ([]Opportunity, error) {
	automations, err := s.automations.FindActiveByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	var opportunities []Opportunity
	for i := range automations {
		automation := automations[i]
		if !automation.Tradeable() {
			continue
		}

		opportunity, skip, err := s.evaluate(ctx, user, &automation, nil)
		if err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"automation_id": automation.ID,
				"symbol":        automation.Symbol,
			}).Warn("automation evaluation failed, skipping")
			continue
		}
		if opportunity == nil {
			s.logger.WithFields(logrus.Fields{
				"automation_id": automation.ID,
				"symbol":        automation.Symbol,
				"skip":          skip,
			}).Debug("automation not tradeable this cycle")
			continue
		}

		opportunities = append(opportunities, *opportunity)
	}

	return opportunities, nil
}

// evaluate runs the gate -> signal -> expiration -> contract pipeline
// for one automation. trace, when non-nil, records each step for the
// diagnostics endpoint.
func (s *Scanner) evaluate(ctx context.Context, user *model.User, automation *model.Automation, trace *Diagnosis) (*Opportunity, string, error) {
	// 1. Eligibility gate.
	symbolOpen, err := s.positions.FindOpenByUserAndSymbol(ctx, user.ID, automation.Symbol)
	if err != nil {
		return nil, "", err
	}
	if len(symbolOpen) > 0 && !automation.AllowMultiplePositions {
		skip := fmt.Sprintf("open position already exists in %s", automation.Symbol)
		trace.record("eligibility", false, skip)
		return nil, skip, nil
	}

	limits, err := s.limits.GetRiskLimits(ctx, user)
	if err != nil {
		return nil, "", err
	}
	allOpen, err := s.positions.FindOpenByUser(ctx, user.ID)
	if err != nil {
		return nil, "", err
	}
	if len(allOpen) >= limits.MaxOpenPositions {
		skip := fmt.Sprintf("open position cap (%d) already reached", limits.MaxOpenPositions)
		trace.record("eligibility", false, skip)
		return nil, skip, nil
	}
	if len(symbolOpen) >= limits.MaxPositionsPerSymbol {
		skip := fmt.Sprintf("per-symbol cap (%d) already reached", limits.MaxPositionsPerSymbol)
		trace.record("eligibility", false, skip)
		return nil, skip, nil
	}
	trace.record("eligibility", true, "eligible to trade")

	// 2. Signal.
	signal, err := s.oracle.GenerateSignals(ctx, automation.Symbol, signals.Params{
		MinConfidence: automation.MinConfidence,
		StrategyType:  automation.StrategyType,
	})
	if err != nil {
		skip := fmt.Sprintf("signal unavailable: %v", err)
		trace.record("signal", false, skip)
		return nil, skip, nil
	}
	if !signal.Recommended {
		skip := "signal not recommended"
		trace.record("signal", false, skip)
		return nil, skip, nil
	}
	if signal.Confidence < automation.MinConfidence {
		skip := fmt.Sprintf("confidence %.2f below minimum %.2f", signal.Confidence, automation.MinConfidence)
		trace.record("signal", false, skip)
		return nil, skip, nil
	}
	if !signal.Bullish() && !signal.Bearish() {
		skip := fmt.Sprintf("signal direction %q is not tradeable", signal.Direction)
		trace.record("signal", false, skip)
		return nil, skip, nil
	}
	trace.record("signal", true, fmt.Sprintf("%s with confidence %.2f", signal.Direction, signal.Confidence))

	// 3. Expiration selection.
	expirations, err := s.gateway.GetExpirations(ctx, automation.Symbol)
	if err != nil {
		skip := fmt.Sprintf("expirations unavailable: %v", err)
		trace.record("expiration", false, skip)
		return nil, skip, nil
	}
	expiration, ok := SelectExpiration(expirations, automation, s.now())
	if !ok {
		skip := fmt.Sprintf("no expiration within %d-%d DTE", automation.MinDTE, automation.MaxDTE)
		trace.record("expiration", false, skip)
		return nil, skip, nil
	}
	trace.record("expiration", true, expiration.Format("2006-01-02"))

	// 4. Contract selection.
	chain, err := s.gateway.GetOptionsChain(ctx, automation.Symbol, expiration.Format("2006-01-02"))
	if err != nil {
		skip := fmt.Sprintf("chain unavailable: %v", err)
		trace.record("contract", false, skip)
		return nil, skip, nil
	}
	survivors := FilterContracts(chain, automation, signal.Bullish())
	best := BestContract(survivors, automation)
	if best == nil {
		skip := fmt.Sprintf("no contract passed filters (%d candidates)", len(chain))
		trace.record("contract", false, skip)
		return nil, skip, nil
	}
	trace.record("contract", true, fmt.Sprintf("%s strike %.2f", best.Symbol, best.Strike))

	bestQuote := best.Quote()
	rationale := fmt.Sprintf("%s signal (%.0f%% confidence): %s; selected %s %.2f %s exp %s, premium %.2f, delta %.2f",
		signal.Direction, signal.Confidence*100, signal.Reason,
		automation.Symbol, best.Strike, best.Type, expiration.Format("2006-01-02"),
		bestQuote.Mid(), best.Greeks.Delta)

	return &Opportunity{
		User:       user,
		Automation: automation,
		Symbol:     automation.Symbol,
		Contract:   *best,
		Expiration: expiration,
		Signal:     signal,
		Quantity:   automation.Quantity,
		Rationale:  rationale,
	}, "", nil
}
