package monitor

import (
	"fmt"
	"math"
	"time"

	"optionsengine/src/model"
)

// Exit rule names, in evaluation order. The order is fixed: profit
// targets are checked before the stop loss, then the time-based rules,
// with the hard expiration guard last.
const (
	RuleProfitTarget1 = "profit_target_1"
	RuleProfitTarget2 = "profit_target_2"
	RuleStopLoss      = "stop_loss"
	RuleMaxDaysHeld   = "max_days_to_hold"
	RuleMinDTE        = "min_dte_exit"
	RuleExpiration    = "expiration_guard"
)

// ExitDecision is the first exit rule a position tripped.
type ExitDecision struct {
	Rule     string
	Reason   string
	Partial  bool
	Quantity int // contracts to close; equals the full size unless Partial
}

// CheckExitConditions evaluates the exit rules in fixed order and
// returns the first one that fires, or nil when the position should
// stay open. The hard expiration guard runs even without an
// automation; every other rule needs its configured threshold.
func CheckExitConditions(position *model.Position, automation *model.Automation, now time.Time) *ExitDecision {
	if position == nil || !position.IsOpen() || position.CurrentPrice == nil {
		return nil
	}

	pnlPct := position.PnlPercentAt(*position.CurrentPrice)
	dte := position.DaysToExpiration(now)
	// dte is -1 both for equities and for option legs with no recorded
	// expiration, so the time rules key off the leg instead of the
	// sentinel. An already-expired leg has a negative dte and must still
	// trip the guard.
	leg := position.Kind().Leg()
	expires := leg != nil && !leg.Expiration.IsZero()

	if automation != nil {
		if automation.ProfitTarget1 > 0 && pnlPct >= automation.ProfitTarget1 {
			decision := &ExitDecision{
				Rule:     RuleProfitTarget1,
				Reason:   fmt.Sprintf("profit target 1 reached: +%.1f%% >= %.1f%%", pnlPct, automation.ProfitTarget1),
				Quantity: position.Quantity,
			}
			if automation.PartialExitEnabled && automation.PartialExitPercent > 0 && automation.PartialExitPercent < 100 {
				qty := int(math.Ceil(float64(position.Quantity) * automation.PartialExitPercent / 100))
				if qty > 0 && qty < position.Quantity {
					decision.Partial = true
					decision.Quantity = qty
				}
			}
			return decision
		}

		if target := automation.EffectiveProfitTarget2(); target > 0 && pnlPct >= target {
			return &ExitDecision{
				Rule:     RuleProfitTarget2,
				Reason:   fmt.Sprintf("profit target reached: +%.1f%% >= %.1f%%", pnlPct, target),
				Quantity: position.Quantity,
			}
		}

		// The stop loss compares as an absolute-value threshold, so
		// -15 and 15 configure the same stop.
		if stop := math.Abs(automation.StopLossPercent); stop > 0 && pnlPct <= -stop {
			return &ExitDecision{
				Rule:     RuleStopLoss,
				Reason:   fmt.Sprintf("stop loss breached: %.1f%% <= -%.1f%%", pnlPct, stop),
				Quantity: position.Quantity,
			}
		}

		if automation.MaxDaysToHold > 0 && position.DaysHeld(now) > automation.MaxDaysToHold {
			return &ExitDecision{
				Rule:     RuleMaxDaysHeld,
				Reason:   fmt.Sprintf("held %d days, max is %d", position.DaysHeld(now), automation.MaxDaysToHold),
				Quantity: position.Quantity,
			}
		}

		if automation.MinDTEExit > 0 && expires && dte <= automation.MinDTEExit {
			return &ExitDecision{
				Rule:     RuleMinDTE,
				Reason:   fmt.Sprintf("%d DTE at or below exit floor %d", dte, automation.MinDTEExit),
				Quantity: position.Quantity,
			}
		}
	}

	// Hard expiration guard, independent of any configuration.
	if expires && dte <= 1 {
		reason := fmt.Sprintf("option expires in %d day(s)", dte)
		if dte < 0 {
			reason = fmt.Sprintf("option expired %d day(s) ago", -dte)
		}
		return &ExitDecision{
			Rule:     RuleExpiration,
			Reason:   reason,
			Quantity: position.Quantity,
		}
	}

	return nil
}
