package monitor

import (
	"strings"
	"testing"
	"time"

	"optionsengine/src/model"
)

func openPosition(entry, current float64, quantity int) *model.Position {
	expiration := time.Date(2025, 7, 18, 0, 0, 0, 0, time.UTC)
	return &model.Position{
		ID:           1,
		UserID:       1,
		Symbol:       "AAPL",
		OptionSymbol: "AAPL250718C00200000",
		Strike:       200,
		Expiration:   &expiration,
		Right:        "call",
		Quantity:     quantity,
		EntryPrice:   entry,
		CurrentPrice: &current,
		Status:       model.PositionStatusOpen,
		OpenedAt:     time.Date(2025, 6, 10, 14, 30, 0, 0, time.UTC),
	}
}

func TestCheckExitConditionsProfitAndStop(t *testing.T) {
	now := time.Date(2025, 6, 16, 10, 0, 0, 0, time.UTC)
	automation := &model.Automation{
		ProfitTarget1:   25,
		StopLossPercent: -15,
	}

	tests := []struct {
		name     string
		current  float64
		wantRule string
	}{
		{"profit target hit", 6.30, RuleProfitTarget1},
		{"stop loss breached", 4.20, RuleStopLoss},
		{"small gain holds", 5.10, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			position := openPosition(5.00, tt.current, 2)

			decision := CheckExitConditions(position, automation, now)
			if tt.wantRule == "" {
				if decision != nil {
					t.Fatalf("expected position to stay open, got %+v", decision)
				}
				return
			}
			if decision == nil {
				t.Fatalf("expected rule %s to fire", tt.wantRule)
			}
			if decision.Rule != tt.wantRule {
				t.Fatalf("expected rule %s, got %s", tt.wantRule, decision.Rule)
			}
			if decision.Partial {
				t.Fatalf("expected a full exit")
			}
			if decision.Quantity != position.Quantity {
				t.Fatalf("expected full quantity %d, got %d", position.Quantity, decision.Quantity)
			}
		})
	}
}

func TestCheckExitConditionsPartialExit(t *testing.T) {
	now := time.Date(2025, 6, 16, 10, 0, 0, 0, time.UTC)
	automation := &model.Automation{
		ProfitTarget1:      25,
		PartialExitEnabled: true,
		PartialExitPercent: 50,
	}

	position := openPosition(5.00, 6.30, 10)

	decision := CheckExitConditions(position, automation, now)
	if decision == nil || decision.Rule != RuleProfitTarget1 {
		t.Fatalf("expected profit target 1, got %+v", decision)
	}
	if !decision.Partial {
		t.Fatalf("expected a partial exit")
	}
	if decision.Quantity != 5 {
		t.Fatalf("expected half the position, got %d", decision.Quantity)
	}
}

func TestCheckExitConditionsPartialRoundsUp(t *testing.T) {
	now := time.Date(2025, 6, 16, 10, 0, 0, 0, time.UTC)
	automation := &model.Automation{
		ProfitTarget1:      25,
		PartialExitEnabled: true,
		PartialExitPercent: 50,
	}

	position := openPosition(5.00, 6.30, 3)

	decision := CheckExitConditions(position, automation, now)
	if decision == nil || !decision.Partial {
		t.Fatalf("expected a partial exit, got %+v", decision)
	}
	if decision.Quantity != 2 {
		t.Fatalf("expected ceil(1.5) = 2 contracts, got %d", decision.Quantity)
	}
}

func TestCheckExitConditionsSingleContractNeverPartial(t *testing.T) {
	now := time.Date(2025, 6, 16, 10, 0, 0, 0, time.UTC)
	automation := &model.Automation{
		ProfitTarget1:      25,
		PartialExitEnabled: true,
		PartialExitPercent: 50,
	}

	position := openPosition(5.00, 6.30, 1)

	decision := CheckExitConditions(position, automation, now)
	if decision == nil {
		t.Fatalf("expected profit target to fire")
	}
	if decision.Partial {
		t.Fatalf("a one-contract position cannot exit partially")
	}
	if decision.Quantity != 1 {
		t.Fatalf("expected full quantity 1, got %d", decision.Quantity)
	}
}

func TestCheckExitConditionsLegacyProfitTarget(t *testing.T) {
	now := time.Date(2025, 6, 16, 10, 0, 0, 0, time.UTC)
	automation := &model.Automation{ProfitTargetPercent: 20}

	position := openPosition(5.00, 6.30, 2)

	decision := CheckExitConditions(position, automation, now)
	if decision == nil || decision.Rule != RuleProfitTarget2 {
		t.Fatalf("expected legacy target to fire as profit target 2, got %+v", decision)
	}
}

func TestCheckExitConditionsTargetOneWinsOverTargetTwo(t *testing.T) {
	now := time.Date(2025, 6, 16, 10, 0, 0, 0, time.UTC)
	automation := &model.Automation{
		ProfitTarget1: 25,
		ProfitTarget2: 20,
	}

	position := openPosition(5.00, 6.50, 2)

	decision := CheckExitConditions(position, automation, now)
	if decision == nil || decision.Rule != RuleProfitTarget1 {
		t.Fatalf("expected profit target 1 to win, got %+v", decision)
	}
}

func TestCheckExitConditionsMaxDaysHeld(t *testing.T) {
	now := time.Date(2025, 6, 16, 10, 0, 0, 0, time.UTC)
	automation := &model.Automation{MaxDaysToHold: 5}

	position := openPosition(5.00, 5.10, 2)

	decision := CheckExitConditions(position, automation, now)
	if decision == nil || decision.Rule != RuleMaxDaysHeld {
		t.Fatalf("expected max hold to fire after 6 days, got %+v", decision)
	}
}

func TestCheckExitConditionsMinDTEExit(t *testing.T) {
	now := time.Date(2025, 7, 14, 10, 0, 0, 0, time.UTC)
	automation := &model.Automation{MinDTEExit: 5}

	position := openPosition(5.00, 5.10, 2)
	position.OpenedAt = time.Date(2025, 7, 10, 14, 30, 0, 0, time.UTC)

	decision := CheckExitConditions(position, automation, now)
	if decision == nil || decision.Rule != RuleMinDTE {
		t.Fatalf("expected DTE floor to fire at 4 DTE, got %+v", decision)
	}
}

func TestCheckExitConditionsExpirationGuardWithoutAutomation(t *testing.T) {
	now := time.Date(2025, 7, 17, 10, 0, 0, 0, time.UTC)

	position := openPosition(5.00, 5.10, 2)
	position.OpenedAt = time.Date(2025, 7, 15, 14, 30, 0, 0, time.UTC)

	decision := CheckExitConditions(position, nil, now)
	if decision == nil || decision.Rule != RuleExpiration {
		t.Fatalf("expected expiration guard at 1 DTE, got %+v", decision)
	}
}

func TestCheckExitConditionsExpirationGuardPastExpiration(t *testing.T) {
	// An option that expired while the engine was down must still be
	// forced out the next time it is checked.
	now := time.Date(2025, 7, 21, 10, 0, 0, 0, time.UTC)

	position := openPosition(5.00, 5.10, 2)
	position.OpenedAt = time.Date(2025, 7, 15, 14, 30, 0, 0, time.UTC)

	decision := CheckExitConditions(position, nil, now)
	if decision == nil || decision.Rule != RuleExpiration {
		t.Fatalf("expected expiration guard at -3 DTE, got %+v", decision)
	}
	if decision.Quantity != position.Quantity {
		t.Fatalf("expected a full exit, got %d of %d", decision.Quantity, position.Quantity)
	}
	if !strings.Contains(decision.Reason, "expired") {
		t.Fatalf("expected reason to mention the passed expiration, got %q", decision.Reason)
	}
}

func TestCheckExitConditionsExpirationGuardIgnoresEquities(t *testing.T) {
	now := time.Date(2025, 7, 21, 10, 0, 0, 0, time.UTC)

	position := openPosition(5.00, 5.10, 2)
	position.OptionSymbol = ""
	position.Strike = 0
	position.Expiration = nil
	position.Right = ""

	if decision := CheckExitConditions(position, nil, now); decision != nil {
		t.Fatalf("expected equity position to stay open, got %+v", decision)
	}
}

func TestCheckExitConditionsMinDTEFiresPastExpiration(t *testing.T) {
	now := time.Date(2025, 7, 21, 10, 0, 0, 0, time.UTC)
	automation := &model.Automation{MinDTEExit: 5}

	position := openPosition(5.00, 5.10, 2)
	position.OpenedAt = time.Date(2025, 7, 15, 14, 30, 0, 0, time.UTC)

	decision := CheckExitConditions(position, automation, now)
	if decision == nil || decision.Rule != RuleMinDTE {
		t.Fatalf("expected DTE floor to fire at -3 DTE, got %+v", decision)
	}
}

func TestCheckExitConditionsTimeRulesRunInOrder(t *testing.T) {
	// Max hold, DTE floor and the expiration guard all apply; the hold
	// rule must win because it is checked first.
	now := time.Date(2025, 7, 17, 10, 0, 0, 0, time.UTC)
	automation := &model.Automation{MaxDaysToHold: 5, MinDTEExit: 5}

	position := openPosition(5.00, 5.10, 2)
	position.OpenedAt = time.Date(2025, 7, 1, 14, 30, 0, 0, time.UTC)

	decision := CheckExitConditions(position, automation, now)
	if decision == nil || decision.Rule != RuleMaxDaysHeld {
		t.Fatalf("expected max hold to be reported first, got %+v", decision)
	}
}

func TestCheckExitConditionsSkipsUncheckablePositions(t *testing.T) {
	now := time.Date(2025, 6, 16, 10, 0, 0, 0, time.UTC)
	automation := &model.Automation{ProfitTarget1: 25}

	closed := openPosition(5.00, 6.30, 2)
	closed.Status = model.PositionStatusClosed
	if decision := CheckExitConditions(closed, automation, now); decision != nil {
		t.Fatalf("expected closed position to be skipped, got %+v", decision)
	}

	unpriced := openPosition(5.00, 6.30, 2)
	unpriced.CurrentPrice = nil
	if decision := CheckExitConditions(unpriced, automation, now); decision != nil {
		t.Fatalf("expected unpriced position to be skipped, got %+v", decision)
	}

	if decision := CheckExitConditions(nil, automation, now); decision != nil {
		t.Fatalf("expected nil position to be skipped, got %+v", decision)
	}
}
