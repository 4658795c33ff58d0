package scanner

import (
	"context"

	"optionsengine/src/model"
)

// Step is one recorded stage of the evaluation pipeline.
type Step struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// Diagnosis explains why an automation is or is not trading right now.
type Diagnosis struct {
	AutomationID uint   `json:"automation_id"`
	Symbol       string `json:"symbol"`
	Tradeable    bool   `json:"tradeable"`
	Steps        []Step `json:"steps"`
	Rationale    string `json:"rationale,omitempty"`
	SkipReason   string `json:"skip_reason,omitempty"`
}

// record is nil-safe so the scan path can share the pipeline without
// paying for a trace.
func (d *Diagnosis) record(name string, passed bool, detail string) {
	if d == nil {
		return
	}
	d.Steps = append(d.Steps, Step{Name: name, Passed: passed, Detail: detail})
}

// Diagnose re-runs the evaluation pipeline for one automation without
// executing anything, capturing every step's outcome.
func (s *Scanner) Diagnose(ctx context.Context, user *model.User, automationID uint) (*Diagnosis, error) {
	automation, err := s.automations.FindByID(ctx, automationID)
	if err != nil {
		return nil, err
	}
	if automation == nil || automation.UserID != user.ID {
		return nil, nil
	}

	diagnosis := &Diagnosis{AutomationID: automation.ID, Symbol: automation.Symbol}

	if !automation.Tradeable() {
		diagnosis.SkipReason = "automation inactive or paused"
		diagnosis.record("active", false, diagnosis.SkipReason)
		return diagnosis, nil
	}
	diagnosis.record("active", true, "active and unpaused")

	opportunity, skip, err := s.evaluate(ctx, user, automation, diagnosis)
	if err != nil {
		return nil, err
	}

	if opportunity != nil {
		diagnosis.Tradeable = true
		diagnosis.Rationale = opportunity.Rationale
	} else {
		diagnosis.SkipReason = skip
	}

	return diagnosis, nil
}
