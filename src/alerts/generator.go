// Package alerts writes per-user notification rows at the end of
// engine cycles.
package alerts

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"optionsengine/src/model"
)

type alertStore interface {
	Create(ctx context.Context, alert *model.Alert) error
}

type userStore interface {
	FindNotificationEnabled(ctx context.Context) ([]model.User, error)
}

// CycleSummary is what a full engine cycle produced for one user.
type CycleSummary struct {
	UserID          uint
	PositionsClosed int
	PartialExits    int
	TradesExecuted  int
	RiskViolations  []string
	Errors          int
}

func (s CycleSummary) quiet() bool {
	return s.PositionsClosed == 0 && s.PartialExits == 0 &&
		s.TradesExecuted == 0 && len(s.RiskViolations) == 0 && s.Errors == 0
}

// Generator turns cycle summaries into alert rows for users that
// opted into notifications.
type Generator struct {
	logger *logrus.Entry
	alerts alertStore
	users  userStore
}

// New wires an alert generator.
func New(logger *logrus.Entry, alerts alertStore, users userStore) *Generator {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Generator{logger: logger, alerts: alerts, users: users}
}

// Generate writes one alert per eventful summary whose user has
// notifications enabled. Quiet cycles produce nothing.
func (g *Generator) Generate(ctx context.Context, summaries []CycleSummary) error {
	users, err := g.users.FindNotificationEnabled(ctx)
	if err != nil {
		return err
	}

	enabled := make(map[uint]struct{}, len(users))
	for i := range users {
		enabled[users[i].ID] = struct{}{}
	}

	for _, summary := range summaries {
		if summary.quiet() {
			continue
		}
		if _, ok := enabled[summary.UserID]; !ok {
			continue
		}

		level := model.AlertLevelInfo
		if len(summary.RiskViolations) > 0 || summary.Errors > 0 {
			level = model.AlertLevelWarning
		}

		alert := &model.Alert{
			UserID: summary.UserID,
			Level:  level,
			Message: fmt.Sprintf("engine cycle: %d trade(s) executed, %d position(s) closed, %d partial exit(s)",
				summary.TradesExecuted, summary.PositionsClosed, summary.PartialExits),
			Metadata: map[string]any{
				"trades_executed":  summary.TradesExecuted,
				"positions_closed": summary.PositionsClosed,
				"partial_exits":    summary.PartialExits,
				"risk_violations":  summary.RiskViolations,
				"errors":           summary.Errors,
			},
		}

		if err := g.alerts.Create(ctx, alert); err != nil {
			g.logger.WithError(err).WithField("user_id", summary.UserID).
				Warn("failed to write cycle alert")
		}
	}

	return nil
}
