package engine

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"optionsengine/src/alerts"
	"optionsengine/src/controller"
	"optionsengine/src/database"
	"optionsengine/src/executor"
	"optionsengine/src/marketdata"
	"optionsengine/src/monitor"
	"optionsengine/src/repository"
	"optionsengine/src/risk"
	"optionsengine/src/scanner"
	"optionsengine/src/signals"
)

// Engine runs the trading loop without the HTTP surface. Headless
// deployments and one-shot cycles use this entrypoint.
type Engine struct{}

// build wires the full component graph against the main database.
func build(ctx context.Context) *controller.MasterController {
	users := repository.NewUserRepository()
	automations := repository.NewAutomationRepository()
	positions := repository.NewPositionRepository()
	trades := repository.NewTradeRepository()
	limits := repository.NewRiskLimitsRepository()
	alertStore := repository.NewAlertRepository()

	mdConfig := marketdata.GetConfig()
	gateway := marketdata.NewClient(mdConfig)
	if GetConfig().StreamEnabled && mdConfig.WSURL != "" {
		stream := marketdata.NewQuoteStream(mdConfig.WSURL, gateway.Cache())
		go stream.Run(ctx)
	}

	oracle := signals.NewClient(signals.GetConfig())

	riskManager := risk.NewManager(logrus.WithField("component", "risk"), limits, positions, trades)
	ledger := executor.New(logrus.WithField("component", "executor"), database.MainDB, gateway, riskManager, automations)
	positionMonitor := monitor.New(logrus.WithField("component", "monitor"), positions, users, automations, gateway, ledger)
	opportunityScanner := scanner.New(logrus.WithField("component", "scanner"), automations, positions, riskManager, oracle, gateway)
	alertGenerator := alerts.New(logrus.WithField("component", "alerts"), alertStore, users)

	return controller.New(
		logrus.WithField("component", "controller"),
		controller.GetConfig(),
		users,
		positionMonitor,
		opportunityScanner,
		ledger,
		alertGenerator,
	)
}

// Start runs the loop until SIGINT or SIGTERM.
func (e *Engine) Start() error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	// Initialize main (read/write) database
	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Fatal("Failed to connect to main database")
		return err
	}

	master := build(ctx)
	master.Start(ctx)

	<-ctx.Done()
	master.Stop()

	return nil
}

// RunOnce executes a single full cycle and exits.
func (e *Engine) RunOnce() error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Fatal("Failed to connect to main database")
		return err
	}

	master := build(ctx)
	return master.RunCycle(ctx, true)
}
