package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	logger "github.com/sirupsen/logrus"

	"optionsengine/src/alerts"
	"optionsengine/src/auth"
	"optionsengine/src/controller"
	"optionsengine/src/database"
	"optionsengine/src/executor"
	"optionsengine/src/handler"
	"optionsengine/src/marketdata"
	"optionsengine/src/monitor"
	"optionsengine/src/repository"
	"optionsengine/src/risk"
	"optionsengine/src/scanner"
	"optionsengine/src/security"
	"optionsengine/src/server"
	"optionsengine/src/signals"
)

var (
	PORT     = os.Getenv("SERVER_PORT")
	APP_NAME = os.Getenv("APP_NAME")
)

func SetupLogger() {
	levelStr := strings.ToLower(os.Getenv("LOG_LEVEL"))

	level, err := logger.ParseLevel(levelStr)
	if err != nil {
		level = logger.DebugLevel
	}

	logger.SetLevel(level)
	logger.SetFormatter(&logger.TextFormatter{
		FullTimestamp: true,
	})
}

func main() {
	SetupLogger()
	defer handlePanic()

	// Initialize main (read/write) database
	if err := database.InitMainDB(); err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	users := repository.NewUserRepository()
	automations := repository.NewAutomationRepository()
	positions := repository.NewPositionRepository()
	trades := repository.NewTradeRepository()
	limits := repository.NewRiskLimitsRepository()
	alertStore := repository.NewAlertRepository()

	mdConfig := marketdata.GetConfig()
	gateway := marketdata.NewClient(mdConfig)
	if mdConfig.WSURL != "" {
		stream := marketdata.NewQuoteStream(mdConfig.WSURL, gateway.Cache())
		go stream.Run(ctx)
	}

	oracle := signals.NewClient(signals.GetConfig())

	riskManager := risk.NewManager(logger.WithField("component", "risk"), limits, positions, trades)
	ledger := executor.New(logger.WithField("component", "executor"), database.MainDB, gateway, riskManager, automations)
	positionMonitor := monitor.New(logger.WithField("component", "monitor"), positions, users, automations, gateway, ledger)
	opportunityScanner := scanner.New(logger.WithField("component", "scanner"), automations, positions, riskManager, oracle, gateway)
	alertGenerator := alerts.New(logger.WithField("component", "alerts"), alertStore, users)

	engine := controller.New(
		logger.WithField("component", "controller"),
		controller.GetConfig(),
		users,
		positionMonitor,
		opportunityScanner,
		ledger,
		alertGenerator,
	)
	engine.Start(ctx)

	port := PORT
	if port == "" {
		port = server.GetConfig().Port
	}

	server.StartServer(port, server.Routes{
		Auth: auth.Middleware(security.GetConfig(), users),

		EngineStatus: handler.EngineStatusHandler(engine),
		EngineStart:  handler.EngineStartHandler(engine),
		EngineStop:   handler.EngineStopHandler(engine),
		RunCycle:     handler.RunCycleHandler(engine),

		AutomationDiagnostics: handler.AutomationDiagnosticsHandler(opportunityScanner),

		ListPositions:   handler.ListPositionsHandler(positions),
		PositionTrades:  handler.ListPositionTradesHandler(positions, trades),
		RefreshPosition: handler.RefreshPositionHandler(positions, positionMonitor),
		ClosePosition:   handler.ClosePositionHandler(positions, ledger),
		CheckExits:      handler.CheckExitsHandler(positionMonitor),
	})

	engine.Stop()
}

func handlePanic() {
	if r := recover(); r != nil {
		logger.WithError(fmt.Errorf("%+v", r)).Error(fmt.Sprintf("Application %s panic", APP_NAME))
	}
	//nolint
	time.Sleep(time.Second * 5)
}
