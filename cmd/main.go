package main

import (
	"context"
	"fmt"
	"os"

	"optionsengine/cmd/engine"
	"optionsengine/src/database"
	"optionsengine/src/model"
	"optionsengine/src/repository"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

var Version string

func main() {
	app := cli.NewApp()
	app.Name = "Options Engine CMD"
	app.Usage = "The options engine command line interface"

	app.Commands = []cli.Command{
		engineCMD,
		cycleCMD,
		createUserCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	engineCMD = cli.Command{
		Name:        "engine",
		Usage:       "run the trading loop",
		Action:      engineAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Run the trading loop without the HTTP server`,
	}
	cycleCMD = cli.Command{
		Name:        "cycle",
		Usage:       "run a single full cycle",
		Action:      cycleAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Run one full monitor, scan and execute cycle, then exit`,
	}
	createUserCMD = cli.Command{
		Name:   "create-user",
		Usage:  "create a trading account",
		Action: createUserAction,
		Flags: []cli.Flag{
			cli.StringFlag{Name: "email", Usage: "account email"},
			cli.StringFlag{Name: "password", Usage: "account password"},
			cli.StringFlag{Name: "mode", Value: model.TradingModePaper, Usage: "trading mode: paper or live"},
		},
		Description: `Create a trading account with a hashed password`,
	}
)

func engineAction(_ *cli.Context) error {

	logrus.Info("Starting engine CMD")
	logrus.WithField("cmd", "engine")

	eng := &engine.Engine{}
	err := eng.Start()
	if err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}

	return nil
}

func createUserAction(c *cli.Context) error {
	email := c.String("email")
	password := c.String("password")
	if email == "" || password == "" {
		return fmt.Errorf("both --email and --password are required")
	}

	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Error("Failed to connect to main database")
		return err
	}

	user := &model.User{
		Email:       email,
		TradingMode: c.String("mode"),
	}
	if err := user.SetPassword(password); err != nil {
		return err
	}

	if err := repository.NewUserRepository().Create(context.Background(), user); err != nil {
		logrus.WithError(err).Error("Creating user")
		return err
	}

	logrus.WithFields(logrus.Fields{
		"user_id": user.ID,
		"email":   user.Email,
		"mode":    user.TradingMode,
	}).Info("user created")

	return nil
}

func cycleAction(_ *cli.Context) error {

	logrus.Info("Starting cycle CMD")
	logrus.WithField("cmd", "cycle")

	eng := &engine.Engine{}
	err := eng.RunOnce()
	if err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}

	return nil
}
