package controller

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Cadences per market state: full cycles while the market is open,
	// light (monitor-only) cycles in the extended and closed sessions.
	FullCycleInterval   time.Duration `envconfig:"ENGINE_FULL_CYCLE_INTERVAL" default:"5m"`
	LightCycleInterval  time.Duration `envconfig:"ENGINE_LIGHT_CYCLE_INTERVAL" default:"10m"`
	ClosedCycleInterval time.Duration `envconfig:"ENGINE_CLOSED_CYCLE_INTERVAL" default:"15m"`

	// ErrorCooldown is slept after a cycle fails before the next try.
	ErrorCooldown time.Duration `envconfig:"ENGINE_ERROR_COOLDOWN" default:"60s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
