package signals

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	BaseURL    string        `envconfig:"SIGNAL_ORACLE_BASE_URL" default:"http://localhost:8200"`
	Timeout    time.Duration `envconfig:"SIGNAL_ORACLE_TIMEOUT" default:"15s"`
	RetryCount int           `envconfig:"SIGNAL_ORACLE_RETRY_COUNT" default:"2"`
	RetryWait  time.Duration `envconfig:"SIGNAL_ORACLE_RETRY_WAIT" default:"500ms"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
