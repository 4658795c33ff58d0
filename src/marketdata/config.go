package marketdata

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	BaseURL      string        `envconfig:"MARKET_DATA_BASE_URL" default:"http://localhost:8100"`
	WSURL        string        `envconfig:"MARKET_DATA_WS_URL" default:""`
	APIKey       string        `envconfig:"MARKET_DATA_API_KEY" default:""`
	Timeout      time.Duration `envconfig:"MARKET_DATA_TIMEOUT" default:"10s"`
	RetryCount   int           `envconfig:"MARKET_DATA_RETRY_COUNT" default:"3"`
	RetryWait    time.Duration `envconfig:"MARKET_DATA_RETRY_WAIT" default:"500ms"`
	RetryMaxWait time.Duration `envconfig:"MARKET_DATA_RETRY_MAX_WAIT" default:"4s"`
	CacheTTL     time.Duration `envconfig:"MARKET_DATA_CACHE_TTL" default:"5s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
