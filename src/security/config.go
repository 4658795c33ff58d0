package security

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// APIKey guards the HTTP surface. Empty disables the check, which
	// is only acceptable for local development.
	APIKey       string `envconfig:"API_KEY" default:""`
	UserIDHeader string `envconfig:"USER_ID_HEADER" default:"X-User-ID"`
	APIKeyHeader string `envconfig:"API_KEY_HEADER" default:"X-API-Key"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
