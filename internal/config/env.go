package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// parseEnv overlays TOKENSTORE_* variables. Unset variables leave the
// current value untouched.
func parseEnv(config *Config) error {
	if err := envconfig.Process(EnvPrefix, config); err != nil {
		return fmt.Errorf("loading config from environment: %w", err)
	}
	return nil
}
