// Package bootstrap wires autotagger components from configuration.
package bootstrap

import (
	"fmt"

	"github.com/jonesrussell/north-cloud/autotagger/internal/config"
	"github.com/jonesrussell/north-cloud/autotagger/internal/logger"
)

// DefaultConfigFile is read when neither --config nor CONFIG_PATH is set.
const DefaultConfigFile = "config.yml"

// LoadConfig loads configuration from path, falling back to CONFIG_PATH
// and then DefaultConfigFile.
func LoadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = config.GetConfigPath(DefaultConfigFile)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// CreateLogger creates the service logger.
func CreateLogger(cfg *config.Config) (logger.Logger, error) {
	logCfg := cfg.Logging
	if cfg.Service.Debug {
		logCfg.Development = true
		logCfg.Level = "debug"
	}
	log, err := logger.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return log.With(logger.String("service", cfg.Service.Name)), nil
}
