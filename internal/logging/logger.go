// Package logging builds the zap logger shared by every component.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"tendertriage/internal/config"
)

// New builds a logger from cfg. Production loggers encode JSON; development
// loggers are human-readable and log at debug unless a level is given.
func New(cfg config.LoggingConfig) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	if strings.TrimSpace(cfg.Level) != "" {
		level, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("logging level: %w", err)
		}
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}
	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger.With(zap.String("service", "tendertriage")), nil
}
