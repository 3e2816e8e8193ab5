// Package logging builds the service logger: ectologger backed by zap.
package logging

import (
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"go.uber.org/zap"
)

// Config selects the log level and output format
type Config struct {
	Level  string
	Pretty bool
}

// New creates the logger and returns a flush func to call before exit.
// Pretty enables zap's human-readable development encoder.
func New(cfg Config) (ectologger.Logger, func(), error) {
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	zapConfig := zap.NewProductionConfig()
	if cfg.Pretty {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.Level = level

	zapLogger, err := zapConfig.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}

	flush := func() { _ = zapLogger.Sync() }
	return zapadapter.NewZapEctoLogger(zapLogger, nil), flush, nil
}

// Discard returns a logger that drops every message
func Discard() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}
