// Package logger builds the service's zap loggers.
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "farmops"

// New builds the root logger for LOG_MODE. "production" (or empty) writes
// JSON at info level, "development" the console encoder at debug level; any
// other mode is a configuration error.
func New(mode string) (*zap.Logger, error) {
	var cfg zap.Config
	switch mode {
	case "", "production":
		cfg = zap.NewProductionConfig()
	case "development":
		cfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("unknown log mode %q (want production or development)", mode)
	}
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.InitialFields = map[string]any{"service": serviceName}

	return cfg.Build()
}

// Must panics when the logger cannot be created. Only main uses it, before
// anything else can report the failure.
func Must(logger *zap.Logger, err error) *zap.Logger {
	if err != nil {
		panic(fmt.Sprintf("logger: %v", err))
	}
	return logger
}

// Named returns the logger a pipeline component writes to: a child named
// after the component that also carries it as a "component" field, so JSON
// lines can be filtered without parsing the logger name. A nil base yields
// a no-op logger for tests.
func Named(base *zap.Logger, component string) *zap.Logger {
	if base == nil {
		return zap.NewNop()
	}
	return base.Named(component).With(zap.String("component", component))
}
