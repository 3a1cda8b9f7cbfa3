// Package logger builds the process-wide zap logger for a deployment profile.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a logger configured for env:
//
//	prod     JSON at INFO, for log aggregators
//	staging  JSON at DEBUG
//	other    human-readable console output at DEBUG with colored levels
func New(env string) (*zap.Logger, error) {
	return Config(env).Build()
}

// Config returns the zap configuration New builds from.
func Config(env string) zap.Config {
	var cfg zap.Config

	switch env {
	case "prod":
		cfg = zap.NewProductionConfig()
	case "staging":
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	default:
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stdout"}

	return cfg
}
