// Copyright © 2018 One Concern

// Package dlogger builds the zap loggers used by the command line, with log levels
// and a choice of encodings.
package dlogger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log levels
const (
	LogLevelInfo  = "info"
	LogLevelDebug = "debug"
	LogLevelWarn  = "warn"
	LogLevelError = "error"

	// LogLevelNone disables logging
	LogLevelNone = "none"
)

// Log encodings
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Option tunes the logger configuration
type Option func(*zap.Config)

// Console renders human readable logs instead of JSON
func Console() Option {
	return func(cfg *zap.Config) {
		cfg.Encoding = FormatConsole
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
}

// Output sends logs to some paths (files, stdout, stderr) instead of stderr
func Output(paths ...string) Option {
	return func(cfg *zap.Config) {
		if len(paths) > 0 {
			cfg.OutputPaths = paths
		}
	}
}

// GetLogger returns a zap logger with the specified level.
//
// Logs go to stderr without sampling, so that command outputs on stdout remain usable.
func GetLogger(logLevel string, opts ...Option) (*zap.Logger, error) {
	if logLevel == LogLevelNone {
		return zap.NewNop(), nil
	}
	lvl, err := zapcore.ParseLevel(logLevel)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Sampling = nil
	cfg.OutputPaths = []string{"stderr"}
	for _, apply := range opts {
		apply(&cfg)
	}
	return cfg.Build()
}

// MustGetLogger returns a zap logger with the specified level or panics
func MustGetLogger(logLevel string, opts ...Option) *zap.Logger {
	l, err := GetLogger(logLevel, opts...)
	if err != nil {
		panic(err)
	}
	return l
}
