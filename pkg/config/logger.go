package config

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the process logger from the loaded config. The default is
// production JSON with ISO8601 timestamps; LOG_FORMAT=console switches to the
// development encoder with colored levels for local runs.
func NewLogger(cfg *Config) (*zap.Logger, error) {
	levelStr := cfg.LogLevel
	if levelStr == "" {
		levelStr = "info"
	}

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(levelStr)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", levelStr, err)
	}

	var zcfg zap.Config
	switch cfg.LogFormat {
	case "console":
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		zcfg = zap.NewProductionConfig()
		zcfg.Encoding = "json"
		zcfg.EncoderConfig.TimeKey = "timestamp"
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	return logger, nil
}
