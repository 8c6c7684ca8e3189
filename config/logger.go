package config

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the application logger. Debug mode uses the development
// config, otherwise the production config at the configured level.
func NewLogger(cfg *Config) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if cfg.Debug {
		config = zap.NewDevelopmentConfig()
	}

	level := zapcore.InfoLevel
	if cfg.Logger.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Logger.Level)); err != nil {
			return nil, fmt.Errorf("invalid logger level %q: %w", cfg.Logger.Level, err)
		}
	}
	if cfg.Debug {
		level = zapcore.DebugLevel
	}
	config.Level = zap.NewAtomicLevelAt(level)
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.TimeKey = "timestamp"

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}
