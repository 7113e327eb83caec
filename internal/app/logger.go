package app

import (
	"fmt"

	"soulchat-agent/internal/config"

	"go.uber.org/zap"
)

func newLogger(cfg config.AppConfig) (*zap.Logger, error) {
	zc := zap.NewDevelopmentConfig()
	if cfg.IsProduction() {
		zc = zap.NewProductionConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	zc.Level = level
	return zc.Build()
}
