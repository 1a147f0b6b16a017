package observability

import (
	"context"

	"github.com/medilink/medilink/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func NewLogger(lc fx.Lifecycle, cfg config.Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.IsDevelopment() {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zcfg = zap.NewProductionConfig()
		zcfg.EncoderConfig.TimeKey = "ts"
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	log, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	log = log.With(
		zap.String("service", cfg.AppName),
		zap.String("version", cfg.AppVersion),
	)

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			_ = log.Sync()
			return nil
		},
	})
	return log, nil
}
