package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/medilink/medilink/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var Module = fx.Module("db",
	fx.Provide(New),
)

type Params struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Cfg        config.Config
	Log        *zap.Logger
	Registerer prometheus.Registerer `optional:"true"`
}

func New(p Params) (*gorm.DB, error) {
	lc, cfg, log := p.Lifecycle, p.Cfg, p.Log

	logLevel := logger.Warn
	if cfg.IsDevelopment() {
		logLevel = logger.Info
	}

	conn, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{
		Logger:                 logger.Default.LogMode(logLevel),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := conn.Use(otelgorm.NewPlugin(otelgorm.WithDBName("medilink"))); err != nil {
		return nil, fmt.Errorf("register otelgorm: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	if cfg.Database.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	}
	if cfg.Database.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	}
	if cfg.Database.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	}
	if err := RegisterPoolStats(p.Registerer, sqlDB); err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return sqlDB.PingContext(ctx)
		},
		OnStop: func(context.Context) error {
			log.Info("closing database")
			return sqlDB.Close()
		},
	})

	return conn, nil
}

// RegisterPoolStats exposes database/sql pool gauges (go_sql_*) labelled db_name="medilink".
// A nil registerer disables it.
func RegisterPoolStats(reg prometheus.Registerer, sqlDB *sql.DB) error {
	if reg == nil {
		return nil
	}
	if err := reg.Register(collectors.NewDBStatsCollector(sqlDB, "medilink")); err != nil {
		return fmt.Errorf("register db pool stats: %w", err)
	}
	return nil
}
