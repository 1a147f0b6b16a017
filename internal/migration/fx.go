package migration

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, log *zap.Logger) error {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}

		state, err := RunMigrations(sqlDB)
		if err != nil {
			return err
		}
		log.Info("schema migrated",
			zap.String("schema_version", state.Version),
			zap.String("checksum", state.Checksum))
		return nil
	}),
)
