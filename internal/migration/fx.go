package migration

import (
	"github.com/smallbiznis/kolaffiliate/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(migrateOnStart),
)

func migrateOnStart(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
	log = log.Named("migrations")
	if cfg.DBType != "postgres" {
		log.Warn("skipping embedded migrations", zap.String("db_type", cfg.DBType))
		return nil
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}

	res, err := RunMigrations(sqlDB)
	if err != nil {
		return err
	}
	log.Info("schema ready",
		zap.Uint("version", res.Version),
		zap.Uint("latest", res.Latest),
		zap.Bool("applied", res.Applied),
	)
	return nil
}
