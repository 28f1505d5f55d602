package migration

import (
	"github.com/smallbiznis/billflow/internal/config"
	"github.com/smallbiznis/billflow/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(Apply),
)

func Apply(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
	if cfg.DBType != db.TypePostgres {
		log.Info("applying schema from models", zap.String("db_type", cfg.DBType))
		return AutoMigrate(conn)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB)
}
