package migration

import (
	"github.com/smallbiznis/parkway/internal/config"
	"github.com/smallbiznis/parkway/internal/seed"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}

		if err := RunMigrations(sqlDB); err != nil {
			return err
		}

		if cfg.SeedDemoLot {
			return seed.EnsureDemoLot(conn)
		}
		return nil
	}),
)
