package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/d60-Lab/flare-sync/config"
	"github.com/d60-Lab/flare-sync/internal/model"
)

// InitDB 按配置打开缓存库（sqlite 本地文件 / postgres）
func InitDB(cfg *config.Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Database.Driver {
	case "postgres":
		db, err = gorm.Open(postgres.Open(cfg.Database.DSN), gormCfg)
	case "sqlite", "":
		db, err = gorm.Open(sqlite.Open(cfg.Database.DSN), gormCfg)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

// Migrate 建表；缓存库允许随时重建，丢数据只影响冷启动速度。
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.DbStatus{},
		&model.DbUser{},
		&model.DbEmoji{},
		&model.DbPagingTimeline{},
		&model.DbAccount{},
		&model.DbRelation{},
	)
}
