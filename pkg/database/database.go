package database

import (
	"algo_learn_backend/internal/config"
	"algo_learn_backend/internal/model"
	"algo_learn_backend/pkg/logger"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func InitDB(cfg *config.DatabaseConfig, migrate bool) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(sqliteDSN(cfg.Path))
	default:
		dsn := mysqlDSN(cfg)
		dialector = mysql.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info("database connected", zap.String("driver", cfg.Driver))

	if migrate {
		if err := Migrate(db); err != nil {
			return nil, err
		}
		logger.Log.Info("database migration completed")
	}

	return db, nil
}

// mysqlDSN 连接固定使用 UTC，date 列按 UTC 零点读写，不随服务器时区偏移
func mysqlDSN(cfg *config.DatabaseConfig) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=UTC",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
		cfg.Charset,
		cfg.ParseTime,
	)
}

// OpenSQLite 打开 sqlite 数据库并完成迁移，本地开发与测试使用
func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(sqliteDSN(path)), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func sqliteDSN(path string) string {
	if path == "" {
		path = "algo_learn.db"
	}
	return path + "?_busy_timeout=5000&_foreign_keys=on"
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.UserModuleProgress{},
		&model.Module{},
		&model.Problem{},
		&model.HintUsage{},
		&model.Submission{},
		&model.Streak{},
		&model.StreakDay{},
		&model.Achievement{},
	)
}
