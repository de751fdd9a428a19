package infra

import (
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"captive-portal/controlplane/internal/model"
)

// OpenDB opens the sqlite database at path. gorm's slow-query and error
// lines go through log so they share the service's JSON format.
func OpenDB(path string, log *logrus.Entry) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		TranslateError: true,
		Logger:         newGormLogger(log),
	})
	if err != nil {
		return nil, err
	}
	if err := db.Exec("PRAGMA foreign_keys = ON;").Error; err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// A single connection serializes transactions, which the session
	// compare-and-swap updates rely on.
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

func newGormLogger(log *logrus.Entry) logger.Interface {
	return logger.New(log.WithField("component", "gorm"), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(model.All()...)
}
