package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"grin-gateway/models"
)

// Connect opens the postgres connection and migrates the gateway's tables.
func Connect(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err := db.AutoMigrate(&models.Order{}, &models.OrderMeta{}, &models.OrderNote{}); err != nil {
		return nil, fmt.Errorf("failed to migrate gateway models: %w", err)
	}

	return db, nil
}
